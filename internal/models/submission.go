package models

import "time"

// Submission is a student's answer to an assignment.
type Submission struct {
	ID           string     `db:"id" json:"id"`
	AssignmentID string     `db:"assignment_id" json:"assignment_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	FileRef      *string    `db:"file_ref" json:"-"`
	FileURL      string     `db:"-" json:"file_url,omitempty"`
	Content      *string    `db:"content" json:"content,omitempty"`
	Grade        *float64   `db:"grade" json:"grade"`
	GradedBy     *string    `db:"graded_by" json:"graded_by,omitempty"`
	GradedAt     *time.Time `db:"graded_at" json:"graded_at,omitempty"`
	SubmittedAt  time.Time  `db:"submitted_at" json:"submitted_at"`
}

// CreateSubmissionRequest is accepted as JSON or multipart form data.
type CreateSubmissionRequest struct {
	AssignmentID string `form:"assignment_id" json:"assignment_id" validate:"required,uuid"`
	Content      string `form:"content" json:"content"`
}

// GradeSubmissionRequest sets the grade of a submission.
type GradeSubmissionRequest struct {
	Grade *float64 `json:"grade" validate:"required,gte=0,lte=999.99"`
}

// SubmissionFilter controls submission listing. StudentID scopes results to one student.
type SubmissionFilter struct {
	StudentID    string
	AssignmentID string
	Page         int
	PageSize     int
}

// GradebookRow is one line of an assignment gradebook export.
type GradebookRow struct {
	SubmissionID    string     `db:"submission_id"`
	StudentID       string     `db:"student_id"`
	StudentUsername string     `db:"student_username"`
	SubmittedAt     time.Time  `db:"submitted_at"`
	Grade           *float64   `db:"grade"`
	GradedAt        *time.Time `db:"graded_at"`
}
