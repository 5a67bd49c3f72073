package models

import (
	"io"
	"time"
)

// Assignment is a piece of work posted by an instructor.
type Assignment struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	DueDate      time.Time `db:"due_date" json:"due_date"`
	FileRef      *string   `db:"file_ref" json:"-"`
	FileURL      string    `db:"-" json:"file_url,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CreateAssignmentRequest is accepted as JSON or multipart form data.
type CreateAssignmentRequest struct {
	Title       string    `form:"title" json:"title" validate:"required,max=255"`
	Description string    `form:"description" json:"description" validate:"required"`
	DueDate     time.Time `form:"due_date" json:"due_date" time_format:"2006-01-02T15:04:05Z07:00" validate:"required"`
}

// AssignmentFilter controls assignment listing.
type AssignmentFilter struct {
	InstructorID string
	Page         int
	PageSize     int
}

// FileUpload carries an uploaded attachment from the transport layer to a service.
type FileUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}
