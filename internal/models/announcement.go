package models

import "time"

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Title        string    `db:"title" json:"title"`
	Message      string    `db:"message" json:"message"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AnnouncementRequest is used for create and full update.
type AnnouncementRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Message string `json:"message" validate:"required"`
}

// PatchAnnouncementRequest updates only the provided fields.
type PatchAnnouncementRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=255"`
	Message *string `json:"message" validate:"omitempty,min=1"`
}

// AnnouncementFilter allows listing announcements.
type AnnouncementFilter struct {
	Page     int
	PageSize int
}
