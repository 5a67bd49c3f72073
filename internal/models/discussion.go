package models

import "time"

// Discussion is a question thread with replies ordered oldest first.
type Discussion struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Question  string    `db:"question" json:"question"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	Replies   []Reply   `db:"-" json:"replies"`
}

// Reply belongs to a discussion.
type Reply struct {
	ID           string    `db:"id" json:"id"`
	DiscussionID string    `db:"discussion_id" json:"discussion_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Text         string    `db:"text" json:"text"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DiscussionRequest is used for create and full update.
type DiscussionRequest struct {
	Question string `json:"question" validate:"required,max=5000"`
}

// PatchDiscussionRequest updates only the provided fields.
type PatchDiscussionRequest struct {
	Question *string `json:"question" validate:"omitempty,min=1,max=5000"`
}

// CreateReplyRequest posts a reply. DiscussionID comes from the path on the nested route.
type CreateReplyRequest struct {
	DiscussionID string `json:"discussion_id" validate:"required,uuid"`
	Text         string `json:"text" validate:"required,max=5000"`
}

// DiscussionFilter allows listing discussions.
type DiscussionFilter struct {
	Page     int
	PageSize int
}
