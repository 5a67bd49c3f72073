package models

import "time"

// Notification is a message materialised for exactly one recipient.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	EventID   string    `db:"event_id" json:"event_id"`
	Kind      string    `db:"kind" json:"kind"`
	Message   string    `db:"message" json:"message"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// InboxPage is one page of a user's inbox.
type InboxPage struct {
	Items       []Notification `json:"items"`
	Pagination  Pagination     `json:"pagination"`
	UnreadCount int            `json:"unread_count"`
}
