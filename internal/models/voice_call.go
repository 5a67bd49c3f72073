package models

import "time"

// VoiceCall tracks a signalling session. Once ended it is never reactivated.
type VoiceCall struct {
	ID          string     `db:"id" json:"id"`
	ChannelName string     `db:"channel_name" json:"channel_name"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	EndedAt     *time.Time `db:"ended_at" json:"ended_at"`
	IsActive    bool       `db:"is_active" json:"is_active"`
}

// EndVoiceCallRequest identifies the call to end.
type EndVoiceCallRequest struct {
	ChannelName string `json:"channel_name" validate:"required,max=64"`
}
