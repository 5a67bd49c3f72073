package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-api/internal/models"
)

const voiceCallColumns = `id, channel_name, created_by, created_at, ended_at, is_active`

// VoiceCallRepository persists voice call sessions.
type VoiceCallRepository struct {
	db *sqlx.DB
}

// NewVoiceCallRepository creates the repository.
func NewVoiceCallRepository(db *sqlx.DB) *VoiceCallRepository {
	return &VoiceCallRepository{db: db}
}

// Create inserts an active call. A duplicate channel name surfaces as a pq
// unique violation on voice_calls_channel_name_key.
func (r *VoiceCallRepository) Create(ctx context.Context, call *models.VoiceCall) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	call.IsActive = true
	call.EndedAt = nil
	const query = `INSERT INTO voice_calls (id, channel_name, created_by, created_at, ended_at, is_active) VALUES ($1, $2, $3, $4, NULL, TRUE)`
	if _, err := r.db.ExecContext(ctx, query, call.ID, call.ChannelName, call.CreatedBy, call.CreatedAt); err != nil {
		return fmt.Errorf("create voice call: %w", err)
	}
	return nil
}

// EndActive ends the active call on channel owned by ownerID in a single
// conditional update. sql.ErrNoRows is returned when no such active call
// exists, including when a concurrent end already won.
func (r *VoiceCallRepository) EndActive(ctx context.Context, channel, ownerID string, endedAt time.Time) (*models.VoiceCall, error) {
	query := `UPDATE voice_calls SET is_active = FALSE, ended_at = $3 WHERE channel_name = $1 AND created_by = $2 AND is_active = TRUE RETURNING ` + voiceCallColumns
	var call models.VoiceCall
	if err := r.db.GetContext(ctx, &call, query, channel, ownerID, endedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("end voice call: %w", err)
	}
	return &call, nil
}
