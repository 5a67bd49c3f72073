package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/authz"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/pkg/database"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/validation"
)

const (
	voiceChannelConstraint = "voice_calls_channel_name_key"
	voiceChannelAttempts   = 5
	// Channel names live in a VARCHAR(64) column.
	maxChannelNameLen = 64
	minChannelBytes   = 5
	maxChannelBytes   = 29
)

type voiceCallRepository interface {
	Create(ctx context.Context, call *models.VoiceCall) error
	EndActive(ctx context.Context, channel, ownerID string, endedAt time.Time) (*models.VoiceCall, error)
}

type voiceCallMetrics interface {
	RecordVoiceCall(event string)
}

// VoiceCallConfig shapes generated channel names.
type VoiceCallConfig struct {
	ChannelPrefix string
	ChannelBytes  int
}

// VoiceCallService manages the voice-call lifecycle.
type VoiceCallService struct {
	repo      voiceCallRepository
	validator *validator.Validate
	metrics   voiceCallMetrics
	logger    *zap.Logger
	config    VoiceCallConfig
	random    io.Reader
	now       func() time.Time
}

// NewVoiceCallService constructs the service. metrics may be nil.
func NewVoiceCallService(repo voiceCallRepository, validate *validator.Validate, metrics voiceCallMetrics, logger *zap.Logger, cfg VoiceCallConfig) *VoiceCallService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = clampChannelConfig(cfg)
	return &VoiceCallService{
		repo:      repo,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		config:    cfg,
		random:    rand.Reader,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new active call owned by actor on a freshly generated channel.
func (s *VoiceCallService) Create(ctx context.Context, actor authz.Actor) (*models.VoiceCall, error) {
	if err := authorize(actor, authz.ResourceVoiceCall, authz.ActionCreate); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= voiceChannelAttempts; attempt++ {
		channel, err := s.channelName()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate channel name")
		}
		call := &models.VoiceCall{
			ID:          uuid.NewString(),
			ChannelName: channel,
			CreatedBy:   actor.UserID,
			CreatedAt:   s.now(),
			IsActive:    true,
		}
		err = s.repo.Create(ctx, call)
		if err == nil {
			s.record("started")
			s.logger.Info("voice call started", zap.String("channel", channel), zap.String("user_id", actor.UserID))
			return call, nil
		}
		if !database.IsUniqueViolation(err, voiceChannelConstraint) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create voice call")
		}
		s.logger.Warn("voice channel collision, regenerating", zap.String("channel", channel), zap.Int("attempt", attempt))
	}
	return nil, appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique voice channel")
}

// End deactivates the caller's active call on req.ChannelName. Missing,
// foreign, already ended and concurrently ended calls all fail the same way.
func (s *VoiceCallService) End(ctx context.Context, actor authz.Actor, req models.EndVoiceCallRequest) (*models.VoiceCall, error) {
	if err := authorize(actor, authz.ResourceVoiceCall, authz.ActionEnd); err != nil {
		return nil, err
	}
	req.ChannelName = strings.TrimSpace(req.ChannelName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}

	call, err := s.repo.EndActive(ctx, req.ChannelName, actor.UserID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "voice call not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end voice call")
	}
	s.record("ended")
	return call, nil
}

// clampChannelConfig keeps prefix plus hex suffix within the channel column.
func clampChannelConfig(cfg VoiceCallConfig) VoiceCallConfig {
	if cfg.ChannelPrefix == "" {
		cfg.ChannelPrefix = "call_"
	}
	if cfg.ChannelBytes < minChannelBytes {
		cfg.ChannelBytes = minChannelBytes
	}
	if cfg.ChannelBytes > maxChannelBytes {
		cfg.ChannelBytes = maxChannelBytes
	}
	if room := (maxChannelNameLen - len(cfg.ChannelPrefix)) / 2; cfg.ChannelBytes > room {
		cfg.ChannelBytes = max(room, minChannelBytes)
	}
	if limit := maxChannelNameLen - 2*cfg.ChannelBytes; len(cfg.ChannelPrefix) > limit {
		cfg.ChannelPrefix = cfg.ChannelPrefix[:limit]
	}
	return cfg
}

func (s *VoiceCallService) channelName() (string, error) {
	buf := make([]byte, s.config.ChannelBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return s.config.ChannelPrefix + hex.EncodeToString(buf), nil
}

func (s *VoiceCallService) record(event string) {
	if s.metrics != nil {
		s.metrics.RecordVoiceCall(event)
	}
}
