package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/events"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

const (
	discussionPreviewRunes = 50
	// maxFanOutBatchSize keeps one batch insert under postgres's 65535
	// bind parameters at seven columns per notification.
	maxFanOutBatchSize = 65535 / 7
)

type recipientDirectory interface {
	ListActiveIDsByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

type notificationWriter interface {
	InsertBatch(ctx context.Context, items []models.Notification) ([]string, error)
	InsertIgnore(ctx context.Context, n *models.Notification) (bool, error)
}

type inboxInvalidator interface {
	InvalidateInbox(ctx context.Context, userID string) error
}

type fanOutMetrics interface {
	ObserveFanOut(kind string, created, failed int, duration time.Duration)
}

// FanOutConfig bounds a single fan-out run.
type FanOutConfig struct {
	BatchSize int
	Timeout   time.Duration
}

// NotificationFanOut turns domain events into one notification per recipient.
type NotificationFanOut struct {
	users         recipientDirectory
	notifications notificationWriter
	inbox         inboxInvalidator
	metrics       fanOutMetrics
	logger        *zap.Logger
	config        FanOutConfig
	now           func() time.Time
}

// NewNotificationFanOut constructs the fan-out engine. inbox and metrics may be nil.
func NewNotificationFanOut(users recipientDirectory, notifications notificationWriter, inbox inboxInvalidator, metrics fanOutMetrics, logger *zap.Logger, cfg FanOutConfig) *NotificationFanOut {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.BatchSize > maxFanOutBatchSize {
		cfg.BatchSize = maxFanOutBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &NotificationFanOut{
		users:         users,
		notifications: notifications,
		inbox:         inbox,
		metrics:       metrics,
		logger:        logger,
		config:        cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Handle implements events.Handler.
func (f *NotificationFanOut) Handle(ctx context.Context, envelope events.Envelope) error {
	_, err := f.OnEvent(ctx, envelope)
	return err
}

// OnEvent materialises notifications for envelope and returns the rows it
// inserted. Recipients are computed when the event is handled; the actor never
// receives a notification for their own action. Redelivering the same envelope
// inserts nothing new. A failure for one recipient does not stop the others;
// the returned error summarises every failure.
func (f *NotificationFanOut) OnEvent(ctx context.Context, envelope events.Envelope) ([]models.Notification, error) {
	start := time.Now()
	kind := string(envelope.Kind())

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	recipients, message, err := f.resolve(ctx, envelope)
	if err != nil {
		f.observe(kind, 0, 0, time.Since(start))
		return nil, err
	}
	recipients = withoutActor(recipients, envelope.ActorID)

	createdAt := f.now()
	var (
		created []models.Notification
		failed  int
		errs    []error
	)
	for offset := 0; offset < len(recipients); offset += f.config.BatchSize {
		if err := ctx.Err(); err != nil {
			remaining := len(recipients) - offset
			failed += remaining
			errs = append(errs, fmt.Errorf("%d recipients skipped: %w", remaining, err))
			break
		}
		end := offset + f.config.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := make([]models.Notification, 0, end-offset)
		for _, userID := range recipients[offset:end] {
			batch = append(batch, models.Notification{
				ID:        uuid.NewString(),
				UserID:    userID,
				EventID:   envelope.ID,
				Kind:      kind,
				Message:   message,
				CreatedAt: createdAt,
			})
		}
		inserted, batchFailed, batchErrs := f.writeBatch(ctx, envelope, batch)
		created = append(created, inserted...)
		failed += batchFailed
		errs = append(errs, batchErrs...)
	}

	for _, n := range created {
		f.invalidate(ctx, n.UserID)
	}

	f.observe(kind, len(created), failed, time.Since(start))
	f.logger.Debug("notification fan-out complete",
		zap.String("event_kind", kind),
		zap.String("event_id", envelope.ID),
		zap.Int("recipients", len(recipients)),
		zap.Int("created", len(created)),
		zap.Int("failed", failed),
	)

	if failed > 0 {
		return created, appErrors.Wrap(errors.Join(errs...), appErrors.ErrFanOut.Code, appErrors.ErrFanOut.Status,
			fmt.Sprintf("%d of %d notifications failed", failed, len(recipients)))
	}
	return created, nil
}

// writeBatch inserts batch in one statement and falls back to one insert per
// recipient when the statement fails, so a bad row only costs itself.
func (f *NotificationFanOut) writeBatch(ctx context.Context, envelope events.Envelope, batch []models.Notification) ([]models.Notification, int, []error) {
	insertedIDs, err := f.notifications.InsertBatch(ctx, batch)
	if err == nil {
		inserted := make(map[string]struct{}, len(insertedIDs))
		for _, id := range insertedIDs {
			inserted[id] = struct{}{}
		}
		created := make([]models.Notification, 0, len(insertedIDs))
		for _, n := range batch {
			if _, ok := inserted[n.UserID]; ok {
				created = append(created, n)
			}
		}
		return created, 0, nil
	}

	f.logger.Warn("notification batch insert failed, retrying per recipient",
		zap.String("event_kind", string(envelope.Kind())),
		zap.String("event_id", envelope.ID),
		zap.Int("batch_size", len(batch)),
		zap.Error(err),
	)

	var (
		created []models.Notification
		failed  int
		errs    []error
	)
	for i := range batch {
		n := batch[i]
		ok, err := f.notifications.InsertIgnore(ctx, &n)
		if err != nil {
			failed++
			errs = append(errs, fmt.Errorf("recipient %s: %w", n.UserID, err))
			f.logger.Warn("notification insert failed",
				zap.String("event_kind", string(envelope.Kind())),
				zap.String("event_id", envelope.ID),
				zap.String("recipient", n.UserID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			created = append(created, n)
		}
	}
	return created, failed, errs
}

func (f *NotificationFanOut) observe(kind string, created, failed int, duration time.Duration) {
	if f.metrics != nil {
		f.metrics.ObserveFanOut(kind, created, failed, duration)
	}
}

func (f *NotificationFanOut) invalidate(ctx context.Context, userID string) {
	if f.inbox == nil {
		return
	}
	if err := f.inbox.InvalidateInbox(ctx, userID); err != nil {
		f.logger.Debug("inbox cache invalidation failed", zap.String("recipient", userID), zap.Error(err))
	}
}

func (f *NotificationFanOut) resolve(ctx context.Context, envelope events.Envelope) ([]string, string, error) {
	var (
		recipients []string
		message    string
		err        error
	)
	switch ev := envelope.Event.(type) {
	case events.AssignmentCreated:
		message = "📚 New assignment posted: " + ev.Title
		recipients, err = f.population(ctx, models.RoleStudent)
	case events.AnnouncementCreated:
		message = "📢 New announcement posted: " + ev.Title
		recipients, err = f.population(ctx, models.RoleStudent)
	case events.DiscussionCreated:
		message = fmt.Sprintf("💬 %s started a discussion: %s", ev.AuthorUsername, preview(ev.Question, discussionPreviewRunes))
		recipients, err = f.population(ctx, models.RoleInstructor)
	case events.SubmissionCreated:
		message = fmt.Sprintf("📥 %s submitted '%s'", ev.StudentUsername, ev.AssignmentTitle)
		recipients = single(ev.AssignmentOwnerID)
	case events.SubmissionGraded:
		message = fmt.Sprintf("✅ Your submission for '%s' was graded: %s", ev.AssignmentTitle, strconv.FormatFloat(ev.Grade, 'f', 2, 64))
		recipients = single(ev.StudentID)
	default:
		return nil, "", appErrors.Clone(appErrors.ErrFanOut, fmt.Sprintf("unsupported event %q", envelope.Kind()))
	}
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrFanOut.Code, appErrors.ErrFanOut.Status, "failed to resolve recipients")
	}
	if envelope.ID == "" {
		return nil, "", appErrors.Clone(appErrors.ErrFanOut, "event id is required")
	}
	if strings.TrimSpace(message) == "" {
		return nil, "", appErrors.Clone(appErrors.ErrFanOut, "empty notification message")
	}
	return recipients, message, nil
}

func (f *NotificationFanOut) population(ctx context.Context, role models.UserRole) ([]string, error) {
	switch role {
	case models.RoleStudent, models.RoleInstructor:
		return f.users.ListActiveIDsByRole(ctx, role)
	default:
		return nil, fmt.Errorf("no population for role %q", role)
	}
}

func single(userID string) []string {
	if userID == "" {
		return nil
	}
	return []string{userID}
}

func withoutActor(recipients []string, actorID string) []string {
	seen := make(map[string]struct{}, len(recipients))
	out := make([]string, 0, len(recipients))
	for _, id := range recipients {
		if id == "" || id == actorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func preview(text string, limit int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "…"
}
