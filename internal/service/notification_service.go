package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/dto"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

const (
	// initialInboxVersion applies until an inbox is first invalidated.
	initialInboxVersion = "0"
	// inboxVersionTTL must outlive every cached page.
	inboxVersionTTL = 24 * time.Hour
)

type inboxRepository interface {
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error)
	CountForUser(ctx context.Context, userID string) (total int, unread int, err error)
}

type inboxCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// NotificationService serves each user's own inbox.
type NotificationService struct {
	repo   inboxRepository
	cache  inboxCache
	logger *zap.Logger
}

// NewNotificationService constructs the inbox service. cache may be nil.
func NewNotificationService(repo inboxRepository, cache inboxCache, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, cache: cache, logger: logger}
}

// Inbox returns a page of actorID's notifications, newest first. The
// recipient is always the caller; there is no way to read another inbox.
func (s *NotificationService) Inbox(ctx context.Context, actorID string, query dto.PageQuery) (*models.InboxPage, bool, error) {
	if actorID == "" {
		return nil, false, appErrors.ErrUnauthorized
	}
	query = query.Normalize()
	version, cacheable := s.inboxVersion(ctx, actorID)
	key := inboxKey(actorID, version, query)

	if cacheable {
		var cached models.InboxPage
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	items, err := s.repo.ListForUser(ctx, actorID, query.PageSize, query.Offset())
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	total, unread, err := s.repo.CountForUser(ctx, actorID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}

	page := &models.InboxPage{
		Items:       items,
		Pagination:  models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total},
		UnreadCount: unread,
	}
	if cacheable {
		if err := s.cache.Set(ctx, key, page, 0); err != nil {
			s.logger.Debug("inbox cache write skipped", zap.String("user_id", actorID), zap.Error(err))
		}
	}
	return page, false, nil
}

// InvalidateInbox moves userID's inbox to a fresh cache version and drops
// the pages cached so far. A page computed before the bump but written after
// it lands under the old version, where no reader looks.
func (s *NotificationService) InvalidateInbox(ctx context.Context, userID string) error {
	if s.cache == nil || userID == "" {
		return nil
	}
	if err := s.cache.Set(ctx, inboxVersionKey(userID), uuid.NewString(), inboxVersionTTL); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, fmt.Sprintf("inbox:%s:*", userID))
}

// inboxVersion reports the cache version of userID's inbox and whether the
// cache can be used at all.
func (s *NotificationService) inboxVersion(ctx context.Context, userID string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	var version string
	hit, err := s.cache.Get(ctx, inboxVersionKey(userID), &version)
	if err != nil {
		return "", false
	}
	if !hit || version == "" {
		return initialInboxVersion, true
	}
	return version, true
}

func inboxVersionKey(userID string) string {
	return "inbox-version:" + userID
}

func inboxKey(userID, version string, query dto.PageQuery) string {
	return fmt.Sprintf("inbox:%s:%s:%d:%d", userID, version, query.Page, query.PageSize)
}
