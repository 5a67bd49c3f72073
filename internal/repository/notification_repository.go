package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-api/internal/models"
)

// ErrRecipientRequired is returned by inbox reads that lack a recipient.
var ErrRecipientRequired = errors.New("notification recipient is required")

const (
	notificationInsertColumns = 7
	// postgresMaxParams is the bind parameter limit of a single statement.
	postgresMaxParams = 65535
	// MaxNotificationBatch is the largest row count one INSERT can carry.
	MaxNotificationBatch = postgresMaxParams / notificationInsertColumns
)

// NotificationRepository stores materialised notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// InsertBatch stores notifications, skipping any (event_id, user_id) pair
// that already exists. It returns the recipients whose rows were actually
// inserted. Batches above MaxNotificationBatch are split across statements.
func (r *NotificationRepository) InsertBatch(ctx context.Context, items []models.Notification) ([]string, error) {
	var inserted []string
	for len(items) > 0 {
		chunk := items
		if len(chunk) > MaxNotificationBatch {
			chunk = chunk[:MaxNotificationBatch]
		}
		ids, err := r.insertChunk(ctx, chunk)
		if err != nil {
			return inserted, err
		}
		inserted = append(inserted, ids...)
		items = items[len(chunk):]
	}
	return inserted, nil
}

func (r *NotificationRepository) insertChunk(ctx context.Context, items []models.Notification) ([]string, error) {
	groups := make([]string, 0, len(items))
	args := make([]interface{}, 0, len(items)*notificationInsertColumns)
	for i, n := range items {
		base := i * notificationInsertColumns
		groups = append(groups, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		args = append(args, n.ID, n.UserID, n.EventID, n.Kind, n.Message, n.IsRead, n.CreatedAt)
	}
	query := `INSERT INTO notifications (id, user_id, event_id, kind, message, is_read, created_at) VALUES ` +
		strings.Join(groups, ", ") +
		` ON CONFLICT (event_id, user_id) DO NOTHING RETURNING user_id`

	var inserted []string
	if err := r.db.SelectContext(ctx, &inserted, query, args...); err != nil {
		return nil, fmt.Errorf("insert notification batch: %w", err)
	}
	return inserted, nil
}

// InsertIgnore stores a single notification. It reports false when the
// recipient already holds a notification for the same event.
func (r *NotificationRepository) InsertIgnore(ctx context.Context, n *models.Notification) (bool, error) {
	const query = `INSERT INTO notifications (id, user_id, event_id, kind, message, is_read, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (event_id, user_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.EventID, n.Kind, n.Message, n.IsRead, n.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert notification rows: %w", err)
	}
	return affected == 1, nil
}

// ListForUser returns a page of userID's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	if userID == "" {
		return nil, ErrRecipientRequired
	}
	const query = `SELECT id, user_id, event_id, kind, message, is_read, created_at FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	items := []models.Notification{}
	if err := r.db.SelectContext(ctx, &items, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// CountForUser returns the total and unread notification counts for userID.
func (r *NotificationRepository) CountForUser(ctx context.Context, userID string) (total int, unread int, err error) {
	if userID == "" {
		return 0, 0, ErrRecipientRequired
	}
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE NOT is_read) AS unread FROM notifications WHERE user_id = $1`
	var counts struct {
		Total  int `db:"total"`
		Unread int `db:"unread"`
	}
	if err := r.db.GetContext(ctx, &counts, query, userID); err != nil {
		return 0, 0, fmt.Errorf("count notifications: %w", err)
	}
	return counts.Total, counts.Unread, nil
}
