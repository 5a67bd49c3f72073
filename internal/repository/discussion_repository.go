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

const (
	discussionColumns = `id, user_id, question, created_at, updated_at`
	replyColumns      = `id, discussion_id, user_id, text, created_at`
)

// DiscussionRepository persists discussions and their replies.
type DiscussionRepository struct {
	db *sqlx.DB
}

// NewDiscussionRepository creates the repository.
func NewDiscussionRepository(db *sqlx.DB) *DiscussionRepository {
	return &DiscussionRepository{db: db}
}

// List returns discussions newest first without their replies.
func (r *DiscussionRepository) List(ctx context.Context, filter models.DiscussionFilter) ([]models.Discussion, int, error) {
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM discussions ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", discussionColumns, limit, offset)
	var items []models.Discussion
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, 0, fmt.Errorf("list discussions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM discussions"); err != nil {
		return nil, 0, fmt.Errorf("count discussions: %w", err)
	}
	return items, total, nil
}

// FindByID fetches a discussion without replies.
func (r *DiscussionRepository) FindByID(ctx context.Context, id string) (*models.Discussion, error) {
	query := `SELECT ` + discussionColumns + ` FROM discussions WHERE id = $1`
	var d models.Discussion
	if err := r.db.GetContext(ctx, &d, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find discussion: %w", err)
	}
	return &d, nil
}

// Create inserts a discussion.
func (r *DiscussionRepository) Create(ctx context.Context, d *models.Discussion) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	d.UpdatedAt = d.CreatedAt
	const query = `INSERT INTO discussions (id, user_id, question, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, d.ID, d.UserID, d.Question, d.CreatedAt, d.UpdatedAt); err != nil {
		return fmt.Errorf("create discussion: %w", err)
	}
	return nil
}

// Update overwrites the question, returning sql.ErrNoRows when absent.
func (r *DiscussionRepository) Update(ctx context.Context, d *models.Discussion) error {
	d.UpdatedAt = time.Now().UTC()
	query := `UPDATE discussions SET question = $2, updated_at = $3 WHERE id = $1 RETURNING ` + discussionColumns
	if err := r.db.GetContext(ctx, d, query, d.ID, d.Question, d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("update discussion: %w", err)
	}
	return nil
}

// Delete removes a discussion and, through the foreign key, its replies.
func (r *DiscussionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM discussions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete discussion: %w", err)
	}
	return requireAffected(res)
}

// CreateReply inserts a reply.
func (r *DiscussionRepository) CreateReply(ctx context.Context, reply *models.Reply) error {
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO replies (id, discussion_id, user_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, reply.ID, reply.DiscussionID, reply.UserID, reply.Text, reply.CreatedAt); err != nil {
		return fmt.Errorf("create reply: %w", err)
	}
	return nil
}

// ListReplies returns replies oldest first, optionally for one discussion.
func (r *DiscussionRepository) ListReplies(ctx context.Context, discussionID string) ([]models.Reply, error) {
	query := `SELECT ` + replyColumns + ` FROM replies`
	var args []interface{}
	if discussionID != "" {
		query += ` WHERE discussion_id = $1`
		args = append(args, discussionID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	replies := []models.Reply{}
	if err := r.db.SelectContext(ctx, &replies, query, args...); err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return replies, nil
}
