package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-api/internal/models"
)

const submissionColumns = `id, assignment_id, student_id, file_ref, content, grade, graded_by, graded_at, submitted_at`

// SubmissionRepository persists submissions and grades.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a submission.
func (r *SubmissionRepository) Create(ctx context.Context, s *models.Submission) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, file_ref, content, submitted_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.AssignmentID, s.StudentID, s.FileRef, s.Content, s.SubmittedAt); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID fetches a submission.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	var s models.Submission
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &s, nil
}

// List returns submissions newest first, optionally scoped to a student and/or assignment.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	var conditions []string
	var args []interface{}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.AssignmentID != "" {
		conditions = append(conditions, fmt.Sprintf("assignment_id = $%d", len(args)+1))
		args = append(args, filter.AssignmentID)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM submissions%s ORDER BY submitted_at DESC, id DESC LIMIT %d OFFSET %d", submissionColumns, where, limit, offset)
	var items []models.Submission
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM submissions"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}
	return items, total, nil
}

// Grade locks the submission row and records the grade in one transaction.
// sql.ErrNoRows is returned when the submission does not exist.
func (r *SubmissionRepository) Grade(ctx context.Context, id string, grade float64, graderID string, gradedAt time.Time) (sub *models.Submission, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin grade transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lockedID string
	if err = tx.GetContext(ctx, &lockedID, `SELECT id FROM submissions WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock submission: %w", err)
	}

	var updated models.Submission
	updateQuery := `UPDATE submissions SET grade = $2, graded_by = $3, graded_at = $4 WHERE id = $1 RETURNING ` + submissionColumns
	if err = tx.GetContext(ctx, &updated, updateQuery, lockedID, grade, graderID, gradedAt); err != nil {
		return nil, fmt.Errorf("update grade: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit grade: %w", err)
	}
	return &updated, nil
}

// GradebookRows returns every submission for an assignment with the student's username.
func (r *SubmissionRepository) GradebookRows(ctx context.Context, assignmentID string) ([]models.GradebookRow, error) {
	const query = `SELECT s.id AS submission_id, s.student_id, u.username AS student_username, s.submitted_at, s.grade, s.graded_at
FROM submissions s
JOIN users u ON u.id = s.student_id
WHERE s.assignment_id = $1
ORDER BY u.username, s.submitted_at`
	var rows []models.GradebookRow
	if err := r.db.SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, fmt.Errorf("load gradebook: %w", err)
	}
	return rows, nil
}
