package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/models"
)

func TestAnnouncementRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO announcements (id, instructor_id, title, message, created_at, updated_at)")).
		WithArgs(sqlmock.AnyArg(), "alice", "Exam", "Friday", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	a := &models.Announcement{InstructorID: "alice", Title: "Exam", Message: "Friday"}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE announcements SET title = $2, message = $3, updated_at = $4 WHERE id = $1 RETURNING")).
		WithArgs("x", "t", "m", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	err := repo.Update(context.Background(), &models.Announcement{ID: "x", Title: "t", Message: "m"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestAnnouncementRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	created := time.Now().Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE announcements")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "instructor_id", "title", "message", "created_at", "updated_at"}).
			AddRow("an1", "alice", "New", "Body", created, time.Now()))

	a := &models.Announcement{ID: "an1", Title: "New", Message: "Body"}
	require.NoError(t, repo.Update(context.Background(), a))
	assert.Equal(t, "alice", a.InstructorID)
	assert.True(t, a.CreatedAt.Equal(created))
}

func TestAnnouncementRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM announcements WHERE id = $1")).WithArgs("an1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM announcements WHERE id = $1")).WithArgs("an1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "an1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "an1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM announcements ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "instructor_id", "title", "message", "created_at", "updated_at"}).
			AddRow("an1", "alice", "Exam", "Friday", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.AnnouncementFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
}
