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

func TestDiscussionRepositoryCreateAndReply(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDiscussionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO discussions (id, user_id, question, created_at, updated_at)")).
		WithArgs(sqlmock.AnyArg(), "alice", "Why?", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO replies (id, discussion_id, user_id, text, created_at)")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "bob", "Because", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	d := &models.Discussion{UserID: "alice", Question: "Why?"}
	require.NoError(t, repo.Create(context.Background(), d))
	require.NoError(t, repo.CreateReply(context.Background(), &models.Reply{DiscussionID: d.ID, UserID: "bob", Text: "Because"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscussionRepositoryListRepliesOldestFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDiscussionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, discussion_id, user_id, text, created_at FROM replies WHERE discussion_id = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "discussion_id", "user_id", "text", "created_at"}).
			AddRow("r1", "d1", "bob", "first", now).
			AddRow("r2", "d1", "carol", "second", now.Add(time.Minute)))

	replies, err := repo.ListReplies(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "first", replies[0].Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDiscussionRepositoryListRepliesEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDiscussionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM replies ORDER BY created_at ASC, id ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "discussion_id", "user_id", "text", "created_at"}))

	replies, err := repo.ListReplies(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, replies)
	assert.Empty(t, replies)
}

func TestDiscussionRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDiscussionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM discussions WHERE id = $1")).WithArgs("d9").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "d9"), sql.ErrNoRows)
}
