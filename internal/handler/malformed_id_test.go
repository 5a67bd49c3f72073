package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
)

// uuidColumnStore fails every call the way postgres does when a non-uuid
// string is compared against a uuid column.
type uuidColumnStore struct {
	calls int
}

var errInvalidUUIDSyntax = errors.New(`pq: invalid input syntax for type uuid: "abc"`)

func (s *uuidColumnStore) fail() error {
	s.calls++
	return errInvalidUUIDSyntax
}

func (s *uuidColumnStore) Create(ctx context.Context, sub *models.Submission) error { return s.fail() }

func (s *uuidColumnStore) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	return nil, s.fail()
}

func (s *uuidColumnStore) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	return nil, 0, s.fail()
}

func (s *uuidColumnStore) Grade(ctx context.Context, id string, grade float64, graderID string, gradedAt time.Time) (*models.Submission, error) {
	return nil, s.fail()
}

func (s *uuidColumnStore) GradebookRows(ctx context.Context, assignmentID string) ([]models.GradebookRow, error) {
	return nil, s.fail()
}

type uuidColumnAssignments struct{ store *uuidColumnStore }

func (a uuidColumnAssignments) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	return nil, a.store.fail()
}

type uuidColumnDiscussions struct{ store *uuidColumnStore }

func (d uuidColumnDiscussions) List(ctx context.Context, filter models.DiscussionFilter) ([]models.Discussion, int, error) {
	return nil, 0, d.store.fail()
}

func (d uuidColumnDiscussions) FindByID(ctx context.Context, id string) (*models.Discussion, error) {
	return nil, d.store.fail()
}

func (d uuidColumnDiscussions) Create(ctx context.Context, discussion *models.Discussion) error {
	return d.store.fail()
}

func (d uuidColumnDiscussions) Update(ctx context.Context, discussion *models.Discussion) error {
	return d.store.fail()
}

func (d uuidColumnDiscussions) Delete(ctx context.Context, id string) error { return d.store.fail() }

func (d uuidColumnDiscussions) CreateReply(ctx context.Context, reply *models.Reply) error {
	return d.store.fail()
}

func (d uuidColumnDiscussions) ListReplies(ctx context.Context, discussionID string) ([]models.Reply, error) {
	return nil, d.store.fail()
}

func TestSubmissionHandlerMalformedIDIsNotFound(t *testing.T) {
	store := &uuidColumnStore{}
	h := NewSubmissionHandler(service.NewSubmissionService(store, uuidColumnAssignments{store}, nil, nil, nil, nil))

	c, w := newTestContext(http.MethodGet, "/api/submissions/abc", nil, "", instructorClaims)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "submission not found", decodeBody(t, w)["error"])

	c, w = newTestContext(http.MethodPatch, "/api/submissions/abc/grade", bytes.NewBufferString(`{"grade":50}`), "application/json", instructorClaims)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.Grade(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "submission not found", decodeBody(t, w)["error"])

	c, w = newTestContext(http.MethodGet, "/api/assignments/abc/gradebook", nil, "", instructorClaims)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.Gradebook(c)
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Zero(t, store.calls)
}

func TestDiscussionHandlerMalformedReplyFilterIsBadRequest(t *testing.T) {
	store := &uuidColumnStore{}
	h := NewDiscussionHandler(service.NewDiscussionService(uuidColumnDiscussions{store}, nil, nil, nil))

	c, w := newTestContext(http.MethodGet, "/api/replies?discussion_id=abc", nil, "", studentClaims)
	h.ListReplies(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "discussion_id must be a valid uuid", decodeBody(t, w)["error"])

	c, w = newTestContext(http.MethodGet, "/api/discussions/abc", nil, "", studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)

	assert.Zero(t, store.calls)
}
