package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/dto"
	"github.com/noah-isme/classroom-api/internal/events"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

const an1ID = "5d2b7f3e-6a1c-4e9b-8f04-7c3d2e1a9b10"

type mockAnnouncementRepo struct {
	items map[string]*models.Announcement
}

func newMockAnnouncementRepo() *mockAnnouncementRepo {
	return &mockAnnouncementRepo{items: map[string]*models.Announcement{}}
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	var out []models.Announcement
	for _, a := range m.items {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (m *mockAnnouncementRepo) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *a
	return &copy, nil
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, a *models.Announcement) error {
	copy := *a
	m.items[a.ID] = &copy
	return nil
}

func (m *mockAnnouncementRepo) Update(ctx context.Context, a *models.Announcement) error {
	current, ok := m.items[a.ID]
	if !ok {
		return sql.ErrNoRows
	}
	current.Title = a.Title
	current.Message = a.Message
	*a = *current
	return nil
}

func (m *mockAnnouncementRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func TestAnnouncementCreatePublishesEvent(t *testing.T) {
	repo := newMockAnnouncementRepo()
	publisher := &recordingPublisher{}
	svc := NewAnnouncementService(repo, publisher, nil, nil)

	ann, err := svc.Create(context.Background(), alice, models.AnnouncementRequest{Title: "Exam", Message: "Friday 9am"})
	require.NoError(t, err)
	assert.Equal(t, "alice", ann.InstructorID)
	require.Len(t, publisher.envelopes, 1)
	assert.Equal(t, events.AnnouncementCreated{AnnouncementID: ann.ID, InstructorID: "alice", Title: "Exam"}, publisher.envelopes[0].Event)
}

func TestAnnouncementWritesRequireInstructor(t *testing.T) {
	repo := newMockAnnouncementRepo()
	repo.items[an1ID] = &models.Announcement{ID: an1ID, Title: "Exam", Message: "Friday"}
	svc := NewAnnouncementService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, bob, models.AnnouncementRequest{Title: "x", Message: "y"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Update(ctx, bob, an1ID, models.AnnouncementRequest{Title: "x", Message: "y"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.True(t, errors.Is(svc.Delete(ctx, bob, an1ID), appErrors.ErrForbidden))

	rows, _, err := svc.List(ctx, bob, dto.PageQuery{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAnnouncementUpdatePatchDelete(t *testing.T) {
	repo := newMockAnnouncementRepo()
	repo.items[an1ID] = &models.Announcement{ID: an1ID, Title: "Exam", Message: "Friday"}
	svc := NewAnnouncementService(repo, nil, nil, nil)
	ctx := context.Background()

	updated, err := svc.Update(ctx, alice, an1ID, models.AnnouncementRequest{Title: "Exam moved", Message: "Monday"})
	require.NoError(t, err)
	assert.Equal(t, "Exam moved", updated.Title)

	_, err = svc.Update(ctx, alice, an1ID, models.AnnouncementRequest{Title: "  "})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	message := "Monday 10am"
	patched, err := svc.Patch(ctx, alice, an1ID, models.PatchAnnouncementRequest{Message: &message})
	require.NoError(t, err)
	assert.Equal(t, "Exam moved", patched.Title)
	assert.Equal(t, "Monday 10am", patched.Message)

	blank := "   "
	_, err = svc.Patch(ctx, alice, an1ID, models.PatchAnnouncementRequest{Title: &blank})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Patch(ctx, alice, unknownID, models.PatchAnnouncementRequest{Message: &message})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, svc.Delete(ctx, alice, an1ID))
	assert.True(t, errors.Is(svc.Delete(ctx, alice, an1ID), appErrors.ErrNotFound))
	_, err = svc.Get(ctx, bob, an1ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAnnouncementMalformedIDIsNotFound(t *testing.T) {
	repo := newMockAnnouncementRepo()
	svc := NewAnnouncementService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, bob, "abc")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = svc.Update(ctx, alice, "abc", models.AnnouncementRequest{Title: "x", Message: "y"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.True(t, errors.Is(svc.Delete(ctx, alice, "abc"), appErrors.ErrNotFound))
}
