package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/events"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type fakeDirectory struct {
	byRole map[models.UserRole][]string
	err    error
}

func (d *fakeDirectory) ListActiveIDsByRole(ctx context.Context, role models.UserRole) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	return append([]string(nil), d.byRole[role]...), nil
}

type fakeNotificationStore struct {
	mu         sync.Mutex
	rows       []models.Notification
	batchCalls int
	batchErr   error
	failFor    map[string]bool
}

func (s *fakeNotificationStore) exists(eventID, userID string) bool {
	for _, r := range s.rows {
		if r.EventID == eventID && r.UserID == userID {
			return true
		}
	}
	return false
}

func (s *fakeNotificationStore) InsertBatch(ctx context.Context, items []models.Notification) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchCalls++
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	var inserted []string
	for _, n := range items {
		if s.exists(n.EventID, n.UserID) {
			continue
		}
		s.rows = append(s.rows, n)
		inserted = append(inserted, n.UserID)
	}
	return inserted, nil
}

func (s *fakeNotificationStore) InsertIgnore(ctx context.Context, n *models.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[n.UserID] {
		return false, errors.New("foreign key violation")
	}
	if s.exists(n.EventID, n.UserID) {
		return false, nil
	}
	s.rows = append(s.rows, *n)
	return true, nil
}

func (s *fakeNotificationStore) forUser(userID string) []models.Notification {
	var out []models.Notification
	for _, r := range s.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

type fakeInvalidator struct {
	users []string
}

func (i *fakeInvalidator) InvalidateInbox(ctx context.Context, userID string) error {
	i.users = append(i.users, userID)
	return nil
}

func newTestFanOut(dir *fakeDirectory, store *fakeNotificationStore, batch int) (*NotificationFanOut, *fakeInvalidator) {
	inv := &fakeInvalidator{}
	return NewNotificationFanOut(dir, store, inv, nil, nil, FanOutConfig{BatchSize: batch, Timeout: time.Second}), inv
}

func classroom() *fakeDirectory {
	return &fakeDirectory{byRole: map[models.UserRole][]string{
		models.RoleStudent:    {"bob", "carol"},
		models.RoleInstructor: {"alice", "dave"},
	}}
}

func TestFanOutAssignmentCreatedScenario(t *testing.T) {
	store := &fakeNotificationStore{}
	fanOut, inv := newTestFanOut(classroom(), store, 500)

	created, err := fanOut.OnEvent(context.Background(), events.NewEnvelope("alice", events.AssignmentCreated{AssignmentID: "a1", InstructorID: "alice", Title: "HW1"}))
	require.NoError(t, err)
	require.Len(t, created, 2)

	for _, user := range []string{"bob", "carol"} {
		rows := store.forUser(user)
		require.Len(t, rows, 1, user)
		assert.Equal(t, "📚 New assignment posted: HW1", rows[0].Message)
		assert.False(t, rows[0].IsRead)
		assert.Equal(t, string(events.KindAssignmentCreated), rows[0].Kind)
	}
	assert.Empty(t, store.forUser("alice"))
	assert.ElementsMatch(t, []string{"bob", "carol"}, inv.users)
}

func TestFanOutProducesOneNotificationPerAssignmentAndStudent(t *testing.T) {
	const assignments, students = 7, 13
	dir := &fakeDirectory{byRole: map[models.UserRole][]string{}}
	for i := 0; i < students; i++ {
		dir.byRole[models.RoleStudent] = append(dir.byRole[models.RoleStudent], fmt.Sprintf("student-%d", i))
	}
	store := &fakeNotificationStore{}
	fanOut, _ := newTestFanOut(dir, store, 4)

	for i := 0; i < assignments; i++ {
		title := fmt.Sprintf("HW%d", i)
		_, err := fanOut.OnEvent(context.Background(), events.NewEnvelope("alice", events.AssignmentCreated{AssignmentID: title, Title: title}))
		require.NoError(t, err)
	}

	require.Len(t, store.rows, assignments*students)
	pairs := map[string]struct{}{}
	for _, n := range store.rows {
		assert.True(t, strings.HasPrefix(n.Message, "📚 New assignment posted: HW"))
		pairs[n.EventID+"/"+n.UserID] = struct{}{}
	}
	assert.Len(t, pairs, assignments*students)
	assert.Equal(t, assignments*4, store.batchCalls)
}

func TestFanOutRedeliveryIsIdempotent(t *testing.T) {
	store := &fakeNotificationStore{}
	fanOut, _ := newTestFanOut(classroom(), store, 500)
	env := events.NewEnvelope("alice", events.AnnouncementCreated{AnnouncementID: "an1", Title: "Exam"})

	_, err := fanOut.OnEvent(context.Background(), env)
	require.NoError(t, err)
	again, err := fanOut.OnEvent(context.Background(), env)
	require.NoError(t, err)

	assert.Empty(t, again)
	assert.Len(t, store.rows, 2)
	assert.Equal(t, "📢 New announcement posted: Exam", store.rows[0].Message)
}

func TestFanOutGradedNotifiesOnlyStudent(t *testing.T) {
	store := &fakeNotificationStore{}
	fanOut, _ := newTestFanOut(classroom(), store, 500)

	created, err := fanOut.OnEvent(context.Background(), events.NewEnvelope("alice", events.SubmissionGraded{
		SubmissionID: "s1", AssignmentID: "a1", AssignmentTitle: "HW1", StudentID: "bob", GraderID: "alice", Grade: 95.5,
	}))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "bob", created[0].UserID)
	assert.Equal(t, "✅ Your submission for 'HW1' was graded: 95.50", created[0].Message)
	assert.Empty(t, store.forUser("alice"))
}

func TestFanOutSubmissionCreatedNotifiesOwner(t *testing.T) {
	store := &fakeNotificationStore{}
	fanOut, _ := newTestFanOut(classroom(), store, 500)

	created, err := fanOut.OnEvent(context.Background(), events.NewEnvelope("bob", events.SubmissionCreated{
		SubmissionID: "s1", AssignmentID: "a1", AssignmentTitle: "HW1", AssignmentOwnerID: "alice", StudentID: "bob", StudentUsername: "bob",
	}))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "alice", created[0].UserID)
	assert.Equal(t, "📥 bob submitted 'HW1'", created[0].Message)
}

func TestFanOutSelfActionsNeverNotifyActor(t *testing.T) {
	store := &fakeNotificationStore{}
	fanOut, _ := newTestFanOut(classroom(), store, 500)

	created, err := fanOut.OnEvent(context.Background(), events.NewEnvelope("alice", events.SubmissionCreated{
		SubmissionID: "s1", AssignmentTitle: "HW1", AssignmentOwnerID: "alice", StudentID: "alice", StudentUsername: "alice",
	}))
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestFanOutDiscussionExcludesAuthorAndTruncates(t *testing.T) {
	store := &fakeNotificationStore{}
	fanOut, _ := newTestFanOut(classroom(), store, 500)

	question := strings.Repeat("é", 60)
	created, err := fanOut.OnEvent(context.Background(), events.NewEnvelope("alice", events.DiscussionCreated{
		DiscussionID: "d1", AuthorID: "alice", AuthorUsername: "alice", Question: question,
	}))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "dave", created[0].UserID)
	assert.Equal(t, "💬 alice started a discussion: "+strings.Repeat("é", 50)+"…", created[0].Message)

	short, err := fanOut.OnEvent(context.Background(), events.NewEnvelope("alice", events.DiscussionCreated{
		DiscussionID: "d2", AuthorID: "alice", AuthorUsername: "alice", Question: "Is the exam open book?",
	}))
	require.NoError(t, err)
	require.Len(t, short, 1)
	assert.Equal(t, "💬 alice started a discussion: Is the exam open book?", short[0].Message)
}

func TestFanOutIsolatesPerRecipientFailures(t *testing.T) {
	store := &fakeNotificationStore{batchErr: errors.New("batch rejected"), failFor: map[string]bool{"bob": true}}
	fanOut, _ := newTestFanOut(classroom(), store, 500)

	created, err := fanOut.OnEvent(context.Background(), events.NewEnvelope("alice", events.AssignmentCreated{Title: "HW1"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrFanOut))
	require.Len(t, created, 1)
	assert.Equal(t, "carol", created[0].UserID)
	assert.Len(t, store.forUser("carol"), 1)
}

func TestFanOutRecipientLookupFailure(t *testing.T) {
	store := &fakeNotificationStore{}
	fanOut, _ := newTestFanOut(&fakeDirectory{err: errors.New("connection reset")}, store, 500)

	_, err := fanOut.OnEvent(context.Background(), events.NewEnvelope("alice", events.AssignmentCreated{Title: "HW1"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrFanOut))
	assert.Empty(t, store.rows)
}

type unknownEvent struct{}

func (unknownEvent) Kind() events.Kind { return "unknown" }

func TestFanOutRejectsUnsupportedEvent(t *testing.T) {
	fanOut, _ := newTestFanOut(classroom(), &fakeNotificationStore{}, 500)

	_, err := fanOut.OnEvent(context.Background(), events.NewEnvelope("alice", unknownEvent{}))
	assert.True(t, errors.Is(err, appErrors.ErrFanOut))

	err = fanOut.Handle(context.Background(), events.Envelope{ID: "e1"})
	assert.True(t, errors.Is(err, appErrors.ErrFanOut))
}

func TestFanOutStopsAtDeadline(t *testing.T) {
	store := &fakeNotificationStore{}
	fanOut, _ := newTestFanOut(classroom(), store, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fanOut.OnEvent(ctx, events.NewEnvelope("alice", events.AssignmentCreated{Title: "HW1"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, store.rows)
}

func TestFanOutBatchSizeIsCapped(t *testing.T) {
	fanOut, _ := newTestFanOut(classroom(), &fakeNotificationStore{}, 1<<20)
	assert.Equal(t, maxFanOutBatchSize, fanOut.config.BatchSize)
	assert.LessOrEqual(t, fanOut.config.BatchSize*7, 65535)

	fanOut, _ = newTestFanOut(classroom(), &fakeNotificationStore{}, 0)
	assert.Equal(t, 500, fanOut.config.BatchSize)
}
