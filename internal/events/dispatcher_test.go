package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/classroom-api/pkg/jobs"
)

type recordingHandler struct {
	mu       sync.Mutex
	received []Envelope
	failures int
}

func (h *recordingHandler) Handle(ctx context.Context, envelope Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, envelope)
	if h.failures > 0 {
		h.failures--
		return errors.New("store unavailable")
	}
	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func TestNewEnvelope(t *testing.T) {
	env := NewEnvelope("u1", AssignmentCreated{AssignmentID: "a1", Title: "HW1"})
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "u1", env.ActorID)
	assert.Equal(t, KindAssignmentCreated, env.Kind())
	assert.False(t, env.OccurredAt.IsZero())
	assert.Equal(t, Kind(""), Envelope{}.Kind())
}

func TestSyncDispatcherSwallowsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	handler := &recordingHandler{failures: 1}
	dispatcher := NewSyncDispatcher(handler, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher.Publish(ctx, NewEnvelope("u1", AnnouncementCreated{Title: "Exam"}))

	assert.Equal(t, 1, handler.count())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "event handler failed", logs.All()[0].Message)
}

func TestSyncDispatcherDetachesCancellation(t *testing.T) {
	var seen error
	dispatcher := NewSyncDispatcher(HandlerFunc(func(ctx context.Context, envelope Envelope) error {
		seen = ctx.Err()
		return nil
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher.Publish(ctx, NewEnvelope("u1", AnnouncementCreated{Title: "Exam"}))
	assert.NoError(t, seen)
}

func TestSyncDispatcherRecoversHandlerPanic(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	dispatcher := NewSyncDispatcher(HandlerFunc(func(ctx context.Context, envelope Envelope) error {
		panic("nil recipient directory")
	}), zap.New(core))

	assert.NotPanics(t, func() {
		dispatcher.Publish(context.Background(), NewEnvelope("u1", AnnouncementCreated{Title: "Exam"}))
	})
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "event handler panicked", logs.All()[0].Message)
	assert.Equal(t, "event handler failed", logs.All()[1].Message)
}

func TestQueueDispatcherSurvivesHandlerPanic(t *testing.T) {
	var calls int32
	handler := HandlerFunc(func(ctx context.Context, envelope Envelope) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
		return nil
	})
	var dropped int32
	dispatcher := NewQueueDispatcher(handler, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnDrop:     func(jobs.Job, error) { atomic.AddInt32(&dropped, 1) },
	})
	dispatcher.Start(context.Background())

	dispatcher.Publish(context.Background(), NewEnvelope("u1", AnnouncementCreated{Title: "Exam"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	dispatcher.Stop(ctx)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Zero(t, atomic.LoadInt32(&dropped))
}

func TestQueueDispatcherRetriesFailedDelivery(t *testing.T) {
	handler := &recordingHandler{failures: 1}
	dispatcher := NewQueueDispatcher(handler, jobs.QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	dispatcher.Start(context.Background())

	env := NewEnvelope("u1", SubmissionGraded{SubmissionID: "s1", StudentID: "st1", Grade: 90})
	dispatcher.Publish(context.Background(), env)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	dispatcher.Stop(ctx)

	require.Equal(t, 2, handler.count())
	assert.Equal(t, env.ID, handler.received[0].ID)
	assert.Equal(t, env.ID, handler.received[1].ID)
}

func TestQueueDispatcherLogsEnqueueFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	dispatcher := NewQueueDispatcher(&recordingHandler{}, jobs.QueueConfig{Logger: zap.New(core)})

	dispatcher.Publish(context.Background(), NewEnvelope("u1", AssignmentCreated{Title: "HW1"}))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "failed to enqueue event", logs.All()[0].Message)
}
