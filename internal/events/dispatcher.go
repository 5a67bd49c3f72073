package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/pkg/jobs"
)

// SyncDispatcher runs the handler inline on the publishing goroutine.
// Failures are logged and dropped.
type SyncDispatcher struct {
	handler Handler
	logger  *zap.Logger
}

// NewSyncDispatcher constructs a SyncDispatcher.
func NewSyncDispatcher(handler Handler, logger *zap.Logger) *SyncDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncDispatcher{handler: handler, logger: logger}
}

// Publish implements Publisher. The request context's cancellation is
// detached so a disconnecting client does not abort the fan-out.
func (d *SyncDispatcher) Publish(ctx context.Context, envelope Envelope) {
	if d == nil || d.handler == nil {
		return
	}
	if err := d.handle(context.WithoutCancel(ctx), envelope); err != nil {
		d.logger.Warn("event handler failed",
			zap.String("event_kind", string(envelope.Kind())),
			zap.String("event_id", envelope.ID),
			zap.Error(err),
		)
	}
}

// handle turns a handler panic into an error so one bad event cannot take
// down the request that published it.
func (d *SyncDispatcher) handle(ctx context.Context, envelope Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				zap.String("event_kind", string(envelope.Kind())),
				zap.String("event_id", envelope.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return d.handler.Handle(ctx, envelope)
}

// QueueDispatcher hands events to a background worker pool which retries
// failed deliveries.
type QueueDispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewQueueDispatcher builds the worker pool around handler. Start must be
// called before events are published.
func NewQueueDispatcher(handler Handler, cfg jobs.QueueConfig) *QueueDispatcher {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger
	if cfg.OnDrop == nil {
		cfg.OnDrop = func(job jobs.Job, err error) {
			logger.Error("event delivery abandoned",
				zap.String("event_kind", job.Type),
				zap.String("event_id", job.ID),
				zap.Int("attempts", job.Attempt),
				zap.Error(err),
			)
		}
	}
	queue := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		envelope, ok := job.Payload.(Envelope)
		if !ok {
			logger.Error("unexpected event payload", zap.String("job_id", job.ID))
			return nil
		}
		return handler.Handle(ctx, envelope)
	}, cfg)
	return &QueueDispatcher{queue: queue, logger: logger}
}

// Start launches the workers.
func (d *QueueDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains in-flight events until ctx expires.
func (d *QueueDispatcher) Stop(ctx context.Context) {
	d.queue.Stop(ctx)
}

// Publish implements Publisher.
func (d *QueueDispatcher) Publish(_ context.Context, envelope Envelope) {
	err := d.queue.Enqueue(jobs.Job{
		ID:       envelope.ID,
		Type:     string(envelope.Kind()),
		Payload:  envelope,
		Enqueued: envelope.OccurredAt,
	})
	if err != nil {
		d.logger.Warn("failed to enqueue event",
			zap.String("event_kind", string(envelope.Kind())),
			zap.String("event_id", envelope.ID),
			zap.Error(err),
		)
	}
}
