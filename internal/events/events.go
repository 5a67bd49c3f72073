// Package events carries domain write events from the write path to the
// notification fan-out.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an event type.
type Kind string

const (
	KindAssignmentCreated   Kind = "assignment_created"
	KindAnnouncementCreated Kind = "announcement_created"
	KindDiscussionCreated   Kind = "discussion_created"
	KindSubmissionCreated   Kind = "submission_created"
	KindSubmissionGraded    Kind = "submission_graded"
)

// Event is implemented by every domain event payload.
type Event interface {
	Kind() Kind
}

// AssignmentCreated is emitted after an assignment is stored.
type AssignmentCreated struct {
	AssignmentID string
	InstructorID string
	Title        string
}

// Kind implements Event.
func (AssignmentCreated) Kind() Kind { return KindAssignmentCreated }

// AnnouncementCreated is emitted after an announcement is stored.
type AnnouncementCreated struct {
	AnnouncementID string
	InstructorID   string
	Title          string
}

// Kind implements Event.
func (AnnouncementCreated) Kind() Kind { return KindAnnouncementCreated }

// DiscussionCreated is emitted after a discussion is stored.
type DiscussionCreated struct {
	DiscussionID   string
	AuthorID       string
	AuthorUsername string
	Question       string
}

// Kind implements Event.
func (DiscussionCreated) Kind() Kind { return KindDiscussionCreated }

// SubmissionCreated is emitted after a submission is stored.
type SubmissionCreated struct {
	SubmissionID      string
	AssignmentID      string
	AssignmentTitle   string
	AssignmentOwnerID string
	StudentID         string
	StudentUsername   string
}

// Kind implements Event.
func (SubmissionCreated) Kind() Kind { return KindSubmissionCreated }

// SubmissionGraded is emitted after a grade is committed.
type SubmissionGraded struct {
	SubmissionID    string
	AssignmentID    string
	AssignmentTitle string
	StudentID       string
	GraderID        string
	Grade           float64
}

// Kind implements Event.
func (SubmissionGraded) Kind() Kind { return KindSubmissionGraded }

// Envelope wraps an event with its identity and the user who caused it.
// ID is stable across redeliveries of the same event.
type Envelope struct {
	ID         string
	ActorID    string
	OccurredAt time.Time
	Event      Event
}

// NewEnvelope stamps event with a fresh id and the current time.
func NewEnvelope(actorID string, event Event) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Event:      event,
	}
}

// Kind returns the wrapped event kind, or an empty kind when no event is set.
func (e Envelope) Kind() Kind {
	if e.Event == nil {
		return ""
	}
	return e.Event.Kind()
}

// Publisher accepts events from write paths. Publish never reports failure
// to the caller: the triggering write has already committed.
type Publisher interface {
	Publish(ctx context.Context, envelope Envelope)
}

// Handler consumes published events.
type Handler interface {
	Handle(ctx context.Context, envelope Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, envelope Envelope) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, envelope Envelope) error {
	return f(ctx, envelope)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Envelope) {}
