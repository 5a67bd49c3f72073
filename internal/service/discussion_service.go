package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/authz"
	"github.com/noah-isme/classroom-api/internal/dto"
	"github.com/noah-isme/classroom-api/internal/events"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/validation"
)

type discussionRepository interface {
	List(ctx context.Context, filter models.DiscussionFilter) ([]models.Discussion, int, error)
	FindByID(ctx context.Context, id string) (*models.Discussion, error)
	Create(ctx context.Context, d *models.Discussion) error
	Update(ctx context.Context, d *models.Discussion) error
	Delete(ctx context.Context, id string) error
	CreateReply(ctx context.Context, reply *models.Reply) error
	ListReplies(ctx context.Context, discussionID string) ([]models.Reply, error)
}

// DiscussionService handles discussion threads and their replies.
type DiscussionService struct {
	repo      discussionRepository
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDiscussionService constructs the service.
func NewDiscussionService(repo discussionRepository, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger) *DiscussionService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &DiscussionService{repo: repo, publisher: publisher, validator: validate, logger: logger}
}

// List returns discussions newest first, without replies.
func (s *DiscussionService) List(ctx context.Context, actor authz.Actor, query dto.PageQuery) ([]models.Discussion, *models.Pagination, error) {
	if err := authorize(actor, authz.ResourceDiscussion, authz.ActionList); err != nil {
		return nil, nil, err
	}
	query = query.Normalize()
	rows, total, err := s.repo.List(ctx, models.DiscussionFilter{Page: query.Page, PageSize: query.PageSize})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list discussions")
	}
	return rows, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}

// Get returns a discussion with its replies, oldest first.
func (s *DiscussionService) Get(ctx context.Context, actor authz.Actor, id string) (*models.Discussion, error) {
	if err := authorize(actor, authz.ResourceDiscussion, authz.ActionRead); err != nil {
		return nil, err
	}
	discussion, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	replies, err := s.repo.ListReplies(ctx, discussion.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list replies")
	}
	discussion.Replies = replies
	return discussion, nil
}

// Create opens a discussion and notifies the other instructors.
func (s *DiscussionService) Create(ctx context.Context, actor authz.Actor, req models.DiscussionRequest) (*models.Discussion, error) {
	if err := authorize(actor, authz.ResourceDiscussion, authz.ActionCreate); err != nil {
		return nil, err
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}
	discussion := &models.Discussion{
		ID:       uuid.NewString(),
		UserID:   actor.UserID,
		Question: req.Question,
		Replies:  []models.Reply{},
	}
	if err := s.repo.Create(ctx, discussion); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create discussion")
	}
	s.publisher.Publish(ctx, events.NewEnvelope(actor.UserID, events.DiscussionCreated{
		DiscussionID:   discussion.ID,
		AuthorID:       actor.UserID,
		AuthorUsername: actor.Username,
		Question:       discussion.Question,
	}))
	return discussion, nil
}

// Update replaces the question.
func (s *DiscussionService) Update(ctx context.Context, actor authz.Actor, id string, req models.DiscussionRequest) (*models.Discussion, error) {
	if err := authorize(actor, authz.ResourceDiscussion, authz.ActionUpdate); err != nil {
		return nil, err
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}
	return s.save(ctx, &models.Discussion{ID: id, Question: req.Question})
}

// Patch updates only the supplied fields.
func (s *DiscussionService) Patch(ctx context.Context, actor authz.Actor, id string, req models.PatchDiscussionRequest) (*models.Discussion, error) {
	if err := authorize(actor, authz.ResourceDiscussion, authz.ActionUpdate); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Question != nil {
		current.Question = strings.TrimSpace(*req.Question)
	}
	if current.Question == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "question cannot be blank")
	}
	return s.save(ctx, current)
}

// Delete removes a discussion together with its replies.
func (s *DiscussionService) Delete(ctx context.Context, actor authz.Actor, id string) error {
	if err := authorize(actor, authz.ResourceDiscussion, authz.ActionDelete); err != nil {
		return err
	}
	if err := requireID(id, "discussion"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "discussion not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete discussion")
	}
	return nil
}

// Reply appends a reply to the discussion on the nested route.
func (s *DiscussionService) Reply(ctx context.Context, actor authz.Actor, discussionID string, req models.CreateReplyRequest) (*models.Reply, error) {
	if err := authorize(actor, authz.ResourceDiscussion, authz.ActionReply); err != nil {
		return nil, err
	}
	if err := requireID(discussionID, "discussion"); err != nil {
		return nil, err
	}
	req.DiscussionID = discussionID
	return s.createReply(ctx, actor, req)
}

// CreateReply posts a reply naming its discussion in the body.
func (s *DiscussionService) CreateReply(ctx context.Context, actor authz.Actor, req models.CreateReplyRequest) (*models.Reply, error) {
	if err := authorize(actor, authz.ResourceReply, authz.ActionCreate); err != nil {
		return nil, err
	}
	return s.createReply(ctx, actor, req)
}

// ListReplies returns replies oldest first; an empty discussionID lists every reply.
func (s *DiscussionService) ListReplies(ctx context.Context, actor authz.Actor, discussionID string) ([]models.Reply, error) {
	if err := authorize(actor, authz.ResourceReply, authz.ActionList); err != nil {
		return nil, err
	}
	discussionID = strings.TrimSpace(discussionID)
	if discussionID != "" && !validID(discussionID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discussion_id must be a valid uuid")
	}
	replies, err := s.repo.ListReplies(ctx, discussionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list replies")
	}
	return replies, nil
}

func (s *DiscussionService) createReply(ctx context.Context, actor authz.Actor, req models.CreateReplyRequest) (*models.Reply, error) {
	req.DiscussionID = strings.TrimSpace(req.DiscussionID)
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}
	if _, err := s.find(ctx, req.DiscussionID); err != nil {
		return nil, err
	}
	reply := &models.Reply{
		ID:           uuid.NewString(),
		DiscussionID: req.DiscussionID,
		UserID:       actor.UserID,
		Text:         req.Text,
	}
	if err := s.repo.CreateReply(ctx, reply); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reply")
	}
	return reply, nil
}

func (s *DiscussionService) save(ctx context.Context, discussion *models.Discussion) (*models.Discussion, error) {
	if err := requireID(discussion.ID, "discussion"); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, discussion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "discussion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update discussion")
	}
	return discussion, nil
}

func (s *DiscussionService) find(ctx context.Context, id string) (*models.Discussion, error) {
	if err := requireID(id, "discussion"); err != nil {
		return nil, err
	}
	discussion, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "discussion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get discussion")
	}
	return discussion, nil
}
