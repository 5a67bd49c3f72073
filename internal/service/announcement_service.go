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

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementService handles announcement workflows.
type AnnouncementService struct {
	repo      announcementRepository
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AnnouncementService{repo: repo, publisher: publisher, validator: validate, logger: logger}
}

// List returns announcements newest first.
func (s *AnnouncementService) List(ctx context.Context, actor authz.Actor, query dto.PageQuery) ([]models.Announcement, *models.Pagination, error) {
	if err := authorize(actor, authz.ResourceAnnouncement, authz.ActionList); err != nil {
		return nil, nil, err
	}
	query = query.Normalize()
	rows, total, err := s.repo.List(ctx, models.AnnouncementFilter{Page: query.Page, PageSize: query.PageSize})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	return rows, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}

// Get returns an announcement by id.
func (s *AnnouncementService) Get(ctx context.Context, actor authz.Actor, id string) (*models.Announcement, error) {
	if err := authorize(actor, authz.ResourceAnnouncement, authz.ActionRead); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// Create posts a new announcement and notifies students.
func (s *AnnouncementService) Create(ctx context.Context, actor authz.Actor, req models.AnnouncementRequest) (*models.Announcement, error) {
	if err := authorize(actor, authz.ResourceAnnouncement, authz.ActionCreate); err != nil {
		return nil, err
	}
	req = trimAnnouncement(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}
	announcement := &models.Announcement{
		ID:           uuid.NewString(),
		InstructorID: actor.UserID,
		Title:        req.Title,
		Message:      req.Message,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	s.publisher.Publish(ctx, events.NewEnvelope(actor.UserID, events.AnnouncementCreated{
		AnnouncementID: announcement.ID,
		InstructorID:   announcement.InstructorID,
		Title:          announcement.Title,
	}))
	return announcement, nil
}

// Update replaces title and message.
func (s *AnnouncementService) Update(ctx context.Context, actor authz.Actor, id string, req models.AnnouncementRequest) (*models.Announcement, error) {
	if err := authorize(actor, authz.ResourceAnnouncement, authz.ActionUpdate); err != nil {
		return nil, err
	}
	req = trimAnnouncement(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}
	return s.save(ctx, &models.Announcement{ID: id, Title: req.Title, Message: req.Message})
}

// Patch updates only the supplied fields.
func (s *AnnouncementService) Patch(ctx context.Context, actor authz.Actor, id string, req models.PatchAnnouncementRequest) (*models.Announcement, error) {
	if err := authorize(actor, authz.ResourceAnnouncement, authz.ActionUpdate); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		current.Title = strings.TrimSpace(*req.Title)
	}
	if req.Message != nil {
		current.Message = strings.TrimSpace(*req.Message)
	}
	if current.Title == "" || current.Message == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and message cannot be blank")
	}
	return s.save(ctx, current)
}

// Delete removes an announcement.
func (s *AnnouncementService) Delete(ctx context.Context, actor authz.Actor, id string) error {
	if err := authorize(actor, authz.ResourceAnnouncement, authz.ActionDelete); err != nil {
		return err
	}
	if err := requireID(id, "announcement"); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

func (s *AnnouncementService) save(ctx context.Context, announcement *models.Announcement) (*models.Announcement, error) {
	if err := requireID(announcement.ID, "announcement"); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, announcement); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return announcement, nil
}

func (s *AnnouncementService) find(ctx context.Context, id string) (*models.Announcement, error) {
	if err := requireID(id, "announcement"); err != nil {
		return nil, err
	}
	ann, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get announcement")
	}
	return ann, nil
}

func trimAnnouncement(req models.AnnouncementRequest) models.AnnouncementRequest {
	req.Title = strings.TrimSpace(req.Title)
	req.Message = strings.TrimSpace(req.Message)
	return req
}
