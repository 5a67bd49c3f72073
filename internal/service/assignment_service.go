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

type assignmentRepository interface {
	Create(ctx context.Context, a *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
}

// attachmentStore is the slice of FileService used by write paths.
type attachmentStore interface {
	Store(ctx context.Context, prefix string, upload *models.FileUpload) (string, error)
	Remove(ref string)
	URL(ref *string) string
}

// AssignmentService handles assignment workflows.
type AssignmentService struct {
	repo      assignmentRepository
	files     attachmentStore
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentRepository, files attachmentStore, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AssignmentService{repo: repo, files: files, publisher: publisher, validator: validate, logger: logger}
}

// Create stores a new assignment owned by actor, with an optional attachment,
// and announces it to students.
func (s *AssignmentService) Create(ctx context.Context, actor authz.Actor, req models.CreateAssignmentRequest, upload *models.FileUpload) (*models.Assignment, error) {
	if err := authorize(actor, authz.ResourceAssignment, authz.ActionCreate); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}

	assignment := &models.Assignment{
		ID:           uuid.NewString(),
		InstructorID: actor.UserID,
		Title:        req.Title,
		Description:  req.Description,
		DueDate:      req.DueDate.UTC(),
	}
	if upload != nil {
		ref, err := s.storeAttachment(ctx, AttachmentAssignments, upload)
		if err != nil {
			return nil, err
		}
		assignment.FileRef = &ref
	}

	if err := s.repo.Create(ctx, assignment); err != nil {
		if assignment.FileRef != nil {
			s.files.Remove(*assignment.FileRef)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}

	s.publisher.Publish(ctx, events.NewEnvelope(actor.UserID, events.AssignmentCreated{
		AssignmentID: assignment.ID,
		InstructorID: assignment.InstructorID,
		Title:        assignment.Title,
	}))
	s.logger.Info("assignment created", zap.String("assignment_id", assignment.ID), zap.String("instructor_id", actor.UserID))
	s.decorate(assignment)
	return assignment, nil
}

// List returns assignments newest first.
func (s *AssignmentService) List(ctx context.Context, actor authz.Actor, query dto.PageQuery) ([]models.Assignment, *models.Pagination, error) {
	if err := authorize(actor, authz.ResourceAssignment, authz.ActionList); err != nil {
		return nil, nil, err
	}
	query = query.Normalize()
	rows, total, err := s.repo.List(ctx, models.AssignmentFilter{Page: query.Page, PageSize: query.PageSize})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	for i := range rows {
		s.decorate(&rows[i])
	}
	return rows, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}

// Get returns an assignment by id.
func (s *AssignmentService) Get(ctx context.Context, actor authz.Actor, id string) (*models.Assignment, error) {
	if err := authorize(actor, authz.ResourceAssignment, authz.ActionRead); err != nil {
		return nil, err
	}
	assignment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorate(assignment)
	return assignment, nil
}

func (s *AssignmentService) find(ctx context.Context, id string) (*models.Assignment, error) {
	if err := requireID(id, "assignment"); err != nil {
		return nil, err
	}
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get assignment")
	}
	return assignment, nil
}

func (s *AssignmentService) storeAttachment(ctx context.Context, prefix string, upload *models.FileUpload) (string, error) {
	if s.files == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "file uploads are not enabled")
	}
	return s.files.Store(ctx, prefix, upload)
}

func (s *AssignmentService) decorate(a *models.Assignment) {
	if s.files != nil {
		a.FileURL = s.files.URL(a.FileRef)
	}
}
