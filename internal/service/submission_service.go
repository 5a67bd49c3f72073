package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/authz"
	"github.com/noah-isme/classroom-api/internal/dto"
	"github.com/noah-isme/classroom-api/internal/events"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/export"
	"github.com/noah-isme/classroom-api/pkg/validation"
)

type submissionRepository interface {
	Create(ctx context.Context, s *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
	Grade(ctx context.Context, id string, grade float64, graderID string, gradedAt time.Time) (*models.Submission, error)
	GradebookRows(ctx context.Context, assignmentID string) ([]models.GradebookRow, error)
}

type assignmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

// SubmissionListQuery filters the submission listing.
type SubmissionListQuery struct {
	dto.PageQuery
	AssignmentID string `form:"assignment_id"`
}

// Gradebook is a rendered gradebook document.
type Gradebook struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SubmissionService handles submissions and grading.
type SubmissionService struct {
	repo        submissionRepository
	assignments assignmentLookup
	files       attachmentStore
	publisher   events.Publisher
	exporters   map[string]export.Exporter
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs the service.
func NewSubmissionService(repo submissionRepository, assignments assignmentLookup, files attachmentStore, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &SubmissionService{
		repo:        repo,
		assignments: assignments,
		files:       files,
		publisher:   publisher,
		exporters: map[string]export.Exporter{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create records actor's submission for an existing assignment. Either an
// attachment or text content must be supplied.
func (s *SubmissionService) Create(ctx context.Context, actor authz.Actor, req models.CreateSubmissionRequest, upload *models.FileUpload) (*models.Submission, error) {
	if err := authorize(actor, authz.ResourceSubmission, authz.ActionCreate); err != nil {
		return nil, err
	}
	req.AssignmentID = strings.TrimSpace(req.AssignmentID)
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}
	if upload == nil && req.Content == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either file or content is required")
	}

	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get assignment")
	}

	submission := &models.Submission{
		ID:           uuid.NewString(),
		AssignmentID: assignment.ID,
		StudentID:    actor.UserID,
	}
	if req.Content != "" {
		content := req.Content
		submission.Content = &content
	}
	if upload != nil {
		if s.files == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file uploads are not enabled")
		}
		ref, err := s.files.Store(ctx, AttachmentSubmissions, upload)
		if err != nil {
			return nil, err
		}
		submission.FileRef = &ref
	}

	if err := s.repo.Create(ctx, submission); err != nil {
		if submission.FileRef != nil {
			s.files.Remove(*submission.FileRef)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	s.publisher.Publish(ctx, events.NewEnvelope(actor.UserID, events.SubmissionCreated{
		SubmissionID:      submission.ID,
		AssignmentID:      assignment.ID,
		AssignmentTitle:   assignment.Title,
		AssignmentOwnerID: assignment.InstructorID,
		StudentID:         actor.UserID,
		StudentUsername:   actor.Username,
	}))
	s.decorate(submission)
	return submission, nil
}

// Grade sets the grade of a submission, rounded to two decimals, and tells the student.
func (s *SubmissionService) Grade(ctx context.Context, actor authz.Actor, id string, req models.GradeSubmissionRequest) (*models.Submission, error) {
	if err := authorize(actor, authz.ResourceSubmission, authz.ActionGrade); err != nil {
		return nil, err
	}
	if req.Grade != nil {
		rounded := math.Round(*req.Grade*100) / 100
		req.Grade = &rounded
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid payload")
	}
	if err := requireID(id, "submission"); err != nil {
		return nil, err
	}

	submission, err := s.repo.Grade(ctx, id, *req.Grade, actor.UserID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}
	s.logger.Info("submission graded", zap.String("submission_id", submission.ID), zap.String("grader_id", actor.UserID))

	assignment, err := s.assignments.FindByID(ctx, submission.AssignmentID)
	if err != nil {
		s.logger.Warn("grade notification skipped", zap.String("submission_id", submission.ID), zap.Error(err))
	} else {
		s.publisher.Publish(ctx, events.NewEnvelope(actor.UserID, events.SubmissionGraded{
			SubmissionID:    submission.ID,
			AssignmentID:    assignment.ID,
			AssignmentTitle: assignment.Title,
			StudentID:       submission.StudentID,
			GraderID:        actor.UserID,
			Grade:           *submission.Grade,
		}))
	}
	s.decorate(submission)
	return submission, nil
}

// List returns submissions newest first. Students only ever see their own.
func (s *SubmissionService) List(ctx context.Context, actor authz.Actor, query SubmissionListQuery) ([]models.Submission, *models.Pagination, error) {
	if err := authorize(actor, authz.ResourceSubmission, authz.ActionList); err != nil {
		return nil, nil, err
	}
	page := query.PageQuery.Normalize()
	assignmentID := strings.TrimSpace(query.AssignmentID)
	if assignmentID != "" && !validID(assignmentID) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "assignment_id must be a valid uuid")
	}
	filter := models.SubmissionFilter{
		AssignmentID: assignmentID,
		Page:         page.Page,
		PageSize:     page.PageSize,
	}
	if actor.Role != models.RoleInstructor {
		filter.StudentID = actor.UserID
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	for i := range rows {
		s.decorate(&rows[i])
	}
	return rows, &models.Pagination{Page: page.Page, PageSize: page.PageSize, TotalCount: total}, nil
}

// Get returns a submission. Students cannot see submissions of others.
func (s *SubmissionService) Get(ctx context.Context, actor authz.Actor, id string) (*models.Submission, error) {
	if err := authorize(actor, authz.ResourceSubmission, authz.ActionRead); err != nil {
		return nil, err
	}
	if err := requireID(id, "submission"); err != nil {
		return nil, err
	}
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get submission")
	}
	if actor.Role != models.RoleInstructor && !authz.OwnedBy(actor, submission.StudentID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	}
	s.decorate(submission)
	return submission, nil
}

// Gradebook renders every submission of an assignment as csv or pdf.
func (s *SubmissionService) Gradebook(ctx context.Context, actor authz.Actor, assignmentID, format string) (*Gradebook, error) {
	if err := authorize(actor, authz.ResourceAssignment, authz.ActionExport); err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	if err := requireID(assignmentID, "assignment"); err != nil {
		return nil, err
	}
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get assignment")
	}
	rows, err := s.repo.GradebookRows(ctx, assignment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load gradebook")
	}

	content, err := exporter.Render(gradebookDataset(assignment, rows))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render gradebook")
	}
	return &Gradebook{
		Filename:    fmt.Sprintf("gradebook-%s.%s", assignment.ID, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Content:     content,
	}, nil
}

func (s *SubmissionService) decorate(sub *models.Submission) {
	if s.files != nil {
		sub.FileURL = s.files.URL(sub.FileRef)
	}
}

var gradebookHeaders = []string{"Submission", "Student", "Submitted At", "Grade", "Graded At"}

func gradebookDataset(assignment *models.Assignment, rows []models.GradebookRow) export.Dataset {
	data := export.Dataset{
		Title:   "Gradebook: " + assignment.Title,
		Headers: gradebookHeaders,
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		record := map[string]string{
			"Submission":   row.SubmissionID,
			"Student":      row.StudentUsername,
			"Submitted At": row.SubmittedAt.UTC().Format(time.RFC3339),
		}
		if row.Grade != nil {
			record["Grade"] = strconv.FormatFloat(*row.Grade, 'f', 2, 64)
		}
		if row.GradedAt != nil {
			record["Graded At"] = row.GradedAt.UTC().Format(time.RFC3339)
		}
		data.Rows = append(data.Rows, record)
	}
	return data
}
