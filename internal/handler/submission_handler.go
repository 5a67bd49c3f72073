package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/authz"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/response"
)

type submissionService interface {
	Create(ctx context.Context, actor authz.Actor, req models.CreateSubmissionRequest, upload *models.FileUpload) (*models.Submission, error)
	List(ctx context.Context, actor authz.Actor, query service.SubmissionListQuery) ([]models.Submission, *models.Pagination, error)
	Get(ctx context.Context, actor authz.Actor, id string) (*models.Submission, error)
	Grade(ctx context.Context, actor authz.Actor, id string, req models.GradeSubmissionRequest) (*models.Submission, error)
	Gradebook(ctx context.Context, actor authz.Actor, assignmentID, format string) (*service.Gradebook, error)
}

// SubmissionHandler exposes submission and grading endpoints.
type SubmissionHandler struct {
	service submissionService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(svc submissionService) *SubmissionHandler {
	return &SubmissionHandler{service: svc}
}

// List godoc
// @Summary List submissions
// @Description Students see only their own submissions; instructors may filter by assignment.
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param assignment_id query string false "Assignment ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	var query service.SubmissionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	rows, pagination, err := h.service.List(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Get godoc
// @Summary Get submission
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	submission, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Create godoc
// @Summary Submit work
// @Description Accepts JSON or multipart form data. Either file or content is required.
// @Tags Submissions
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param assignment_id formData string true "Assignment ID"
// @Param content formData string false "Text answer"
// @Param file formData file false "Attachment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req models.CreateSubmissionRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	upload, closeUpload, err := uploadFromRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeUpload()

	submission, err := h.service.Create(c.Request.Context(), actorFromContext(c), req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Submission created successfully", submission)
}

// Grade godoc
// @Summary Grade submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param payload body models.GradeSubmissionRequest true "Grade"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 403 {object} response.ErrorEnvelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /submissions/{id}/grade [patch]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	var req models.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.service.Grade(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Updated(c, "Submission graded successfully", submission)
}

// Gradebook godoc
// @Summary Export gradebook
// @Description Instructors only. Downloads every submission of an assignment as CSV or PDF.
// @Tags Submissions
// @Produce text/csv,application/pdf
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 403 {object} response.ErrorEnvelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /assignments/{id}/gradebook [get]
func (h *SubmissionHandler) Gradebook(c *gin.Context) {
	book, err := h.service.Gradebook(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(book.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, book.ContentType, book.Content)
}
