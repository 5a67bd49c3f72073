package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/authz"
	"github.com/noah-isme/classroom-api/internal/dto"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/response"
)

type discussionService interface {
	List(ctx context.Context, actor authz.Actor, query dto.PageQuery) ([]models.Discussion, *models.Pagination, error)
	Get(ctx context.Context, actor authz.Actor, id string) (*models.Discussion, error)
	Create(ctx context.Context, actor authz.Actor, req models.DiscussionRequest) (*models.Discussion, error)
	Update(ctx context.Context, actor authz.Actor, id string, req models.DiscussionRequest) (*models.Discussion, error)
	Patch(ctx context.Context, actor authz.Actor, id string, req models.PatchDiscussionRequest) (*models.Discussion, error)
	Delete(ctx context.Context, actor authz.Actor, id string) error
	Reply(ctx context.Context, actor authz.Actor, discussionID string, req models.CreateReplyRequest) (*models.Reply, error)
	CreateReply(ctx context.Context, actor authz.Actor, req models.CreateReplyRequest) (*models.Reply, error)
	ListReplies(ctx context.Context, actor authz.Actor, discussionID string) ([]models.Reply, error)
}

// DiscussionHandler exposes discussion and reply endpoints.
type DiscussionHandler struct {
	service discussionService
}

// NewDiscussionHandler constructs the handler.
func NewDiscussionHandler(svc discussionService) *DiscussionHandler {
	return &DiscussionHandler{service: svc}
}

// List godoc
// @Summary List discussions
// @Tags Discussions
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /discussions [get]
func (h *DiscussionHandler) List(c *gin.Context) {
	var query dto.PageQuery
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
// @Summary Get discussion with replies
// @Tags Discussions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Discussion ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /discussions/{id} [get]
func (h *DiscussionHandler) Get(c *gin.Context) {
	discussion, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discussion, nil)
}

// Create godoc
// @Summary Start discussion
// @Tags Discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.DiscussionRequest true "Discussion"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 403 {object} response.ErrorEnvelope
// @Router /discussions [post]
func (h *DiscussionHandler) Create(c *gin.Context) {
	var req models.DiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discussion, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Discussion created successfully", discussion)
}

// Update godoc
// @Summary Replace discussion
// @Tags Discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Discussion ID"
// @Param payload body models.DiscussionRequest true "Discussion"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /discussions/{id} [put]
func (h *DiscussionHandler) Update(c *gin.Context) {
	var req models.DiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discussion, err := h.service.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Updated(c, "Discussion updated successfully", discussion)
}

// Patch godoc
// @Summary Partially update discussion
// @Tags Discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Discussion ID"
// @Param payload body models.PatchDiscussionRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /discussions/{id} [patch]
func (h *DiscussionHandler) Patch(c *gin.Context) {
	var req models.PatchDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discussion, err := h.service.Patch(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Updated(c, "Discussion updated successfully", discussion)
}

// Delete godoc
// @Summary Delete discussion
// @Tags Discussions
// @Security BearerAuth
// @Param id path string true "Discussion ID"
// @Success 204
// @Failure 404 {object} response.ErrorEnvelope
// @Router /discussions/{id} [delete]
func (h *DiscussionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reply godoc
// @Summary Reply to discussion
// @Tags Discussions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Discussion ID"
// @Param payload body models.CreateReplyRequest true "Reply (discussion_id is taken from the path)"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /discussions/{id}/reply [post]
func (h *DiscussionHandler) Reply(c *gin.Context) {
	var req models.CreateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	reply, err := h.service.Reply(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Reply created successfully", reply)
}

// CreateReply godoc
// @Summary Create reply
// @Tags Replies
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateReplyRequest true "Reply"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /replies [post]
func (h *DiscussionHandler) CreateReply(c *gin.Context) {
	var req models.CreateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	reply, err := h.service.CreateReply(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Reply created successfully", reply)
}

// ListReplies godoc
// @Summary List replies
// @Tags Replies
// @Produce json
// @Security BearerAuth
// @Param discussion_id query string false "Discussion ID"
// @Success 200 {object} response.Envelope
// @Router /replies [get]
func (h *DiscussionHandler) ListReplies(c *gin.Context) {
	replies, err := h.service.ListReplies(c.Request.Context(), actorFromContext(c), c.Query("discussion_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, replies, nil)
}
