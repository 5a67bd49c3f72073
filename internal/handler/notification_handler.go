package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/dto"
	"github.com/noah-isme/classroom-api/internal/middleware"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/response"
)

type inboxService interface {
	Inbox(ctx context.Context, actorID string, query dto.PageQuery) (*models.InboxPage, bool, error)
}

// NotificationHandler serves the caller's inbox.
type NotificationHandler struct {
	service inboxService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(svc inboxService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// Inbox godoc
// @Summary List my notifications
// @Description Newest first. The recipient is always the authenticated caller.
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.ErrorEnvelope
// @Router /notifications [get]
func (h *NotificationHandler) Inbox(c *gin.Context) {
	var query dto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	actor := actorFromContext(c)
	if !actor.Authenticated() {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, hit, err := h.service.Inbox(c.Request.Context(), actor.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	middleware.SetMeta(c, "unread_count", page.UnreadCount)
	pagination := page.Pagination
	response.JSON(c, http.StatusOK, page.Items, &pagination, middleware.ExtractMeta(c))
}
