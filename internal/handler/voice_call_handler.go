package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/authz"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/response"
)

type voiceCallService interface {
	Create(ctx context.Context, actor authz.Actor) (*models.VoiceCall, error)
	End(ctx context.Context, actor authz.Actor, req models.EndVoiceCallRequest) (*models.VoiceCall, error)
}

// VoiceCallHandler exposes the voice-call lifecycle.
type VoiceCallHandler struct {
	service voiceCallService
}

// NewVoiceCallHandler constructs the handler.
func NewVoiceCallHandler(svc voiceCallService) *VoiceCallHandler {
	return &VoiceCallHandler{service: svc}
}

// Create godoc
// @Summary Start voice call
// @Description Allocates a fresh channel owned by the caller.
// @Tags Voice
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.ErrorEnvelope
// @Failure 409 {object} response.ErrorEnvelope
// @Router /voice-call/token [post]
func (h *VoiceCallHandler) Create(c *gin.Context) {
	call, err := h.service.Create(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Voice call created", call)
}

// End godoc
// @Summary End voice call
// @Description Only the creator can end an active call. Any other case answers 404.
// @Tags Voice
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.EndVoiceCallRequest true "Channel"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /voice-call/end [post]
func (h *VoiceCallHandler) End(c *gin.Context) {
	var req models.EndVoiceCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	call, err := h.service.End(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Updated(c, "Voice call ended", call)
}
