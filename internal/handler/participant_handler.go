package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/f2freport-api/internal/dto"
	appErrors "github.com/noah-isme/f2freport-api/pkg/errors"
	"github.com/noah-isme/f2freport-api/pkg/response"
)

type participantReportService interface {
	Report(ctx context.Context, sessionID int64) (*dto.ParticipantReport, error)
}

// ParticipantHandler exposes the participants of a session.
type ParticipantHandler struct {
	participants participantReportService
}

// NewParticipantHandler constructs handler.
func NewParticipantHandler(participants participantReportService) *ParticipantHandler {
	return &ParticipantHandler{participants: participants}
}

// Participants godoc
// @Summary Participants of a session grouped by status
// @Tags Reports
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/sessions/{id}/participants [get]
func (h *ParticipantHandler) Participants(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session id"))
		return
	}
	result, err := h.participants.Report(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
