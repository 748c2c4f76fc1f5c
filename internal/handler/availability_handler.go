package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/response"
)

type availabilityService interface {
	Get(ctx context.Context, mentorID string) (*dto.AvailabilityView, error)
	Update(ctx context.Context, actor *models.JWTClaims, mentorID string, req dto.UpdateAvailabilityRequest) (*dto.AvailabilityView, error)
}

// AvailabilityHandler serves mentor availability.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(svc availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// Get godoc
// @Summary Get mentor availability
// @Tags Availability
// @Produce json
// @Param id path string true "Mentor ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /mentors/{id}/availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Update godoc
// @Summary Replace mentor availability
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Mentor ID"
// @Param payload body dto.UpdateAvailabilityRequest true "Comma separated slots"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /mentors/{id}/availability [put]
func (h *AvailabilityHandler) Update(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateAvailabilityRequest
	if !bindJSON(c, &req, "invalid availability payload") {
		return
	}
	view, err := h.service.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
