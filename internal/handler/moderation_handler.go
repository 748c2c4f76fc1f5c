package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/response"
)

type moderationService interface {
	AddStrike(ctx context.Context, actor *models.JWTClaims, userID string) (*models.StrikeResult, error)
	RemoveStrike(ctx context.Context, actor *models.JWTClaims, userID string) (*models.StrikeResult, error)
}

type meetingExporter interface {
	ExportMeetingReports(ctx context.Context, actor *models.JWTClaims, query dto.MeetingExportQuery) (*dto.ExportFile, error)
}

// ModerationHandler exposes admin-only strike management and report exports.
type ModerationHandler struct {
	moderation moderationService
	exports    meetingExporter
}

// NewModerationHandler constructs the handler. exports may be nil when disabled.
func NewModerationHandler(moderation moderationService, exports meetingExporter) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, exports: exports}
}

// AddStrike godoc
// @Summary Add a strike to a student
// @Description Reaching the ban threshold bans the student.
// @Tags Admin
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/strikes [post]
func (h *ModerationHandler) AddStrike(c *gin.Context) {
	h.strike(c, h.moderation.AddStrike)
}

// RemoveStrike godoc
// @Summary Remove a strike from a student
// @Description Clamped at zero. Never lifts an existing ban.
// @Tags Admin
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/strikes [delete]
func (h *ModerationHandler) RemoveStrike(c *gin.Context) {
	h.strike(c, h.moderation.RemoveStrike)
}

// ExportMeetings godoc
// @Summary Export meeting post-status reports
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv|pdf"
// @Param disputed query bool false "Only meetings whose reports disagree"
// @Param since query string false "YYYY-MM-DD"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/meetings/export [get]
func (h *ModerationHandler) ExportMeetings(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var query dto.MeetingExportQuery
	if !bindQuery(c, &query, "invalid export parameters") {
		return
	}
	file, err := h.exports.ExportMeetingReports(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Binary(c, file.ContentType, file.Filename, file.Body)
}

func (h *ModerationHandler) strike(c *gin.Context, op func(context.Context, *models.JWTClaims, string) (*models.StrikeResult, error)) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, err := op(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
