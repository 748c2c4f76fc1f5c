package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/response"
)

type meetingService interface {
	Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateMeetingRequest) (*dto.MeetingView, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error)
	GetByThread(ctx context.Context, actor *models.JWTClaims, threadID string) (*dto.MeetingView, error)
	AcceptTerms(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error)
	Confirm(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error)
	Complete(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error)
	NoShow(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error)
	Cancel(ctx context.Context, actor *models.JWTClaims, id string, req dto.CancelRequest) (*dto.MeetingView, error)
	AnswerAdditionalQuestion(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error)
}

type meetingTransition func(ctx context.Context, actor *models.JWTClaims, id string) (*dto.MeetingView, error)

// MeetingHandler exposes the meeting state machine.
type MeetingHandler struct {
	service meetingService
}

// NewMeetingHandler constructs the handler.
func NewMeetingHandler(svc meetingService) *MeetingHandler {
	return &MeetingHandler{service: svc}
}

// Create godoc
// @Summary Open a meeting on a thread
// @Tags Meetings
// @Accept json
// @Produce json
// @Param payload body dto.CreateMeetingRequest true "Thread"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings [post]
func (h *MeetingHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateMeetingRequest
	if !bindJSON(c, &req, "invalid meeting payload") {
		return
	}
	view, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Get godoc
// @Summary Get meeting
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id} [get]
func (h *MeetingHandler) Get(c *gin.Context) {
	h.run(c, h.service.Get)
}

// GetByThread godoc
// @Summary Latest meeting of a thread
// @Tags Meetings
// @Produce json
// @Param id path string true "Thread ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /threads/{id}/meeting [get]
func (h *MeetingHandler) GetByThread(c *gin.Context) {
	h.run(c, h.service.GetByThread)
}

// AcceptTerms godoc
// @Summary Accept the meeting terms for the caller's side
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings/{id}/terms [post]
func (h *MeetingHandler) AcceptTerms(c *gin.Context) {
	h.run(c, h.service.AcceptTerms)
}

// Confirm godoc
// @Summary Confirm an unconfirmed meeting
// @Description Mentor only. Both parties must have accepted the terms first.
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /meetings/{id}/confirm [post]
func (h *MeetingHandler) Confirm(c *gin.Context) {
	h.run(c, h.service.Confirm)
}

// Complete godoc
// @Summary Report the meeting as held
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings/{id}/complete [post]
func (h *MeetingHandler) Complete(c *gin.Context) {
	h.run(c, h.service.Complete)
}

// NoShow godoc
// @Summary Report the counterpart as a no-show
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings/{id}/no-show [post]
func (h *MeetingHandler) NoShow(c *gin.Context) {
	h.run(c, h.service.NoShow)
}

// Cancel godoc
// @Summary Cancel a meeting
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body dto.CancelRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings/{id}/cancel [post]
func (h *MeetingHandler) Cancel(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CancelRequest
	if !bindOptionalJSON(c, &req, "invalid cancel payload") {
		return
	}
	view, err := h.service.Cancel(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// AnswerAdditionalQuestion godoc
// @Summary Record the student's post-meeting questionnaire
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings/{id}/additional-question [post]
func (h *MeetingHandler) AnswerAdditionalQuestion(c *gin.Context) {
	h.run(c, h.service.AnswerAdditionalQuestion)
}

func (h *MeetingHandler) run(c *gin.Context, op meetingTransition) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	view, err := op(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
