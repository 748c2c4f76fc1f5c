package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/dto"
	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
	"github.com/Noah-Truong/Senpai-Career-sub002/pkg/response"
)

type threadService interface {
	GetOrCreate(ctx context.Context, actor *models.JWTClaims, req dto.CreateThreadRequest) (*dto.ThreadView, error)
	List(ctx context.Context, actor *models.JWTClaims) ([]dto.ThreadView, error)
	Messages(ctx context.Context, actor *models.JWTClaims, threadID string, query dto.PageQuery) ([]models.Message, *models.Pagination, error)
	Send(ctx context.Context, actor *models.JWTClaims, threadID string, req dto.SendMessageRequest) (*models.Message, error)
}

// ThreadHandler serves conversation threads and their messages.
type ThreadHandler struct {
	service threadService
}

// NewThreadHandler constructs the handler.
func NewThreadHandler(svc threadService) *ThreadHandler {
	return &ThreadHandler{service: svc}
}

// GetOrCreate godoc
// @Summary Resolve the thread with another user
// @Tags Threads
// @Accept json
// @Produce json
// @Param payload body dto.CreateThreadRequest true "Counterpart"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /threads [post]
func (h *ThreadHandler) GetOrCreate(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.CreateThreadRequest
	if !bindJSON(c, &req, "invalid thread payload") {
		return
	}
	view, err := h.service.GetOrCreate(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// List godoc
// @Summary List the caller's threads
// @Tags Threads
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /threads [get]
func (h *ThreadHandler) List(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Messages godoc
// @Summary List thread messages
// @Tags Threads
// @Produce json
// @Param id path string true "Thread ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /threads/{id}/messages [get]
func (h *ThreadHandler) Messages(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var query dto.PageQuery
	if !bindQuery(c, &query, "invalid paging parameters") {
		return
	}
	items, pagination, err := h.service.Messages(c.Request.Context(), claims, c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Send godoc
// @Summary Post a message
// @Tags Threads
// @Accept json
// @Produce json
// @Param id path string true "Thread ID"
// @Param payload body dto.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /threads/{id}/messages [post]
func (h *ThreadHandler) Send(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}
	msg, err := h.service.Send(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
