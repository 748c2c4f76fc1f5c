package dto

import (
	"time"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
)

// CreateThreadRequest resolves the thread with another user.
type CreateThreadRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// SendMessageRequest appends a message to a thread.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// PageQuery carries generic pagination parameters.
type PageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// NotificationQuery carries GET /notifications parameters.
type NotificationQuery struct {
	UnreadOnly bool `form:"unread"`
	Page       int  `form:"page"`
	Limit      int  `form:"limit"`
}

// ThreadView is a thread as seen by one of its participants.
type ThreadView struct {
	ID            string      `json:"id"`
	Link          string      `json:"link"`
	Counterpart   Counterpart `json:"counterpart"`
	LastMessageAt *time.Time  `json:"lastMessageAt,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// NewThreadView builds a thread view around the given counterpart.
func NewThreadView(t *models.Thread, counterpart models.PublicProfile, lastMessageAt *time.Time) ThreadView {
	return ThreadView{
		ID:            t.ID,
		Link:          models.ThreadLink(t.ID),
		Counterpart:   CounterpartFromProfile(counterpart),
		LastMessageAt: lastMessageAt,
		UpdatedAt:     t.UpdatedAt,
	}
}
