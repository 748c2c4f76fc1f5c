package dto

import (
	"time"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
)

// UserProfile is a user's public profile with their review aggregate.
// Moderation fields are only filled for admins and the user themselves.
type UserProfile struct {
	Counterpart
	Reviews  models.ReviewSummary `json:"reviews"`
	Strikes  *int                 `json:"strikes,omitempty"`
	IsBanned *bool                `json:"isBanned,omitempty"`
}

// UserSummary is one row of the admin user directory.
type UserSummary struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Nickname  *string         `json:"nickname,omitempty"`
	Role      models.UserRole `json:"role"`
	Strikes   int             `json:"strikes"`
	IsBanned  bool            `json:"isBanned"`
	Active    bool            `json:"active"`
	LastLogin *time.Time      `json:"lastLogin,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewUserSummary converts a stored user.
func NewUserSummary(u *models.User) UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Nickname:  u.Nickname,
		Role:      u.Role,
		Strikes:   u.Strikes,
		IsBanned:  u.IsBanned,
		Active:    u.Active,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}
