package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleStudent UserRole = "student"
	// RoleOBOG is an alumni mentor ("OB/OG") offering consultation slots.
	RoleOBOG    UserRole = "obog"
	RoleCompany UserRole = "company"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Nickname     *string    `db:"nickname" json:"nickname,omitempty"`
	ProfilePhoto *string    `db:"profile_photo" json:"profile_photo,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	Strikes      int        `db:"strikes" json:"strikes"`
	IsBanned     bool       `db:"is_banned" json:"is_banned"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicProfile is the counterpart view embedded in bookings and threads.
type PublicProfile struct {
	ID           string   `db:"id" json:"id"`
	Name         string   `db:"name" json:"name"`
	Nickname     *string  `db:"nickname" json:"nickname,omitempty"`
	ProfilePhoto *string  `db:"profile_photo" json:"profile_photo,omitempty"`
	Role         UserRole `db:"role" json:"role"`
}

// Public returns the user's public profile fields.
func (u *User) Public() PublicProfile {
	return PublicProfile{ID: u.ID, Name: u.Name, Nickname: u.Nickname, ProfilePhoto: u.ProfilePhoto, Role: u.Role}
}

// StrikeResult reports a student's moderation state after a strike change.
type StrikeResult struct {
	UserID   string `db:"id" json:"user_id"`
	Strikes  int    `db:"strikes" json:"strikes"`
	IsBanned bool   `db:"is_banned" json:"is_banned"`
}

// UserFilter captures filtering criteria for the admin user directory.
type UserFilter struct {
	Role      *UserRole
	Banned    *bool
	MinStrike int
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
