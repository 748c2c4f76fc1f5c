package dto

import "time"

// UpdateAvailabilityRequest replaces a mentor's comma-separated slot list.
type UpdateAvailabilityRequest struct {
	TimesCSV string `json:"timesCsv" validate:"max=4000"`
}

// AvailabilityView is a mentor's availability with parsed tokens.
type AvailabilityView struct {
	MentorID  string     `json:"mentorId"`
	TimesCSV  string     `json:"timesCsv"`
	Slots     []string   `json:"slots"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}
