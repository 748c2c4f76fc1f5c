package dto

import (
	"time"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
)

// BookingAction names the operation requested by PATCH /bookings/:id.
type BookingAction string

const (
	BookingActionConfirm BookingAction = "confirm"
	BookingActionCancel  BookingAction = "cancel"
)

// CreateBookingRequest is a student's request for one of a mentor's slots.
type CreateBookingRequest struct {
	MentorID        string  `json:"mentorId" validate:"required"`
	Slot            string  `json:"slot" validate:"required,max=200"`
	DurationMinutes *int    `json:"durationMinutes,omitempty" validate:"omitempty,min=15,max=480"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	MeetingURL      *string `json:"meetingUrl,omitempty"`
}

// UpdateBookingRequest confirms or cancels a booking.
type UpdateBookingRequest struct {
	Action BookingAction `json:"action" validate:"required,oneof=confirm cancel"`
	Reason *string       `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// BookingListQuery carries GET /bookings query parameters.
type BookingListQuery struct {
	MentorID  string `form:"mentorId"`
	StudentID string `form:"studentId"`
	Status    string `form:"status" validate:"omitempty,oneof=pending confirmed cancelled"`
	Page      int    `form:"page"`
	Limit     int    `form:"limit"`
}

// Counterpart is the public profile shown for the other party.
type Counterpart struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Nickname     *string         `json:"nickname,omitempty"`
	ProfilePhoto *string         `json:"profilePhoto,omitempty"`
	Role         models.UserRole `json:"role"`
}

// CounterpartFromProfile converts a stored profile.
func CounterpartFromProfile(p models.PublicProfile) Counterpart {
	return Counterpart{ID: p.ID, Name: p.Name, Nickname: p.Nickname, ProfilePhoto: p.ProfilePhoto, Role: p.Role}
}

// MeetingState is the meeting sub-state embedded in a booking.
type MeetingState struct {
	ID                                string               `json:"id"`
	Status                            models.MeetingStatus `json:"status"`
	Version                           int                  `json:"version"`
	StudentTermsAccepted              bool                 `json:"studentTermsAccepted"`
	ObogTermsAccepted                 bool                 `json:"obogTermsAccepted"`
	StudentPostStatus                 *models.PostStatus   `json:"studentPostStatus,omitempty"`
	ObogPostStatus                    *models.PostStatus   `json:"obogPostStatus,omitempty"`
	StudentAdditionalQuestionAnswered bool                 `json:"studentAdditionalQuestionAnswered"`
}

// BookingView is a booking as returned to a participant or admin.
type BookingView struct {
	ID                 string               `json:"id"`
	StudentID          string               `json:"studentId"`
	MentorID           string               `json:"mentorId"`
	ThreadID           string               `json:"threadId"`
	ThreadLink         string               `json:"threadLink"`
	Slot               string               `json:"slot"`
	DurationMinutes    int                  `json:"durationMinutes"`
	Notes              *string              `json:"notes,omitempty"`
	MeetingURL         *string              `json:"meetingUrl,omitempty"`
	Status             models.BookingStatus `json:"status"`
	CancelledAt        *time.Time           `json:"cancelledAt,omitempty"`
	CancelledBy        *string              `json:"cancelledBy,omitempty"`
	CancellationReason *string              `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
	Student            Counterpart          `json:"student"`
	Mentor             Counterpart          `json:"mentor"`
	Counterpart        *Counterpart         `json:"counterpart,omitempty"`
	Meeting            *MeetingState        `json:"meeting,omitempty"`
}

// NewBookingView builds the view of d as seen by viewerID.
func NewBookingView(d *models.BookingDetail, viewerID string) BookingView {
	view := BookingView{
		ID:                 d.ID,
		StudentID:          d.StudentID,
		MentorID:           d.MentorID,
		ThreadID:           d.ThreadID,
		ThreadLink:         models.ThreadLink(d.ThreadID),
		Slot:               d.Slot,
		DurationMinutes:    d.DurationMinutes,
		Notes:              d.Notes,
		MeetingURL:         d.MeetingURL,
		Status:             d.Status,
		CancelledAt:        d.CancelledAt,
		CancelledBy:        d.CancelledBy,
		CancellationReason: d.CancellationReason,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
		Student:            CounterpartFromProfile(d.Student),
		Mentor:             CounterpartFromProfile(d.Mentor),
	}
	switch viewerID {
	case d.StudentID:
		view.Counterpart = &view.Mentor
	case d.MentorID:
		view.Counterpart = &view.Student
	}
	if d.MeetingID != nil {
		state := MeetingState{
			ID:                                *d.MeetingID,
			StudentTermsAccepted:              boolValue(d.StudentTermsAccepted),
			ObogTermsAccepted:                 boolValue(d.ObogTermsAccepted),
			StudentPostStatus:                 d.StudentPostStatus,
			ObogPostStatus:                    d.ObogPostStatus,
			StudentAdditionalQuestionAnswered: boolValue(d.AdditionalQuestionAnswered),
		}
		if d.MeetingStatus != nil {
			state.Status = *d.MeetingStatus
		}
		if d.MeetingVersion != nil {
			state.Version = *d.MeetingVersion
		}
		view.Meeting = &state
	}
	return view
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
