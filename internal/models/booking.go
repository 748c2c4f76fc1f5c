package models

import "time"

// BookingStatus is the coarse reservation state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsActive reports whether the status holds the mentor's slot.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// Booking is a student's reservation of one of a mentor's slot tokens.
type Booking struct {
	ID                 string        `db:"id" json:"id"`
	StudentID          string        `db:"student_id" json:"student_id"`
	MentorID           string        `db:"mentor_id" json:"mentor_id"`
	ThreadID           string        `db:"thread_id" json:"thread_id"`
	Slot               string        `db:"slot" json:"slot"`
	DurationMinutes    int           `db:"duration_minutes" json:"duration_minutes"`
	Notes              *string       `db:"notes" json:"notes,omitempty"`
	MeetingURL         *string       `db:"meeting_url" json:"meeting_url,omitempty"`
	Status             BookingStatus `db:"status" json:"status"`
	CancelledAt        *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy        *string       `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason *string       `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// IsParticipant reports whether userID is the booking's student or mentor.
func (b *Booking) IsParticipant(userID string) bool {
	return userID != "" && (b.StudentID == userID || b.MentorID == userID)
}

// Counterpart returns the other participant's ID, or "" when userID is not a participant.
func (b *Booking) Counterpart(userID string) string {
	switch userID {
	case b.StudentID:
		return b.MentorID
	case b.MentorID:
		return b.StudentID
	}
	return ""
}

// BookingDetail is a booking joined with both parties' public profiles and
// the linked meeting's sub-state.
type BookingDetail struct {
	Booking
	Student PublicProfile `db:"student" json:"student"`
	Mentor  PublicProfile `db:"mentor" json:"mentor"`

	MeetingID                  *string        `db:"meeting_id" json:"-"`
	MeetingStatus              *MeetingStatus `db:"meeting_status" json:"-"`
	MeetingVersion             *int           `db:"meeting_version" json:"-"`
	StudentTermsAccepted       *bool          `db:"student_terms_accepted" json:"-"`
	ObogTermsAccepted          *bool          `db:"obog_terms_accepted" json:"-"`
	StudentPostStatus          *PostStatus    `db:"student_post_status" json:"-"`
	ObogPostStatus             *PostStatus    `db:"obog_post_status" json:"-"`
	AdditionalQuestionAnswered *bool          `db:"student_additional_question_answered" json:"-"`
}

// BookingFilter captures filtering criteria for listing bookings.
type BookingFilter struct {
	// ParticipantID limits results to bookings where the user is either party.
	ParticipantID string
	StudentID     string
	MentorID      string
	Status        BookingStatus
	Page          int
	PageSize      int
}
