package models

import "time"

// MeetingStatus is the authoritative shared state of a meeting.
type MeetingStatus string

const (
	MeetingStatusUnconfirmed MeetingStatus = "unconfirmed"
	MeetingStatusConfirmed   MeetingStatus = "confirmed"
	MeetingStatusCompleted   MeetingStatus = "completed"
	MeetingStatusCancelled   MeetingStatus = "cancelled"
)

// PostStatus is one party's own report of how a meeting concluded.
type PostStatus string

const (
	PostStatusCompleted PostStatus = "completed"
	PostStatusNoShow    PostStatus = "no_show"
)

// Party identifies which side of a meeting a caller acts for.
type Party string

const (
	PartyStudent Party = "student"
	PartyOBOG    Party = "obog"
)

// PartySide holds the fields only one party may write. Keeping the two sides
// disjoint lets both parties act concurrently without clobbering each other.
type PartySide struct {
	TermsAccepted              bool        `db:"terms_accepted" json:"terms_accepted"`
	PostStatus                 *PostStatus `db:"post_status" json:"post_status,omitempty"`
	AdditionalQuestionAnswered bool        `db:"additional_question_answered" json:"additional_question_answered"`
}

// Reported reports whether this side has filed a post-meeting report.
func (s PartySide) Reported() bool {
	return s.PostStatus != nil
}

// Meeting is the finer lifecycle riding on a booking (or a thread-initiated meeting).
type Meeting struct {
	ID                 string        `db:"id" json:"id"`
	BookingID          *string       `db:"booking_id" json:"booking_id,omitempty"`
	ThreadID           string        `db:"thread_id" json:"thread_id"`
	StudentID          string        `db:"student_id" json:"student_id"`
	ObogID             string        `db:"obog_id" json:"obog_id"`
	Status             MeetingStatus `db:"status" json:"status"`
	Version            int           `db:"version" json:"version"`
	Student            PartySide     `db:"student" json:"student"`
	Obog               PartySide     `db:"obog" json:"obog"`
	CancelledAt        *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelledBy        *string       `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancellationReason *string       `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// PartyOf returns which side userID acts for.
func (m *Meeting) PartyOf(userID string) (Party, bool) {
	switch {
	case userID == "":
		return "", false
	case userID == m.StudentID:
		return PartyStudent, true
	case userID == m.ObogID:
		return PartyOBOG, true
	}
	return "", false
}

// Side returns a pointer to the given party's side.
func (m *Meeting) Side(p Party) *PartySide {
	if p == PartyStudent {
		return &m.Student
	}
	return &m.Obog
}

// BothTermsAccepted reports whether both parties accepted the meeting terms.
func (m *Meeting) BothTermsAccepted() bool {
	return m.Student.TermsAccepted && m.Obog.TermsAccepted
}

// AnyReported reports whether either party filed a post-meeting report.
func (m *Meeting) AnyReported() bool {
	return m.Student.Reported() || m.Obog.Reported()
}

// Counterpart returns the other participant's ID.
func (m *Meeting) Counterpart(p Party) string {
	if p == PartyStudent {
		return m.ObogID
	}
	return m.StudentID
}

// MeetingReport is a flattened meeting row used for moderation exports.
type MeetingReport struct {
	MeetingID         string        `db:"meeting_id"`
	BookingID         *string       `db:"booking_id"`
	Slot              *string       `db:"slot"`
	StudentID         string        `db:"student_id"`
	StudentName       string        `db:"student_name"`
	ObogID            string        `db:"obog_id"`
	ObogName          string        `db:"obog_name"`
	Status            MeetingStatus `db:"status"`
	StudentPostStatus *PostStatus   `db:"student_post_status"`
	ObogPostStatus    *PostStatus   `db:"obog_post_status"`
	StudentStrikes    int           `db:"student_strikes"`
	UpdatedAt         time.Time     `db:"updated_at"`
}

// MeetingReportFilter narrows moderation exports.
type MeetingReportFilter struct {
	OnlyDisputed bool
	Since        *time.Time
}
