package dto

import (
	"time"

	"github.com/Noah-Truong/Senpai-Career-sub002/internal/models"
)

// CreateMeetingRequest opens a meeting on an existing thread.
type CreateMeetingRequest struct {
	ThreadID string `json:"threadId" validate:"required"`
}

// CancelRequest carries an optional cancellation reason.
type CancelRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

// MeetingView merges both parties' sides of a meeting into one read model.
type MeetingView struct {
	ID                                string               `json:"id"`
	BookingID                         *string              `json:"bookingId,omitempty"`
	ThreadID                          string               `json:"threadId"`
	ThreadLink                        string               `json:"threadLink"`
	StudentID                         string               `json:"studentId"`
	ObogID                            string               `json:"obogId"`
	Status                            models.MeetingStatus `json:"status"`
	Version                           int                  `json:"version"`
	StudentTermsAccepted              bool                 `json:"studentTermsAccepted"`
	ObogTermsAccepted                 bool                 `json:"obogTermsAccepted"`
	StudentPostStatus                 *models.PostStatus   `json:"studentPostStatus,omitempty"`
	ObogPostStatus                    *models.PostStatus   `json:"obogPostStatus,omitempty"`
	StudentAdditionalQuestionAnswered bool                 `json:"studentAdditionalQuestionAnswered"`
	CancelledAt                       *time.Time           `json:"cancelledAt,omitempty"`
	CancelledBy                       *string              `json:"cancelledBy,omitempty"`
	CancellationReason                *string              `json:"cancellationReason,omitempty"`
	CreatedAt                         time.Time            `json:"createdAt"`
	UpdatedAt                         time.Time            `json:"updatedAt"`

	// Party is the viewer's side, empty for admins.
	Party models.Party `json:"party,omitempty"`
	// ReviewUnlocked is set once the student reported the meeting completed.
	ReviewUnlocked bool `json:"reviewUnlocked"`
	// EvaluationPrompt asks the viewer for post-meeting feedback.
	EvaluationPrompt bool `json:"evaluationPrompt"`
}

// NewMeetingView builds the view of m as seen by viewerID.
func NewMeetingView(m *models.Meeting, viewerID string) MeetingView {
	view := MeetingView{
		ID:                                m.ID,
		BookingID:                         m.BookingID,
		ThreadID:                          m.ThreadID,
		ThreadLink:                        models.ThreadLink(m.ThreadID),
		StudentID:                         m.StudentID,
		ObogID:                            m.ObogID,
		Status:                            m.Status,
		Version:                           m.Version,
		StudentTermsAccepted:              m.Student.TermsAccepted,
		ObogTermsAccepted:                 m.Obog.TermsAccepted,
		StudentPostStatus:                 m.Student.PostStatus,
		ObogPostStatus:                    m.Obog.PostStatus,
		StudentAdditionalQuestionAnswered: m.Student.AdditionalQuestionAnswered,
		CancelledAt:                       m.CancelledAt,
		CancelledBy:                       m.CancelledBy,
		CancellationReason:                m.CancellationReason,
		CreatedAt:                         m.CreatedAt,
		UpdatedAt:                         m.UpdatedAt,
	}
	view.ReviewUnlocked = isCompleted(m.Student.PostStatus)
	if party, ok := m.PartyOf(viewerID); ok {
		view.Party = party
		side := m.Side(party)
		view.EvaluationPrompt = isCompleted(side.PostStatus) &&
			!(party == models.PartyStudent && side.AdditionalQuestionAnswered)
	}
	return view
}

func isCompleted(s *models.PostStatus) bool {
	return s != nil && *s == models.PostStatusCompleted
}
