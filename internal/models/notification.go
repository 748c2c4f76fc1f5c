package models

import (
	"fmt"
	"time"
)

// NotificationType classifies notifications for client rendering.
type NotificationType string

const (
	NotificationBookingRequest   NotificationType = "booking_request"
	NotificationBookingConfirmed NotificationType = "booking_confirmed"
	NotificationBookingCancelled NotificationType = "booking_cancelled"
	NotificationMeetingCreated   NotificationType = "meeting_created"
	NotificationTermsAccepted    NotificationType = "meeting_terms_accepted"
	NotificationMeetingConfirmed NotificationType = "meeting_confirmed"
	NotificationMeetingReported  NotificationType = "meeting_reported"
	NotificationMeetingCancelled NotificationType = "meeting_cancelled"
	NotificationNewMessage       NotificationType = "new_message"
)

// Notification is a fire-and-forget record addressed to one user.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Body      string           `db:"body" json:"body"`
	Link      string           `db:"link" json:"link"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// ThreadLink is the client deep link to a message thread.
func ThreadLink(threadID string) string {
	return fmt.Sprintf("/messages/%s", threadID)
}
