package models

import "time"

// Thread is the two-party message log a booking is attached to.
// Participants are stored ordered so the pair is unique regardless of who opened it.
type Thread struct {
	ID              string    `db:"id" json:"id"`
	ParticipantLow  string    `db:"participant_low" json:"participant_low"`
	ParticipantHigh string    `db:"participant_high" json:"participant_high"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// OrderedPair returns the two participant IDs sorted ascending.
func OrderedPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// Has reports whether userID participates in the thread.
func (t *Thread) Has(userID string) bool {
	return userID != "" && (t.ParticipantLow == userID || t.ParticipantHigh == userID)
}

// Other returns the participant that is not userID.
func (t *Thread) Other(userID string) string {
	if t.ParticipantLow == userID {
		return t.ParticipantHigh
	}
	return t.ParticipantLow
}

// ThreadSummary is a thread as listed for one participant.
type ThreadSummary struct {
	Thread
	Counterpart   PublicProfile `db:"counterpart" json:"counterpart"`
	LastMessageAt *time.Time    `db:"last_message_at" json:"last_message_at,omitempty"`
}

// Message is an append-only entry in a thread.
type Message struct {
	ID        string    `db:"id" json:"id"`
	ThreadID  string    `db:"thread_id" json:"thread_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChargeEventMessageSent marks a paid message sent by a company account.
const ChargeEventMessageSent = "message_sent"

// ChargeEvent is a billable action handed to the external payment collaborator.
type ChargeEvent struct {
	ID          string    `db:"id" json:"id"`
	Kind        string    `db:"kind" json:"kind"`
	ThreadID    string    `db:"thread_id" json:"thread_id"`
	MessageID   string    `db:"message_id" json:"message_id"`
	PayerID     string    `db:"payer_id" json:"payer_id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
