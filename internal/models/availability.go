package models

import (
	"strings"
	"time"
)

// Availability is a mentor's manually maintained list of offerable slot tokens.
type Availability struct {
	MentorID  string    `db:"mentor_id" json:"mentor_id"`
	TimesCSV  string    `db:"times_csv" json:"times_csv"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Slots returns the trimmed, non-empty slot tokens in declaration order.
func (a *Availability) Slots() []string {
	if a == nil {
		return nil
	}
	return ParseSlotTokens(a.TimesCSV)
}

// Offers reports whether slot is literally one of the offered tokens.
func (a *Availability) Offers(slot string) bool {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return false
	}
	for _, token := range a.Slots() {
		if token == slot {
			return true
		}
	}
	return false
}

// ParseSlotTokens splits a comma-separated availability string into tokens.
func ParseSlotTokens(csv string) []string {
	parts := strings.Split(csv, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if token := strings.TrimSpace(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
