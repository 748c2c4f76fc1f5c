package models

import "time"

// Review is a one-time rating left by a reviewer about another user.
type Review struct {
	ID         string    `db:"id" json:"id"`
	ReviewerID string    `db:"reviewer_id" json:"reviewer_id"`
	ReviewedID string    `db:"reviewed_id" json:"reviewed_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ReviewSummary aggregates ratings about a user.
type ReviewSummary struct {
	Count   int     `db:"count" json:"count"`
	Average float64 `db:"average" json:"average"`
}
