package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrActiveSlotTaken reports that another pending or confirmed booking holds the (mentor, slot) pair.
	ErrActiveSlotTaken = errors.New("active booking already holds slot")
	// ErrOpenMeetingExists reports that the thread already has an unconfirmed or confirmed meeting.
	ErrOpenMeetingExists = errors.New("thread already has an open meeting")
	// ErrDuplicateReview reports a second review for the same (reviewer, reviewed) pair.
	ErrDuplicateReview = errors.New("review already exists")
	// ErrStateChanged reports that a guarded status update matched no row.
	ErrStateChanged = errors.New("record state changed")
)

const (
	constraintActiveSlot  = "bookings_active_slot_uniq"
	constraintOpenMeeting = "meetings_open_thread_uniq"
	constraintReviewPair  = "reviews_pair_uniq"
	pqUniqueViolation     = "23505"
	pqInvalidTextRepr     = "22P02"
)

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

// isNotFound treats a malformed identifier like a missing row: no UUID
// column can hold it, so no record matches.
func isNotFound(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqInvalidTextRepr
}
