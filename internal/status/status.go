package status

import "errors"

var (
	ErrNotFound         = errors.New("checkin: record not found")
	ErrAlreadyProcessed = errors.New("checkin: registration already processed")
	ErrCancelled        = errors.New("checkin: registration is cancelled")
	ErrMissingCourse    = errors.New("checkin: registration has no course")
	ErrContention       = errors.New("checkin: too much contention, try again")
	ErrInvalidToken     = errors.New("checkin: invalid qr token")

	ErrConfiguration   = errors.New("queue: channel has no course assigned")
	ErrQueueEmpty      = errors.New("queue: no waiting tickets")
	ErrNothingToRecall = errors.New("queue: nothing to recall")

	ErrNoSeatLayout         = errors.New("seat: activity type has no seat layout")
	ErrAssignmentInProgress = errors.New("seat: assignment already running for activity")
	ErrCapacityExceeded     = errors.New("seat: roster exceeds seat capacity")
)

// Informational reports whether err is an expected "nothing to do" outcome
// that should not be logged as a failure.
func Informational(err error) bool {
	return errors.Is(err, ErrQueueEmpty) ||
		errors.Is(err, ErrNothingToRecall) ||
		errors.Is(err, ErrAlreadyProcessed)
}
