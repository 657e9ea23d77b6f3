package models

import (
	"time"
)

type RegistrationStatus string

const (
	StatusRegistered   RegistrationStatus = "registered"
	StatusCheckedIn    RegistrationStatus = "checked-in"
	StatusInterviewing RegistrationStatus = "interviewing"
	StatusCompleted    RegistrationStatus = "completed"
	StatusCancelled    RegistrationStatus = "cancelled"
	StatusWaitlisted   RegistrationStatus = "waitlisted"
)

// ConsumedStatuses are the statuses of a registrant who has already used
// their ticket at the venue.
var ConsumedStatuses = []RegistrationStatus{StatusCheckedIn, StatusInterviewing, StatusCompleted}

func (s RegistrationStatus) Consumed() bool {
	for _, c := range ConsumedStatuses {
		if s == c {
			return true
		}
	}
	return false
}

type Registration struct {
	ID         string             `json:"id"`
	ActivityID string             `json:"activity_id"`
	Course     string             `json:"course"`
	NationalID string             `json:"national_id"`
	Name       string             `json:"name"`
	ContactID  string             `json:"contact_id,omitempty"` // linked messaging identity
	Status     RegistrationStatus `json:"status"`

	QueueNumber        int        `json:"queue_number"` // 0 when no number was issued
	DisplayQueueNumber string     `json:"display_queue_number"`
	SeatNumber         string     `json:"seat_number"`
	CalledAt           *time.Time `json:"called_at"`
	ImportOrder        int        `json:"import_order"`
}

// HasTicket reports whether the registration carries any issued or
// pre-assigned ticket.
func (r *Registration) HasTicket() bool {
	return r.QueueNumber > 0 || r.DisplayQueueNumber != ""
}
