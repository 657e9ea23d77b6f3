// Package store defines the transactional record store used by the check-in
// services. Every read and write happens inside RunInTransaction so that a
// counter and the registration it is issued to change together or not at all.
package store

import (
	"context"
	"errors"

	"checkin-system/models"
)

var (
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when a transaction lost a race with a
	// concurrent writer. The whole transaction may be retried.
	ErrConflict = errors.New("store: transaction conflict")
)

type CalledFilter int

const (
	CalledAny CalledFilter = iota
	CalledOnly
	UncalledOnly
)

// RegistrationQuery selects registrations of one activity. Zero-valued
// fields do not filter.
type RegistrationQuery struct {
	ActivityID         string
	Course             string
	Statuses           []models.RegistrationStatus
	ExcludeStatuses    []models.RegistrationStatus
	DisplayQueueNumber string
	QueueNumber        int
	Called             CalledFilter
	TicketedOnly       bool // queue number or display number present
	ExcludeID          string
}

type Tx interface {
	Activity(id string) (*models.Activity, error)
	SaveActivity(a *models.Activity) error

	Registration(id string) (*models.Registration, error)
	FindRegistrations(q RegistrationQuery) ([]*models.Registration, error)
	SaveRegistration(r *models.Registration) error

	Channel(id string) (*models.QueueChannel, error)
	// FindChannels lists the channels of an activity by channel number.
	FindChannels(activityID string) ([]*models.QueueChannel, error)
	SaveChannel(c *models.QueueChannel) error
}

type Store interface {
	// RunInTransaction runs fn in a serializable transaction. If fn returns an
	// error nothing it wrote is kept.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// Matches reports whether r satisfies q. Store implementations that filter
// in memory share it so both backends agree on query semantics.
func (q RegistrationQuery) Matches(r *models.Registration) bool {
	if r.ActivityID != q.ActivityID {
		return false
	}
	if q.Course != "" && r.Course != q.Course {
		return false
	}
	if len(q.Statuses) > 0 && !containsStatus(q.Statuses, r.Status) {
		return false
	}
	if containsStatus(q.ExcludeStatuses, r.Status) {
		return false
	}
	if q.DisplayQueueNumber != "" && r.DisplayQueueNumber != q.DisplayQueueNumber {
		return false
	}
	if q.QueueNumber > 0 && r.QueueNumber != q.QueueNumber {
		return false
	}
	switch q.Called {
	case CalledOnly:
		if r.CalledAt == nil {
			return false
		}
	case UncalledOnly:
		if r.CalledAt != nil {
			return false
		}
	}
	if q.TicketedOnly && !r.HasTicket() {
		return false
	}
	if q.ExcludeID != "" && r.ID == q.ExcludeID {
		return false
	}
	return true
}

func containsStatus(list []models.RegistrationStatus, s models.RegistrationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
