package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"checkin-system/internal/retry"
	"checkin-system/internal/services/notify"
	"checkin-system/internal/status"
	"checkin-system/internal/store"
	"checkin-system/models"
	"checkin-system/monitoring"
)

type Allocation struct {
	RegistrationID     string `json:"registration_id"`
	ActivityID         string `json:"activity_id"`
	Course             string `json:"course"`
	QueueNumber        int    `json:"queue_number"`
	DisplayQueueNumber string `json:"display_queue_number"`
	// Reused is set when the pre-assigned label was kept.
	Reused   bool `json:"reused"`
	Attempts int  `json:"-"`
}

// Allocator issues queue numbers at check-in. The counter update and the
// registration update commit together; a lost race retries the whole read.
type Allocator struct {
	store    store.Store
	retrier  *retry.Retrier
	notifier notify.Notifier
	monitor  *monitoring.Monitor
}

func NewAllocator(s store.Store, cfg retry.Config, notifier notify.Notifier, monitor *monitoring.Monitor) *Allocator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if monitor == nil {
		monitor = monitoring.NewMonitor()
	}
	return &Allocator{
		store:    s,
		retrier:  retry.New(cfg),
		notifier: notifier,
		monitor:  monitor,
	}
}

func (a *Allocator) Allocate(ctx context.Context, activityID, registrationID string) (*Allocation, error) {
	start := time.Now()

	var (
		alloc    *Allocation
		activity *models.Activity
		contact  string
	)
	result := a.retrier.Do(ctx, func(ctx context.Context) error {
		err := a.store.RunInTransaction(ctx, func(tx store.Tx) error {
			var err error
			alloc, activity, contact, err = a.allocate(tx, activityID, registrationID)
			return err
		})
		return retryable(err)
	})

	err := contention(result)
	a.monitor.TrackAllocation(activityID, allocationResult(err), result.Attempts, time.Since(start))
	if err != nil {
		if status.Informational(err) {
			slog.Info("Check-in skipped", "reason", err, "activity_id", activityID, "registration_id", registrationID)
		} else {
			slog.Error("Failed to allocate queue number", "error", err, "activity_id", activityID, "registration_id", registrationID, "attempts", result.Attempts)
		}
		return nil, err
	}
	alloc.Attempts = result.Attempts

	slog.Info("Queue number allocated",
		"activity_id", activityID,
		"registration_id", registrationID,
		"ticket", alloc.DisplayQueueNumber,
		"reused", alloc.Reused,
		"attempts", result.Attempts,
	)

	if contact != "" {
		msg := notify.Message{
			Template: notify.TemplateCheckedIn,
			Params:   map[string]string{"activity": activity.Name, "ticket": alloc.DisplayQueueNumber},
		}
		err := a.notifier.Send(ctx, contact, msg)
		a.monitor.TrackNotification(a.notifier.Name(), err)
		if err != nil {
			slog.Warn("Check-in notification failed", "error", err, "registration_id", registrationID)
		}
	}
	return alloc, nil
}

func (a *Allocator) allocate(tx store.Tx, activityID, registrationID string) (*Allocation, *models.Activity, string, error) {
	reg, err := tx.Registration(registrationID)
	if err != nil {
		return nil, nil, "", notFound(err)
	}
	if reg.ActivityID != activityID {
		return nil, nil, "", fmt.Errorf("%w: registration %s is not in activity %s", status.ErrNotFound, registrationID, activityID)
	}
	if reg.Status.Consumed() {
		return nil, nil, "", status.ErrAlreadyProcessed
	}
	if reg.Status == models.StatusCancelled {
		return nil, nil, "", status.ErrCancelled
	}
	course := strings.TrimSpace(reg.Course)
	if course == "" {
		return nil, nil, "", status.ErrMissingCourse
	}

	activity, err := tx.Activity(activityID)
	if err != nil {
		return nil, nil, "", notFound(err)
	}
	counter := readCounter(activity, reg.Course)

	alloc := &Allocation{
		RegistrationID: reg.ID,
		ActivityID:     activityID,
		Course:         reg.Course,
	}

	if reg.DisplayQueueNumber != "" {
		ticket, reusable, err := preassigned(tx, reg)
		if err != nil {
			return nil, nil, "", err
		}
		if reusable {
			alloc.QueueNumber = ticket.Number
			alloc.DisplayQueueNumber = reg.DisplayQueueNumber
			alloc.Reused = true
		} else {
			slog.Warn("Discarding pre-assigned queue number", "registration_id", reg.ID, "ticket", reg.DisplayQueueNumber)
		}
	}

	if !counter.IsKnown() {
		last, err := recoverCounter(tx, activityID, reg.Course)
		if err != nil {
			return nil, nil, "", err
		}
		slog.Info("Recovered queue counter", "activity_id", activityID, "course", reg.Course, "last", last)
		counter = Known(last)
	}

	next := counter.Last()
	if alloc.Reused {
		if alloc.QueueNumber > next {
			next = alloc.QueueNumber
		}
	} else {
		taken, err := consumedNumbers(tx, reg)
		if err != nil {
			return nil, nil, "", err
		}
		next++
		for taken[next] {
			next++
		}
		alloc.QueueNumber = next
		alloc.DisplayQueueNumber = Ticket{Prefix: CoursePrefix(activity, reg.Course), Number: next}.String()
	}

	activity.SetCounter(reg.Course, next)
	if err := tx.SaveActivity(activity); err != nil {
		return nil, nil, "", err
	}

	reg.Status = models.StatusCheckedIn
	reg.QueueNumber = alloc.QueueNumber
	reg.DisplayQueueNumber = alloc.DisplayQueueNumber
	if err := tx.SaveRegistration(reg); err != nil {
		return nil, nil, "", err
	}
	return alloc, activity, reg.ContactID, nil
}

// preassigned decides whether a label set before check-in can be kept: it
// must parse and no other registrant of the activity may have checked in
// with it.
func preassigned(tx store.Tx, reg *models.Registration) (Ticket, bool, error) {
	ticket, err := ParseTicket(reg.DisplayQueueNumber)
	if err != nil || ticket.Number <= 0 {
		return Ticket{}, false, nil
	}
	holders, err := tx.FindRegistrations(store.RegistrationQuery{
		ActivityID:         reg.ActivityID,
		DisplayQueueNumber: reg.DisplayQueueNumber,
		Statuses:           models.ConsumedStatuses,
		ExcludeID:          reg.ID,
	})
	if err != nil {
		return Ticket{}, false, err
	}
	return ticket, len(holders) == 0, nil
}

// consumedNumbers lists numbers of the course already used by other
// registrants, so a stale counter never hands one out twice.
func consumedNumbers(tx store.Tx, reg *models.Registration) (map[int]bool, error) {
	regs, err := tx.FindRegistrations(store.RegistrationQuery{
		ActivityID:   reg.ActivityID,
		Course:       reg.Course,
		Statuses:     models.ConsumedStatuses,
		TicketedOnly: true,
		ExcludeID:    reg.ID,
	})
	if err != nil {
		return nil, err
	}
	taken := make(map[int]bool, len(regs))
	for _, r := range regs {
		if n, ok := ticketNumber(r); ok {
			taken[n] = true
		}
	}
	return taken, nil
}

func allocationResult(err error) string {
	switch {
	case err == nil:
		return "allocated"
	case errors.Is(err, status.ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, status.ErrContention):
		return "contention"
	default:
		return "error"
	}
}
