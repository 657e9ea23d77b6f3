package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"checkin-system/internal/retry"
	"checkin-system/internal/services/seating"
	"checkin-system/internal/status"
	"checkin-system/internal/store"
	"checkin-system/models"
	"checkin-system/monitoring"
	"checkin-system/utils"
)

type SortKey string

const (
	SortByImportOrder SortKey = "import_order"
	SortByName        SortKey = "name"
)

type AutoAssignOptions struct {
	SortBy SortKey `json:"sort_by"`
	// Strict fails the whole run when the roster does not fit.
	Strict bool `json:"strict"`
}

type SeatAssignmentResult struct {
	ActivityID  string               `json:"activity_id"`
	Layout      string               `json:"layout"`
	Assignments []seating.Assignment `json:"assignments"`
	Unseated    []string             `json:"unseated"`
	// Overwritten counts registrants whose previous seat changed.
	Overwritten int `json:"overwritten"`
}

type SeatService struct {
	store   store.Store
	locker  utils.Locker
	lockTTL time.Duration
	retrier *retry.Retrier
	monitor *monitoring.Monitor
}

func NewSeatService(s store.Store, locker utils.Locker, lockTTL time.Duration, cfg retry.Config, monitor *monitoring.Monitor) *SeatService {
	if monitor == nil {
		monitor = monitoring.NewMonitor()
	}
	return &SeatService{
		store:   s,
		locker:  locker,
		lockTTL: lockTTL,
		retrier: retry.New(cfg),
		monitor: monitor,
	}
}

func seatLockKey(activityID string) string {
	return fmt.Sprintf("seat-assign:%s", activityID)
}

// AutoAssign seats the whole roster of an activity in one write. Any seat
// held before is overwritten. Only one run per activity may be in flight.
func (s *SeatService) AutoAssign(ctx context.Context, activityID string, opts AutoAssignOptions) (*SeatAssignmentResult, error) {
	start := time.Now()

	unlock, ok, err := s.locker.Acquire(ctx, seatLockKey(activityID), s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.ErrAssignmentInProgress
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to release seat lock", "error", err, "activity_id", activityID)
		}
	}()

	var res *SeatAssignmentResult
	result := s.retrier.Do(ctx, func(ctx context.Context) error {
		err := s.store.RunInTransaction(ctx, func(tx store.Tx) error {
			var err error
			res, err = s.assign(tx, activityID, opts)
			return err
		})
		return retryable(err)
	})
	if err := contention(result); err != nil {
		slog.Error("Seat assignment failed", "error", err, "activity_id", activityID)
		return nil, err
	}

	s.monitor.TrackSeatAssignment(activityID, len(res.Unseated), time.Since(start))
	if len(res.Unseated) > 0 {
		slog.Warn("Roster exceeds seat capacity", "activity_id", activityID, "unseated", len(res.Unseated))
	}
	slog.Info("Seats assigned", "activity_id", activityID, "layout", res.Layout, "assigned", len(res.Assignments), "overwritten", res.Overwritten)
	return res, nil
}

func (s *SeatService) assign(tx store.Tx, activityID string, opts AutoAssignOptions) (*SeatAssignmentResult, error) {
	activity, err := tx.Activity(activityID)
	if err != nil {
		return nil, notFound(err)
	}
	layout, err := seating.LayoutFor(activity.Type)
	if err != nil {
		return nil, err
	}

	roster, err := seatRoster(tx, activityID)
	if err != nil {
		return nil, err
	}
	sortRoster(roster, opts.SortBy)

	assignments, unseated := seating.AutoAssign(layout, roster)
	if opts.Strict && len(unseated) > 0 {
		return nil, fmt.Errorf("%w: %d registrants, %d seats", status.ErrCapacityExceeded, len(roster), len(assignments))
	}

	res := &SeatAssignmentResult{
		ActivityID:  activityID,
		Layout:      layout.Name(),
		Assignments: assignments,
		Unseated:    unseated,
	}

	seatOf := make(map[string]string, len(assignments))
	for _, a := range assignments {
		seatOf[a.RegistrationID] = a.Seat
	}
	for _, r := range roster {
		seat := seatOf[r.ID]
		if r.SeatNumber == seat {
			continue
		}
		if r.SeatNumber != "" {
			res.Overwritten++
		}
		r.SeatNumber = seat
		if err := tx.SaveRegistration(r); err != nil {
			return nil, err
		}
	}

	// Seats left on cancelled or waitlisted registrants would collide with
	// the new map.
	excluded, err := tx.FindRegistrations(store.RegistrationQuery{
		ActivityID: activityID,
		Statuses:   []models.RegistrationStatus{models.StatusCancelled, models.StatusWaitlisted},
	})
	if err != nil {
		return nil, err
	}
	for _, r := range excluded {
		if r.SeatNumber == "" {
			continue
		}
		r.SeatNumber = ""
		if err := tx.SaveRegistration(r); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// SeatingChart renders the current seat map of an activity.
func (s *SeatService) SeatingChart(ctx context.Context, activityID string) ([]seating.ChartRow, error) {
	var rows []seating.ChartRow
	err := s.store.RunInTransaction(ctx, func(tx store.Tx) error {
		activity, err := tx.Activity(activityID)
		if err != nil {
			return notFound(err)
		}
		layout, err := seating.LayoutFor(activity.Type)
		if err != nil {
			return err
		}
		roster, err := seatRoster(tx, activityID)
		if err != nil {
			return err
		}
		rows = seating.Chart(layout, roster)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// seatRoster is everyone entitled to a seat: cancelled and waitlisted
// registrants are left out.
func seatRoster(tx store.Tx, activityID string) ([]*models.Registration, error) {
	return tx.FindRegistrations(store.RegistrationQuery{
		ActivityID:      activityID,
		ExcludeStatuses: []models.RegistrationStatus{models.StatusCancelled, models.StatusWaitlisted},
	})
}

func sortRoster(regs []*models.Registration, key SortKey) {
	sort.SliceStable(regs, func(i, j int) bool {
		a, b := regs[i], regs[j]
		if key == SortByName {
			na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if na != nb {
				return na < nb
			}
		} else if a.ImportOrder != b.ImportOrder {
			return a.ImportOrder < b.ImportOrder
		}
		return a.ID < b.ID
	})
}
