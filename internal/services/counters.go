package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"checkin-system/internal/retry"
	"checkin-system/internal/status"
	"checkin-system/internal/store"
	"checkin-system/models"
)

// CounterState is the last issued number of a course, or Unknown when the
// activity has never recorded one. A known zero means nothing was issued.
type CounterState struct {
	known bool
	last  int
}

var Unknown = CounterState{}

func Known(last int) CounterState {
	return CounterState{known: true, last: last}
}

func (c CounterState) IsKnown() bool { return c.known }

func (c CounterState) Last() int { return c.last }

func readCounter(a *models.Activity, course string) CounterState {
	n, ok := a.Counter(course)
	if !ok {
		return Unknown
	}
	return Known(n)
}

// recoverCounter rebuilds a lost counter from the highest number issued to
// any registration of the course.
func recoverCounter(tx store.Tx, activityID, course string) (int, error) {
	regs, err := tx.FindRegistrations(store.RegistrationQuery{
		ActivityID:   activityID,
		Course:       course,
		TicketedOnly: true,
	})
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, r := range regs {
		if n, ok := ticketNumber(r); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

// FirstGap returns the smallest positive integer missing from numbers.
func FirstGap(numbers []int) int {
	seen := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		seen[n] = true
	}
	gap := 1
	for seen[gap] {
		gap++
	}
	return gap
}

type CounterService struct {
	store   store.Store
	retrier *retry.Retrier
}

func NewCounterService(s store.Store, cfg retry.Config) *CounterService {
	return &CounterService{store: s, retrier: retry.New(cfg)}
}

// ResetAllCounters points every course counter at the number just before the
// first unused one, so the next check-in fills the gap. Cancelled
// registrations do not hold their numbers.
func (s *CounterService) ResetAllCounters(ctx context.Context, activityID string) (map[string]int, error) {
	var counters map[string]int

	result := s.retrier.Do(ctx, func(ctx context.Context) error {
		err := s.store.RunInTransaction(ctx, func(tx store.Tx) error {
			activity, err := tx.Activity(activityID)
			if err != nil {
				return notFound(err)
			}

			regs, err := tx.FindRegistrations(store.RegistrationQuery{
				ActivityID:      activityID,
				ExcludeStatuses: []models.RegistrationStatus{models.StatusCancelled},
			})
			if err != nil {
				return err
			}

			issued := make(map[string][]int)
			for course := range activity.QueueCounters {
				issued[course] = nil
			}
			for _, r := range regs {
				if r.Course == "" {
					continue
				}
				if _, ok := issued[r.Course]; !ok {
					issued[r.Course] = nil
				}
				if n, ok := ticketNumber(r); ok {
					issued[r.Course] = append(issued[r.Course], n)
				}
			}

			courses := make([]string, 0, len(issued))
			for course := range issued {
				courses = append(courses, course)
			}
			sort.Strings(courses)

			counters = make(map[string]int, len(issued))
			for _, course := range courses {
				counters[course] = FirstGap(issued[course]) - 1
				activity.SetCounter(course, counters[course])
			}
			return tx.SaveActivity(activity)
		})
		return retryable(err)
	})
	if err := contention(result); err != nil {
		slog.Error("Failed to reset queue counters", "error", err, "activity_id", activityID)
		return nil, err
	}

	slog.Info("Queue counters reset", "activity_id", activityID, "counters", counters)
	return counters, nil
}

// retryable marks every error except a store conflict as final.
func retryable(err error) error {
	if err == nil || errors.Is(err, store.ErrConflict) {
		return err
	}
	return retry.Permanent(err)
}

func contention(result *retry.Result) error {
	if errors.Is(result.Err, retry.ErrMaxAttemptsExceeded) {
		return fmt.Errorf("%w: %v", status.ErrContention, result.LastError)
	}
	return result.Err
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", status.ErrNotFound, err)
	}
	return err
}
