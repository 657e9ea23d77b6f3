package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"checkin-system/internal/retry"
	"checkin-system/internal/services/notify"
	"checkin-system/internal/status"
	"checkin-system/internal/store"
	"checkin-system/models"
	"checkin-system/monitoring"

	"github.com/google/uuid"
)

// DisplayPublisher pushes call events to the display boards of an activity.
type DisplayPublisher interface {
	PublishDisplay(ctx context.Context, update models.DisplayUpdate) error
}

type nopDisplay struct{}

func (nopDisplay) PublishDisplay(context.Context, models.DisplayUpdate) error { return nil }

type CallResult struct {
	Channel      models.QueueChannel  `json:"channel"`
	Registration *models.Registration `json:"registration,omitempty"`
}

// Dispatcher drives the service channels of a queue: calling the next
// waiting ticket, recalls, out-of-order inserts and resets.
type Dispatcher struct {
	store    store.Store
	retrier  *retry.Retrier
	notifier notify.Notifier
	display  DisplayPublisher
	monitor  *monitoring.Monitor

	now       func() time.Time
	newPingID func() string
}

type DispatcherOption func(*Dispatcher)

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func WithPingIDs(gen func() string) DispatcherOption {
	return func(d *Dispatcher) { d.newPingID = gen }
}

func NewDispatcher(s store.Store, cfg retry.Config, notifier notify.Notifier, display DisplayPublisher, monitor *monitoring.Monitor, opts ...DispatcherOption) *Dispatcher {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if display == nil {
		display = nopDisplay{}
	}
	if monitor == nil {
		monitor = monitoring.NewMonitor()
	}
	d := &Dispatcher{
		store:     s,
		retrier:   retry.New(cfg),
		notifier:  notifier,
		display:   display,
		monitor:   monitor,
		now:       time.Now,
		newPingID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CallNext calls the lowest numbered checked-in ticket of the channel's
// course that has not been called yet.
func (d *Dispatcher) CallNext(ctx context.Context, channelID string) (*CallResult, error) {
	var (
		res     *CallResult
		waiting int
	)
	err := d.run(ctx, func(tx store.Tx) error {
		ch, err := tx.Channel(channelID)
		if err != nil {
			return notFound(err)
		}
		if ch.ServingCourse == "" {
			return status.ErrConfiguration
		}

		candidates, err := tx.FindRegistrations(store.RegistrationQuery{
			ActivityID:   ch.ActivityID,
			Course:       ch.ServingCourse,
			Statuses:     []models.RegistrationStatus{models.StatusCheckedIn},
			Called:       store.UncalledOnly,
			TicketedOnly: true,
		})
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return status.ErrQueueEmpty
		}
		sortByQueueNumber(candidates)

		res, err = d.call(tx, ch, candidates[0])
		waiting = len(candidates) - 1
		return err
	})
	d.monitor.TrackCall("call_next", activityOf(res), callResult(err))
	if err != nil {
		d.logFailure("call next", err, "channel_id", channelID)
		return nil, err
	}
	d.monitor.SetWaiting(res.Channel.ActivityID, res.Channel.ServingCourse, waiting)

	slog.Info("Queue called", "channel_id", channelID, "ticket", res.Registration.DisplayQueueNumber)
	d.announce(ctx, "call", notify.TemplateCalled, res)
	return res, nil
}

// Recall re-announces the channel's current ticket under a fresh ping id.
// The registration is not modified.
func (d *Dispatcher) Recall(ctx context.Context, channelID string) (*CallResult, error) {
	var res *CallResult
	err := d.run(ctx, func(tx store.Tx) error {
		ch, err := tx.Channel(channelID)
		if err != nil {
			return notFound(err)
		}
		if ch.CurrentDisplayQueueNumber == "" {
			return status.ErrNothingToRecall
		}

		reg, err := currentRegistration(tx, ch)
		if err != nil {
			return err
		}

		ch.PingID = d.newPingID()
		if err := tx.SaveChannel(ch); err != nil {
			return err
		}
		res = &CallResult{Channel: *ch, Registration: reg}
		return nil
	})
	d.monitor.TrackCall("recall", activityOf(res), callResult(err))
	if err != nil {
		d.logFailure("recall", err, "channel_id", channelID)
		return nil, err
	}

	slog.Info("Queue recalled", "channel_id", channelID, "ticket", res.Channel.CurrentDisplayQueueNumber)
	d.announce(ctx, "recall", notify.TemplateRecalled, res)
	return res, nil
}

// Insert calls a specific checked-in ticket out of order.
func (d *Dispatcher) Insert(ctx context.Context, channelID, displayQueueNumber string) (*CallResult, error) {
	var res *CallResult
	err := d.run(ctx, func(tx store.Tx) error {
		ch, err := tx.Channel(channelID)
		if err != nil {
			return notFound(err)
		}

		matches, err := tx.FindRegistrations(store.RegistrationQuery{
			ActivityID:         ch.ActivityID,
			DisplayQueueNumber: displayQueueNumber,
			Statuses:           []models.RegistrationStatus{models.StatusCheckedIn},
			Called:             store.UncalledOnly,
		})
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("%w: no waiting ticket %s", status.ErrNotFound, displayQueueNumber)
		}

		res, err = d.call(tx, ch, matches[0])
		return err
	})
	d.monitor.TrackCall("insert", activityOf(res), callResult(err))
	if err != nil {
		d.logFailure("insert", err, "channel_id", channelID, "ticket", displayQueueNumber)
		return nil, err
	}

	slog.Info("Queue inserted", "channel_id", channelID, "ticket", displayQueueNumber)
	d.announce(ctx, "call", notify.TemplateCalled, res)
	return res, nil
}

// ResetCalled puts every called but unfinished registrant of the activity
// back in line. It returns how many were reset.
func (d *Dispatcher) ResetCalled(ctx context.Context, activityID string) (int, error) {
	var count int
	err := d.run(ctx, func(tx store.Tx) error {
		if _, err := tx.Activity(activityID); err != nil {
			return notFound(err)
		}

		called, err := tx.FindRegistrations(store.RegistrationQuery{
			ActivityID: activityID,
			Statuses:   []models.RegistrationStatus{models.StatusCheckedIn},
			Called:     store.CalledOnly,
		})
		if err != nil {
			return err
		}
		for _, r := range called {
			r.CalledAt = nil
			if err := tx.SaveRegistration(r); err != nil {
				return err
			}
		}
		count = len(called)
		return nil
	})
	d.monitor.TrackCall("reset_called", activityID, callResult(err))
	if err != nil {
		d.logFailure("reset called", err, "activity_id", activityID)
		return 0, err
	}

	slog.Info("Called registrations reset", "activity_id", activityID, "count", count)
	return count, nil
}

// AssignCourse points a channel at a course and clears its current call.
// An empty course returns the channel to idle.
func (d *Dispatcher) AssignCourse(ctx context.Context, channelID, course string) (*models.QueueChannel, error) {
	var out *models.QueueChannel
	err := d.run(ctx, func(tx store.Tx) error {
		ch, err := tx.Channel(channelID)
		if err != nil {
			return notFound(err)
		}
		ch.ServingCourse = course
		ch.ClearCurrent()
		if err := tx.SaveChannel(ch); err != nil {
			return err
		}
		out = ch
		return nil
	})
	if err != nil {
		d.logFailure("assign course", err, "channel_id", channelID)
		return nil, err
	}
	return out, nil
}

// Board is the read model behind a passive display: every channel of the
// activity plus the number of tickets waiting per course.
type Board struct {
	ActivityID string                `json:"activity_id"`
	Channels   []models.QueueChannel `json:"channels"`
	Waiting    map[string]int        `json:"waiting"`
}

func (d *Dispatcher) Board(ctx context.Context, activityID string) (*Board, error) {
	board := &Board{ActivityID: activityID, Waiting: map[string]int{}}
	err := d.store.RunInTransaction(ctx, func(tx store.Tx) error {
		if _, err := tx.Activity(activityID); err != nil {
			return notFound(err)
		}
		channels, err := tx.FindChannels(activityID)
		if err != nil {
			return err
		}
		for _, ch := range channels {
			board.Channels = append(board.Channels, *ch)
		}

		waiting, err := tx.FindRegistrations(store.RegistrationQuery{
			ActivityID:   activityID,
			Statuses:     []models.RegistrationStatus{models.StatusCheckedIn},
			Called:       store.UncalledOnly,
			TicketedOnly: true,
		})
		if err != nil {
			return err
		}
		for _, r := range waiting {
			board.Waiting[r.Course]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

func (d *Dispatcher) call(tx store.Tx, ch *models.QueueChannel, reg *models.Registration) (*CallResult, error) {
	calledAt := d.now().UTC()
	reg.CalledAt = &calledAt
	if err := tx.SaveRegistration(reg); err != nil {
		return nil, err
	}

	ch.CurrentQueueNumber = reg.QueueNumber
	ch.CurrentDisplayQueueNumber = reg.DisplayQueueNumber
	ch.CurrentStudentName = reg.Name
	ch.PingID = d.newPingID()
	if err := tx.SaveChannel(ch); err != nil {
		return nil, err
	}
	return &CallResult{Channel: *ch, Registration: reg}, nil
}

func (d *Dispatcher) run(ctx context.Context, fn func(tx store.Tx) error) error {
	result := d.retrier.Do(ctx, func(ctx context.Context) error {
		return retryable(d.store.RunInTransaction(ctx, fn))
	})
	return contention(result)
}

// announce runs after commit. Failures are logged and never undo the call.
func (d *Dispatcher) announce(ctx context.Context, kind, template string, res *CallResult) {
	ch := res.Channel
	update := models.DisplayUpdate{
		Type:               kind,
		ActivityID:         ch.ActivityID,
		ChannelID:          ch.ID,
		ChannelNumber:      ch.ChannelNumber,
		ChannelName:        ch.ChannelName,
		Course:             ch.ServingCourse,
		QueueNumber:        ch.CurrentQueueNumber,
		DisplayQueueNumber: ch.CurrentDisplayQueueNumber,
		StudentName:        ch.CurrentStudentName,
		PingID:             ch.PingID,
	}
	if err := d.display.PublishDisplay(ctx, update); err != nil {
		slog.Warn("Display update failed", "error", err, "channel_id", ch.ID, "ping_id", ch.PingID)
	}

	if res.Registration == nil || res.Registration.ContactID == "" {
		return
	}
	channelName := ch.ChannelName
	if channelName == "" {
		channelName = fmt.Sprintf("channel %d", ch.ChannelNumber)
	}
	msg := notify.Message{
		Template: template,
		Params: map[string]string{
			"ticket":  ch.CurrentDisplayQueueNumber,
			"channel": channelName,
		},
	}
	err := d.notifier.Send(ctx, res.Registration.ContactID, msg)
	d.monitor.TrackNotification(d.notifier.Name(), err)
	if err != nil {
		slog.Warn("Queue notification failed", "error", err, "registration_id", res.Registration.ID)
	}
}

func (d *Dispatcher) logFailure(op string, err error, args ...any) {
	if status.Informational(err) {
		slog.Info("Queue "+op+" skipped", append([]any{"reason", err}, args...)...)
		return
	}
	slog.Error("Failed to "+op, append([]any{"error", err}, args...)...)
}

// currentRegistration finds the registrant the channel is serving. Only
// called registrants who used their ticket qualify, since an imported label
// can still sit on someone who never checked in. A match on both label and
// number wins over a match on either.
func currentRegistration(tx store.Tx, ch *models.QueueChannel) (*models.Registration, error) {
	regs, err := tx.FindRegistrations(store.RegistrationQuery{
		ActivityID: ch.ActivityID,
		Statuses:   models.ConsumedStatuses,
		Called:     store.CalledOnly,
	})
	if err != nil {
		return nil, err
	}

	var best *models.Registration
	bestScore := 0
	for _, r := range regs {
		score := 0
		if r.DisplayQueueNumber == ch.CurrentDisplayQueueNumber {
			score += 2
		}
		if ch.CurrentQueueNumber > 0 && r.QueueNumber == ch.CurrentQueueNumber &&
			(ch.ServingCourse == "" || r.Course == ch.ServingCourse) {
			score++
		}
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	return best, nil
}

func sortByQueueNumber(regs []*models.Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		ni, _ := ticketNumber(regs[i])
		nj, _ := ticketNumber(regs[j])
		if ni != nj {
			return ni < nj
		}
		return regs[i].ID < regs[j].ID
	})
}

func activityOf(res *CallResult) string {
	if res == nil {
		return ""
	}
	return res.Channel.ActivityID
}

func callResult(err error) string {
	if status.Informational(err) {
		return "noop"
	}
	return monitoring.Result(err)
}
