package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"checkin-system/internal/status"
	"checkin-system/internal/store/memstore"
	"checkin-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type dispatcherFixture struct {
	store    *memstore.Store
	notifier *fakeNotifier
	display  *fakeDisplay
	d        *Dispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()

	s := newTestStore()
	s.PutChannel(models.QueueChannel{
		ID:            "ch-1",
		ActivityID:    testActivity,
		ChannelNumber: 1,
		ChannelName:   "Room 1",
		ServingCourse: "Anesthesia",
	})

	pings := 0
	f := &dispatcherFixture{store: s, notifier: &fakeNotifier{}, display: &fakeDisplay{}}
	f.d = NewDispatcher(s, fastRetry(), f.notifier, f.display, nil,
		WithClock(func() time.Time { return fixedNow }),
		WithPingIDs(func() string {
			pings++
			return fmt.Sprintf("ping-%d", pings)
		}),
	)
	return f
}

func TestCallNext_SmallestNumberFirst(t *testing.T) {
	f := newDispatcherFixture(t)
	addRegistration(f.store, "r7", checkedIn(7))
	addRegistration(f.store, "r2", checkedIn(2))
	addRegistration(f.store, "r5", checkedIn(5))
	addRegistration(f.store, "other-course", func(r *models.Registration) {
		checkedIn(1)(r)
		r.Course = "Nursing"
		r.DisplayQueueNumber = "NUR-001"
	})
	addRegistration(f.store, "not-here", func(r *models.Registration) { r.QueueNumber = 1 })
	ctx := context.Background()

	var order []int
	for i := 0; i < 3; i++ {
		res, err := f.d.CallNext(ctx, "ch-1")
		require.NoError(t, err)
		order = append(order, res.Registration.QueueNumber)
	}
	assert.Equal(t, []int{2, 5, 7}, order)

	_, err := f.d.CallNext(ctx, "ch-1")
	assert.ErrorIs(t, err, status.ErrQueueEmpty)
}

func TestCallNext_UpdatesChannelAndRegistration(t *testing.T) {
	f := newDispatcherFixture(t)
	addRegistration(f.store, "r1", func(r *models.Registration) {
		checkedIn(1)(r)
		r.ContactID = "U1"
	})

	res, err := f.d.CallNext(context.Background(), "ch-1")
	require.NoError(t, err)

	ch, _ := f.store.GetChannel("ch-1")
	assert.Equal(t, 1, ch.CurrentQueueNumber)
	assert.Equal(t, "ANE-001", ch.CurrentDisplayQueueNumber)
	assert.Equal(t, "Student r1", ch.CurrentStudentName)
	assert.Equal(t, "ping-1", ch.PingID)
	assert.Equal(t, models.ChannelServing, ch.State())
	assert.Equal(t, ch, res.Channel)

	r, _ := f.store.GetRegistration("r1")
	require.NotNil(t, r.CalledAt)
	assert.True(t, fixedNow.Equal(*r.CalledAt))
	assert.Equal(t, models.StatusCheckedIn, r.Status)

	require.Len(t, f.display.updates, 1)
	assert.Equal(t, "call", f.display.updates[0].Type)
	assert.Equal(t, "ping-1", f.display.updates[0].PingID)

	sent := f.notifier.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "U1", sent[0].contactID)
	assert.Equal(t, "Room 1", sent[0].msg.Params["channel"])
}

func TestCallNext_ChannelWithoutCourse(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.PutChannel(models.QueueChannel{ID: "idle", ActivityID: testActivity, ChannelNumber: 2})

	_, err := f.d.CallNext(context.Background(), "idle")
	assert.ErrorIs(t, err, status.ErrConfiguration)

	_, err = f.d.CallNext(context.Background(), "missing")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestCallNext_NotificationFailuresAreNotFatal(t *testing.T) {
	f := newDispatcherFixture(t)
	f.notifier.err = errors.New("push failed")
	f.display.err = errors.New("publish failed")
	addRegistration(f.store, "r1", func(r *models.Registration) {
		checkedIn(1)(r)
		r.ContactID = "U1"
	})

	res, err := f.d.CallNext(context.Background(), "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "ANE-001", res.Channel.CurrentDisplayQueueNumber)

	r, _ := f.store.GetRegistration("r1")
	assert.NotNil(t, r.CalledAt)
}

func TestCallNext_Contention(t *testing.T) {
	f := newDispatcherFixture(t)
	addRegistration(f.store, "r1", checkedIn(1))
	f.store.InjectConflicts(5)

	_, err := f.d.CallNext(context.Background(), "ch-1")
	assert.ErrorIs(t, err, status.ErrContention)

	r, _ := f.store.GetRegistration("r1")
	assert.Nil(t, r.CalledAt)
	assert.Empty(t, f.display.updates)
}

func TestResetCalled_PutsRegistrantsBackInLine(t *testing.T) {
	f := newDispatcherFixture(t)
	addRegistration(f.store, "r1", checkedIn(1))
	addRegistration(f.store, "r2", checkedIn(2))
	addRegistration(f.store, "done", func(r *models.Registration) {
		checkedIn(3)(r)
		r.Status = models.StatusCompleted
		r.CalledAt = &fixedNow
	})
	ctx := context.Background()

	_, err := f.d.CallNext(ctx, "ch-1")
	require.NoError(t, err)
	_, err = f.d.CallNext(ctx, "ch-1")
	require.NoError(t, err)

	n, err := f.d.ResetCalled(ctx, testActivity)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	done, _ := f.store.GetRegistration("done")
	assert.NotNil(t, done.CalledAt, "finished registrants keep their call time")

	res, err := f.d.CallNext(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Registration.QueueNumber)
}

func TestResetCalled_UnknownActivity(t *testing.T) {
	f := newDispatcherFixture(t)
	_, err := f.d.ResetCalled(context.Background(), "nope")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestRecall(t *testing.T) {
	f := newDispatcherFixture(t)
	addRegistration(f.store, "r1", func(r *models.Registration) {
		checkedIn(1)(r)
		r.ContactID = "U1"
	})
	ctx := context.Background()

	_, err := f.d.Recall(ctx, "ch-1")
	assert.ErrorIs(t, err, status.ErrNothingToRecall)

	_, err = f.d.CallNext(ctx, "ch-1")
	require.NoError(t, err)
	before, _ := f.store.GetRegistration("r1")

	res, err := f.d.Recall(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "ping-2", res.Channel.PingID)
	assert.Equal(t, "ANE-001", res.Channel.CurrentDisplayQueueNumber)
	require.NotNil(t, res.Registration)
	assert.Equal(t, "r1", res.Registration.ID)

	after, _ := f.store.GetRegistration("r1")
	assert.Equal(t, before, after, "recall does not modify the registration")

	require.Len(t, f.display.updates, 2)
	assert.Equal(t, "recall", f.display.updates[1].Type)
	sent := f.notifier.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "queue_recalled", sent[1].msg.Template)
}

func TestRecall_IgnoresUnusedImportedLabel(t *testing.T) {
	f := newDispatcherFixture(t)
	withCounter(f.store, "Anesthesia", 0)
	addRegistration(f.store, "a-pre", func(r *models.Registration) {
		r.DisplayQueueNumber = "ANE-001"
		r.ContactID = "U-WRONG"
	})
	addRegistration(f.store, "z", func(r *models.Registration) {
		r.ContactID = "U-RIGHT"
	})
	ctx := context.Background()

	alloc, err := NewAllocator(f.store, fastRetry(), nil, nil).Allocate(ctx, testActivity, "z")
	require.NoError(t, err)
	require.Equal(t, "ANE-001", alloc.DisplayQueueNumber)

	called, err := f.d.CallNext(ctx, "ch-1")
	require.NoError(t, err)
	require.Equal(t, "z", called.Registration.ID)

	res, err := f.d.Recall(ctx, "ch-1")
	require.NoError(t, err)
	require.NotNil(t, res.Registration)
	assert.Equal(t, "z", res.Registration.ID)

	sent := f.notifier.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "U-RIGHT", sent[1].contactID)
	assert.Equal(t, "queue_recalled", sent[1].msg.Template)
}

func TestRecall_PrefersNumberWithinCourse(t *testing.T) {
	f := newDispatcherFixture(t)
	calledAt := fixedNow.Add(-time.Minute)
	addRegistration(f.store, "nur", func(r *models.Registration) {
		checkedIn(4)(r)
		r.Course = "Nursing"
		r.CalledAt = &calledAt
	})
	addRegistration(f.store, "ane", func(r *models.Registration) {
		checkedIn(4)(r)
		r.CalledAt = &calledAt
	})
	f.store.PutChannel(models.QueueChannel{
		ID:                        "ch-1",
		ActivityID:                testActivity,
		ChannelNumber:             1,
		ServingCourse:             "Anesthesia",
		CurrentQueueNumber:        4,
		CurrentDisplayQueueNumber: "ANE-004",
		PingID:                    "ping-0",
	})

	res, err := f.d.Recall(context.Background(), "ch-1")
	require.NoError(t, err)
	require.NotNil(t, res.Registration)
	assert.Equal(t, "ane", res.Registration.ID)
}

func TestInsert(t *testing.T) {
	f := newDispatcherFixture(t)
	addRegistration(f.store, "r1", checkedIn(1))
	addRegistration(f.store, "r9", checkedIn(9))
	ctx := context.Background()

	res, err := f.d.Insert(ctx, "ch-1", "ANE-009")
	require.NoError(t, err)
	assert.Equal(t, "r9", res.Registration.ID)
	assert.Equal(t, 9, res.Channel.CurrentQueueNumber)

	_, err = f.d.Insert(ctx, "ch-1", "ANE-009")
	assert.ErrorIs(t, err, status.ErrNotFound, "already called")

	_, err = f.d.Insert(ctx, "ch-1", "ANE-404")
	assert.ErrorIs(t, err, status.ErrNotFound)

	next, err := f.d.CallNext(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, "r1", next.Registration.ID)
}

func TestAssignCourse(t *testing.T) {
	f := newDispatcherFixture(t)
	addRegistration(f.store, "r1", checkedIn(1))
	ctx := context.Background()

	_, err := f.d.CallNext(ctx, "ch-1")
	require.NoError(t, err)

	ch, err := f.d.AssignCourse(ctx, "ch-1", "Nursing")
	require.NoError(t, err)
	assert.Equal(t, "Nursing", ch.ServingCourse)
	assert.Equal(t, models.ChannelAssigned, ch.State())
	assert.Equal(t, 0, ch.CurrentQueueNumber)

	ch, err = f.d.AssignCourse(ctx, "ch-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelIdle, ch.State())

	_, err = f.d.AssignCourse(ctx, "missing", "Nursing")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestBoard(t *testing.T) {
	f := newDispatcherFixture(t)
	f.store.PutChannel(models.QueueChannel{ID: "ch-0", ActivityID: testActivity, ChannelNumber: 0})
	addRegistration(f.store, "r1", checkedIn(1))
	addRegistration(f.store, "r2", checkedIn(2))

	_, err := f.d.CallNext(context.Background(), "ch-1")
	require.NoError(t, err)

	board, err := f.d.Board(context.Background(), testActivity)
	require.NoError(t, err)
	require.Len(t, board.Channels, 2)
	assert.Equal(t, "ch-0", board.Channels[0].ID)
	assert.Equal(t, "ANE-001", board.Channels[1].CurrentDisplayQueueNumber)
	assert.Equal(t, map[string]int{"Anesthesia": 1}, board.Waiting)
}
