package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"checkin-system/internal/status"
	"checkin-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_IssuesNextNumber(t *testing.T) {
	s := newTestStore()
	withCounter(s, "Anesthesia", 4)
	addRegistration(s, "reg-1")

	alloc, err := NewAllocator(s, fastRetry(), nil, nil).Allocate(context.Background(), testActivity, "reg-1")
	require.NoError(t, err)

	assert.Equal(t, 5, alloc.QueueNumber)
	assert.Equal(t, "ANE-005", alloc.DisplayQueueNumber)
	assert.False(t, alloc.Reused)

	r, _ := s.GetRegistration("reg-1")
	assert.Equal(t, models.StatusCheckedIn, r.Status)
	assert.Equal(t, 5, r.QueueNumber)
	assert.Equal(t, "ANE-005", r.DisplayQueueNumber)

	a, _ := s.GetActivity(testActivity)
	n, ok := a.Counter("Anesthesia")
	assert.True(t, ok)
	assert.Equal(t, 5, n)
}

func TestAllocate_ConcurrentUniqueness(t *testing.T) {
	const n = 40
	const k = 12

	s := newTestStore()
	withCounter(s, "Anesthesia", k)
	for i := 0; i < n; i++ {
		addRegistration(s, fmt.Sprintf("reg-%02d", i))
	}
	// a different course must not be affected
	withCounter(s, "Nursing", 3)

	allocator := NewAllocator(s, fastRetry(), nil, nil)

	var wg sync.WaitGroup
	numbers := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			alloc, err := allocator.Allocate(context.Background(), testActivity, fmt.Sprintf("reg-%02d", i))
			errs[i] = err
			if err == nil {
				numbers[i] = alloc.QueueNumber
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Ints(numbers)
	for i, got := range numbers {
		assert.Equal(t, k+1+i, got)
	}

	a, _ := s.GetActivity(testActivity)
	last, _ := a.Counter("Anesthesia")
	assert.Equal(t, k+n, last)
	other, _ := a.Counter("Nursing")
	assert.Equal(t, 3, other)
}

func TestAllocate_RecoversUnknownCounter(t *testing.T) {
	s := newTestStore()
	addRegistration(s, "old-1", func(r *models.Registration) {
		r.Status = models.StatusCompleted
		r.DisplayQueueNumber = "ANE-007"
	})
	addRegistration(s, "old-2", func(r *models.Registration) {
		r.Status = models.StatusCheckedIn
		r.DisplayQueueNumber = "ANE-003"
	})
	addRegistration(s, "reg-1")

	alloc, err := NewAllocator(s, fastRetry(), nil, nil).Allocate(context.Background(), testActivity, "reg-1")
	require.NoError(t, err)

	assert.Equal(t, 8, alloc.QueueNumber)
	assert.Equal(t, "ANE-008", alloc.DisplayQueueNumber)
}

func TestAllocate_FirstTicketOfCourse(t *testing.T) {
	s := newTestStore()
	addRegistration(s, "reg-1", func(r *models.Registration) { r.Course = "Nursing" })

	alloc, err := NewAllocator(s, fastRetry(), nil, nil).Allocate(context.Background(), testActivity, "reg-1")
	require.NoError(t, err)

	assert.Equal(t, 1, alloc.QueueNumber)
	assert.Equal(t, "NUR-001", alloc.DisplayQueueNumber)
}

func TestAllocate_ReusesPreassignedNumber(t *testing.T) {
	s := newTestStore()
	withCounter(s, "Anesthesia", 4)
	addRegistration(s, "reg-1", func(r *models.Registration) { r.DisplayQueueNumber = "ANE-010" })

	alloc, err := NewAllocator(s, fastRetry(), nil, nil).Allocate(context.Background(), testActivity, "reg-1")
	require.NoError(t, err)

	assert.True(t, alloc.Reused)
	assert.Equal(t, 10, alloc.QueueNumber)
	assert.Equal(t, "ANE-010", alloc.DisplayQueueNumber)

	a, _ := s.GetActivity(testActivity)
	last, _ := a.Counter("Anesthesia")
	assert.Equal(t, 10, last, "counter never moves backwards past a reused number")
}

func TestAllocate_PreassignedCollision(t *testing.T) {
	s := newTestStore()
	addRegistration(s, "holder", checkedIn(10))
	addRegistration(s, "reg-1", func(r *models.Registration) { r.DisplayQueueNumber = "ANE-010" })

	alloc, err := NewAllocator(s, fastRetry(), nil, nil).Allocate(context.Background(), testActivity, "reg-1")
	require.NoError(t, err)

	assert.False(t, alloc.Reused)
	assert.Equal(t, 11, alloc.QueueNumber)
	assert.Equal(t, "ANE-011", alloc.DisplayQueueNumber)
}

func TestAllocate_SkipsConsumedNumbers(t *testing.T) {
	s := newTestStore()
	withCounter(s, "Anesthesia", 2)
	addRegistration(s, "a", checkedIn(3))
	addRegistration(s, "b", checkedIn(4))
	addRegistration(s, "reg-1")

	alloc, err := NewAllocator(s, fastRetry(), nil, nil).Allocate(context.Background(), testActivity, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, 5, alloc.QueueNumber)
}

func TestAllocate_DoubleCheckInIsIdempotent(t *testing.T) {
	s := newTestStore()
	withCounter(s, "Anesthesia", 0)
	addRegistration(s, "reg-1")
	allocator := NewAllocator(s, fastRetry(), nil, nil)
	ctx := context.Background()

	_, err := allocator.Allocate(ctx, testActivity, "reg-1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := allocator.Allocate(ctx, testActivity, "reg-1")
		assert.ErrorIs(t, err, status.ErrAlreadyProcessed)
	}

	a, _ := s.GetActivity(testActivity)
	last, _ := a.Counter("Anesthesia")
	assert.Equal(t, 1, last)
}

func TestAllocate_Preconditions(t *testing.T) {
	s := newTestStore()
	s.PutActivity(models.Activity{ID: "act-2", Type: models.ActivityQueue})
	addRegistration(s, "cancelled", func(r *models.Registration) { r.Status = models.StatusCancelled })
	addRegistration(s, "interviewing", func(r *models.Registration) { r.Status = models.StatusInterviewing })
	addRegistration(s, "no-course", func(r *models.Registration) { r.Course = "  " })
	addRegistration(s, "elsewhere", func(r *models.Registration) { r.ActivityID = "act-2" })

	allocator := NewAllocator(s, fastRetry(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		id   string
		want error
	}{
		{"missing", status.ErrNotFound},
		{"elsewhere", status.ErrNotFound},
		{"cancelled", status.ErrCancelled},
		{"interviewing", status.ErrAlreadyProcessed},
		{"no-course", status.ErrMissingCourse},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			_, err := allocator.Allocate(ctx, testActivity, tt.id)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, s.Commits())
}

func TestAllocate_RetriesConflicts(t *testing.T) {
	s := newTestStore()
	withCounter(s, "Anesthesia", 0)
	addRegistration(s, "reg-1")
	s.InjectConflicts(2)

	alloc, err := NewAllocator(s, fastRetry(), nil, nil).Allocate(context.Background(), testActivity, "reg-1")
	require.NoError(t, err)

	assert.Equal(t, 3, alloc.Attempts)
	assert.Equal(t, 1, alloc.QueueNumber)
}

func TestAllocate_ContentionAfterBudget(t *testing.T) {
	s := newTestStore()
	withCounter(s, "Anesthesia", 0)
	addRegistration(s, "reg-1")
	s.InjectConflicts(5)

	_, err := NewAllocator(s, fastRetry(), nil, nil).Allocate(context.Background(), testActivity, "reg-1")
	assert.ErrorIs(t, err, status.ErrContention)

	r, _ := s.GetRegistration("reg-1")
	assert.Equal(t, models.StatusRegistered, r.Status)
	a, _ := s.GetActivity(testActivity)
	last, _ := a.Counter("Anesthesia")
	assert.Equal(t, 0, last)
}

func TestAllocate_NotifiesContact(t *testing.T) {
	s := newTestStore()
	addRegistration(s, "reg-1", func(r *models.Registration) { r.ContactID = "U123" })
	notifier := &fakeNotifier{}

	_, err := NewAllocator(s, fastRetry(), notifier, nil).Allocate(context.Background(), testActivity, "reg-1")
	require.NoError(t, err)

	sent := notifier.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "U123", sent[0].contactID)
	assert.Equal(t, "ANE-001", sent[0].msg.Params["ticket"])
}

func TestAllocate_NotificationFailureIsNotFatal(t *testing.T) {
	s := newTestStore()
	addRegistration(s, "reg-1", func(r *models.Registration) { r.ContactID = "U123" })
	notifier := &fakeNotifier{err: fmt.Errorf("line is down")}

	alloc, err := NewAllocator(s, fastRetry(), notifier, nil).Allocate(context.Background(), testActivity, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, "ANE-001", alloc.DisplayQueueNumber)

	r, _ := s.GetRegistration("reg-1")
	assert.Equal(t, models.StatusCheckedIn, r.Status)
}
