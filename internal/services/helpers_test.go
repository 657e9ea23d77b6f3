package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"checkin-system/internal/retry"
	"checkin-system/internal/services/notify"
	"checkin-system/internal/store/memstore"
	"checkin-system/models"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

type sentMessage struct {
	contactID string
	msg       notify.Message
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (n *fakeNotifier) Send(_ context.Context, contactID string, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{contactID: contactID, msg: msg})
	return n.err
}

func (n *fakeNotifier) Name() string { return "fake" }

func (n *fakeNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

type fakeDisplay struct {
	mu      sync.Mutex
	err     error
	updates []models.DisplayUpdate
}

func (d *fakeDisplay) PublishDisplay(_ context.Context, u models.DisplayUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, u)
	return d.err
}

const testActivity = "act-1"

func newTestStore() *memstore.Store {
	s := memstore.New()
	s.PutActivity(models.Activity{
		ID:             testActivity,
		Name:           "Interview Day",
		Type:           models.ActivityQueue,
		CoursePrefixes: map[string]string{"Anesthesia": "ANE"},
	})
	return s
}

func withCounter(s *memstore.Store, course string, n int) {
	a, _ := s.GetActivity(testActivity)
	a.SetCounter(course, n)
	s.PutActivity(a)
}

func addRegistration(s *memstore.Store, id string, mutate ...func(*models.Registration)) {
	r := models.Registration{
		ID:         id,
		ActivityID: testActivity,
		Course:     "Anesthesia",
		NationalID: "NID-" + id,
		Name:       "Student " + id,
		Status:     models.StatusRegistered,
	}
	for _, m := range mutate {
		m(&r)
	}
	s.PutRegistration(r)
}

func checkedIn(number int) func(*models.Registration) {
	return func(r *models.Registration) {
		r.Status = models.StatusCheckedIn
		r.QueueNumber = number
		r.DisplayQueueNumber = fmt.Sprintf("ANE-%03d", number)
	}
}
