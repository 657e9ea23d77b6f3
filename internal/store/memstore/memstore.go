// Package memstore is an in-memory store.Store. Transactions are serialized
// behind a single mutex and buffer their writes until commit, so a failing
// transaction leaves no trace.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"checkin-system/internal/store"
	"checkin-system/models"
)

type Store struct {
	mutex sync.Mutex

	activities    map[string]*models.Activity
	registrations map[string]*models.Registration
	channels      map[string]*models.QueueChannel

	// conflicts makes the next n commits fail with store.ErrConflict.
	conflicts int
	commits   int
}

func New() *Store {
	return &Store{
		activities:    make(map[string]*models.Activity),
		registrations: make(map[string]*models.Registration),
		channels:      make(map[string]*models.QueueChannel),
	}
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	t := &tx{
		db:            s,
		activities:    make(map[string]*models.Activity),
		registrations: make(map[string]*models.Registration),
		channels:      make(map[string]*models.QueueChannel),
	}
	if err := fn(t); err != nil {
		return err
	}

	if s.conflicts > 0 {
		s.conflicts--
		return store.ErrConflict
	}

	for id, a := range t.activities {
		s.activities[id] = a
	}
	for id, r := range t.registrations {
		s.registrations[id] = r
	}
	for id, c := range t.channels {
		s.channels[id] = c
	}
	s.commits++
	return nil
}

// InjectConflicts makes the next n transactions fail at commit time.
func (s *Store) InjectConflicts(n int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.conflicts = n
}

// Commits returns the number of committed transactions.
func (s *Store) Commits() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.commits
}

func (s *Store) PutActivity(a models.Activity) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.activities[a.ID] = copyActivity(&a)
}

func (s *Store) PutRegistration(r models.Registration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.registrations[r.ID] = copyRegistration(&r)
}

func (s *Store) PutChannel(c models.QueueChannel) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cc := c
	s.channels[c.ID] = &cc
}

func (s *Store) GetActivity(id string) (models.Activity, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return models.Activity{}, false
	}
	return *copyActivity(a), true
}

func (s *Store) GetRegistration(id string) (models.Registration, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	r, ok := s.registrations[id]
	if !ok {
		return models.Registration{}, false
	}
	return *copyRegistration(r), true
}

func (s *Store) GetChannel(id string) (models.QueueChannel, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	c, ok := s.channels[id]
	if !ok {
		return models.QueueChannel{}, false
	}
	return *c, true
}

// Registrations returns every registration of an activity sorted by id.
func (s *Store) Registrations(activityID string) []models.Registration {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []models.Registration
	for _, r := range s.registrations {
		if r.ActivityID == activityID {
			out = append(out, *copyRegistration(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type tx struct {
	db *Store

	activities    map[string]*models.Activity
	registrations map[string]*models.Registration
	channels      map[string]*models.QueueChannel
}

func (t *tx) Activity(id string) (*models.Activity, error) {
	if a, ok := t.activities[id]; ok {
		return copyActivity(a), nil
	}
	if a, ok := t.db.activities[id]; ok {
		return copyActivity(a), nil
	}
	return nil, fmt.Errorf("activity %s: %w", id, store.ErrNotFound)
}

func (t *tx) SaveActivity(a *models.Activity) error {
	if a.ID == "" {
		return fmt.Errorf("save activity: empty id")
	}
	t.activities[a.ID] = copyActivity(a)
	return nil
}

func (t *tx) Registration(id string) (*models.Registration, error) {
	if r, ok := t.registrations[id]; ok {
		return copyRegistration(r), nil
	}
	if r, ok := t.db.registrations[id]; ok {
		return copyRegistration(r), nil
	}
	return nil, fmt.Errorf("registration %s: %w", id, store.ErrNotFound)
}

func (t *tx) FindRegistrations(q store.RegistrationQuery) ([]*models.Registration, error) {
	var out []*models.Registration
	for id, r := range t.db.registrations {
		if staged, ok := t.registrations[id]; ok {
			r = staged
		}
		if q.Matches(r) {
			out = append(out, copyRegistration(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) SaveRegistration(r *models.Registration) error {
	if r.ID == "" {
		return fmt.Errorf("save registration: empty id")
	}
	t.registrations[r.ID] = copyRegistration(r)
	return nil
}

func (t *tx) Channel(id string) (*models.QueueChannel, error) {
	if c, ok := t.channels[id]; ok {
		cc := *c
		return &cc, nil
	}
	if c, ok := t.db.channels[id]; ok {
		cc := *c
		return &cc, nil
	}
	return nil, fmt.Errorf("channel %s: %w", id, store.ErrNotFound)
}

func (t *tx) FindChannels(activityID string) ([]*models.QueueChannel, error) {
	var out []*models.QueueChannel
	for id, c := range t.db.channels {
		if staged, ok := t.channels[id]; ok {
			c = staged
		}
		if c.ActivityID == activityID {
			cc := *c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChannelNumber != out[j].ChannelNumber {
			return out[i].ChannelNumber < out[j].ChannelNumber
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) SaveChannel(c *models.QueueChannel) error {
	if c.ID == "" {
		return fmt.Errorf("save channel: empty id")
	}
	cc := *c
	t.channels[c.ID] = &cc
	return nil
}

func copyActivity(a *models.Activity) *models.Activity {
	out := *a
	if a.QueueCounters != nil {
		out.QueueCounters = make(map[string]int, len(a.QueueCounters))
		for k, v := range a.QueueCounters {
			out.QueueCounters[k] = v
		}
	}
	if a.CoursePrefixes != nil {
		out.CoursePrefixes = make(map[string]string, len(a.CoursePrefixes))
		for k, v := range a.CoursePrefixes {
			out.CoursePrefixes[k] = v
		}
	}
	return &out
}

func copyRegistration(r *models.Registration) *models.Registration {
	out := *r
	if r.CalledAt != nil {
		t := *r.CalledAt
		out.CalledAt = &t
	}
	return &out
}
