// Package pbstore backs store.Store with PocketBase collections. The queue
// counters live in a JSON field of the activity record, so one transaction
// covers the counter and the registration it is issued to.
package pbstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"checkin-system/internal/store"

	"github.com/pocketbase/pocketbase/core"
)

const (
	CollectionActivities    = "activities"
	CollectionRegistrations = "registrations"
	CollectionChannels      = "queue_channels"
)

type Store struct {
	app core.App
}

func New(app core.App) *Store {
	return &Store{app: app}
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&tx{app: txApp, records: make(map[string]*core.Record)})
	})
	return translate(err)
}

// translate maps SQLite lock errors to store.ErrConflict so callers retry.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%v: %w", err, store.ErrNotFound)
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%v: %w", err, store.ErrConflict)
	}
	return err
}

type tx struct {
	app core.App

	// records caches what this transaction loaded so saves reuse them.
	records map[string]*core.Record
}

func (t *tx) find(collection, id string) (*core.Record, error) {
	key := collection + "/" + id
	if rec, ok := t.records[key]; ok {
		return rec, nil
	}

	rec, err := t.app.FindRecordById(collection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", collection, id, store.ErrNotFound)
		}
		return nil, err
	}
	t.records[key] = rec
	return rec, nil
}

func (t *tx) remember(collection string, rec *core.Record) {
	t.records[collection+"/"+rec.Id] = rec
}
