package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// OpenBadger opens a badger database at dir. An empty dir opens an in-memory
// instance, which is what the tests use.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB internal logs
	opts.ValueLogFileSize = 16 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return db, nil
}

// BadgerBackend stores keys under a prefix in a shared badger database, so
// the session and invitation stores can live in one directory.
type BadgerBackend struct {
	db     *badger.DB
	prefix string
}

// NewBadgerBackend wraps db. Closing the backend does not close db; the owner
// of the database does that.
func NewBadgerBackend(db *badger.DB, prefix string) *BadgerBackend {
	return &BadgerBackend{db: db, prefix: prefix}
}

// Name implements Backend.
func (b *BadgerBackend) Name() string { return "badger" }

func (b *BadgerBackend) key(k string) []byte { return []byte(b.prefix + k) }

// Get implements Backend.
func (b *BadgerBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Set implements Backend.
func (b *BadgerBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(b.key(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete implements Backend.
func (b *BadgerBackend) Delete(_ context.Context, keys ...string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(b.key(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements Backend.
func (b *BadgerBackend) Close() error { return nil }
