package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Tiered layers backends in priority order, typically an in-process cache in
// front of a durable backend.
//
// Get returns the first hit. Set and Delete are applied to every layer and
// only fail when every layer failed. Errors from individual layers are logged
// (sampled) and counted, and otherwise treated as a miss.
type Tiered struct {
	store  string
	layers []Backend
	warn   *rate.Sometimes
}

// NewTiered returns a Tiered backend named after the store it serves
// ("sessions", "invitations").
func NewTiered(store string, layers ...Backend) *Tiered {
	return &Tiered{
		store:  store,
		layers: layers,
		warn:   &rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// Name implements Backend.
func (t *Tiered) Name() string {
	names := make([]string, len(t.layers))
	for i, l := range t.layers {
		names[i] = l.Name()
	}
	return strings.Join(names, "+")
}

// Get implements Backend. It never returns an error.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	for _, l := range t.layers {
		v, ok, err := l.Get(ctx, key)
		if err != nil {
			t.fail(l, "get", err)
			continue
		}
		if ok {
			observe(t.store, l.Name(), "get", "hit")
			return v, true, nil
		}
		observe(t.store, l.Name(), "get", "miss")
	}
	return nil, false, nil
}

// Set implements Backend.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, l := range t.layers {
		if err := l.Set(ctx, key, value, ttl); err != nil {
			t.fail(l, "set", err)
			errs = append(errs, err)
			continue
		}
		observe(t.store, l.Name(), "set", "ok")
	}
	if len(errs) == len(t.layers) && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Delete implements Backend.
func (t *Tiered) Delete(ctx context.Context, keys ...string) error {
	var errs []error
	for _, l := range t.layers {
		if err := l.Delete(ctx, keys...); err != nil {
			t.fail(l, "delete", err)
			errs = append(errs, err)
			continue
		}
		observe(t.store, l.Name(), "delete", "ok")
	}
	if len(errs) == len(t.layers) && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Close closes every layer and returns the joined errors.
func (t *Tiered) Close() error {
	var errs []error
	for _, l := range t.layers {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tiered) fail(l Backend, op string, err error) {
	observe(t.store, l.Name(), op, "error")
	t.warn.Do(func() {
		log.Warn().Err(err).
			Str("store", t.store).
			Str("backend", l.Name()).
			Str("op", op).
			Msg("kv backend failure, degrading")
	})
}
