package store

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-geochat-backend/internal/config"
)

// Stores bundles the session and invitation stores built for one process.
type Stores struct {
	Sessions    *SessionStore
	Invitations *InvitationStore

	closers []io.Closer
}

// Close releases every backend and the shared badger database, if any.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds both stores for cfg.Backend. Every mode keeps an in-process
// cache in front; "file" and "badger" add a durable layer behind it.
func Open(cfg config.StoreConfig) (*Stores, error) {
	var (
		sessDurable Backend
		invDurable  Backend
		closers     []io.Closer
	)

	switch cfg.Backend {
	case config.StoreMemory:
	case config.StoreFile:
		sf, err := NewFileBackend(cfg.TokensFile())
		if err != nil {
			return nil, err
		}
		inf, err := NewFileBackend(cfg.InvitationsFile())
		if err != nil {
			return nil, err
		}
		sessDurable, invDurable = sf, inf
	case config.StoreBadger:
		db, err := OpenBadger(cfg.BadgerDir())
		if err != nil {
			return nil, err
		}
		closers = append(closers, db)
		sessDurable = NewBadgerBackend(db, "sessions:")
		invDurable = NewBadgerBackend(db, "invitations:")
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	sess := layers(NewMemoryBackend(), sessDurable)
	inv := layers(NewMemoryBackend(), invDurable)
	sessions := NewTiered("sessions", sess...)
	invitations := NewTiered("invitations", inv...)
	closers = append(closers, sessions, invitations)

	log.Info().
		Str("backend", cfg.Backend).
		Str("sessions", sessions.Name()).
		Str("invitations", invitations.Name()).
		Msg("kv stores ready")

	return &Stores{
		Sessions:    NewSessionStore(sessions),
		Invitations: NewInvitationStore(invitations, cfg.InvitationTTL),
		closers:     closers,
	}, nil
}

func layers(cache, durable Backend) []Backend {
	if durable == nil {
		return []Backend{cache}
	}
	return []Backend{cache, durable}
}
