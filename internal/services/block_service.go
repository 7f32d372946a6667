// Package services – BlockService
//
// Blocks are directional: A blocking B says nothing about B blocking A.
// An ordered pair is blocked at most once.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/events"
	"github.com/tbourn/go-geochat-backend/internal/repo"
)

// BlockService manages user blocks.
type BlockService struct {
	DB     *gorm.DB
	Events events.Publisher
	Now    func() time.Time
}

// NewBlockService wires a BlockService.
func NewBlockService(db *gorm.DB, pub events.Publisher) *BlockService {
	return &BlockService{DB: db, Events: pub}
}

// Block records that blocker blocks blocked.
func (s *BlockService) Block(ctx context.Context, blocker, blocked *domain.User) (*domain.Block, error) {
	ctx, span := otel.Tracer("services/BlockService").Start(ctx, "Block",
		trace.WithAttributes(
			attribute.Int("user.id", int(blocker.ID)),
			attribute.Int("blocked.id", int(blocked.ID)),
		),
	)
	defer span.End()

	if blocker.ID == blocked.ID {
		return nil, ErrSelfTarget
	}
	b, err := repo.CreateBlock(ctx, s.DB, blocker.ID, blocked.ID, now(s.Now))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrAlreadyBlocked
		}
		return nil, err
	}
	events.Emit(ctx, s.Events, events.UserBlocked, map[string]any{
		"block_id":   b.ID,
		"blocker_id": blocker.ID,
		"blocked_id": blocked.ID,
	})
	return b, nil
}

// Unblock removes the block of blocked by blocker and returns its id.
func (s *BlockService) Unblock(ctx context.Context, blocker, blocked *domain.User) (uint, error) {
	ctx, span := otel.Tracer("services/BlockService").Start(ctx, "Unblock",
		trace.WithAttributes(
			attribute.Int("user.id", int(blocker.ID)),
			attribute.Int("blocked.id", int(blocked.ID)),
		),
	)
	defer span.End()

	b, err := repo.FindBlock(ctx, s.DB, blocker.ID, blocked.ID)
	if err != nil {
		if repo.IsNotFound(err) {
			return 0, ErrNotBlocked
		}
		return 0, err
	}
	if err := repo.DeleteBlock(ctx, s.DB, b.ID); err != nil {
		if repo.IsNotFound(err) {
			return 0, ErrNotBlocked
		}
		return 0, err
	}
	events.Emit(ctx, s.Events, events.UserUnblocked, map[string]any{
		"block_id":   b.ID,
		"blocker_id": blocker.ID,
		"blocked_id": blocked.ID,
	})
	return b.ID, nil
}

// List returns the users blocked by blocker, most recent block first.
func (s *BlockService) List(ctx context.Context, blocker *domain.User) ([]repo.BlockedRow, error) {
	ctx, span := otel.Tracer("services/BlockService").Start(ctx, "List",
		trace.WithAttributes(attribute.Int("user.id", int(blocker.ID))),
	)
	defer span.End()

	rows, err := repo.ListBlocked(ctx, s.DB, blocker.ID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []repo.BlockedRow{}
	}
	return rows, nil
}
