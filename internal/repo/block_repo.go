// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Block model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-geochat-backend/internal/domain"
)

// BlockedRow is a block joined with the blocked user's public fields.
type BlockedRow struct {
	BlockID   uint
	UserID    uint
	Username  string
	Email     string
	Online    bool
	BlockedAt time.Time
}

// CreateBlock records that blocker blocks blocked. A repeated pair yields
// ErrDuplicate.
func CreateBlock(ctx context.Context, db *gorm.DB, blocker, blocked uint, now time.Time) (*domain.Block, error) {
	b := &domain.Block{BlockerID: blocker, BlockedID: blocked, BlockedAt: now}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return b, nil
}

// FindBlock returns the block for the ordered pair, or ErrNotFound.
func FindBlock(ctx context.Context, db *gorm.DB, blocker, blocked uint) (*domain.Block, error) {
	var b domain.Block
	err := db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blocker, blocked).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBlock removes a block by id, or returns ErrNotFound.
func DeleteBlock(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Block{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListBlocked returns the users blocked by blocker, newest block first.
func ListBlocked(ctx context.Context, db *gorm.DB, blocker uint) ([]BlockedRow, error) {
	var out []BlockedRow
	err := db.WithContext(ctx).
		Table("blocks AS b").
		Select("b.id AS block_id, u.id AS user_id, u.username, u.email, u.online, b.blocked_at").
		Joins("JOIN users u ON u.id = b.blocked_id").
		Where("b.blocker_id = ?", blocker).
		Order("b.blocked_at DESC, b.id DESC").
		Scan(&out).Error
	return out, err
}
