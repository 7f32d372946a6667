// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Error semantics:
//   - Missing rows surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - Unique violations (e-mail, account token) surface as ErrDuplicate.
//   - Any other DB error is propagated unchanged.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/geo"
)

// CreateUser inserts u. A taken e-mail or account token yields ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetUser fetches a user by primary key.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by e-mail. Callers pass the normalized
// (lower-cased) address.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByToken fetches a user by the persistent per-account token.
func GetUserByToken(ctx context.Context, db *gorm.DB, token string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("user_token = ?", token).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// EmailTaken reports whether email belongs to a user other than exceptID.
func EmailTaken(ctx context.Context, db *gorm.DB, email string, exceptID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&n).Error
	return n > 0, err
}

// UpdateUser applies column updates to the user identified by id. It returns
// ErrNotFound when no row matched.
func UpdateUser(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListLocatedUsers returns every user with both coordinates set. When box is
// non-nil only users inside it are returned, which keeps the in-memory
// distance pass small.
func ListLocatedUsers(ctx context.Context, db *gorm.DB, box *geo.Box) ([]domain.User, error) {
	q := db.WithContext(ctx).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL")
	if box != nil {
		q = q.Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?",
			box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	}
	var out []domain.User
	err := q.Order("id ASC").Find(&out).Error
	return out, err
}

// DeleteUser removes a user and everything that hangs off the account:
// blocks in both directions and chat memberships. Messages the user wrote are
// kept with a NULL author. Ephemeral chats left without members are deleted
// and their ids returned.
//
// Run it inside a transaction; it issues several statements.
func DeleteUser(ctx context.Context, db *gorm.DB, id uint) ([]uint, error) {
	tx := db.WithContext(ctx)

	if err := tx.Where("blocker_id = ? OR blocked_id = ?", id, id).Delete(&domain.Block{}).Error; err != nil {
		return nil, err
	}

	var chatIDs []uint
	if err := tx.Model(&domain.ChatMembership{}).
		Where("user_id = ?", id).
		Pluck("chat_id", &chatIDs).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("user_id = ?", id).Delete(&domain.ChatMembership{}).Error; err != nil {
		return nil, err
	}
	if len(chatIDs) > 0 {
		if err := tx.Model(&domain.Chat{}).
			Where("id IN ?", chatIDs).
			Update("pair_key", nil).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Model(&domain.Message{}).
		Where("user_id = ?", id).
		Update("user_id", nil).Error; err != nil {
		return nil, err
	}

	res := tx.Where("id = ?", id).Delete(&domain.User{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var removed []uint
	for _, cid := range chatIDs {
		gone, err := DeleteChatIfEmpty(ctx, db, cid)
		if err != nil {
			return nil, err
		}
		if gone {
			removed = append(removed, cid)
		}
	}
	return removed, nil
}

// IsNotFound reports whether err means "no such row".
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
