// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chat
// memberships.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-geochat-backend/internal/domain"
)

// MemberRow is a membership joined with the member's public fields.
type MemberRow struct {
	UserID   uint
	Username string
	Email    string
	Online   bool
	JoinedAt time.Time
}

// GetMembership fetches the membership of userID in chatID.
func GetMembership(ctx context.Context, db *gorm.DB, chatID, userID uint) (*domain.ChatMembership, error) {
	var m domain.ChatMembership
	err := db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// IsMember reports whether userID belongs to chatID.
func IsMember(ctx context.Context, db *gorm.DB, chatID, userID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMembership{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&n).Error
	return n > 0, err
}

// EnsureMembership joins userID to chatID unless already a member and
// reports whether a row was inserted.
func EnsureMembership(ctx context.Context, db *gorm.DB, chatID, userID uint, now time.Time) (bool, error) {
	m := &domain.ChatMembership{ChatID: chatID, UserID: userID, JoinedAt: now}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AddMembership inserts a membership, returning ErrDuplicate when userID is
// already in the chat.
func AddMembership(ctx context.Context, db *gorm.DB, chatID, userID uint, now time.Time) (*domain.ChatMembership, error) {
	m := &domain.ChatMembership{ChatID: chatID, UserID: userID, JoinedAt: now}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return m, nil
}

// RemoveMembership deletes the membership of userID in chatID, or returns
// ErrNotFound.
func RemoveMembership(ctx context.Context, db *gorm.DB, chatID, userID uint) error {
	res := db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&domain.ChatMembership{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountMembers returns the number of members in chatID.
func CountMembers(ctx context.Context, db *gorm.DB, chatID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMembership{}).
		Where("chat_id = ?", chatID).
		Count(&n).Error
	return n, err
}

// EarliestMember returns the membership with the oldest join time, which
// identifies the chat's creator. Ties go to the lowest id.
func EarliestMember(ctx context.Context, db *gorm.DB, chatID uint) (*domain.ChatMembership, error) {
	var m domain.ChatMembership
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("joined_at ASC, id ASC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns the members of chatID with their public fields, in
// join order.
func ListMembers(ctx context.Context, db *gorm.DB, chatID uint) ([]MemberRow, error) {
	var out []MemberRow
	err := db.WithContext(ctx).
		Table("chat_memberships AS m").
		Select("u.id AS user_id, u.username, u.email, u.online, m.joined_at").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.chat_id = ?", chatID).
		Order("m.joined_at ASC, m.id ASC").
		Scan(&out).Error
	return out, err
}
