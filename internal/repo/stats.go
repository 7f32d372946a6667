// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the presence and activity queries that
// back the poll endpoint: who is online, and which chats a user joined
// recently. Each function is context-aware and safe to call from services.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-geochat-backend/internal/domain"
)

// JoinedChatRow is a membership of the polling user with its chat token.
type JoinedChatRow struct {
	ID        uint
	ChatToken string
	JoinedAt  time.Time
}

// ListOnlineSince returns users flagged online and seen at or after since,
// excluding excludeID, most recently seen first.
func ListOnlineSince(ctx context.Context, db *gorm.DB, excludeID uint, since time.Time, limit int) ([]domain.User, error) {
	var out []domain.User
	q := db.WithContext(ctx).
		Where("online = ? AND last_seen_at >= ? AND id <> ?", true, since, excludeID).
		Order("last_seen_at DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListMembershipsSince returns the memberships of userID created at or after
// since, newest first.
func ListMembershipsSince(ctx context.Context, db *gorm.DB, userID uint, since time.Time) ([]JoinedChatRow, error) {
	var out []JoinedChatRow
	err := db.WithContext(ctx).
		Table("chat_memberships AS m").
		Select("m.id, c.token AS chat_token, m.joined_at").
		Joins("JOIN chats c ON c.id = m.chat_id").
		Where("m.user_id = ? AND m.joined_at >= ?", userID, since).
		Order("m.joined_at DESC, m.id DESC").
		Scan(&out).Error
	return out, err
}
