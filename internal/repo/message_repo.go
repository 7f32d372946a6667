// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-geochat-backend/internal/domain"
)

// MessageRow is a message joined with its author's username. Username is nil
// for system messages and for authors that no longer exist.
type MessageRow struct {
	ID       uint
	ChatID   uint
	UserID   *uint
	Username *string
	Body     string
	SentAt   time.Time
	System   bool
}

// CreateMessage inserts a new message row.
func CreateMessage(ctx context.Context, db *gorm.DB, chatID uint, userID *uint, body string, system bool, now time.Time) (*domain.Message, error) {
	m := &domain.Message{
		ChatID: chatID,
		UserID: userID,
		Body:   body,
		SentAt: now,
		System: system,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessagesSince returns up to limit messages of chatID with id > sinceID,
// ordered deterministically (SentAt ASC, ID ASC).
func ListMessagesSince(ctx context.Context, db *gorm.DB, chatID, sinceID uint, limit int) ([]MessageRow, error) {
	var out []MessageRow
	q := db.WithContext(ctx).
		Table("messages AS m").
		Select("m.id, m.chat_id, m.user_id, u.username, m.body, m.sent_at, m.system").
		Joins("LEFT JOIN users u ON u.id = m.user_id").
		Where("m.chat_id = ?", chatID)
	if sinceID > 0 {
		q = q.Where("m.id > ?", sinceID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Order("m.sent_at ASC, m.id ASC").Scan(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, chatID uint) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).Scan(&total).Error
	return total, err
}
