// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// Functions:
//
//   - GetChatByToken / GetChatByID: single lookups, ErrNotFound when missing.
//   - EnsureGeneralChat: returns the public room, creating it on first use.
//   - FindPrivateChatBetween: the private chat two users already share.
//   - CreatePrivateChat: chat row plus both memberships, unique per pair.
//   - ReleasePairKey: frees a pair for a new private chat.
//   - DeleteChat: chat, memberships and messages.
//   - DeleteChatIfEmpty: DeleteChat for ephemeral chats with no members left.
//
// Multi-row writes are expected to run inside a transaction opened by the
// service layer.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-geochat-backend/internal/domain"
)

// GetChatByToken fetches a chat by its public token.
func GetChatByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("token = ?", token).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChatByID fetches a chat by primary key.
func GetChatByID(ctx context.Context, db *gorm.DB, id uint) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// EnsureGeneralChat returns the public room, creating it when absent. A
// concurrent creator winning the insert race is handled by re-reading.
func EnsureGeneralChat(ctx context.Context, db *gorm.DB) (*domain.Chat, error) {
	c, err := GetChatByToken(ctx, db, domain.GeneralChatToken)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c = &domain.Chat{
		Token:     domain.GeneralChatToken,
		Type:      domain.ChatTypeGeneral,
		Ephemeral: false,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicate(err) {
			return GetChatByToken(ctx, db, domain.GeneralChatToken)
		}
		return nil, err
	}
	return c, nil
}

// FindPrivateChatBetween returns the private chat in which both users are
// members, or ErrNotFound.
func FindPrivateChatBetween(ctx context.Context, db *gorm.DB, a, b uint) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Joins("JOIN chat_memberships m1 ON m1.chat_id = chats.id AND m1.user_id = ?", a).
		Joins("JOIN chat_memberships m2 ON m2.chat_id = chats.id AND m2.user_id = ?", b).
		Where("chats.type = ?", domain.ChatTypePrivate).
		Order("chats.id ASC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// PairKey normalizes two user IDs into the key stored on their private chat.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// CreatePrivateChat inserts an ephemeral private chat with token and joins
// creator and other to it. The creator's membership is inserted first so it
// wins creator ties on equal timestamps. A taken token or a pair that already
// holds a private chat yields ErrDuplicate.
func CreatePrivateChat(ctx context.Context, db *gorm.DB, token string, creator, other uint, now time.Time) (*domain.Chat, []domain.ChatMembership, error) {
	tx := db.WithContext(ctx)
	pair := PairKey(creator, other)
	c := &domain.Chat{
		Token:     token,
		Type:      domain.ChatTypePrivate,
		Ephemeral: true,
		CreatedAt: now,
		PairKey:   &pair,
	}
	if err := tx.Create(c).Error; err != nil {
		if isDuplicate(err) {
			return nil, nil, ErrDuplicate
		}
		return nil, nil, err
	}
	members := []domain.ChatMembership{
		{ChatID: c.ID, UserID: creator, JoinedAt: now},
		{ChatID: c.ID, UserID: other, JoinedAt: now},
	}
	for i := range members {
		if err := tx.Create(&members[i]).Error; err != nil {
			return nil, nil, err
		}
	}
	return c, members, nil
}

// ReleasePairKey clears the pair key of chatID so its original two users can
// open a new private chat.
func ReleasePairKey(ctx context.Context, db *gorm.DB, chatID uint) error {
	return db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", chatID).
		Update("pair_key", nil).Error
}

// DeleteChat removes the chat with its messages and memberships. It returns
// ErrNotFound when the chat row did not exist.
func DeleteChat(ctx context.Context, db *gorm.DB, chatID uint) error {
	tx := db.WithContext(ctx)
	if err := tx.Where("chat_id = ?", chatID).Delete(&domain.Message{}).Error; err != nil {
		return err
	}
	if err := tx.Where("chat_id = ?", chatID).Delete(&domain.ChatMembership{}).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", chatID).Delete(&domain.Chat{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteChatIfEmpty deletes an ephemeral chat that has no members left and
// reports whether it did. The general chat is never removed.
func DeleteChatIfEmpty(ctx context.Context, db *gorm.DB, chatID uint) (bool, error) {
	c, err := GetChatByID(ctx, db, chatID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !c.Ephemeral {
		return false, nil
	}
	n, err := CountMembers(ctx, db, chatID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := DeleteChat(ctx, db, chatID); err != nil {
		return false, err
	}
	return true, nil
}
