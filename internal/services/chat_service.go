// Package services – ChatService
//
// This file implements ChatService, which manages the general room and the
// ephemeral private chats: sending and fetching messages, creating a private
// chat between two users (idempotent per pair), leaving and deleting.
//
// A private chat lives while it has members. Leaving as the last member or
// an explicit delete by its creator (the earliest member) or an admin
// removes the chat together with its memberships and messages, in one
// transaction.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-geochat-backend/internal/auth"
	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/events"
	"github.com/tbourn/go-geochat-backend/internal/repo"
	"github.com/tbourn/go-geochat-backend/internal/utils"
)

const (
	defaultFetchLimit = 100
	maxFetchLimit     = 500

	// chatTokenAttempts bounds retries on the (astronomically unlikely)
	// collision of a fresh random chat token.
	chatTokenAttempts = 3
)

// ChatService provides messaging operations over general and private chats.
type ChatService struct {
	DB     *gorm.DB
	Events events.Publisher
	Now    func() time.Time

	// NewToken generates private chat tokens; defaults to auth.NewToken.
	NewToken func() (string, error)
}

// NewChatService wires a ChatService.
func NewChatService(db *gorm.DB, pub events.Publisher) *ChatService {
	return &ChatService{DB: db, Events: pub, NewToken: auth.NewToken}
}

// SendGeneral posts body to the general chat, creating the chat and the
// caller's membership on first use.
func (s *ChatService) SendGeneral(ctx context.Context, u *domain.User, chatToken, body string) (*domain.Message, *domain.Chat, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "SendGeneral",
		trace.WithAttributes(attribute.Int("user.id", int(u.ID))),
	)
	defer span.End()

	body = NormalizeText(body)
	if body == "" {
		return nil, nil, ErrEmptyMessage
	}
	if chatToken != domain.GeneralChatToken {
		return nil, nil, ErrNotGeneralChat
	}

	var (
		chat *domain.Chat
		msg  *domain.Message
	)
	ts := now(s.Now)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if chat, err = repo.EnsureGeneralChat(ctx, tx); err != nil {
			return err
		}
		if _, err = repo.EnsureMembership(ctx, tx, chat.ID, u.ID, ts); err != nil {
			return err
		}
		msg, err = repo.CreateMessage(ctx, tx, chat.ID, &u.ID, body, false, ts)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.emitMessage(ctx, chat, msg)
	return msg, chat, nil
}

// GeneralMembers lists the members of the general chat. exists is false when
// nobody has written to it yet.
func (s *ChatService) GeneralMembers(ctx context.Context) (members []repo.MemberRow, exists bool, err error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "GeneralMembers")
	defer span.End()

	chat, err := repo.GetChatByToken(ctx, s.DB, domain.GeneralChatToken)
	if err != nil {
		if repo.IsNotFound(err) {
			return []repo.MemberRow{}, false, nil
		}
		return nil, false, err
	}
	members, err = repo.ListMembers(ctx, s.DB, chat.ID)
	if err != nil {
		return nil, true, err
	}
	return members, true, nil
}

// OpenPrivate returns the private chat shared by caller and other, creating
// it with both memberships when none exists. created reports which case
// happened. Concurrent first opens for one pair converge on a single chat
// through the pair's unique key.
func (s *ChatService) OpenPrivate(ctx context.Context, caller, other *domain.User) (chat *domain.Chat, created bool, err error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "OpenPrivate",
		trace.WithAttributes(
			attribute.Int("user.id", int(caller.ID)),
			attribute.Int("other.id", int(other.ID)),
		),
	)
	defer span.End()

	if caller.ID == other.ID {
		return nil, false, ErrSelfTarget
	}

	newToken := s.NewToken
	if newToken == nil {
		newToken = auth.NewToken
	}

	ts := now(s.Now)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repo.FindPrivateChatBetween(ctx, tx, caller.ID, other.ID)
		if err == nil {
			chat = existing
			return nil
		}
		if !repo.IsNotFound(err) {
			return err
		}

		for attempt := 0; attempt < chatTokenAttempts; attempt++ {
			tok, err := newToken()
			if err != nil {
				return err
			}
			// savepoint, so a unique violation leaves tx usable on Postgres
			err = tx.Transaction(func(sp *gorm.DB) error {
				var err error
				chat, _, err = repo.CreatePrivateChat(ctx, sp, tok, caller.ID, other.ID, ts)
				return err
			})
			if err == nil {
				created = true
				return nil
			}
			if !errors.Is(err, repo.ErrDuplicate) {
				return err
			}
			// A concurrent open for the same pair may have won the insert.
			if existing, err := repo.FindPrivateChatBetween(ctx, tx, caller.ID, other.ID); err == nil {
				chat = existing
				return nil
			} else if !repo.IsNotFound(err) {
				return err
			}
		}
		return repo.ErrDuplicate
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		events.Emit(ctx, s.Events, events.ChatCreated, map[string]any{
			"chat_id":    chat.ID,
			"chat_token": chat.Token,
			"members":    []uint{caller.ID, other.ID},
		})
	}
	return chat, created, nil
}

// privateChatFor loads the private chat identified by token and checks that
// u is a member.
func (s *ChatService) privateChatFor(ctx context.Context, db *gorm.DB, u *domain.User, token string) (*domain.Chat, error) {
	chat, err := repo.GetChatByToken(ctx, db, token)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if chat.Type != domain.ChatTypePrivate {
		return nil, ErrNotPrivateChat
	}
	ok, err := repo.IsMember(ctx, db, chat.ID, u.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return chat, nil
}

// PrivateMessages returns up to limit messages of a private chat with id
// greater than sinceID, oldest first. A limit outside [1,500] means 100.
func (s *ChatService) PrivateMessages(ctx context.Context, u *domain.User, chatToken string, sinceID uint, limit int) ([]repo.MessageRow, int, error) {
	limit = utils.ClampLimit(limit, defaultFetchLimit, maxFetchLimit)
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "PrivateMessages",
		trace.WithAttributes(
			attribute.Int("user.id", int(u.ID)),
			attribute.Int("since_id", int(sinceID)),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	chat, err := s.privateChatFor(ctx, s.DB, u, chatToken)
	if err != nil {
		return nil, limit, err
	}
	rows, err := repo.ListMessagesSince(ctx, s.DB, chat.ID, sinceID, limit)
	if err != nil {
		return nil, limit, err
	}
	return rows, limit, nil
}

// SendPrivate posts body to a private chat the caller belongs to.
func (s *ChatService) SendPrivate(ctx context.Context, u *domain.User, chatToken, body string) (*domain.Message, *domain.Chat, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "SendPrivate",
		trace.WithAttributes(attribute.Int("user.id", int(u.ID))),
	)
	defer span.End()

	body = NormalizeText(body)
	if body == "" {
		return nil, nil, ErrEmptyMessage
	}
	chat, err := s.privateChatFor(ctx, s.DB, u, chatToken)
	if err != nil {
		return nil, nil, err
	}
	msg, err := repo.CreateMessage(ctx, s.DB, chat.ID, &u.ID, body, false, now(s.Now))
	if err != nil {
		return nil, nil, err
	}
	s.emitMessage(ctx, chat, msg)
	return msg, chat, nil
}

// LeaveResult reports the outcome of Leave.
type LeaveResult struct {
	ChatDeleted bool
	Remaining   int64
}

// Leave removes the caller from a private chat. The last member leaving
// deletes the chat and its messages.
func (s *ChatService) Leave(ctx context.Context, u *domain.User, chatToken string) (LeaveResult, error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "Leave",
		trace.WithAttributes(attribute.Int("user.id", int(u.ID))),
	)
	defer span.End()

	var (
		res  LeaveResult
		chat *domain.Chat
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if chat, err = s.privateChatFor(ctx, tx, u, chatToken); err != nil {
			return err
		}
		if err := repo.RemoveMembership(ctx, tx, chat.ID, u.ID); err != nil {
			if repo.IsNotFound(err) {
				return ErrNotMember
			}
			return err
		}
		if res.Remaining, err = repo.CountMembers(ctx, tx, chat.ID); err != nil {
			return err
		}
		if res.Remaining == 0 {
			if err := repo.DeleteChat(ctx, tx, chat.ID); err != nil {
				return err
			}
			res.ChatDeleted = true
			return nil
		}
		return repo.ReleasePairKey(ctx, tx, chat.ID)
	})
	if err != nil {
		return LeaveResult{}, err
	}

	events.Emit(ctx, s.Events, events.ChatLeft, map[string]any{
		"chat_id":    chat.ID,
		"chat_token": chat.Token,
		"user_id":    u.ID,
	})
	if res.ChatDeleted {
		events.Emit(ctx, s.Events, events.ChatDeleted, map[string]any{
			"chat_id":    chat.ID,
			"chat_token": chat.Token,
			"reason":     "empty",
		})
	}
	return res, nil
}

// Delete removes an ephemeral chat with everything in it. Only its creator
// (earliest member) or an admin may do so. asAdmin reports whether the
// caller holds the admin role.
func (s *ChatService) Delete(ctx context.Context, u *domain.User, chatToken string) (asAdmin bool, err error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int("user.id", int(u.ID))),
	)
	defer span.End()

	asAdmin = u.IsAdmin()
	var chat *domain.Chat
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		chat, err = repo.GetChatByToken(ctx, tx, chatToken)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrChatNotFound
			}
			return err
		}
		if !chat.Ephemeral {
			return ErrNotEphemeralChat
		}

		creator := false
		first, err := repo.EarliestMember(ctx, tx, chat.ID)
		switch {
		case err == nil:
			creator = first.UserID == u.ID
		case !repo.IsNotFound(err):
			return err
		}
		if !creator && !asAdmin {
			return ErrNotChatCreator
		}
		return repo.DeleteChat(ctx, tx, chat.ID)
	})
	if err != nil {
		return asAdmin, err
	}

	events.Emit(ctx, s.Events, events.ChatDeleted, map[string]any{
		"chat_id":    chat.ID,
		"chat_token": chat.Token,
		"deleted_by": u.ID,
		"reason":     "deleted",
	})
	return asAdmin, nil
}

func (s *ChatService) emitMessage(ctx context.Context, chat *domain.Chat, msg *domain.Message) {
	events.Emit(ctx, s.Events, events.MessageSent, map[string]any{
		"message_id": msg.ID,
		"chat_id":    chat.ID,
		"chat_token": chat.Token,
		"chat_type":  chat.Type,
		"user_id":    msg.UserID,
	})
}
