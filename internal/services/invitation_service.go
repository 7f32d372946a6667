// Package services – InvitationService
//
// Invitations are not persisted as entities: they live in the invitation
// store under a key derived from the chat token and the invitee's token, so
// a (chat, invitee) pair has at most one pending invitation. Each one ends
// in exactly one of accepted, rejected, cancelled or expired.
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
	"github.com/tbourn/go-geochat-backend/internal/store"
)

// InvitationService runs the invite / accept / reject / cancel workflow.
type InvitationService struct {
	DB          *gorm.DB
	Invitations Invitations
	Events      events.Publisher
	Now         func() time.Time
}

// NewInvitationService wires an InvitationService.
func NewInvitationService(db *gorm.DB, inv Invitations, pub events.Publisher) *InvitationService {
	return &InvitationService{DB: db, Invitations: inv, Events: pub}
}

// Invited is the result of a successful Invite.
type Invited struct {
	Key        string
	Invitation store.Invitation
	Chat       *domain.Chat
	Invitee    *domain.User
}

// Invite lets inviter, a member of the chat identified by chatToken, invite
// invitee. The key is built from the invitee's permanent user token, so a
// (chat, invitee) pair holds at most one pending invitation however the
// invitee was addressed.
func (s *InvitationService) Invite(ctx context.Context, inviter, invitee *domain.User, chatToken string) (*Invited, error) {
	ctx, span := otel.Tracer("services/InvitationService").Start(ctx, "Invite",
		trace.WithAttributes(
			attribute.Int("user.id", int(inviter.ID)),
			attribute.Int("invitee.id", int(invitee.ID)),
		),
	)
	defer span.End()

	if inviter.ID == invitee.ID {
		return nil, ErrSelfTarget
	}

	chat, err := repo.GetChatByToken(ctx, s.DB, chatToken)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	member, err := repo.IsMember(ctx, s.DB, chat.ID, inviter.ID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotMember
	}
	if member, err = repo.IsMember(ctx, s.DB, chat.ID, invitee.ID); err != nil {
		return nil, err
	}
	if member {
		return nil, ErrAlreadyMember
	}

	key := store.Key(chat.Token, invitee.UserToken)
	inv, err := s.Invitations.Create(ctx, key, store.Invitation{
		InviterID:       inviter.ID,
		InviterUsername: inviter.Username,
		InvitedID:       invitee.ID,
		InvitedUsername: invitee.Username,
		ChatID:          chat.ID,
		ChatToken:       chat.Token,
		ChatType:        chat.Type,
		Timestamp:       now(s.Now).Unix(),
	})
	if err != nil {
		if errors.Is(err, store.ErrInvitationExists) {
			return nil, ErrInvitationPending
		}
		return nil, err
	}

	events.Emit(ctx, s.Events, events.InvitationCreated, map[string]any{
		"key":        key,
		"chat_id":    chat.ID,
		"inviter_id": inviter.ID,
		"invited_id": invitee.ID,
	})
	return &Invited{Key: key, Invitation: inv, Chat: chat, Invitee: invitee}, nil
}

// TTL returns how long an invitation stays pending.
func (s *InvitationService) TTL() time.Duration { return s.Invitations.TTL() }

// load fetches key and translates store errors.
func (s *InvitationService) load(ctx context.Context, key string) (store.Invitation, error) {
	inv, err := s.Invitations.Get(ctx, key)
	switch {
	case err == nil:
		return inv, nil
	case errors.Is(err, store.ErrInvitationNotFound):
		return store.Invitation{}, ErrInvitationNotFound
	case errors.Is(err, store.ErrInvalidInvitation):
		return store.Invitation{}, ErrInvitationInvalid
	}
	return store.Invitation{}, err
}

// Reject lets the invitee turn the invitation down.
func (s *InvitationService) Reject(ctx context.Context, u *domain.User, key string) (store.Invitation, error) {
	ctx, span := otel.Tracer("services/InvitationService").Start(ctx, "Reject",
		trace.WithAttributes(attribute.Int("user.id", int(u.ID))),
	)
	defer span.End()

	inv, err := s.load(ctx, key)
	if err != nil {
		return inv, err
	}
	if inv.InvitedID != u.ID {
		return inv, ErrNotInvitee
	}
	if err := s.Invitations.Delete(ctx, key); err != nil {
		return inv, err
	}
	events.Emit(ctx, s.Events, events.InvitationRejected, map[string]any{
		"key":        key,
		"chat_id":    inv.ChatID,
		"invited_id": u.ID,
	})
	return inv, nil
}

// Accepted is the result of a successful Accept.
type Accepted struct {
	Invitation store.Invitation
	Chat       *domain.Chat
	Membership *domain.ChatMembership
}

// Accept joins the invitee to the chat and consumes the invitation. When the
// invitee is already a member the stale invitation is deleted and
// ErrAlreadyMember is returned. A second Accept fails with
// ErrInvitationNotFound.
func (s *InvitationService) Accept(ctx context.Context, u *domain.User, key string) (*Accepted, error) {
	ctx, span := otel.Tracer("services/InvitationService").Start(ctx, "Accept",
		trace.WithAttributes(attribute.Int("user.id", int(u.ID))),
	)
	defer span.End()

	inv, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if inv.InvitedID != u.ID {
		return nil, ErrNotInvitee
	}

	chat, err := repo.GetChatByID(ctx, s.DB, inv.ChatID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	m, err := repo.AddMembership(ctx, s.DB, chat.ID, u.ID, now(s.Now))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			_ = s.Invitations.Delete(ctx, key)
			return nil, ErrAlreadyMember
		}
		return nil, err
	}
	if err := s.Invitations.Delete(ctx, key); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
	}

	events.Emit(ctx, s.Events, events.InvitationAccepted, map[string]any{
		"key":        key,
		"chat_id":    chat.ID,
		"inviter_id": inv.InviterID,
		"invited_id": u.ID,
	})
	return &Accepted{Invitation: inv, Chat: chat, Membership: m}, nil
}

// Cancel lets the inviter withdraw the invitation.
func (s *InvitationService) Cancel(ctx context.Context, u *domain.User, key string) (store.Invitation, error) {
	ctx, span := otel.Tracer("services/InvitationService").Start(ctx, "Cancel",
		trace.WithAttributes(attribute.Int("user.id", int(u.ID))),
	)
	defer span.End()

	inv, err := s.load(ctx, key)
	if err != nil {
		return inv, err
	}
	if inv.InviterID != u.ID {
		return inv, ErrNotInviter
	}
	if err := s.Invitations.Delete(ctx, key); err != nil {
		return inv, err
	}
	events.Emit(ctx, s.Events, events.InvitationCanceled, map[string]any{
		"key":        key,
		"chat_id":    inv.ChatID,
		"inviter_id": u.ID,
	})
	return inv, nil
}
