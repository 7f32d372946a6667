package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/events"
	"github.com/tbourn/go-geochat-backend/internal/repo"
	"github.com/tbourn/go-geochat-backend/internal/store"
)

// inviteSetup returns a private chat between a and b plus an outsider c.
func inviteSetup(t *testing.T, e *testEnv) (a, b, c *domain.User, chat *domain.Chat) {
	t.Helper()
	a, _ = e.register(t, "a", 0, 0)
	b, _ = e.register(t, "b", 0, 0)
	c, _ = e.register(t, "c", 0, 0)
	chat, _, err := e.chats.OpenPrivate(context.Background(), a, b)
	if err != nil {
		t.Fatalf("OpenPrivate: %v", err)
	}
	return a, b, c, chat
}

func TestInvitationService_InviteAndAccept(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _, c, chat := inviteSetup(t, e)

	inv, err := e.invs.Invite(ctx, a, c, chat.Token)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if inv.Key != store.Key(chat.Token, c.UserToken) || inv.Invitation.InviterID != a.ID || inv.Invitation.InvitedID != c.ID {
		t.Fatalf("invitation = %+v", inv)
	}
	if inv.Invitation.ChatType != domain.ChatTypePrivate || e.invs.TTL() != 24*time.Hour {
		t.Fatalf("chat type %q ttl %v", inv.Invitation.ChatType, e.invs.TTL())
	}

	if _, err := e.invs.Invite(ctx, a, c, chat.Token); !errors.Is(err, ErrInvitationPending) {
		t.Fatalf("duplicate invite = %v", err)
	}
	if _, err := e.invs.Accept(ctx, a, inv.Key); !errors.Is(err, ErrNotInvitee) {
		t.Fatalf("accept by inviter = %v", err)
	}

	acc, err := e.invs.Accept(ctx, c, inv.Key)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if acc.Chat.ID != chat.ID || acc.Membership.UserID != c.ID {
		t.Fatalf("accepted = %+v", acc)
	}
	if ok, _ := repo.IsMember(ctx, e.db, chat.ID, c.ID); !ok {
		t.Fatalf("invitee not joined")
	}

	if _, err := e.invs.Accept(ctx, c, inv.Key); !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("second accept = %v", err)
	}
	if e.pub.count(events.InvitationCreated) != 1 || e.pub.count(events.InvitationAccepted) != 1 {
		t.Fatalf("events = %v", e.pub.keys)
	}
}

func TestInvitationService_InviteChecks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, c, chat := inviteSetup(t, e)
	outsider, _ := e.register(t, "d", 0, 0)

	if _, err := e.invs.Invite(ctx, a, a, chat.Token); !errors.Is(err, ErrSelfTarget) {
		t.Fatalf("self = %v", err)
	}
	if _, err := e.invs.Invite(ctx, a, c, "nope"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("missing chat = %v", err)
	}
	if _, err := e.invs.Invite(ctx, outsider, c, chat.Token); !errors.Is(err, ErrNotMember) {
		t.Fatalf("outsider inviting = %v", err)
	}
	if _, err := e.invs.Invite(ctx, a, b, chat.Token); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("member invited = %v", err)
	}
}

func TestInvitationService_AcceptWhenAlreadyMember(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _, c, chat := inviteSetup(t, e)

	inv, err := e.invs.Invite(ctx, a, c, chat.Token)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if _, err := repo.AddMembership(ctx, e.db, chat.ID, c.ID, time.Now()); err != nil {
		t.Fatalf("AddMembership: %v", err)
	}
	if _, err := e.invs.Accept(ctx, c, inv.Key); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("accept as member = %v", err)
	}
	if _, err := e.invites.Get(ctx, inv.Key); !errors.Is(err, store.ErrInvitationNotFound) {
		t.Fatalf("stale invitation kept: %v", err)
	}
}

func TestInvitationService_AcceptDeletedChat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, _, c, chat := inviteSetup(t, e)

	inv, _ := e.invs.Invite(ctx, a, c, chat.Token)
	if _, err := e.chats.Delete(ctx, a, chat.Token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.invs.Accept(ctx, c, inv.Key); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("accept into deleted chat = %v", err)
	}
}

func TestInvitationService_RejectAndCancel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a, b, c, chat := inviteSetup(t, e)

	inv, _ := e.invs.Invite(ctx, a, c, chat.Token)
	if _, err := e.invs.Reject(ctx, b, inv.Key); !errors.Is(err, ErrNotInvitee) {
		t.Fatalf("reject by third party = %v", err)
	}
	got, err := e.invs.Reject(ctx, c, inv.Key)
	if err != nil || got.InviterID != a.ID {
		t.Fatalf("Reject = %+v, %v", got, err)
	}
	if _, err := e.invs.Reject(ctx, c, inv.Key); !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("reject twice = %v", err)
	}

	// A rejected invitation can be re-sent, then withdrawn.
	inv, err = e.invs.Invite(ctx, a, c, chat.Token)
	if err != nil {
		t.Fatalf("re-invite: %v", err)
	}
	if _, err := e.invs.Cancel(ctx, c, inv.Key); !errors.Is(err, ErrNotInviter) {
		t.Fatalf("cancel by invitee = %v", err)
	}
	if _, err := e.invs.Cancel(ctx, a, inv.Key); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := e.invs.Accept(ctx, c, inv.Key); !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("accept cancelled = %v", err)
	}
	if e.pub.count(events.InvitationRejected) != 1 || e.pub.count(events.InvitationCanceled) != 1 {
		t.Fatalf("events = %v", e.pub.keys)
	}
}

func TestInvitationService_Expiry(t *testing.T) {
	e := newEnvTTL(t, 50*time.Millisecond)
	ctx := context.Background()
	a, _, c, chat := inviteSetup(t, e)

	inv, err := e.invs.Invite(ctx, a, c, chat.Token)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	time.Sleep(120 * time.Millisecond)

	if _, err := e.invs.Accept(ctx, c, inv.Key); !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("accept expired = %v", err)
	}
	// Expiry frees the slot for a fresh invitation.
	if _, err := e.invs.Invite(ctx, a, c, chat.Token); err != nil {
		t.Fatalf("invite after expiry: %v", err)
	}
}
