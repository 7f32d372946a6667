package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Invitation store errors.
var (
	ErrInvitationExists   = errors.New("store: invitation already pending")
	ErrInvitationNotFound = errors.New("store: invitation not found")
	ErrInvalidInvitation  = errors.New("store: invitation payload unreadable")
)

// Invitation is a pending offer for InvitedID to join a chat.
type Invitation struct {
	InviterID       uint   `json:"inviter_id"`
	InviterUsername string `json:"inviter_username"`
	InvitedID       uint   `json:"invited_id"`
	InvitedUsername string `json:"invited_username"`
	ChatID          uint   `json:"chat_id"`
	ChatToken       string `json:"chat_token"`
	ChatType        string `json:"chat_tipo"`
	Timestamp       int64  `json:"timestamp"`
}

// InvitationStore keeps pending invitations with a fixed TTL. Keys are
// derived from the chat and the invitee, so a pair has at most one pending
// invitation.
type InvitationStore struct {
	kv  Backend
	ttl time.Duration
	mu  sync.Mutex
	now func() time.Time
}

// NewInvitationStore wraps kv; invitations expire after ttl.
func NewInvitationStore(kv Backend, ttl time.Duration) *InvitationStore {
	return &InvitationStore{kv: kv, ttl: ttl, now: time.Now}
}

// TTL returns the invitation lifetime.
func (s *InvitationStore) TTL() time.Duration { return s.ttl }

// Key returns the invitation key for (chatToken, invitedUserToken).
func Key(chatToken, invitedUserToken string) string {
	return "invitation_" + chatToken + "_" + invitedUserToken
}

// Create stores inv under key unless a live invitation already exists there.
// Timestamp is set to the creation time when zero.
func (s *InvitationStore) Create(ctx context.Context, key string, inv Invitation) (Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, _ := s.kv.Get(ctx, key); ok {
		return Invitation{}, ErrInvitationExists
	}
	if inv.Timestamp == 0 {
		inv.Timestamp = s.now().Unix()
	}
	raw, err := json.Marshal(inv)
	if err != nil {
		return Invitation{}, err
	}
	if err := s.kv.Set(ctx, key, raw, s.ttl); err != nil {
		return Invitation{}, err
	}
	return inv, nil
}

// Get returns the live invitation stored under key.
func (s *InvitationStore) Get(ctx context.Context, key string) (Invitation, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return Invitation{}, ErrInvitationNotFound
	}
	var inv Invitation
	if err := json.Unmarshal(raw, &inv); err != nil || inv.ChatToken == "" || inv.InvitedID == 0 {
		return Invitation{}, ErrInvalidInvitation
	}
	return inv, nil
}

// Delete removes key from every backend.
func (s *InvitationStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, key)
}
