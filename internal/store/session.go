package store

import (
	"context"
	"strconv"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tbourn/go-geochat-backend/internal/auth"
)

const (
	tokenKeyPrefix = "token_"
	userKeyPrefix  = "user_"
)

// SessionStore maps bearer tokens to user ids and back. Each user holds at
// most one live token: issuing a new one removes the previous mapping.
type SessionStore struct {
	kv Backend
	mu sync.Mutex // serializes Issue/Revoke so the two directions stay paired
}

// NewSessionStore wraps kv.
func NewSessionStore(kv Backend) *SessionStore {
	return &SessionStore{kv: kv}
}

func tokenKey(tok string) string { return tokenKeyPrefix + tok }
func userKey(userID uint) string { return userKeyPrefix + strconv.FormatUint(uint64(userID), 10) }

// Issue creates a fresh token for userID and revokes the one it replaces.
func (s *SessionStore) Issue(ctx context.Context, userID uint) (string, error) {
	tok, err := auth.NewToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tokenFor(ctx, userID); ok {
		_ = s.kv.Delete(ctx, tokenKey(old))
	}

	idRaw, _ := json.Marshal(userID)
	tokRaw, _ := json.Marshal(tok)
	if err := s.kv.Set(ctx, tokenKey(tok), idRaw, 0); err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, userKey(userID), tokRaw, 0); err != nil {
		_ = s.kv.Delete(ctx, tokenKey(tok))
		return "", err
	}
	return tok, nil
}

// Resolve returns the user id for tok. Backend failures read as not found.
func (s *SessionStore) Resolve(ctx context.Context, tok string) (uint, bool) {
	if tok == "" {
		return 0, false
	}
	raw, ok, err := s.kv.Get(ctx, tokenKey(tok))
	if err != nil || !ok {
		return 0, false
	}
	var id uint
	if err := json.Unmarshal(raw, &id); err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// Revoke removes tok and, when it is still the user's current token, the
// reverse mapping too.
func (s *SessionStore) Revoke(ctx context.Context, tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := []string{tokenKey(tok)}
	if id, ok := s.Resolve(ctx, tok); ok {
		if cur, ok := s.tokenFor(ctx, id); ok && cur == tok {
			keys = append(keys, userKey(id))
		}
	}
	return s.kv.Delete(ctx, keys...)
}

// RevokeUser removes whatever token userID currently holds.
func (s *SessionStore) RevokeUser(ctx context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := []string{userKey(userID)}
	if tok, ok := s.tokenFor(ctx, userID); ok {
		keys = append(keys, tokenKey(tok))
	}
	return s.kv.Delete(ctx, keys...)
}

// CurrentToken returns the live token of userID, if any.
func (s *SessionStore) CurrentToken(ctx context.Context, userID uint) (string, bool) {
	return s.tokenFor(ctx, userID)
}

func (s *SessionStore) tokenFor(ctx context.Context, userID uint) (string, bool) {
	raw, ok, err := s.kv.Get(ctx, userKey(userID))
	if err != nil || !ok {
		return "", false
	}
	var tok string
	if err := json.Unmarshal(raw, &tok); err != nil || tok == "" {
		return "", false
	}
	return tok, true
}
