package services

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-geochat-backend/internal/store"
)

// Sessions maps bearer tokens to user ids. *store.SessionStore implements it.
type Sessions interface {
	Issue(ctx context.Context, userID uint) (string, error)
	Resolve(ctx context.Context, token string) (uint, bool)
	Revoke(ctx context.Context, token string) error
	RevokeUser(ctx context.Context, userID uint) error
}

// Invitations holds pending invitations. *store.InvitationStore implements it.
type Invitations interface {
	Create(ctx context.Context, key string, inv store.Invitation) (store.Invitation, error)
	Get(ctx context.Context, key string) (store.Invitation, error)
	Delete(ctx context.Context, key string) error
	TTL() time.Duration
}

// DateLayout is the wire format of every timestamp the API returns.
const DateLayout = "2006-01-02 15:04:05"

// now returns clock() in UTC, or the wall clock when clock is nil. SQLite
// compares times as text, so everything stored is UTC.
func now(clock func() time.Time) time.Time {
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}

// NormalizeEmail trims and case-folds an e-mail address. A Caser keeps
// state, so a fresh one is built per call.
func NormalizeEmail(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// NormalizeText trims s and converts it to NFC so that visually identical
// strings compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
