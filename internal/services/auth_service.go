// Package services – AuthService
//
// AuthService owns account creation, credential checks and the session
// token lifecycle. Every other service receives an already authenticated
// *domain.User from the handlers, which call Authenticate (for the caller's
// token) and ResolveTarget (for tokens that name another user).
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
)

// AuthService registers users, logs them in and out, and resolves tokens.
type AuthService struct {
	DB       *gorm.DB
	Sessions Sessions
	Hasher   auth.Hasher
	Events   events.Publisher
	Now      func() time.Time
}

// NewAuthService wires an AuthService; a nil hasher defaults to bcrypt.
func NewAuthService(db *gorm.DB, sessions Sessions, hasher auth.Hasher, pub events.Publisher) *AuthService {
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}
	return &AuthService{DB: db, Sessions: sessions, Hasher: hasher, Events: pub}
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	Latitude  float64
	Longitude float64
}

// Register creates an online account located at the given point and issues
// its first session token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, string, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Register")
	defer span.End()

	email := NormalizeEmail(in.Email)
	if _, err := repo.GetUserByEmail(ctx, s.DB, email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !repo.IsNotFound(err) {
		return nil, "", err
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, "", err
	}
	accountToken, err := auth.NewToken()
	if err != nil {
		return nil, "", err
	}

	ts := now(s.Now)
	lat, lon := in.Latitude, in.Longitude
	u := &domain.User{
		Email:        email,
		Username:     NormalizeText(in.Username),
		PasswordHash: hash,
		Roles:        []string{domain.RoleUser},
		Latitude:     &lat,
		Longitude:    &lon,
		LastSeenAt:   &ts,
		Online:       true,
		UserToken:    accountToken,
		CreatedAt:    ts,
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}
	span.SetAttributes(attribute.Int("user.id", int(u.ID)))

	tok, err := s.Sessions.Issue(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}

	events.Emit(ctx, s.Events, events.UserRegistered, map[string]any{
		"user_id":  u.ID,
		"username": u.Username,
	})
	return u, tok, nil
}

// LoginInput carries the fields of a login request.
type LoginInput struct {
	Email     string
	Password  string
	Latitude  float64
	Longitude float64
}

// Login checks credentials, marks the user online at the given point and
// issues a new session token. Any previous token of the user stops working.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*domain.User, string, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Login")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, NormalizeEmail(in.Email))
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !auth.Verify(u.PasswordHash, in.Password) {
		return nil, "", ErrInvalidCredentials
	}
	span.SetAttributes(attribute.Int("user.id", int(u.ID)))

	ts := now(s.Now)
	fields := map[string]any{
		"online":       true,
		"latitude":     in.Latitude,
		"longitude":    in.Longitude,
		"last_seen_at": ts,
	}
	if err := repo.UpdateUser(ctx, s.DB, u.ID, fields); err != nil {
		return nil, "", err
	}
	lat, lon := in.Latitude, in.Longitude
	u.Online, u.Latitude, u.Longitude, u.LastSeenAt = true, &lat, &lon, &ts

	tok, err := s.Sessions.Issue(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, tok, nil
}

// Logout marks the token's user offline and revokes the token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "Logout")
	defer span.End()

	u, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := repo.UpdateUser(ctx, s.DB, u.ID, map[string]any{"online": false}); err != nil {
		return err
	}
	return s.Sessions.Revoke(ctx, token)
}

// Authenticate resolves the caller's session token. It returns
// ErrUnauthenticated when the token is unknown and ErrUserNotFound when it
// points at a deleted account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	id, ok := s.Sessions.Resolve(ctx, token)
	if !ok {
		return nil, ErrUnauthenticated
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("user.id", int(id)))
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// ResolveTarget resolves a token naming another user. Session tokens are
// tried first, then the persistent per-account token, so users who are
// logged out can still be addressed.
func (s *AuthService) ResolveTarget(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrTargetTokenInvalid
	}
	if id, ok := s.Sessions.Resolve(ctx, token); ok {
		u, err := repo.GetUser(ctx, s.DB, id)
		if err != nil {
			if repo.IsNotFound(err) {
				return nil, ErrTargetNotFound
			}
			return nil, err
		}
		return u, nil
	}
	u, err := repo.GetUserByToken(ctx, s.DB, token)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrTargetTokenInvalid
		}
		return nil, err
	}
	return u, nil
}
