// Package services – UserService
//
// UserService covers profile reads and updates, proximity search and account
// deletion. Proximity search narrows the candidate rows with a bounding box
// in SQL and then applies the exact haversine distance in memory.
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
	"github.com/tbourn/go-geochat-backend/internal/geo"
	"github.com/tbourn/go-geochat-backend/internal/repo"
	"github.com/tbourn/go-geochat-backend/internal/utils"
)

const (
	defaultRadiusKm = 5.0
	defaultPerPage  = 20
	maxPerPage      = 100
)

// UserService manages profiles, proximity search and account deletion.
type UserService struct {
	DB       *gorm.DB
	Sessions Sessions
	Hasher   auth.Hasher
	Events   events.Publisher
	RadiusKm float64
	Now      func() time.Time
}

// NewUserService wires a UserService with the default 5 km radius.
func NewUserService(db *gorm.DB, sessions Sessions, hasher auth.Hasher, pub events.Publisher) *UserService {
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}
	return &UserService{DB: db, Sessions: sessions, Hasher: hasher, Events: pub, RadiusKm: defaultRadiusKm}
}

// ProfileUpdate lists the optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	Username  *string
	Email     *string
	Latitude  *float64
	Longitude *float64
	Password  *string
	Online    *bool
}

// UpdateProfile applies upd to u and refreshes its last-seen time. A new
// e-mail that belongs to someone else yields ErrEmailTaken.
func (s *UserService) UpdateProfile(ctx context.Context, u *domain.User, upd ProfileUpdate) (*domain.User, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "UpdateProfile",
		trace.WithAttributes(attribute.Int("user.id", int(u.ID))),
	)
	defer span.End()

	fields := map[string]any{}
	if upd.Username != nil {
		fields["username"] = NormalizeText(*upd.Username)
	}
	if upd.Email != nil {
		email := NormalizeEmail(*upd.Email)
		taken, err := repo.EmailTaken(ctx, s.DB, email, u.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailTaken
		}
		fields["email"] = email
	}
	if upd.Latitude != nil {
		fields["latitude"] = *upd.Latitude
	}
	if upd.Longitude != nil {
		fields["longitude"] = *upd.Longitude
	}
	if upd.Password != nil {
		hash, err := s.Hasher.Hash(*upd.Password)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hash
	}
	if upd.Online != nil {
		fields["online"] = *upd.Online
	}
	fields["last_seen_at"] = now(s.Now)

	if err := repo.UpdateUser(ctx, s.DB, u.ID, fields); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrEmailTaken
		case repo.IsNotFound(err):
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return repo.GetUser(ctx, s.DB, u.ID)
}

// NearbyUser is one hit of a proximity search.
type NearbyUser struct {
	User       domain.User
	DistanceKm float64
}

// NearbyPage is one page of a proximity search.
type NearbyPage struct {
	Users   []NearbyUser
	Total   int
	Page    int
	PerPage int
}

// Nearby lists users within the configured radius of center (or of the
// caller's stored location when center is nil), excluding the caller,
// nearest first. Distances are rounded to three decimals.
func (s *UserService) Nearby(ctx context.Context, caller *domain.User, center *geo.Point, page, perPage int) (NearbyPage, error) {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Nearby",
		trace.WithAttributes(
			attribute.Int("user.id", int(caller.ID)),
			attribute.Int("page", page),
			attribute.Int("per_page", perPage),
		),
	)
	defer span.End()

	page, perPage = utils.ClampPage(page, perPage, defaultPerPage, maxPerPage)

	var c geo.Point
	switch {
	case center != nil:
		c = *center
	case caller.HasLocation():
		c = geo.Point{Lat: *caller.Latitude, Lon: *caller.Longitude}
	default:
		return NearbyPage{}, ErrNoLocation
	}

	radius := s.RadiusKm
	if radius <= 0 {
		radius = defaultRadiusKm
	}

	var boxArg *geo.Box
	if box, ok := geo.BoundAround(c, radius); ok {
		boxArg = &box
	}
	candidates, err := repo.ListLocatedUsers(ctx, s.DB, boxArg)
	if err != nil {
		return NearbyPage{}, err
	}

	hits := geo.Within(c, radius, candidates, func(u domain.User) (geo.Point, bool) {
		if u.ID == caller.ID || !u.HasLocation() {
			return geo.Point{}, false
		}
		return geo.Point{Lat: *u.Latitude, Lon: *u.Longitude}, true
	})

	all := make([]NearbyUser, 0, len(hits))
	for _, h := range hits {
		all = append(all, NearbyUser{User: h.Item, DistanceKm: geo.RoundTo(h.DistanceKm, 3)})
	}
	span.SetAttributes(attribute.Int("nearby.total", len(all)))

	return NearbyPage{
		Users:   utils.Page(all, page, perPage),
		Total:   len(all),
		Page:    page,
		PerPage: perPage,
	}, nil
}

// Delete removes target on behalf of requester. Only the account owner or an
// admin may delete, and admin accounts are never deleted. The target's
// session is revoked and private chats left empty are removed.
func (s *UserService) Delete(ctx context.Context, requester, target *domain.User) error {
	ctx, span := otel.Tracer("services/UserService").Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.Int("user.id", int(requester.ID)),
			attribute.Int("target.id", int(target.ID)),
		),
	)
	defer span.End()

	if requester.ID != target.ID && !requester.IsAdmin() {
		return ErrForbidden
	}
	if target.IsAdmin() {
		return ErrAdminProtected
	}

	var removed []uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		removed, err = repo.DeleteUser(ctx, tx, target.ID)
		return err
	})
	if err != nil {
		if repo.IsNotFound(err) {
			return ErrTargetNotFound
		}
		return err
	}

	if s.Sessions != nil {
		if err := s.Sessions.RevokeUser(ctx, target.ID); err != nil {
			trace.SpanFromContext(ctx).RecordError(err)
		}
	}

	events.Emit(ctx, s.Events, events.UserDeleted, map[string]any{
		"user_id":    target.ID,
		"deleted_by": requester.ID,
	})
	for _, id := range removed {
		events.Emit(ctx, s.Events, events.ChatDeleted, map[string]any{"chat_id": id, "reason": "empty"})
	}
	return nil
}
