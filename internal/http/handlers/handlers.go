// Handler wiring.
//
// Handlers are transport-thin: they decode and validate the request, run the
// API key and token checks of their endpoint family, call an application
// service, and translate the result (or the service error) into the
// envelope with the endpoint's error code.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-geochat-backend/internal/auth"
	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/geo"
	"github.com/tbourn/go-geochat-backend/internal/http/middleware"
	"github.com/tbourn/go-geochat-backend/internal/repo"
	"github.com/tbourn/go-geochat-backend/internal/services"
	"github.com/tbourn/go-geochat-backend/internal/store"
)

//
// Service contracts (context-aware)
//

// AuthService registers, logs in and out, and resolves tokens.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*domain.User, string, error)
	Login(ctx context.Context, in services.LoginInput) (*domain.User, string, error)
	Logout(ctx context.Context, token string) error
	// Authenticate resolves the caller's session token.
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	// ResolveTarget resolves a token naming another user.
	ResolveTarget(ctx context.Context, token string) (*domain.User, error)
}

// UserService manages profiles and proximity search.
type UserService interface {
	UpdateProfile(ctx context.Context, u *domain.User, upd services.ProfileUpdate) (*domain.User, error)
	Nearby(ctx context.Context, caller *domain.User, center *geo.Point, page, perPage int) (services.NearbyPage, error)
	Delete(ctx context.Context, requester, target *domain.User) error
}

// ChatService runs the general and private chats.
type ChatService interface {
	SendGeneral(ctx context.Context, u *domain.User, chatToken, body string) (*domain.Message, *domain.Chat, error)
	GeneralMembers(ctx context.Context) ([]repo.MemberRow, bool, error)
	OpenPrivate(ctx context.Context, caller, other *domain.User) (*domain.Chat, bool, error)
	PrivateMessages(ctx context.Context, u *domain.User, chatToken string, sinceID uint, limit int) ([]repo.MessageRow, int, error)
	SendPrivate(ctx context.Context, u *domain.User, chatToken, body string) (*domain.Message, *domain.Chat, error)
	Leave(ctx context.Context, u *domain.User, chatToken string) (services.LeaveResult, error)
	Delete(ctx context.Context, u *domain.User, chatToken string) (bool, error)
}

// InvitationService runs the invitation workflow.
type InvitationService interface {
	Invite(ctx context.Context, inviter, invitee *domain.User, chatToken string) (*services.Invited, error)
	Reject(ctx context.Context, u *domain.User, key string) (store.Invitation, error)
	Accept(ctx context.Context, u *domain.User, key string) (*services.Accepted, error)
	Cancel(ctx context.Context, u *domain.User, key string) (store.Invitation, error)
	TTL() time.Duration
}

// BlockService manages user blocks.
type BlockService interface {
	Block(ctx context.Context, blocker, blocked *domain.User) (*domain.Block, error)
	Unblock(ctx context.Context, blocker, blocked *domain.User) (uint, error)
	List(ctx context.Context, blocker *domain.User) ([]repo.BlockedRow, error)
}

// PollService aggregates the poll response.
type PollService interface {
	Poll(ctx context.Context, u *domain.User, in services.PollInput) (*services.PollResult, error)
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers. APIKey is the shared client key;
// an empty key makes every keyed endpoint answer AUTH_007.
type Deps struct {
	Auth        AuthService
	Users       UserService
	Chats       ChatService
	Invitations InvitationService
	Blocks      BlockService
	Poll        PollService
	APIKey      string
	Now         func() time.Time
}

// Handlers groups every HTTP endpoint of the API.
type Handlers struct {
	auth   AuthService
	users  UserService
	chats  ChatService
	inv    InvitationService
	blocks BlockService
	poll   PollService
	apiKey string
	now    func() time.Time
}

// New constructs Handlers bound to the given services.
func New(d Deps) *Handlers {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		auth:   d.Auth,
		users:  d.Users,
		chats:  d.Chats,
		inv:    d.Invitations,
		blocks: d.Blocks,
		poll:   d.Poll,
		apiKey: strings.TrimSpace(d.APIKey),
		now:    now,
	}
}

//
// Credentials
//

// UserTokenAuth are the credentials of the chat, invitation and poll
// endpoints. The API key is checked before validation.
type UserTokenAuth struct {
	APIKey    string `json:"api_key" example:"secret"`
	UserToken string `json:"user_token" validate:"required" code:"AUTH_003" msg:"user_token requerido" example:"a3f1c9e07b2d"`
}

// SessionAuth are the credentials of the user and block endpoints.
type SessionAuth struct {
	APIKey    string `json:"api_key" validate:"required" code:"AUTH_001" msg:"api_key y token_user requeridos" example:"secret"`
	TokenUser string `json:"token_user" validate:"required" code:"AUTH_001" msg:"api_key y token_user requeridos" example:"a3f1c9e07b2d"`
}

func (a *UserTokenAuth) userToken() *UserTokenAuth { return a }

// userTokenRequest is any request embedding UserTokenAuth.
type userTokenRequest interface{ userToken() *UserTokenAuth }

// checkKey answers AUTH_007 when no key is configured and code/msg with
// status when provided does not match.
func (h *Handlers) checkKey(c *gin.Context, provided string, status int, code, msg string) bool {
	if h.apiKey == "" {
		fail(c, http.StatusInternalServerError, CodeAPIKeyUnset, msgAPIKeyUnset)
		return false
	}
	if !auth.APIKeyMatches(h.apiKey, strings.TrimSpace(provided)) {
		fail(c, status, code, msg)
		return false
	}
	return true
}

// apiKeyOK is the standard key check: mismatch answers AUTH_006.
func (h *Handlers) apiKeyOK(c *gin.Context, provided string) bool {
	return h.checkKey(c, provided, http.StatusUnauthorized, CodeAPIKeyInvalid, msgInvalidAPIKey)
}

// validated reports whether req passed validation, answering otherwise.
func validated(c *gin.Context, req any) bool {
	if ve := validateRequest(req); ve != nil {
		fail(c, ve.Status, ve.Code, ve.Message)
		return false
	}
	return true
}

// chatCaller binds req and runs the user_token family checks: api_key
// presence (AUTH_001), key, field validation, then the session token
// (AUTH_002 / USER_001).
func (h *Handlers) chatCaller(c *gin.Context, req userTokenRequest) (*domain.User, bool) {
	if !h.chatRequest(c, req) {
		return nil, false
	}
	return h.caller(c, req.userToken().UserToken)
}

// chatRequest is the part of chatCaller that precedes token resolution, for
// endpoints with checks of their own in between.
func (h *Handlers) chatRequest(c *gin.Context, req userTokenRequest) bool {
	bind(c, req)
	creds := req.userToken()
	if strings.TrimSpace(creds.APIKey) == "" {
		fail(c, http.StatusBadRequest, CodeMissingCredentials, "api_key requerido")
		return false
	}
	return h.apiKeyOK(c, creds.APIKey) && validated(c, req)
}

// caller resolves the session token of a user_token request.
func (h *Handlers) caller(c *gin.Context, token string) (*domain.User, bool) {
	u, err := h.auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, CodeInvalidToken, msgTokenExpired)
		return nil, false
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, CodeUserNotFound, msgUserNotFound)
		return nil, false
	default:
		internal(c, CodeInternal, msgInternal, err)
		return nil, false
	}
	setCaller(c, u)
	return u, true
}

// sessionCaller binds req and runs the token_user family checks: field
// validation (AUTH_001 first), key, then the session token
// (AUTH_009 / AUTH_010). creds must point into req.
func (h *Handlers) sessionCaller(c *gin.Context, req any, creds *SessionAuth, goneMsg string) (*domain.User, bool) {
	bind(c, req)
	if !validated(c, req) {
		return nil, false
	}
	if !h.apiKeyOK(c, creds.APIKey) {
		return nil, false
	}

	u, err := h.auth.Authenticate(c.Request.Context(), strings.TrimSpace(creds.TokenUser))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, CodeSessionInvalid, msgTokenExpired)
		return nil, false
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, CodeSessionUserGone, goneMsg)
		return nil, false
	default:
		internal(c, CodeInternal, msgInternal, err)
		return nil, false
	}
	setCaller(c, u)
	return u, true
}

// setCaller exposes the authenticated user id to the access log.
func setCaller(c *gin.Context, u *domain.User) {
	c.Set(middleware.UserIDKey, strconv.FormatUint(uint64(u.ID), 10))
}

// pathToken returns the trimmed :token path parameter.
func pathToken(c *gin.Context) string { return strings.TrimSpace(c.Param("token")) }
