// User HTTP handlers.
//
//   - POST   /usuarios/perfil   (own profile)
//   - PUT    /usuarios/perfil   (update own profile)
//   - GET    /usuarios          (nearby users, paginated; POST accepted too)
//   - POST   /usuarios/{token}  (public profile of another user)
//   - DELETE /usuarios/{token}  (delete an account; owner or admin)
//
// These endpoints authenticate with api_key + token_user.

package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/geo"
	"github.com/tbourn/go-geochat-backend/internal/services"
)

// ProfileRequest is the JSON payload of POST /usuarios/perfil and of the
// user-by-token endpoints.
type ProfileRequest struct {
	SessionAuth
}

// UpdateProfileRequest is the JSON payload of PUT /usuarios/perfil. Absent
// fields are left unchanged.
type UpdateProfileRequest struct {
	SessionAuth
	Username  *string    `json:"username,omitempty" example:"ana"`
	Email     *string    `json:"email,omitempty" example:"ana@example.com"`
	Latitude  *FlexFloat `json:"latitud,omitempty" swaggertype:"number" example:"40.4168"`
	Longitude *FlexFloat `json:"longitud,omitempty" swaggertype:"number" example:"-3.7038"`
	Password  *string    `json:"password,omitempty"`
	Online    *FlexBool  `json:"en_linea,omitempty" swaggertype:"boolean"`
}

// NearbyRequest is the JSON payload of /usuarios. Query parameters of the
// same name take precedence over the body.
type NearbyRequest struct {
	SessionAuth
	Lat     *FlexFloat `json:"lat,omitempty" swaggertype:"number" example:"40.4168"`
	Lon     *FlexFloat `json:"lon,omitempty" swaggertype:"number" example:"-3.7038"`
	Page    *FlexInt   `json:"page,omitempty" swaggertype:"integer" example:"1"`
	PerPage *FlexInt   `json:"per_page,omitempty" swaggertype:"integer" example:"20"`
}

// ProfileData is a user's own profile.
type ProfileData struct {
	UserID    uint     `json:"usuario_id" example:"7"`
	Username  string   `json:"username" example:"ana"`
	Email     string   `json:"email" example:"ana@example.com"`
	UserToken string   `json:"user_token,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Online    bool     `json:"en_linea"`
	Latitude  *float64 `json:"latitud"`
	Longitude *float64 `json:"longitud"`
	LastSeen  *string  `json:"ultima_conexion" example:"2025-01-31 18:04:05"`
}

// PublicUserData is what other users may see of an account.
type PublicUserData struct {
	UserID    uint     `json:"usuario_id" example:"7"`
	Username  string   `json:"username" example:"ana"`
	Online    bool     `json:"en_linea"`
	Latitude  *float64 `json:"latitud"`
	Longitude *float64 `json:"longitud"`
}

// NearbyUserData is one nearby user.
type NearbyUserData struct {
	UserID     uint    `json:"usuario_id" example:"9"`
	Username   string  `json:"username" example:"luis"`
	Email      string  `json:"email" example:"luis@example.com"`
	Online     bool    `json:"en_linea"`
	DistanceKm float64 `json:"distancia_km" example:"1.284"`
}

// NearbyData is one page of nearby users.
type NearbyData struct {
	Users   []NearbyUserData `json:"usuarios"`
	Total   int              `json:"total" example:"3"`
	Page    int              `json:"page" example:"1"`
	PerPage int              `json:"per_page" example:"20"`
}

// DeletedUserData confirms an account deletion.
type DeletedUserData struct {
	UserID  uint `json:"usuario_id" example:"9"`
	Deleted bool `json:"deleted" example:"true"`
}

func profileOf(u *domain.User) ProfileData {
	return ProfileData{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Online:    u.Online,
		Latitude:  u.Latitude,
		Longitude: u.Longitude,
		LastSeen:  formatTimePtr(u.LastSeenAt),
	}
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get own profile
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ProfileRequest  true  "Credentials"
// @Success     200   {object}  handlers.SuccessResponse{data=handlers.ProfileData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_001"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_006, AUTH_009"
// @Failure     404   {object}  handlers.ErrorResponse  "AUTH_010"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007"
// @Router      /usuarios/perfil [post]
func (h *Handlers) GetProfile(c *gin.Context) {
	var req ProfileRequest
	u, authed := h.sessionCaller(c, &req, &req.SessionAuth, msgUserNotFound)
	if !authed {
		return
	}
	p := profileOf(u)
	p.UserToken = u.UserToken
	p.Roles = u.Roles
	ok(c, http.StatusOK, "Perfil obtenido", p)
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update own profile
// @Description Updates the given fields and refreshes the last-seen time. A new password is re-hashed.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.UpdateProfileRequest  true  "Credentials and changes"
// @Success     200   {object}  handlers.SuccessResponse{data=handlers.ProfileData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_001"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_006, AUTH_009"
// @Failure     404   {object}  handlers.ErrorResponse  "AUTH_010"
// @Failure     409   {object}  handlers.ErrorResponse  "AUTH_004"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007"
// @Router      /usuarios/perfil [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	u, authed := h.sessionCaller(c, &req, &req.SessionAuth, msgUserNotFound)
	if !authed {
		return
	}

	upd := services.ProfileUpdate{
		Username:  nonBlank(req.Username),
		Email:     nonBlank(req.Email),
		Latitude:  req.Latitude.ptr(),
		Longitude: req.Longitude.ptr(),
		Password:  nonBlank(req.Password),
	}
	if req.Online != nil {
		on := bool(*req.Online)
		upd.Online = &on
	}

	updated, err := h.users.UpdateProfile(c.Request.Context(), u, upd)
	switch {
	case err == nil:
		ok(c, http.StatusOK, "Perfil actualizado", profileOf(updated))
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusConflict, CodeEmailTaken, "Email ya registrado")
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, CodeSessionUserGone, msgUserNotFound)
	default:
		internal(c, CodeInternal, msgInternal, err)
	}
}

// Nearby godoc
// @ID          nearbyUsers
// @Summary     List nearby users
// @Description Users within 5 km of lat/lon (or of the caller's stored location), nearest first, excluding the caller.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       lat       query  number   false  "Center latitude"
// @Param       lon       query  number   false  "Center longitude"
// @Param       page      query  int      false  "Page number"     minimum(1) default(1)
// @Param       per_page  query  int      false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       body      body   handlers.NearbyRequest  true  "Credentials"
// @Success     200  {object}  handlers.SuccessResponse{data=handlers.NearbyData}
// @Failure     400  {object}  handlers.ErrorResponse  "AUTH_001, GEO_001"
// @Failure     401  {object}  handlers.ErrorResponse  "AUTH_006, AUTH_009"
// @Failure     404  {object}  handlers.ErrorResponse  "AUTH_010"
// @Failure     500  {object}  handlers.ErrorResponse  "AUTH_007"
// @Router      /usuarios [get]
// @Router      /usuarios [post]
func (h *Handlers) Nearby(c *gin.Context) {
	var req NearbyRequest
	u, authed := h.sessionCaller(c, &req, &req.SessionAuth, msgUserNotFound)
	if !authed {
		return
	}

	var center *geo.Point
	lat, latOK := queryFloat(c, "lat", req.Lat)
	lon, lonOK := queryFloat(c, "lon", req.Lon)
	if latOK && lonOK {
		center = &geo.Point{Lat: lat, Lon: lon}
	}
	page := queryOr(c, "page", req.Page, 1)
	perPage := queryOr(c, "per_page", req.PerPage, 20)

	res, err := h.users.Nearby(c.Request.Context(), u, center, page, perPage)
	if err != nil {
		if errors.Is(err, services.ErrNoLocation) {
			fail(c, http.StatusBadRequest, CodeMissingCoordinates, "Coordenadas de geolocalización requeridas")
			return
		}
		internal(c, CodeInternal, msgInternal, err)
		return
	}

	out := make([]NearbyUserData, 0, len(res.Users))
	for _, n := range res.Users {
		out = append(out, NearbyUserData{
			UserID:     n.User.ID,
			Username:   n.User.Username,
			Email:      n.User.Email,
			Online:     n.User.Online,
			DistanceKm: n.DistanceKm,
		})
	}
	ok(c, http.StatusOK, "Usuarios cercanos", NearbyData{
		Users:   out,
		Total:   res.Total,
		Page:    res.Page,
		PerPage: res.PerPage,
	})
}

// GetUser godoc
// @ID          getUserByToken
// @Summary     Get a user's public profile
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       token  path      string                   true  "Token of the user"
// @Param       body   body      handlers.ProfileRequest  true  "Credentials"
// @Success     200    {object}  handlers.SuccessResponse{data=handlers.PublicUserData}
// @Failure     400    {object}  handlers.ErrorResponse  "AUTH_001"
// @Failure     401    {object}  handlers.ErrorResponse  "AUTH_006, AUTH_009"
// @Failure     404    {object}  handlers.ErrorResponse  "AUTH_010, USER_001"
// @Failure     500    {object}  handlers.ErrorResponse  "AUTH_007"
// @Router      /usuarios/{token} [post]
func (h *Handlers) GetUser(c *gin.Context) {
	var req ProfileRequest
	if _, authed := h.sessionCaller(c, &req, &req.SessionAuth, "Usuario solicitante no encontrado"); !authed {
		return
	}
	target, found := h.targetUser(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, "Usuario obtenido", PublicUserData{
		UserID:    target.ID,
		Username:  target.Username,
		Online:    target.Online,
		Latitude:  target.Latitude,
		Longitude: target.Longitude,
	})
}

// DeleteUser godoc
// @ID          deleteUserByToken
// @Summary     Delete an account
// @Description The owner or an admin may delete an account; admin accounts cannot be deleted. Private chats left empty are removed.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       token  path      string                   true  "Token of the user"
// @Param       body   body      handlers.ProfileRequest  true  "Credentials"
// @Success     200    {object}  handlers.SuccessResponse{data=handlers.DeletedUserData}
// @Failure     400    {object}  handlers.ErrorResponse  "AUTH_001"
// @Failure     401    {object}  handlers.ErrorResponse  "AUTH_006, AUTH_009"
// @Failure     403    {object}  handlers.ErrorResponse  "AUTH_011, USER_004"
// @Failure     404    {object}  handlers.ErrorResponse  "AUTH_010, USER_001"
// @Failure     500    {object}  handlers.ErrorResponse  "AUTH_007"
// @Router      /usuarios/{token} [delete]
func (h *Handlers) DeleteUser(c *gin.Context) {
	var req ProfileRequest
	requester, authed := h.sessionCaller(c, &req, &req.SessionAuth, "Usuario solicitante no encontrado")
	if !authed {
		return
	}
	target, found := h.targetUser(c)
	if !found {
		return
	}

	err := h.users.Delete(c.Request.Context(), requester, target)
	switch {
	case err == nil:
		ok(c, http.StatusOK, "Usuario eliminado", DeletedUserData{UserID: target.ID, Deleted: true})
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, CodeNotAllowedDelete, "No autorizado para eliminar este usuario")
	case errors.Is(err, services.ErrAdminProtected):
		fail(c, http.StatusForbidden, CodeAdminProtected, "No se pueden eliminar usuarios administradores")
	case errors.Is(err, services.ErrTargetNotFound):
		fail(c, http.StatusNotFound, CodeUserNotFound, msgUserNotFound)
	default:
		internal(c, CodeInternal, msgInternal, err)
	}
}

// targetUser resolves the :token path parameter to a user (USER_001).
func (h *Handlers) targetUser(c *gin.Context) (*domain.User, bool) {
	target, err := h.auth.ResolveTarget(c.Request.Context(), pathToken(c))
	switch {
	case err == nil:
		return target, true
	case errors.Is(err, services.ErrTargetTokenInvalid):
		fail(c, http.StatusNotFound, CodeUserNotFound, "Usuario objetivo no encontrado (token inválido)")
	case errors.Is(err, services.ErrTargetNotFound):
		fail(c, http.StatusNotFound, CodeUserNotFound, msgUserNotFound)
	default:
		internal(c, CodeInternal, msgInternal, err)
	}
	return nil, false
}

// queryFloat reads key from the query string, falling back to body.
func queryFloat(c *gin.Context, key string, body *FlexFloat) (float64, bool) {
	if q, present := c.GetQuery(key); present {
		v, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
		return v, err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
	}
	return body.Value()
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
