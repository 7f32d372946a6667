// Authentication HTTP handlers.
//
//   - POST /login     (credentials → session token)
//   - POST /registro  (create account, first session token)
//   - POST /logout    (revoke the session token)
//   - POST /conexion  (API key check for client bootstrapping)
//
// A successful login or registration replaces any earlier session of the
// user, so at most one token per user is live.

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/services"
)

// LoginRequest is the JSON payload of POST /login.
type LoginRequest struct {
	APIKey    string     `json:"api_key" validate:"required" code:"AUTH_001" msg:"api_key, email, password, latitud y longitud requeridos" example:"secret"`
	Email     string     `json:"email" validate:"required" code:"AUTH_001" msg:"api_key, email, password, latitud y longitud requeridos" example:"ana@example.com"`
	Password  string     `json:"password" validate:"required" code:"AUTH_001" msg:"api_key, email, password, latitud y longitud requeridos" example:"s3cret!"`
	Latitude  *FlexFloat `json:"latitud" validate:"required,latitude" code:"AUTH_001" msg:"api_key, email, password, latitud y longitud requeridos" swaggertype:"number" example:"40.4168"`
	Longitude *FlexFloat `json:"longitud" validate:"required,longitude" code:"AUTH_001" msg:"api_key, email, password, latitud y longitud requeridos" swaggertype:"number" example:"-3.7038"`
}

// LoginData is the data of a successful login.
type LoginData struct {
	UserID           uint   `json:"usuario_id" example:"7"`
	Username         string `json:"username" example:"ana"`
	Email            string `json:"email" example:"ana@example.com"`
	Token            string `json:"token"`
	GeneralChatToken string `json:"chat_general_token" example:"CHAT_PUBLICO_GENERAL_TOKEN_FIJO_12345"`
}

// RegisterRequest is the JSON payload of POST /registro.
type RegisterRequest struct {
	APIKey    string     `json:"api_key" example:"secret"`
	Email     string     `json:"email" validate:"required" code:"AUTH_003" msg:"email, username, password, latitud y longitud requeridos" example:"ana@example.com"`
	Username  string     `json:"username" validate:"required" code:"AUTH_003" msg:"email, username, password, latitud y longitud requeridos" example:"ana"`
	Password  string     `json:"password" validate:"required" code:"AUTH_003" msg:"email, username, password, latitud y longitud requeridos" example:"s3cret!"`
	Latitude  *FlexFloat `json:"latitud" validate:"required,latitude" code:"AUTH_003" msg:"email, username, password, latitud y longitud requeridos" swaggertype:"number" example:"40.4168"`
	Longitude *FlexFloat `json:"longitud" validate:"required,longitude" code:"AUTH_003" msg:"email, username, password, latitud y longitud requeridos" swaggertype:"number" example:"-3.7038"`
}

// RegisterData is the data of a successful registration.
type RegisterData struct {
	Name             string `json:"nombre" example:"ana"`
	Email            string `json:"email" example:"ana@example.com"`
	AccessToken      string `json:"access_token"`
	GeneralChatToken string `json:"chat_general_token" example:"CHAT_PUBLICO_GENERAL_TOKEN_FIJO_12345"`
}

// ConnectionRequest is the JSON payload of POST /conexion.
type ConnectionRequest struct {
	APIKey string `json:"apikey" example:"secret"`
}

// ConnectionData is the data of a successful connection check.
type ConnectionData struct {
	Status    string `json:"status" example:"conectado"`
	Timestamp string `json:"timestamp" example:"2025-01-31 18:04:05"`
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Checks credentials, stores the caller's location and issues a session token. Earlier tokens of the user stop working.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials and location"
// @Success     200   {object}  handlers.SuccessResponse{data=handlers.LoginData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_001"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007"
// @Router      /login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	bind(c, &req)
	if !validated(c, &req) || !h.apiKeyOK(c, req.APIKey) {
		return
	}
	lat, _ := req.Latitude.Value()
	lon, _ := req.Longitude.Value()

	u, tok, err := h.auth.Login(c.Request.Context(), services.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		Latitude:  lat,
		Longitude: lon,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, CodeInvalidToken, "Credenciales inválidas")
			return
		}
		internal(c, CodeInternal, msgInternal, err)
		return
	}
	setCaller(c, u)

	ok(c, http.StatusOK, "Login exitoso", LoginData{
		UserID:           u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Token:            tok,
		GeneralChatToken: domain.GeneralChatToken,
	})
}

// Register godoc
// @ID          register
// @Summary     Register a new user
// @Description Creates an online account at the given location and returns its first session token.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Account data"
// @Success     201   {object}  handlers.SuccessResponse{data=handlers.RegisterData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_003"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_009"
// @Failure     409   {object}  handlers.ErrorResponse  "AUTH_004"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007"
// @Router      /registro [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	bind(c, &req)
	if strings.TrimSpace(req.APIKey) == "" {
		fail(c, http.StatusUnauthorized, CodeSessionInvalid, "API key inválida o no proporcionada")
		return
	}
	if !h.checkKey(c, req.APIKey, http.StatusUnauthorized, CodeSessionInvalid, "API key inválida o no proporcionada") {
		return
	}
	if !validated(c, &req) {
		return
	}
	lat, _ := req.Latitude.Value()
	lon, _ := req.Longitude.Value()

	u, tok, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		Latitude:  lat,
		Longitude: lon,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			fail(c, http.StatusConflict, CodeEmailTaken, "Email ya registrado")
			return
		}
		internal(c, CodeInternal, msgInternal, err)
		return
	}
	setCaller(c, u)

	ok(c, http.StatusCreated, "Usuario registrado exitosamente", RegisterData{
		Name:             u.Username,
		Email:            u.Email,
		AccessToken:      tok,
		GeneralChatToken: domain.GeneralChatToken,
	})
}

// Logout godoc
// @ID          logout
// @Summary     Log out
// @Description Revokes the session token and marks the user offline. The token is read from the JSON field access_token, a form field, the access_token query parameter, an Authorization Bearer header or the raw body, in that order.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       access_token   query   string  false  "Session token"
// @Param       Authorization  header  string  false  "Bearer <token>"
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     400  {object}  handlers.ErrorResponse  "AUTH_008"
// @Failure     401  {object}  handlers.ErrorResponse  "AUTH_009"
// @Failure     404  {object}  handlers.ErrorResponse  "AUTH_010"
// @Failure     500  {object}  handlers.ErrorResponse  "AUTH_500"
// @Router      /logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	tok := logoutToken(c)
	if tok == "" {
		fail(c, http.StatusBadRequest, CodeTargetTokenInvalid, "access_token requerido")
		return
	}

	err := h.auth.Logout(c.Request.Context(), tok)
	switch {
	case err == nil:
		ok(c, http.StatusOK, "Sesión cerrada correctamente", nil)
	case errors.Is(err, services.ErrUnauthenticated):
		fail(c, http.StatusUnauthorized, CodeSessionInvalid, msgTokenExpired)
	case errors.Is(err, services.ErrUserNotFound):
		fail(c, http.StatusNotFound, CodeSessionUserGone, msgUserNotFound)
	default:
		internal(c, CodeLogoutFailed, "Error interno al procesar logout", err)
	}
}

// logoutToken finds the token to revoke. See Logout for the lookup order.
func logoutToken(c *gin.Context) string {
	raw := rawBody(c)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &body) == nil {
		if t := strings.TrimSpace(body.AccessToken); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(c.PostForm("access_token")); t != "" {
		return t
	}
	if t := strings.TrimSpace(c.Query("access_token")); t != "" {
		return t
	}
	if f := strings.Fields(c.GetHeader("Authorization")); len(f) >= 2 && strings.EqualFold(f[0], "Bearer") {
		return f[1]
	}
	return strings.TrimSpace(string(raw))
}

// Connection godoc
// @ID          connection
// @Summary     Check connectivity
// @Description Verifies the API key so clients can confirm they reach the right server.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ConnectionRequest  true  "API key"
// @Success     200   {object}  handlers.SuccessResponse{data=handlers.ConnectionData}
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_009"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007"
// @Router      /conexion [post]
func (h *Handlers) Connection(c *gin.Context) {
	var req ConnectionRequest
	bind(c, &req)
	if strings.TrimSpace(req.APIKey) == "" {
		fail(c, http.StatusUnauthorized, CodeSessionInvalid, "API key inválida o no proporcionada")
		return
	}
	if !h.checkKey(c, req.APIKey, http.StatusUnauthorized, CodeSessionInvalid, "API key inválida o no proporcionada") {
		return
	}
	ok(c, http.StatusOK, "Conexión exitosa", ConnectionData{
		Status:    "conectado",
		Timestamp: formatTime(h.now()),
	})
}
