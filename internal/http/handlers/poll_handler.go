// Poll HTTP handler.
//
//   - POST /actualizar  (presence refresh plus update feed)

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-geochat-backend/internal/services"
)

// PollRequest is the JSON payload of POST /actualizar.
type PollRequest struct {
	UserTokenAuth
	RoomToken     string     `json:"token_sala" validate:"required" code:"CHAT_001" msg:"token_sala requerido" example:"CHAT_PUBLICO_GENERAL_TOKEN_FIJO_12345"`
	LastMessageID *FlexInt   `json:"ultimo_mensaje_id" validate:"required" code:"MSG_001" msg:"ultimo_mensaje_id requerido" swaggertype:"integer" example:"0"`
	Latitude      *FlexFloat `json:"latitud,omitempty" swaggertype:"number" example:"40.4168"`
	Longitude     *FlexFloat `json:"longitud,omitempty" swaggertype:"number" example:"-3.7038"`
	LastUpdate    string     `json:"ultima_actualizacion,omitempty" example:"2025-01-31 18:04:05"`
}

// PollMessageData is a message in the poll feed.
type PollMessageData struct {
	ID        uint   `json:"id" example:"42"`
	ChatToken string `json:"chat_token"`
	UserID    *uint  `json:"usuario_id"`
	Username  string `json:"username" example:"ana"`
	Content   string `json:"contenido" example:"hola"`
	SentAt    string `json:"fecha_envio" example:"2025-01-31 18:04:05"`
	System    bool   `json:"es_sistema"`
}

// OnlineUserData is a user in the poll's online list.
type OnlineUserData struct {
	ID        uint     `json:"id" example:"7"`
	Username  string   `json:"username" example:"ana"`
	Email     string   `json:"email" example:"ana@example.com"`
	Latitude  *float64 `json:"latitud"`
	Longitude *float64 `json:"longitud"`
	LastSeen  *string  `json:"ultima_conexion"`
}

// JoinedChatData is a membership in the poll's invitation feed.
type JoinedChatData struct {
	ID        uint   `json:"id" example:"3"`
	ChatToken string `json:"chat_token"`
	JoinedAt  string `json:"fecha_union" example:"2025-01-31 18:04:05"`
}

// PollData is the poll response.
type PollData struct {
	Messages    []PollMessageData `json:"mensajes_nuevos"`
	Online      []OnlineUserData  `json:"usuarios_online"`
	Invitations []JoinedChatData  `json:"invitaciones"`
	Timestamp   string            `json:"timestamp" example:"2025-01-31 18:04:05"`
}

// Poll godoc
// @ID          poll
// @Summary     Poll for updates
// @Description Marks the caller online (and moves them when both coordinates are sent), then returns new messages of token_sala after ultimo_mensaje_id, users online in the last five minutes and chats joined since ultima_actualizacion.
// @Tags        Poll
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.PollRequest  true  "Poll state"
// @Success     200   {object}  handlers.SuccessResponse{data=handlers.PollData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, CHAT_001, MSG_001"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     404   {object}  handlers.ErrorResponse  "USER_001"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007, UPDATE_001"
// @Router      /actualizar [post]
func (h *Handlers) Poll(c *gin.Context) {
	var req PollRequest
	u, authed := h.chatCaller(c, &req)
	if !authed {
		return
	}

	in := services.PollInput{
		ChatToken: strings.TrimSpace(req.RoomToken),
		Latitude:  req.Latitude.ptr(),
		Longitude: req.Longitude.ptr(),
	}
	if id := req.LastMessageID.Int(0); id > 0 {
		in.LastMessageID = uint(id)
	}
	if since, parsed := services.ParseSince(req.LastUpdate); parsed {
		in.Since = &since
	}

	res, err := h.poll.Poll(c.Request.Context(), u, in)
	if err != nil {
		internal(c, CodePollFailed, "Error al procesar actualización", err)
		return
	}
	ok(c, http.StatusOK, "Actualización exitosa", pollData(res))
}

func pollData(res *services.PollResult) PollData {
	out := PollData{
		Messages:    make([]PollMessageData, 0, len(res.Messages)),
		Online:      make([]OnlineUserData, 0, len(res.Online)),
		Invitations: make([]JoinedChatData, 0, len(res.Joined)),
		Timestamp:   formatTime(res.Now),
	}
	for _, m := range res.Messages {
		name := "Desconocido"
		if m.Username != nil {
			name = *m.Username
		}
		out.Messages = append(out.Messages, PollMessageData{
			ID:        m.ID,
			ChatToken: res.ChatToken,
			UserID:    m.UserID,
			Username:  name,
			Content:   m.Body,
			SentAt:    formatTime(m.SentAt),
			System:    m.System,
		})
	}
	for _, u := range res.Online {
		out.Online = append(out.Online, OnlineUserData{
			ID:        u.ID,
			Username:  u.Username,
			Email:     u.Email,
			Latitude:  u.Latitude,
			Longitude: u.Longitude,
			LastSeen:  formatTimePtr(u.LastSeenAt),
		})
	}
	for _, j := range res.Joined {
		out.Invitations = append(out.Invitations, JoinedChatData{
			ID:        j.ID,
			ChatToken: j.ChatToken,
			JoinedAt:  formatTime(j.JoinedAt),
		})
	}
	return out
}
