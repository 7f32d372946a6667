// Chat HTTP handlers.
//
//   - POST   /general/mensaje         (write to the general chat)
//   - POST   /general/usuarios        (members of the general chat)
//   - POST   /privado                 (open or reuse a private chat)
//   - POST   /privado/{token}         (read messages, since-id + limit)
//   - POST   /privado/{token}/mensaje (write to a private chat)
//   - POST   /privado/{token}/salir   (leave; the last one out deletes it)
//   - DELETE /privado/{token}         (delete; creator or admin)
//
// These endpoints authenticate with api_key + user_token.

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/repo"
	"github.com/tbourn/go-geochat-backend/internal/services"
)

// ChatRequest is the JSON payload of the endpoints that need only
// credentials.
type ChatRequest struct {
	UserTokenAuth
}

// GeneralMessageRequest is the JSON payload of POST /general/mensaje.
type GeneralMessageRequest struct {
	UserTokenAuth
	ChatToken string `json:"chat_token" validate:"required" code:"CHAT_002" msg:"chat_token requerido" example:"CHAT_PUBLICO_GENERAL_TOKEN_FIJO_12345"`
	Content   string `json:"contenido" validate:"required" code:"MSG_002" msg:"Contenido del mensaje requerido" example:"hola a todos"`
}

// OpenPrivateRequest is the JSON payload of POST /privado.
type OpenPrivateRequest struct {
	UserTokenAuth
	RecipientToken string `json:"destinatario_token" validate:"required" code:"USER_005" msg:"destinatario_token requerido"`
}

// PrivateMessageRequest is the JSON payload of POST /privado/{token}/mensaje.
type PrivateMessageRequest struct {
	UserTokenAuth
	Message string `json:"mensaje" validate:"required" code:"MSG_002" msg:"Mensaje requerido" example:"¿quedamos?"`
}

// GeneralMessageData is a message posted to the general chat.
type GeneralMessageData struct {
	MessageID uint   `json:"mensaje_id" example:"41"`
	ChatToken string `json:"chat_token" example:"CHAT_PUBLICO_GENERAL_TOKEN_FIJO_12345"`
	UserID    uint   `json:"usuario_id" example:"7"`
	Username  string `json:"username" example:"ana"`
	Content   string `json:"contenido" example:"hola a todos"`
	SentAt    string `json:"fecha_envio" example:"2025-01-31 18:04:05"`
}

// MemberData is a member of a chat.
type MemberData struct {
	UserID   uint   `json:"usuario_id" example:"7"`
	Username string `json:"username" example:"ana"`
	Email    string `json:"email" example:"ana@example.com"`
	Online   bool   `json:"en_linea"`
	JoinedAt string `json:"fecha_union" example:"2025-01-31 18:04:05"`
}

// MembersData lists the members of the general chat.
type MembersData struct {
	Users     []MemberData `json:"usuarios"`
	Total     int          `json:"total" example:"1"`
	ChatToken string       `json:"chat_token,omitempty" example:"CHAT_PUBLICO_GENERAL_TOKEN_FIJO_12345"`
}

// ChatUserData identifies a participant of a new private chat.
type ChatUserData struct {
	UserID   uint   `json:"usuario_id" example:"7"`
	Username string `json:"username" example:"ana"`
	Email    string `json:"email" example:"ana@example.com"`
}

// PrivateChatData describes a private chat. Users is only set on creation.
type PrivateChatData struct {
	ChatToken string         `json:"chat_token"`
	ChatID    uint           `json:"chat_id" example:"12"`
	Type      string         `json:"tipo" example:"privado"`
	Ephemeral bool           `json:"temporal" example:"true"`
	CreatedAt string         `json:"fecha_creacion" example:"2025-01-31 18:04:05"`
	Users     []ChatUserData `json:"usuarios,omitempty"`
}

// PrivateMessageData is a message of a private chat as listed.
type PrivateMessageData struct {
	MessageID uint   `json:"mensaje_id" example:"41"`
	UserID    *uint  `json:"usuario_id" example:"7"`
	Username  string `json:"username" example:"ana"`
	Message   string `json:"mensaje" example:"¿quedamos?"`
	SentAt    string `json:"fecha_envio" example:"2025-01-31 18:04:05"`
	System    bool   `json:"es_sistema"`
}

// PrivateMessagesData is a batch of private messages.
type PrivateMessagesData struct {
	Messages  []PrivateMessageData `json:"mensajes"`
	Total     int                  `json:"total" example:"1"`
	ChatToken string               `json:"chat_token"`
	Limit     int                  `json:"limite" example:"100"`
	SinceID   *uint                `json:"desde_id" example:"40"`
}

// SentPrivateMessageData is a message just posted to a private chat.
type SentPrivateMessageData struct {
	MessageID uint   `json:"mensaje_id" example:"42"`
	ChatID    uint   `json:"chat_id" example:"12"`
	ChatToken string `json:"chat_token"`
	UserID    uint   `json:"usuario_id" example:"7"`
	Username  string `json:"username" example:"ana"`
	Message   string `json:"mensaje" example:"¿quedamos?"`
	SentAt    string `json:"fecha_envio" example:"2025-01-31 18:04:05"`
}

// LeaveData is the outcome of leaving a private chat.
type LeaveData struct {
	UserID      uint   `json:"usuario_id" example:"7"`
	Username    string `json:"username" example:"ana"`
	ChatToken   string `json:"chat_token"`
	ChatDeleted bool   `json:"chat_eliminado"`
	Remaining   int64  `json:"usuarios_restantes" example:"1"`
}

// DeletedChatData confirms a chat deletion.
type DeletedChatData struct {
	ChatToken string `json:"chat_token"`
	DeletedBy string `json:"eliminado_por" example:"ana"`
	AsAdmin   bool   `json:"es_admin"`
}

// unknownAuthor names messages whose author no longer exists.
const unknownAuthor = "Usuario desconocido"

// privateChatError maps the access errors shared by the private chat
// endpoints. It reports false when err is not one of them.
func privateChatError(c *gin.Context, err error, notMemberMsg string) bool {
	switch {
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, CodeChatNotFound, msgChatNotFound)
	case errors.Is(err, services.ErrNotPrivateChat):
		fail(c, http.StatusBadRequest, CodeNotPrivateChat, msgNotPrivate)
	case errors.Is(err, services.ErrNotMember):
		fail(c, http.StatusForbidden, CodeNotChatMember, notMemberMsg)
	default:
		return false
	}
	return true
}

// SendGeneral godoc
// @ID          sendGeneralMessage
// @Summary     Write to the general chat
// @Description Posts a message to the public chat. The chat and the caller's membership are created on first use.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.GeneralMessageRequest  true  "Message"
// @Success     201   {object}  handlers.SuccessResponse{data=handlers.GeneralMessageData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, CHAT_002, MSG_002, CHAT_003"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     404   {object}  handlers.ErrorResponse  "USER_001"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007, MSG_003"
// @Router      /general/mensaje [post]
func (h *Handlers) SendGeneral(c *gin.Context) {
	var req GeneralMessageRequest
	if !h.chatRequest(c, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		fail(c, http.StatusBadRequest, CodeMissingMessage, "Contenido del mensaje requerido")
		return
	}
	if req.ChatToken != domain.GeneralChatToken {
		fail(c, http.StatusBadRequest, CodeNotGeneralChat, "Token de chat inválido")
		return
	}
	u, authed := h.caller(c, req.UserToken)
	if !authed {
		return
	}

	msg, chat, err := h.chats.SendGeneral(c.Request.Context(), u, req.ChatToken, req.Content)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, CodeMissingMessage, "Contenido del mensaje requerido")
		return
	case errors.Is(err, services.ErrNotGeneralChat):
		fail(c, http.StatusBadRequest, CodeNotGeneralChat, "Token de chat inválido")
		return
	default:
		internal(c, CodeSendFailed, "Error al enviar mensaje", err)
		return
	}

	ok(c, http.StatusCreated, "Mensaje enviado al chat público", GeneralMessageData{
		MessageID: msg.ID,
		ChatToken: chat.Token,
		UserID:    u.ID,
		Username:  u.Username,
		Content:   msg.Body,
		SentAt:    formatTime(msg.SentAt),
	})
}

// GeneralMembers godoc
// @ID          generalMembers
// @Summary     List general chat members
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ChatRequest  true  "Credentials"
// @Success     200   {object}  handlers.SuccessResponse{data=handlers.MembersData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     404   {object}  handlers.ErrorResponse  "USER_001"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007, CHAT_005"
// @Router      /general/usuarios [post]
func (h *Handlers) GeneralMembers(c *gin.Context) {
	var req ChatRequest
	if _, authed := h.chatCaller(c, &req); !authed {
		return
	}

	rows, exists, err := h.chats.GeneralMembers(c.Request.Context())
	if err != nil {
		internal(c, CodeGeneralListFailed, "Error al obtener usuarios", err)
		return
	}
	if !exists {
		ok(c, http.StatusOK, "Chat general no existe aún", MembersData{Users: []MemberData{}})
		return
	}
	ok(c, http.StatusOK, "Usuarios en chat público obtenidos", MembersData{
		Users:     membersOf(rows),
		Total:     len(rows),
		ChatToken: domain.GeneralChatToken,
	})
}

func membersOf(rows []repo.MemberRow) []MemberData {
	out := make([]MemberData, 0, len(rows))
	for _, r := range rows {
		out = append(out, MemberData{
			UserID:   r.UserID,
			Username: r.Username,
			Email:    r.Email,
			Online:   r.Online,
			JoinedAt: formatTime(r.JoinedAt),
		})
	}
	return out
}

// OpenPrivate godoc
// @ID          openPrivateChat
// @Summary     Open a private chat
// @Description Returns the private chat shared with the recipient, creating it (200 when it already existed, 201 when created).
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.OpenPrivateRequest  true  "Recipient"
// @Success     200   {object}  handlers.SuccessResponse{data=handlers.PrivateChatData}
// @Success     201   {object}  handlers.SuccessResponse{data=handlers.PrivateChatData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, USER_005, CHAT_006"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002, AUTH_008"
// @Failure     404   {object}  handlers.ErrorResponse  "USER_001, USER_006"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007, CHAT_007"
// @Router      /privado [post]
func (h *Handlers) OpenPrivate(c *gin.Context) {
	var req OpenPrivateRequest
	u, authed := h.chatCaller(c, &req)
	if !authed {
		return
	}

	other, err := h.auth.ResolveTarget(c.Request.Context(), strings.TrimSpace(req.RecipientToken))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrTargetTokenInvalid):
		fail(c, http.StatusUnauthorized, CodeTargetTokenInvalid, "Token de destinatario inválido o expirado")
		return
	case errors.Is(err, services.ErrTargetNotFound):
		fail(c, http.StatusNotFound, CodeRecipientNotFound, "Usuario destinatario no encontrado")
		return
	default:
		internal(c, CodeCreateChatFailed, "Error al crear chat privado", err)
		return
	}

	chat, created, err := h.chats.OpenPrivate(c.Request.Context(), u, other)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrSelfTarget):
		fail(c, http.StatusBadRequest, CodeSelfChat, "No puedes crear un chat contigo mismo")
		return
	default:
		internal(c, CodeCreateChatFailed, "Error al crear chat privado", err)
		return
	}

	data := PrivateChatData{
		ChatToken: chat.Token,
		ChatID:    chat.ID,
		Type:      chat.Type,
		Ephemeral: chat.Ephemeral,
		CreatedAt: formatTime(chat.CreatedAt),
	}
	if !created {
		ok(c, http.StatusOK, "Chat privado ya existe", data)
		return
	}
	data.Users = []ChatUserData{
		{UserID: u.ID, Username: u.Username, Email: u.Email},
		{UserID: other.ID, Username: other.Username, Email: other.Email},
	}
	ok(c, http.StatusCreated, "Chat privado creado exitosamente", data)
}

// PrivateMessages godoc
// @ID          privateMessages
// @Summary     Read a private chat
// @Description Messages with id greater than desde_id, oldest first. limite outside [1,500] means 100.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       token     path   string  true   "Chat token"
// @Param       desde_id  query  int     false  "Only messages after this id"
// @Param       limite    query  int     false  "Maximum number of messages"  default(100)
// @Param       body      body   handlers.ChatRequest  true  "Credentials"
// @Success     200  {object}  handlers.SuccessResponse{data=handlers.PrivateMessagesData}
// @Failure     400  {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, CHAT_009"
// @Failure     401  {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     403  {object}  handlers.ErrorResponse  "CHAT_010"
// @Failure     404  {object}  handlers.ErrorResponse  "USER_001, CHAT_008"
// @Failure     500  {object}  handlers.ErrorResponse  "AUTH_007, MSG_004"
// @Router      /privado/{token} [post]
func (h *Handlers) PrivateMessages(c *gin.Context) {
	var req ChatRequest
	u, authed := h.chatCaller(c, &req)
	if !authed {
		return
	}

	var sinceID *uint
	if v, err := strconv.ParseUint(strings.TrimSpace(c.Query("desde_id")), 10, 64); err == nil && v > 0 {
		id := uint(v)
		sinceID = &id
	}
	limit, _ := strconv.Atoi(strings.TrimSpace(c.Query("limite")))

	var after uint
	if sinceID != nil {
		after = *sinceID
	}
	tok := pathToken(c)
	rows, limit, err := h.chats.PrivateMessages(c.Request.Context(), u, tok, after, limit)
	if err != nil {
		if !privateChatError(c, err, msgNoAccess) {
			internal(c, CodeFetchFailed, "Error al obtener mensajes", err)
		}
		return
	}

	msgs := make([]PrivateMessageData, 0, len(rows))
	for _, r := range rows {
		name := unknownAuthor
		if r.Username != nil {
			name = *r.Username
		}
		msgs = append(msgs, PrivateMessageData{
			MessageID: r.ID,
			UserID:    r.UserID,
			Username:  name,
			Message:   r.Body,
			SentAt:    formatTime(r.SentAt),
			System:    r.System,
		})
	}
	ok(c, http.StatusOK, "Mensajes obtenidos exitosamente", PrivateMessagesData{
		Messages:  msgs,
		Total:     len(msgs),
		ChatToken: tok,
		Limit:     limit,
		SinceID:   sinceID,
	})
}

// SendPrivate godoc
// @ID          sendPrivateMessage
// @Summary     Write to a private chat
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       token  path      string                          true  "Chat token"
// @Param       body   body      handlers.PrivateMessageRequest  true  "Message"
// @Success     201    {object}  handlers.SuccessResponse{data=handlers.SentPrivateMessageData}
// @Failure     400    {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, MSG_002, CHAT_009"
// @Failure     401    {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     403    {object}  handlers.ErrorResponse  "CHAT_010"
// @Failure     404    {object}  handlers.ErrorResponse  "USER_001, CHAT_008"
// @Failure     500    {object}  handlers.ErrorResponse  "AUTH_007, MSG_003"
// @Router      /privado/{token}/mensaje [post]
func (h *Handlers) SendPrivate(c *gin.Context) {
	var req PrivateMessageRequest
	u, authed := h.chatCaller(c, &req)
	if !authed {
		return
	}

	msg, chat, err := h.chats.SendPrivate(c.Request.Context(), u, pathToken(c), req.Message)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, CodeMissingMessage, "Mensaje requerido")
		return
	case privateChatError(c, err, msgNoAccess):
		return
	default:
		internal(c, CodeSendFailed, "Error al enviar mensaje", err)
		return
	}

	ok(c, http.StatusCreated, "Mensaje enviado exitosamente", SentPrivateMessageData{
		MessageID: msg.ID,
		ChatID:    chat.ID,
		ChatToken: chat.Token,
		UserID:    u.ID,
		Username:  u.Username,
		Message:   msg.Body,
		SentAt:    formatTime(msg.SentAt),
	})
}

// LeavePrivate godoc
// @ID          leavePrivateChat
// @Summary     Leave a private chat
// @Description Removes the caller from the chat. When nobody is left the chat and its messages are deleted.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       token  path      string                true  "Chat token"
// @Param       body   body      handlers.ChatRequest  true  "Credentials"
// @Success     200    {object}  handlers.SuccessResponse{data=handlers.LeaveData}
// @Failure     400    {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, CHAT_009"
// @Failure     401    {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     403    {object}  handlers.ErrorResponse  "CHAT_010"
// @Failure     404    {object}  handlers.ErrorResponse  "USER_001, CHAT_008"
// @Failure     500    {object}  handlers.ErrorResponse  "AUTH_007, CHAT_011"
// @Router      /privado/{token}/salir [post]
func (h *Handlers) LeavePrivate(c *gin.Context) {
	var req ChatRequest
	u, authed := h.chatCaller(c, &req)
	if !authed {
		return
	}

	tok := pathToken(c)
	res, err := h.chats.Leave(c.Request.Context(), u, tok)
	if err != nil {
		if !privateChatError(c, err, msgNotInChat) {
			internal(c, CodeLeaveFailed, "Error al salir del chat", err)
		}
		return
	}

	msg := "Has salido del chat exitosamente"
	if res.ChatDeleted {
		msg = "Has salido del chat y el chat ha sido eliminado"
	}
	ok(c, http.StatusOK, msg, LeaveData{
		UserID:      u.ID,
		Username:    u.Username,
		ChatToken:   tok,
		ChatDeleted: res.ChatDeleted,
		Remaining:   res.Remaining,
	})
}

// DeletePrivate godoc
// @ID          deletePrivateChat
// @Summary     Delete a private chat
// @Description Deletes an ephemeral chat with its memberships and messages. Only its creator or an admin may do so.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Param       token  path      string                true  "Chat token"
// @Param       body   body      handlers.ChatRequest  true  "Credentials"
// @Success     200    {object}  handlers.SuccessResponse{data=handlers.DeletedChatData}
// @Failure     400    {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, CHAT_012"
// @Failure     401    {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     403    {object}  handlers.ErrorResponse  "CHAT_013"
// @Failure     404    {object}  handlers.ErrorResponse  "USER_001, CHAT_008"
// @Failure     500    {object}  handlers.ErrorResponse  "AUTH_007, CHAT_014"
// @Router      /privado/{token} [delete]
func (h *Handlers) DeletePrivate(c *gin.Context) {
	var req ChatRequest
	u, authed := h.chatCaller(c, &req)
	if !authed {
		return
	}

	tok := pathToken(c)
	asAdmin, err := h.chats.Delete(c.Request.Context(), u, tok)
	switch {
	case err == nil:
		ok(c, http.StatusOK, "Chat eliminado exitosamente", DeletedChatData{
			ChatToken: tok,
			DeletedBy: u.Username,
			AsAdmin:   asAdmin,
		})
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, CodeChatNotFound, msgChatNotFound)
	case errors.Is(err, services.ErrNotEphemeralChat):
		fail(c, http.StatusBadRequest, CodeNotEphemeralChat, "Solo se pueden eliminar chats temporales")
	case errors.Is(err, services.ErrNotChatCreator):
		fail(c, http.StatusForbidden, CodeNotChatCreator, "Solo el creador del chat o un administrador puede eliminarlo")
	default:
		internal(c, CodeDeleteChatFailed, "Error al eliminar chat", err)
	}
}
