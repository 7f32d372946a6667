// Invitation HTTP handlers.
//
//   - POST   /invitar/{token}           (invite the user owning token)
//   - POST   /invitar/{token}/rechazar  (invitee rejects; token is the key)
//   - POST   /invitar/{token}/aceptar   (invitee accepts and joins)
//   - DELETE /invitar/{token}           (inviter cancels)
//
// Invitations expire after the store TTL (24 h by default).

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-geochat-backend/internal/services"
	"github.com/tbourn/go-geochat-backend/internal/store"
)

// InviteRequest is the JSON payload of POST /invitar/{token}.
type InviteRequest struct {
	UserTokenAuth
	ChatToken string `json:"chat_token" validate:"required" code:"CHAT_002" msg:"chat_token requerido"`
}

// PartyData identifies the inviter or the invitee of an invitation.
type PartyData struct {
	ID       uint   `json:"id" example:"7"`
	Username string `json:"username" example:"ana"`
	Email    string `json:"email,omitempty" example:"ana@example.com"`
}

// InvitationChatData identifies the chat of an invitation.
type InvitationChatData struct {
	ID    uint   `json:"id,omitempty" example:"12"`
	Token string `json:"token"`
	Type  string `json:"tipo" example:"privado"`
}

// InvitationData is a freshly created invitation.
type InvitationData struct {
	Key       string             `json:"invitacion_key"`
	Inviter   PartyData          `json:"invitador"`
	Invitee   PartyData          `json:"invitado"`
	Chat      InvitationChatData `json:"chat"`
	ExpiresIn string             `json:"expira_en" example:"86400 segundos (24 horas)"`
}

// InvitationOutcomeData describes a rejected or cancelled invitation.
type InvitationOutcomeData struct {
	Key     string             `json:"invitacion_token"`
	Inviter PartyData          `json:"invitador"`
	Invitee PartyData          `json:"invitado"`
	Chat    InvitationChatData `json:"chat"`
}

// AcceptedData describes an accepted invitation.
type AcceptedData struct {
	Key      string             `json:"invitacion_token"`
	Inviter  PartyData          `json:"invitador"`
	User     PartyData          `json:"usuario"`
	Chat     InvitationChatData `json:"chat"`
	JoinedAt string             `json:"fecha_union" example:"2025-01-31 18:04:05"`
}

// invitationLoadError maps the lookup errors shared by reject, accept and
// cancel. It reports false when err is not one of them.
func invitationLoadError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, services.ErrInvitationNotFound):
		fail(c, http.StatusNotFound, CodeInvitationNotFound, msgInvitationGone)
	case errors.Is(err, services.ErrInvitationInvalid):
		fail(c, http.StatusBadRequest, CodeInvitationInvalid, msgInvitationBad)
	default:
		return false
	}
	return true
}

func expiresIn(secs int) string {
	s := strconv.Itoa(secs) + " segundos"
	if secs%3600 == 0 {
		s += " (" + strconv.Itoa(secs/3600) + " horas)"
	}
	return s
}

// Invite godoc
// @ID          invite
// @Summary     Invite a user to a chat
// @Description The caller must be a member of the chat. At most one invitation per chat and invitee is pending.
// @Tags        Invitations
// @Accept      json
// @Produce     json
// @Param       token  path      string                  true  "Token of the invited user"
// @Param       body   body      handlers.InviteRequest  true  "Chat"
// @Success     201    {object}  handlers.SuccessResponse{data=handlers.InvitationData}
// @Failure     400    {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, CHAT_002, INV_001, INV_002, INV_003"
// @Failure     401    {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002, AUTH_008"
// @Failure     403    {object}  handlers.ErrorResponse  "CHAT_010"
// @Failure     404    {object}  handlers.ErrorResponse  "USER_001, USER_007, CHAT_008"
// @Failure     500    {object}  handlers.ErrorResponse  "AUTH_007, INV_004"
// @Router      /invitar/{token} [post]
func (h *Handlers) Invite(c *gin.Context) {
	var req InviteRequest
	u, authed := h.chatCaller(c, &req)
	if !authed {
		return
	}

	invitedToken := pathToken(c)
	invitee, err := h.auth.ResolveTarget(c.Request.Context(), invitedToken)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrTargetTokenInvalid):
		fail(c, http.StatusUnauthorized, CodeTargetTokenInvalid, "Token del usuario invitado inválido o expirado")
		return
	case errors.Is(err, services.ErrTargetNotFound):
		fail(c, http.StatusNotFound, CodeInviteeNotFound, "Usuario invitado no encontrado")
		return
	default:
		internal(c, CodeInviteFailed, "Error al enviar invitación", err)
		return
	}

	res, err := h.inv.Invite(c.Request.Context(), u, invitee, strings.TrimSpace(req.ChatToken))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrSelfTarget):
		fail(c, http.StatusBadRequest, CodeSelfInvite, "No puedes invitarte a ti mismo")
		return
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, CodeChatNotFound, msgChatNotFound)
		return
	case errors.Is(err, services.ErrNotMember):
		fail(c, http.StatusForbidden, CodeNotChatMember, msgNotInChat)
		return
	case errors.Is(err, services.ErrAlreadyMember):
		fail(c, http.StatusBadRequest, CodeAlreadyMember, "El usuario ya está en el chat")
		return
	case errors.Is(err, services.ErrInvitationPending):
		fail(c, http.StatusBadRequest, CodeInvitationPending, "Ya existe una invitación pendiente para este usuario")
		return
	default:
		internal(c, CodeInviteFailed, "Error al enviar invitación", err)
		return
	}

	ok(c, http.StatusCreated, "Invitación enviada exitosamente", InvitationData{
		Key:       res.Key,
		Inviter:   PartyData{ID: u.ID, Username: u.Username},
		Invitee:   PartyData{ID: invitee.ID, Username: invitee.Username, Email: invitee.Email},
		Chat:      InvitationChatData{ID: res.Chat.ID, Token: res.Chat.Token, Type: res.Chat.Type},
		ExpiresIn: expiresIn(int(h.inv.TTL().Seconds())),
	})
}

// RejectInvitation godoc
// @ID          rejectInvitation
// @Summary     Reject an invitation
// @Tags        Invitations
// @Accept      json
// @Produce     json
// @Param       token  path      string                true  "Invitation key"
// @Param       body   body      handlers.ChatRequest  true  "Credentials"
// @Success     200    {object}  handlers.SuccessResponse{data=handlers.InvitationOutcomeData}
// @Failure     400    {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, INV_006"
// @Failure     401    {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     403    {object}  handlers.ErrorResponse  "INV_007"
// @Failure     404    {object}  handlers.ErrorResponse  "USER_001, INV_005"
// @Failure     500    {object}  handlers.ErrorResponse  "AUTH_007, INV_008"
// @Router      /invitar/{token}/rechazar [post]
func (h *Handlers) RejectInvitation(c *gin.Context) {
	var req ChatRequest
	u, authed := h.chatCaller(c, &req)
	if !authed {
		return
	}

	key := pathToken(c)
	inv, err := h.inv.Reject(c.Request.Context(), u, key)
	switch {
	case err == nil:
	case invitationLoadError(c, err):
		return
	case errors.Is(err, services.ErrNotInvitee):
		fail(c, http.StatusForbidden, CodeRejectForbidden, "No tienes permiso para rechazar esta invitación")
		return
	default:
		internal(c, CodeRejectFailed, "Error al rechazar invitación", err)
		return
	}

	ok(c, http.StatusOK, "Invitación rechazada exitosamente", InvitationOutcomeData{
		Key:     key,
		Inviter: PartyData{ID: inv.InviterID, Username: inv.InviterUsername},
		Invitee: PartyData{ID: u.ID, Username: u.Username},
		Chat:    chatOf(inv),
	})
}

// AcceptInvitation godoc
// @ID          acceptInvitation
// @Summary     Accept an invitation
// @Description Joins the caller to the chat and consumes the invitation. If the caller is already a member the invitation is discarded.
// @Tags        Invitations
// @Accept      json
// @Produce     json
// @Param       token  path      string                true  "Invitation key"
// @Param       body   body      handlers.ChatRequest  true  "Credentials"
// @Success     201    {object}  handlers.SuccessResponse{data=handlers.AcceptedData}
// @Failure     400    {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, INV_006, INV_002"
// @Failure     401    {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     403    {object}  handlers.ErrorResponse  "INV_009"
// @Failure     404    {object}  handlers.ErrorResponse  "USER_001, INV_005, CHAT_008"
// @Failure     500    {object}  handlers.ErrorResponse  "AUTH_007, INV_010"
// @Router      /invitar/{token}/aceptar [post]
func (h *Handlers) AcceptInvitation(c *gin.Context) {
	var req ChatRequest
	u, authed := h.chatCaller(c, &req)
	if !authed {
		return
	}

	key := pathToken(c)
	res, err := h.inv.Accept(c.Request.Context(), u, key)
	switch {
	case err == nil:
	case invitationLoadError(c, err):
		return
	case errors.Is(err, services.ErrNotInvitee):
		fail(c, http.StatusForbidden, CodeAcceptForbidden, "No tienes permiso para aceptar esta invitación")
		return
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, CodeChatNotFound, msgChatNotFound)
		return
	case errors.Is(err, services.ErrAlreadyMember):
		fail(c, http.StatusBadRequest, CodeAlreadyMember, "Ya estás en este chat")
		return
	default:
		internal(c, CodeAcceptFailed, "Error al aceptar invitación", err)
		return
	}

	ok(c, http.StatusCreated, "Te has unido al chat exitosamente", AcceptedData{
		Key:      key,
		Inviter:  PartyData{ID: res.Invitation.InviterID, Username: res.Invitation.InviterUsername},
		User:     PartyData{ID: u.ID, Username: u.Username},
		Chat:     InvitationChatData{ID: res.Chat.ID, Token: res.Chat.Token, Type: res.Chat.Type},
		JoinedAt: formatTime(res.Membership.JoinedAt),
	})
}

// CancelInvitation godoc
// @ID          cancelInvitation
// @Summary     Cancel an invitation
// @Tags        Invitations
// @Accept      json
// @Produce     json
// @Param       token  path      string                true  "Invitation key"
// @Param       body   body      handlers.ChatRequest  true  "Credentials"
// @Success     200    {object}  handlers.SuccessResponse{data=handlers.InvitationOutcomeData}
// @Failure     400    {object}  handlers.ErrorResponse  "AUTH_001, AUTH_003, INV_006"
// @Failure     401    {object}  handlers.ErrorResponse  "AUTH_006, AUTH_002"
// @Failure     403    {object}  handlers.ErrorResponse  "INV_011"
// @Failure     404    {object}  handlers.ErrorResponse  "USER_001, INV_005"
// @Failure     500    {object}  handlers.ErrorResponse  "AUTH_007, INV_012"
// @Router      /invitar/{token} [delete]
func (h *Handlers) CancelInvitation(c *gin.Context) {
	var req ChatRequest
	u, authed := h.chatCaller(c, &req)
	if !authed {
		return
	}

	key := pathToken(c)
	inv, err := h.inv.Cancel(c.Request.Context(), u, key)
	switch {
	case err == nil:
	case invitationLoadError(c, err):
		return
	case errors.Is(err, services.ErrNotInviter):
		fail(c, http.StatusForbidden, CodeCancelForbidden, "Solo el invitador puede cancelar esta invitación")
		return
	default:
		internal(c, CodeCancelFailed, "Error al cancelar invitación", err)
		return
	}

	ok(c, http.StatusOK, "Invitación cancelada exitosamente", InvitationOutcomeData{
		Key:     key,
		Inviter: PartyData{ID: u.ID, Username: u.Username},
		Invitee: PartyData{ID: inv.InvitedID, Username: inv.InvitedUsername},
		Chat:    chatOf(inv),
	})
}

func chatOf(inv store.Invitation) InvitationChatData {
	return InvitationChatData{Token: inv.ChatToken, Type: inv.ChatType}
}
