// Block HTTP handlers.
//
//   - POST   /bloqueo/bloquear     (block a user)
//   - DELETE /bloqueo/desbloquear  (lift a block)
//   - POST   /bloqueados           (list blocked users)

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/services"
)

// BlockRequest is the JSON payload of POST /bloqueo/bloquear.
type BlockRequest struct {
	SessionAuth
	Target string `json:"usuario_bloquear_token" validate:"required" code:"BLOCK_001" msg:"usuario_bloquear_token requerido"`
}

// UnblockRequest is the JSON payload of DELETE /bloqueo/desbloquear.
type UnblockRequest struct {
	SessionAuth
	Target string `json:"user_token" validate:"required" code:"UNBLOCK_001" msg:"user_token del usuario bloqueado requerido"`
}

// BlockedListRequest is the JSON payload of POST /bloqueados.
type BlockedListRequest struct {
	SessionAuth
}

// BlockData describes a new block.
type BlockData struct {
	BlockID   uint   `json:"bloqueo_id" example:"4"`
	BlockerID uint   `json:"usuario_bloqueador_id" example:"7"`
	BlockedID uint   `json:"usuario_bloqueado_id" example:"9"`
	BlockedAt string `json:"fecha_bloqueo" example:"2025-01-31 18:04:05"`
}

// UnblockData describes a lifted block.
type UnblockData struct {
	BlockID     uint `json:"bloqueo_id" example:"4"`
	UnblockerID uint `json:"usuario_desbloqueador_id" example:"7"`
	UnblockedID uint `json:"usuario_desbloqueado_id" example:"9"`
	Unblocked   bool `json:"desbloqueado" example:"true"`
}

// BlockedUserData is an entry of the blocked list.
type BlockedUserData struct {
	BlockID   uint   `json:"bloqueo_id" example:"4"`
	UserID    uint   `json:"usuario_id" example:"9"`
	Username  string `json:"username" example:"bob"`
	Email     string `json:"email" example:"bob@example.com"`
	Online    bool   `json:"en_linea"`
	BlockedAt string `json:"fecha_bloqueo" example:"2025-01-31 18:04:05"`
}

// BlockedListData is the blocked list, newest block first.
type BlockedListData struct {
	Total   int               `json:"total" example:"1"`
	Blocked []BlockedUserData `json:"bloqueados"`
}

// resolveBlockTarget resolves the other party of a block or unblock.
func (h *Handlers) resolveBlockTarget(c *gin.Context, token, invalidCode, invalidMsg, missingCode, missingMsg, failCode, failMsg string) (*domain.User, bool) {
	u, err := h.auth.ResolveTarget(c.Request.Context(), token)
	switch {
	case err == nil:
		return u, true
	case errors.Is(err, services.ErrTargetTokenInvalid):
		fail(c, http.StatusNotFound, invalidCode, invalidMsg)
	case errors.Is(err, services.ErrTargetNotFound):
		fail(c, http.StatusNotFound, missingCode, missingMsg)
	default:
		internal(c, failCode, failMsg, err)
	}
	return nil, false
}

// Block godoc
// @ID          blockUser
// @Summary     Block a user
// @Tags        Blocks
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.BlockRequest  true  "Credentials and target"
// @Success     200   {object}  handlers.SuccessResponse{data=handlers.BlockData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_001, BLOCK_001, BLOCK_003, BLOCK_005"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_006, AUTH_009"
// @Failure     404   {object}  handlers.ErrorResponse  "AUTH_010, BLOCK_002, BLOCK_004"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007, BLOCK_006"
// @Router      /bloqueo/bloquear [post]
func (h *Handlers) Block(c *gin.Context) {
	var req BlockRequest
	u, authed := h.sessionCaller(c, &req, &req.SessionAuth, "Usuario bloqueador no encontrado")
	if !authed {
		return
	}
	target, found := h.resolveBlockTarget(c, req.Target,
		CodeBlockTargetInvalid, "Token del usuario a bloquear inválido",
		CodeBlockTargetNotFound, "Usuario a bloquear no encontrado",
		CodeBlockFailed, "Error al bloquear usuario")
	if !found {
		return
	}

	b, err := h.blocks.Block(c.Request.Context(), u, target)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrSelfTarget):
		fail(c, http.StatusBadRequest, CodeSelfBlock, "No puedes bloquearte a ti mismo")
		return
	case errors.Is(err, services.ErrAlreadyBlocked):
		fail(c, http.StatusBadRequest, CodeAlreadyBlocked, "Este usuario ya está bloqueado")
		return
	default:
		internal(c, CodeBlockFailed, "Error al bloquear usuario", err)
		return
	}

	ok(c, http.StatusOK, "Usuario bloqueado exitosamente", BlockData{
		BlockID:   b.ID,
		BlockerID: b.BlockerID,
		BlockedID: b.BlockedID,
		BlockedAt: formatTime(b.BlockedAt),
	})
}

// Unblock godoc
// @ID          unblockUser
// @Summary     Unblock a user
// @Tags        Blocks
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.UnblockRequest  true  "Credentials and target"
// @Success     200   {object}  handlers.SuccessResponse{data=handlers.UnblockData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_001, UNBLOCK_001"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_006, AUTH_009"
// @Failure     404   {object}  handlers.ErrorResponse  "AUTH_010, UNBLOCK_002, UNBLOCK_003, UNBLOCK_004"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007, UNBLOCK_005"
// @Router      /bloqueo/desbloquear [delete]
func (h *Handlers) Unblock(c *gin.Context) {
	var req UnblockRequest
	u, authed := h.sessionCaller(c, &req, &req.SessionAuth, "Usuario desbloqueador no encontrado")
	if !authed {
		return
	}
	target, found := h.resolveBlockTarget(c, req.Target,
		CodeUnblockTargetInvalid, "Token del usuario bloqueado inválido",
		CodeUnblockTargetMissing, "Usuario bloqueado no encontrado",
		CodeUnblockFailed, "Error al desbloquear usuario")
	if !found {
		return
	}

	id, err := h.blocks.Unblock(c.Request.Context(), u, target)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNotBlocked):
		fail(c, http.StatusNotFound, CodeNotBlocked, "No existe un bloqueo activo con este usuario")
		return
	default:
		internal(c, CodeUnblockFailed, "Error al desbloquear usuario", err)
		return
	}

	ok(c, http.StatusOK, "Usuario desbloqueado exitosamente", UnblockData{
		BlockID:     id,
		UnblockerID: u.ID,
		UnblockedID: target.ID,
		Unblocked:   true,
	})
}

// ListBlocked godoc
// @ID          listBlocked
// @Summary     List blocked users
// @Tags        Blocks
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.BlockedListRequest  true  "Credentials"
// @Success     200   {object}  handlers.SuccessResponse{data=handlers.BlockedListData}
// @Failure     400   {object}  handlers.ErrorResponse  "AUTH_001"
// @Failure     401   {object}  handlers.ErrorResponse  "AUTH_006, AUTH_009"
// @Failure     404   {object}  handlers.ErrorResponse  "AUTH_010"
// @Failure     500   {object}  handlers.ErrorResponse  "AUTH_007, BLOCK_007"
// @Router      /bloqueados [post]
func (h *Handlers) ListBlocked(c *gin.Context) {
	var req BlockedListRequest
	u, authed := h.sessionCaller(c, &req, &req.SessionAuth, msgUserNotFound)
	if !authed {
		return
	}

	rows, err := h.blocks.List(c.Request.Context(), u)
	if err != nil {
		internal(c, CodeListBlockedFailed, "Error al obtener usuarios bloqueados", err)
		return
	}
	out := make([]BlockedUserData, 0, len(rows))
	for _, r := range rows {
		out = append(out, BlockedUserData{
			BlockID:   r.BlockID,
			UserID:    r.UserID,
			Username:  r.Username,
			Email:     r.Email,
			Online:    r.Online,
			BlockedAt: formatTime(r.BlockedAt),
		})
	}
	ok(c, http.StatusOK, "Lista de usuarios bloqueados", BlockedListData{Total: len(out), Blocked: out})
}
