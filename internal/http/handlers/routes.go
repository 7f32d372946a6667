package handlers

import "github.com/gin-gonic/gin"

// Mount registers every API endpoint on api. Path parameters under one
// prefix share the name :token, as gin requires.
func (h *Handlers) Mount(api *gin.RouterGroup) {
	// Auth
	api.POST("/login", h.Login)
	api.POST("/registro", h.Register)
	api.POST("/logout", h.Logout)
	api.POST("/conexion", h.Connection)

	// Users
	api.POST("/usuarios/perfil", h.GetProfile)
	api.PUT("/usuarios/perfil", h.UpdateProfile)
	api.GET("/usuarios", h.Nearby)
	api.POST("/usuarios", h.Nearby)
	api.POST("/usuarios/:token", h.GetUser)
	api.DELETE("/usuarios/:token", h.DeleteUser)

	// General chat
	api.POST("/general/mensaje", h.SendGeneral)
	api.POST("/general/usuarios", h.GeneralMembers)

	// Private chats
	api.POST("/privado", h.OpenPrivate)
	api.POST("/privado/:token", h.PrivateMessages)
	api.POST("/privado/:token/mensaje", h.SendPrivate)
	api.POST("/privado/:token/salir", h.LeavePrivate)
	api.DELETE("/privado/:token", h.DeletePrivate)

	// Invitations
	api.POST("/invitar/:token", h.Invite)
	api.POST("/invitar/:token/rechazar", h.RejectInvitation)
	api.POST("/invitar/:token/aceptar", h.AcceptInvitation)
	api.DELETE("/invitar/:token", h.CancelInvitation)

	// Poll
	api.POST("/actualizar", h.Poll)

	// Blocks
	api.POST("/bloqueo/bloquear", h.Block)
	api.DELETE("/bloqueo/desbloquear", h.Unblock)
	api.POST("/bloqueados", h.ListBlocked)

	api.GET("/docs", Docs(api.BasePath()))
}
