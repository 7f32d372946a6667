// Error codes returned in the error_code field of the API envelope.
//
// Codes are UPPER_SNAKE with a family prefix and a number. Clients branch on
// them, so a code once published keeps its meaning. The same code can carry
// different messages on different endpoints; the HTTP status is chosen per
// endpoint as well.

package handlers

// Authentication and API key.
const (
	CodeMissingCredentials = "AUTH_001" // required credentials absent
	CodeInvalidToken       = "AUTH_002" // user_token unresolved / bad login
	CodeMissingUserToken   = "AUTH_003" // user_token absent / registro fields absent
	CodeEmailTaken         = "AUTH_004"
	CodeAPIKeyInvalid      = "AUTH_006"
	CodeAPIKeyUnset        = "AUTH_007"
	CodeTargetTokenInvalid = "AUTH_008" // other user's token unresolved / logout token absent
	CodeSessionInvalid     = "AUTH_009" // token_user unresolved / registro and conexion key
	CodeSessionUserGone    = "AUTH_010"
	CodeNotAllowedDelete   = "AUTH_011"
	CodeLogoutFailed       = "AUTH_500"
)

// Users and geolocation.
const (
	CodeUserNotFound       = "USER_001"
	CodeAdminProtected     = "USER_004"
	CodeRecipientMissing   = "USER_005"
	CodeRecipientNotFound  = "USER_006"
	CodeInviteeNotFound    = "USER_007"
	CodeMissingCoordinates = "GEO_001"
)

// Chats.
const (
	CodeMissingRoomToken   = "CHAT_001"
	CodeMissingChatToken   = "CHAT_002"
	CodeNotGeneralChat     = "CHAT_003"
	CodeGeneralListFailed  = "CHAT_005"
	CodeSelfChat           = "CHAT_006"
	CodeCreateChatFailed   = "CHAT_007"
	CodeChatNotFound       = "CHAT_008"
	CodeNotPrivateChat     = "CHAT_009"
	CodeNotChatMember      = "CHAT_010"
	CodeLeaveFailed        = "CHAT_011"
	CodeNotEphemeralChat   = "CHAT_012"
	CodeNotChatCreator     = "CHAT_013"
	CodeDeleteChatFailed   = "CHAT_014"
	CodeMissingLastMessage = "MSG_001"
	CodeMissingMessage     = "MSG_002"
	CodeSendFailed         = "MSG_003"
	CodeFetchFailed        = "MSG_004"
	CodePollFailed         = "UPDATE_001"
)

// Invitations.
const (
	CodeSelfInvite         = "INV_001"
	CodeAlreadyMember      = "INV_002"
	CodeInvitationPending  = "INV_003"
	CodeInviteFailed       = "INV_004"
	CodeInvitationNotFound = "INV_005"
	CodeInvitationInvalid  = "INV_006"
	CodeRejectForbidden    = "INV_007"
	CodeRejectFailed       = "INV_008"
	CodeAcceptForbidden    = "INV_009"
	CodeAcceptFailed       = "INV_010"
	CodeCancelForbidden    = "INV_011"
	CodeCancelFailed       = "INV_012"
)

// Blocks.
const (
	CodeMissingBlockTarget   = "BLOCK_001"
	CodeBlockTargetInvalid   = "BLOCK_002"
	CodeSelfBlock            = "BLOCK_003"
	CodeBlockTargetNotFound  = "BLOCK_004"
	CodeAlreadyBlocked       = "BLOCK_005"
	CodeBlockFailed          = "BLOCK_006"
	CodeListBlockedFailed    = "BLOCK_007"
	CodeMissingUnblockTarget = "UNBLOCK_001"
	CodeUnblockTargetInvalid = "UNBLOCK_002"
	CodeUnblockTargetMissing = "UNBLOCK_003"
	CodeNotBlocked           = "UNBLOCK_004"
	CodeUnblockFailed        = "UNBLOCK_005"
)

// Transport.
const (
	CodeRouteNotFound    = "ROUTE_404"
	CodeMethodNotAllowed = "METHOD_405"
	CodeInternal         = "SERVER_500"
)

// Messages shared by several endpoints.
const (
	msgInvalidAPIKey   = "API key inválida"
	msgAPIKeyUnset     = "API key no configurada en el servidor"
	msgTokenExpired    = "Token inválido o expirado"
	msgUserNotFound    = "Usuario no encontrado"
	msgChatNotFound    = "Chat no encontrado"
	msgNotPrivate      = "Este endpoint es solo para chats privados"
	msgNoAccess        = "No tienes acceso a este chat"
	msgNotInChat       = "No perteneces a este chat"
	msgInvitationGone  = "Invitación no encontrada o expirada"
	msgInvitationBad   = "Datos de invitación inválidos"
	msgInternal        = "Error interno del servidor"
	msgRequiredKeyUser = "api_key y token_user requeridos"
)
