// Package handlers provides HTTP handler implementations for the public API.
//
// Every response uses one envelope. Success:
//
//	HTTP/1.1 200 OK
//	{"success": true, "message": "Perfil obtenido", "data": {...}}
//
// Failure:
//
//	HTTP/1.1 404 Not Found
//	{"success": false, "error_code": "CHAT_008", "message": "Chat no encontrado", "data": null}
//
// fail() centralizes error logging: 5xx responses are logged with the
// request-scoped logger, and every error code is counted in Prometheus.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-geochat-backend/internal/http/middleware"
)

// SuccessResponse is the envelope of every successful call.
type SuccessResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Perfil obtenido"`
	Data    any    `json:"data"`
}

// ErrorResponse is the envelope of every failed call. Data is always null.
type ErrorResponse struct {
	Success   bool   `json:"success" example:"false"`
	ErrorCode string `json:"error_code" example:"CHAT_008"`
	Message   string `json:"message" example:"Chat no encontrado"`
	Data      any    `json:"data" swaggertype:"object"`
}

// fail aborts the request with the error envelope.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	middleware.ObserveAPIError(code)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Success:   false,
		ErrorCode: code,
		Message:   msg,
	})
}

// internal answers a 5xx with a generic message and logs err, which never
// reaches the client.
func internal(c *gin.Context, code, msg string, err error) {
	if err != nil {
		_ = c.Error(err)
		middleware.LoggerFrom(c).Error().Err(err).Str("code", code).Msg("unexpected failure")
	}
	fail(c, http.StatusInternalServerError, code, msg)
}

// Fail is the exported variant of fail() for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes the success envelope.
func ok(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, SuccessResponse{Success: true, Message: msg, Data: data})
}
