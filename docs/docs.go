// Package docs registers the OpenAPI document served by the Swagger UI.
// Regenerate with `swag init -g cmd/server/main.go` after changing handler
// annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/conexion": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Check API connectivity",
                "operationId": "connection",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Log in",
                "operationId": "login",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/registro": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Register a user",
                "operationId": "register",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/actualizar": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Poll"],
                "summary": "Update location and fetch recent changes",
                "operationId": "poll",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PollRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/docs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Docs"],
                "summary": "Endpoint catalogue",
                "operationId": "docs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.SuccessResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "message": {"type": "string"},
                "data": {}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "error_code": {"type": "string", "example": "AUTH_001"},
                "message": {"type": "string"},
                "data": {}
            }
        },
        "handlers.LoginRequest": {
            "type": "object",
            "properties": {
                "api_key": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "latitud": {"type": "number"},
                "longitud": {"type": "number"}
            }
        },
        "handlers.RegisterRequest": {
            "type": "object",
            "properties": {
                "api_key": {"type": "string"},
                "email": {"type": "string"},
                "username": {"type": "string"},
                "password": {"type": "string"},
                "latitud": {"type": "number"},
                "longitud": {"type": "number"}
            }
        },
        "handlers.PollRequest": {
            "type": "object",
            "properties": {
                "api_key": {"type": "string"},
                "user_token": {"type": "string"},
                "token_sala": {"type": "string"},
                "ultimo_mensaje_id": {"type": "integer"},
                "latitud": {"type": "number"},
                "longitud": {"type": "number"},
                "ultima_actualizacion": {"type": "string", "example": "2024-01-01 12:00:00"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "GeoChat API",
	Description:      "Location-aware chat backend: nearby users, general and private rooms, invitations and blocking.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
