// Package docs registra la descripción OpenAPI del gateway (servida en /api/docs/).
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/login": {
            "post": {
                "description": "Intercambia credenciales por un token del backend y lo guarda en la cookie HttpOnly access_token. El token no se devuelve en el cuerpo.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Iniciar sesión",
                "parameters": [
                    {"description": "Credenciales", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/auth.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.okResponse"}},
                    "401": {"description": "cuerpo del backend sin cambios", "schema": {"type": "object"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/backend.ErrorBody"}},
                    "500": {"description": "No access_token in response", "schema": {"$ref": "#/definitions/backend.ErrorBody"}},
                    "502": {"description": "error de conexión", "schema": {"$ref": "#/definitions/backend.ErrorBody"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "description": "Borra la cookie de sesión. No llama al backend; siempre 200.",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Cerrar sesión",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.okResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "description": "Relaya /auth/me del backend con el bearer de la cookie (si existe).",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Usuario actual",
                "responses": {
                    "200": {"description": "user, roles, permissions", "schema": {"type": "object"}},
                    "401": {"description": "cuerpo del backend sin cambios", "schema": {"type": "object"}}
                }
            }
        },
        "/pacientes": {
            "get": {
                "produces": ["application/json"],
                "tags": ["pacientes"],
                "summary": "Pacientes (relay)",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/backend.ErrorBody"}},
                    "502": {"description": "error de conexión", "schema": {"$ref": "#/definitions/backend.ErrorBody"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["pacientes"],
                "summary": "Pacientes (relay)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/pacientes/{id}": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["pacientes"],
                "summary": "Pacientes (relay)",
                "parameters": [
                    {"type": "string", "description": "ID del paciente", "name": "id", "in": "path", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/turnos": {
            "get": {
                "description": "Reenvía GET /turnos al backend con la query tal cual. Status y cuerpo se devuelven sin cambios.",
                "produces": ["application/json"],
                "tags": ["turnos"],
                "summary": "Listar turnos (relay)",
                "parameters": [
                    {"type": "string", "description": "Código de estado", "name": "estado", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/backend.ErrorBody"}},
                    "502": {"description": "error de conexión", "schema": {"$ref": "#/definitions/backend.ErrorBody"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["turnos"],
                "summary": "Crear turno (relay)",
                "parameters": [
                    {"description": "paciente_id, profesional_id, fecha_hora_inicio, fecha_hora_fin", "name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "422": {"description": "validación del backend", "schema": {"type": "object"}}
                }
            }
        },
        "/turnos/{turnoId}/{action}": {
            "post": {
                "description": "Reenvía POST /turnos/{turnoId}/{action} sin validar estado ni permisos; el backend decide.",
                "produces": ["application/json"],
                "tags": ["turnos"],
                "summary": "Despachar acción de turno (relay)",
                "parameters": [
                    {"type": "string", "description": "ID del turno", "name": "turnoId", "in": "path", "required": true},
                    {"type": "string", "description": "confirmar | cancelar | completar | no_asistio", "name": "action", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        }
    },
    "definitions": {
        "auth.loginRequest": {
            "type": "object",
            "properties": {
                "password": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "auth.okResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"}
            }
        },
        "backend.ErrorBody": {
            "type": "object",
            "properties": {
                "detail": {"type": "string"},
                "fields": {
                    "type": "object",
                    "additionalProperties": {"type": "array", "items": {"type": "string"}}
                }
            }
        }
    }
}`

// SwaggerInfo contiene la info exportada de la API.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Turnos Gateway API",
	Description:      "Gateway de sesión frente al backend de turnos y pacientes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
