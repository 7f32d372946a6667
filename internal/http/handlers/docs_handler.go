// Endpoint catalogue.
//
//   - GET /docs  (static list of every API endpoint, grouped by area)

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// EndpointDoc describes one endpoint of the catalogue.
type EndpointDoc struct {
	Method      string            `json:"metodo" example:"POST"`
	Path        string            `json:"ruta" example:"/api/login"`
	Description string            `json:"descripcion" example:"Iniciar sesión"`
	Public      bool              `json:"publico"`
	Body        map[string]string `json:"body,omitempty"`
}

// DocSection groups the endpoints of one area.
type DocSection struct {
	Name      string        `json:"seccion" example:"AUTENTICACIÓN"`
	Endpoints []EndpointDoc `json:"endpoints"`
}

// DocsData is the catalogue returned by GET /docs.
type DocsData struct {
	Sections       []DocSection `json:"endpoints"`
	BaseURL        string       `json:"base_url" example:"/api"`
	Authentication string       `json:"autenticacion"`
}

var (
	sessionBody = map[string]string{"api_key": "string", "token_user": "string"}
	chatBody    = map[string]string{"api_key": "string", "user_token": "string"}
)

func with(base map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

// catalogue lists the endpoints relative to base.
func catalogue(base string) []DocSection {
	p := func(s string) string { return base + s }
	return []DocSection{
		{Name: "AUTENTICACIÓN", Endpoints: []EndpointDoc{
			{http.MethodPost, p("/conexion"), "Verificar conexión exitosa con la API", true, map[string]string{"apikey": "string"}},
			{http.MethodPost, p("/login"), "Iniciar sesión", true, map[string]string{"api_key": "string", "email": "string", "password": "string", "latitud": "float", "longitud": "float"}},
			{http.MethodPost, p("/registro"), "Registrar nuevo usuario", true, map[string]string{"api_key": "string", "email": "string", "username": "string", "password": "string", "latitud": "float", "longitud": "float"}},
			{http.MethodPost, p("/logout"), "Cerrar sesión", false, map[string]string{"access_token": "string"}},
		}},
		{Name: "USUARIOS", Endpoints: []EndpointDoc{
			{http.MethodPost, p("/usuarios/perfil"), "Obtener mi perfil", false, sessionBody},
			{http.MethodPut, p("/usuarios/perfil"), "Actualizar mi perfil", false, with(sessionBody,
				"username", "string (opcional)", "email", "string (opcional)", "password", "string (opcional)",
				"latitud", "float (opcional)", "longitud", "float (opcional)", "en_linea", "boolean (opcional)")},
			{"GET/POST", p("/usuarios"), "Listar usuarios cercanos en un radio de 5 km", false, with(sessionBody,
				"lat", "float (opcional)", "lon", "float (opcional)", "page", "int (opcional)", "per_page", "int (opcional)")},
			{http.MethodPost, p("/usuarios/{token}"), "Obtener usuario por token", false, sessionBody},
			{http.MethodDelete, p("/usuarios/{token}"), "Eliminar usuario por token", false, sessionBody},
		}},
		{Name: "BLOQUEOS", Endpoints: []EndpointDoc{
			{http.MethodPost, p("/bloqueo/bloquear"), "Bloquear un usuario", false, with(sessionBody, "usuario_bloquear_token", "string")},
			{http.MethodDelete, p("/bloqueo/desbloquear"), "Desbloquear un usuario", false, with(sessionBody, "user_token", "string")},
			{http.MethodPost, p("/bloqueados"), "Listar usuarios bloqueados", false, sessionBody},
		}},
		{Name: "ACTUALIZACIÓN", Endpoints: []EndpointDoc{
			{http.MethodPost, p("/actualizar"), "Actualiza la ubicación del usuario y obtiene cambios recientes", false, with(chatBody,
				"token_sala", "string", "ultimo_mensaje_id", "int", "latitud", "float (opcional)", "longitud", "float (opcional)",
				"ultima_actualizacion", "string datetime (opcional)")},
		}},
		{Name: "CHAT GENERAL", Endpoints: []EndpointDoc{
			{http.MethodPost, p("/general/mensaje"), "Enviar mensaje al chat general", false, with(chatBody, "chat_token", "string", "contenido", "string")},
			{http.MethodPost, p("/general/usuarios"), "Obtener usuarios del chat general", false, chatBody},
		}},
		{Name: "CHAT PRIVADO", Endpoints: []EndpointDoc{
			{http.MethodPost, p("/privado"), "Crear o recuperar un chat privado", false, with(chatBody, "destinatario_token", "string")},
			{http.MethodPost, p("/privado/{token}"), "Obtener mensajes de un chat privado", false, chatBody},
			{http.MethodPost, p("/privado/{token}/mensaje"), "Enviar mensaje a un chat privado", false, with(chatBody, "mensaje", "string")},
			{http.MethodPost, p("/privado/{token}/salir"), "Salir de un chat privado", false, chatBody},
			{http.MethodDelete, p("/privado/{token}"), "Eliminar un chat privado", false, chatBody},
		}},
		{Name: "INVITACIONES", Endpoints: []EndpointDoc{
			{http.MethodPost, p("/invitar/{token}"), "Invitar usuario a un chat", false, with(chatBody, "chat_token", "string")},
			{http.MethodPost, p("/invitar/{token}/rechazar"), "Rechazar invitación", false, chatBody},
			{http.MethodPost, p("/invitar/{token}/aceptar"), "Aceptar invitación", false, chatBody},
			{http.MethodDelete, p("/invitar/{token}"), "Cancelar invitación", false, chatBody},
		}},
	}
}

// Docs godoc
// @ID          docs
// @Summary     Endpoint catalogue
// @Description Lists every endpoint under the API base path with its method and body fields.
// @Tags        Docs
// @Produce     json
// @Success     200  {object}  handlers.SuccessResponse{data=handlers.DocsData}
// @Router      /docs [get]
func Docs(base string) gin.HandlerFunc {
	data := DocsData{
		Sections:       catalogue(base),
		BaseURL:        base,
		Authentication: "La mayoría de endpoints requieren api_key y token_user (o user_token) en el body",
	}
	return func(c *gin.Context) {
		ok(c, http.StatusOK, "Documentación de API", data)
	}
}
