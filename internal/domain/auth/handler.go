package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"turnos-gateway/internal/adapters/backend"
	"turnos-gateway/internal/middleware"
	"turnos-gateway/internal/platform/httpclient"
	"turnos-gateway/internal/platform/logger"
	"turnos-gateway/internal/platform/web"
	"turnos-gateway/internal/session"

	"github.com/go-chi/chi/v5"
)

// Gateway es el lado backend del intercambio de sesión.
type Gateway interface {
	Login(ctx context.Context, username, password string) (session.CookieSpec, error)
	Logout() session.CookieSpec
	Me(ctx context.Context, token string) (httpclient.Response, error)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// RegisterRoutes monta /auth (bajo /api). loginLimit puede ser nil.
func RegisterRoutes(r chi.Router, gw Gateway, log logger.Logger, loginLimit func(http.Handler) http.Handler) {
	if log == nil {
		log = logger.Nop()
	}
	r.Route("/auth", func(ar chi.Router) {
		ar.Group(func(lr chi.Router) {
			if loginLimit != nil {
				lr.Use(loginLimit)
			}
			lr.Post("/login", loginHandler(gw, log))
		})
		ar.Post("/logout", logoutHandler(gw))
		ar.Get("/me", meHandler(gw))
	})
}

// loginHandler godoc
// @Summary Iniciar sesión
// @Description Intercambia credenciales por un token del backend y lo guarda en la cookie HttpOnly `access_token`. El token no se devuelve en el cuerpo.
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body loginRequest true "Credenciales"
// @Success 200 {object} okResponse
// @Failure 401 {object} object "cuerpo del backend sin cambios"
// @Failure 429 {object} backend.ErrorBody
// @Failure 500 {object} backend.ErrorBody "No access_token in response"
// @Failure 502 {object} backend.ErrorBody "error de conexión"
// @Router /auth/login [post]
func loginHandler(gw Gateway, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		// JSON inválido => credenciales vacías; el backend decide
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, web.MaxRequestBody)).Decode(&req)

		spec, err := gw.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			var rej *backend.CredentialsRejected
			if errors.As(err, &rej) {
				log.Info("auth: login rejected", map[string]any{"username": req.Username, "status": rej.Status})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(rej.Status)
				_, _ = w.Write(rej.RelayBody())
				return
			}
			log.Error("auth: login failed", map[string]any{"username": req.Username, "err": err})
			web.WriteError(w, err)
			return
		}

		session.Set(w, spec)
		web.WriteJSON(w, http.StatusOK, okResponse{OK: true})
	}
}

// logoutHandler godoc
// @Summary Cerrar sesión
// @Description Borra la cookie de sesión. No llama al backend; siempre 200.
// @Tags auth
// @Produce json
// @Success 200 {object} okResponse
// @Router /auth/logout [post]
func logoutHandler(gw Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		session.Set(w, gw.Logout())
		web.WriteJSON(w, http.StatusOK, okResponse{OK: true})
	}
}

// meHandler godoc
// @Summary Usuario actual
// @Description Relaya /auth/me del backend con el bearer de la cookie (si existe).
// @Tags auth
// @Produce json
// @Success 200 {object} object "user, roles, permissions"
// @Failure 401 {object} object "cuerpo del backend sin cambios"
// @Router /auth/me [get]
func meHandler(gw Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.GetToken(r.Context())
		resp, err := gw.Me(r.Context(), token)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		web.Relay(w, resp)
	}
}
