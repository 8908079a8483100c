package pacientes

import (
	"context"
	"net/http"

	"turnos-gateway/internal/adapters/backend"
	"turnos-gateway/internal/middleware"
	"turnos-gateway/internal/platform/httpclient"
	"turnos-gateway/internal/platform/web"
	"turnos-gateway/internal/session"

	"github.com/go-chi/chi/v5"
)

// Forwarder es el relay hacia el backend.
type Forwarder interface {
	Forward(ctx context.Context, in backend.ForwardRequest) (httpclient.Response, error)
}

// RegisterAPIRoutes monta el relay /pacientes (bajo /api).
func RegisterAPIRoutes(r chi.Router, b Forwarder) {
	r.Route("/pacientes", func(pr chi.Router) {
		pr.Get("/", relayHandler(b, http.MethodGet))
		pr.Post("/", relayHandler(b, http.MethodPost))
		pr.Patch("/{id}", relayHandler(b, http.MethodPatch))
	})
}

// RegisterConsoleRoutes monta GET /pacientes protegido: un 401/403 cierra la sesión.
func RegisterConsoleRoutes(r chi.Router, b Forwarder, cookies *session.Manager) {
	r.Get("/pacientes", consoleListHandler(b, cookies))
}

// relayHandler godoc
// @Summary Pacientes (relay)
// @Description GET/POST /pacientes y PATCH /pacientes/{id}. Bearer desde la cookie si existe; status y cuerpo sin cambios.
// @Tags pacientes
// @Accept json
// @Produce json
// @Param id path string false "ID del paciente (solo PATCH)"
// @Success 200 {object} object
// @Failure 401 {object} backend.ErrorBody
// @Failure 502 {object} backend.ErrorBody "error de conexión"
// @Router /pacientes [get]
// @Router /pacientes [post]
// @Router /pacientes/{id} [patch]
func relayHandler(b Forwarder, method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.GetToken(r.Context())

		segments := []string{"pacientes"}
		if id := chi.URLParam(r, "id"); id != "" {
			segments = append(segments, id)
		}

		in := backend.ForwardRequest{
			Method:   method,
			Segments: segments,
			Token:    token,
		}
		if method == http.MethodGet {
			in.RawQuery = r.URL.RawQuery
		} else {
			body, err := web.ReadBody(w, r)
			if err != nil {
				web.WriteDetail(w, http.StatusRequestEntityTooLarge, "cuerpo demasiado grande")
				return
			}
			in.Body = body
		}

		resp, err := b.Forward(r.Context(), in)
		if err != nil {
			web.WriteError(w, err)
			return
		}
		web.Relay(w, resp)
	}
}

func consoleListHandler(b Forwarder, cookies *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.GetToken(r.Context())

		resp, err := b.Forward(r.Context(), backend.ForwardRequest{
			Method:   http.MethodGet,
			Segments: []string{"pacientes"},
			RawQuery: r.URL.RawQuery,
			Token:    token,
		})
		if err != nil {
			web.WriteError(w, err)
			return
		}
		if backend.IsUnauthorizedStatus(resp.StatusCode) {
			web.Revoke(w, r, cookies)
			return
		}
		if !resp.OK() {
			apiErr := backend.NewAPIError(resp.StatusCode, resp.Body)
			web.WriteJSON(w, apiErr.Status, apiErr.ErrorBody())
			return
		}
		web.Relay(w, resp)
	}
}
