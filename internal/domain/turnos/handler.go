package turnos

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"turnos-gateway/internal/adapters/backend"
	"turnos-gateway/internal/middleware"
	"turnos-gateway/internal/platform/logger"
	"turnos-gateway/internal/platform/web"
	"turnos-gateway/internal/ports/auth"
	"turnos-gateway/internal/session"

	"github.com/go-chi/chi/v5"
)

type Deps struct {
	Backend    Dispatcher
	Service    *Service
	Executor   *Executor
	Audit      AuditRepository
	Principals auth.PrincipalResolver
	Cookies    *session.Manager
	Log        logger.Logger
}

// RegisterAPIRoutes monta el relay /turnos (se usa bajo /api).
func RegisterAPIRoutes(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	r.Route("/turnos", func(tr chi.Router) {
		tr.Get("/", relayListHandler(d))
		tr.Post("/", relayCreateHandler(d))
		tr.Post("/{turnoId}/{action}", relayActionHandler(d))
	})
}

// RegisterConsoleRoutes monta las vistas protegidas de consola.
func RegisterConsoleRoutes(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	r.Route("/turnos", func(tr chi.Router) {
		tr.Get("/", consoleListHandler(d))
		tr.Get("/{turnoId}", consoleGetHandler(d))
		tr.Get("/{turnoId}/historial", historyHandler(d))
		tr.Post("/{turnoId}/acciones/{action}", executeActionHandler(d))
	})
}

type auditResponse struct {
	ID         string  `json:"id"`
	TurnoID    string  `json:"turno_id"`
	Action     string  `json:"accion"`
	Username   string  `json:"usuario"`
	Outcome    Outcome `json:"resultado"`
	StatusCode int     `json:"status_code,omitempty"`
	Message    string  `json:"mensaje,omitempty"`
	CreatedAt  string  `json:"creado_en"`
}

// relayListHandler godoc
// @Summary Listar turnos (relay)
// @Description Reenvía GET /turnos al backend con la query tal cual. Status y cuerpo se devuelven sin cambios.
// @Tags turnos
// @Produce json
// @Param estado query string false "Código de estado"
// @Success 200 {array} object
// @Failure 401 {object} backend.ErrorBody
// @Failure 502 {object} backend.ErrorBody "error de conexión"
// @Router /turnos [get]
func relayListHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.GetToken(r.Context())
		resp, err := d.Backend.Forward(r.Context(), backend.ForwardRequest{
			Method:   http.MethodGet,
			Segments: []string{"turnos"},
			RawQuery: r.URL.RawQuery,
			Token:    token,
		})
		if err != nil {
			web.WriteError(w, err)
			return
		}
		web.Relay(w, resp)
	}
}

// relayCreateHandler godoc
// @Summary Crear turno (relay)
// @Tags turnos
// @Accept json
// @Produce json
// @Param payload body object true "paciente_id, profesional_id, fecha_hora_inicio, fecha_hora_fin"
// @Success 200 {object} object
// @Failure 422 {object} object "validación del backend"
// @Router /turnos [post]
func relayCreateHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.GetToken(r.Context())
		body, err := web.ReadBody(w, r)
		if err != nil {
			web.WriteDetail(w, http.StatusRequestEntityTooLarge, "cuerpo demasiado grande")
			return
		}
		resp, err := d.Backend.Forward(r.Context(), backend.ForwardRequest{
			Method:   http.MethodPost,
			Segments: []string{"turnos"},
			Token:    token,
			Body:     body,
		})
		if err != nil {
			web.WriteError(w, err)
			return
		}
		web.Relay(w, resp)
	}
}

// relayActionHandler godoc
// @Summary Despachar acción de turno (relay)
// @Description Reenvía POST /turnos/{turnoId}/{action} sin validar estado ni permisos; el backend decide.
// @Tags turnos
// @Produce json
// @Param turnoId path string true "ID del turno"
// @Param action path string true "confirmar | cancelar | completar | no_asistio"
// @Success 200 {object} object
// @Router /turnos/{turnoId}/{action} [post]
func relayActionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.GetToken(r.Context())
		body, err := web.ReadBody(w, r)
		if err != nil {
			web.WriteDetail(w, http.StatusRequestEntityTooLarge, "cuerpo demasiado grande")
			return
		}
		resp, err := d.Backend.Forward(r.Context(), backend.ForwardRequest{
			Method:   http.MethodPost,
			Segments: []string{"turnos", chi.URLParam(r, "turnoId"), chi.URLParam(r, "action")},
			Token:    token,
			Body:     body,
		})
		if err != nil {
			web.WriteError(w, err)
			return
		}
		web.Relay(w, resp)
	}
}

func consoleListHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.GetToken(r.Context())
		refresh := r.URL.Query().Get(RefreshParam) == "1"

		items, err := d.Service.List(r.Context(), token, r.URL.RawQuery, refresh)
		if err != nil {
			if web.RevokeIfUnauthorized(w, r, d.Cookies, err) {
				return
			}
			web.WriteError(w, err)
			return
		}

		p, err := resolvePrincipal(r, d, token)
		if err != nil {
			if web.RevokeIfUnauthorized(w, r, d.Cookies, err) {
				return
			}
			web.WriteError(w, err)
			return
		}

		out := make([]View, 0, len(items))
		for _, t := range items {
			out = append(out, Annotate(t, p))
		}
		web.WriteJSON(w, http.StatusOK, out)
	}
}

func consoleGetHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.GetToken(r.Context())

		t, err := d.Service.Get(r.Context(), token, chi.URLParam(r, "turnoId"))
		if err == nil {
			var p auth.Principal
			p, err = resolvePrincipal(r, d, token)
			if err == nil {
				web.WriteJSON(w, http.StatusOK, Annotate(t, p))
				return
			}
		}
		if web.RevokeIfUnauthorized(w, r, d.Cookies, err) {
			return
		}
		web.WriteError(w, err)
	}
}

func executeActionHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.GetToken(r.Context())

		action, ok := ParseAction(chi.URLParam(r, "action"))
		if !ok {
			web.WriteDetail(w, http.StatusBadRequest, ErrUnknownAction.Error())
			return
		}

		p, err := resolvePrincipal(r, d, token)
		if err != nil {
			if web.RevokeIfUnauthorized(w, r, d.Cookies, err) {
				return
			}
			web.WriteError(w, err)
			return
		}

		current, err := d.Service.Get(r.Context(), token, chi.URLParam(r, "turnoId"))
		if err != nil {
			if web.RevokeIfUnauthorized(w, r, d.Cookies, err) {
				return
			}
			web.WriteError(w, err)
			return
		}

		updated, err := d.Executor.Execute(r.Context(), ExecuteInput{
			Token:     token,
			Turno:     current,
			Action:    action,
			Principal: p,
		})
		switch {
		case err == nil:
			web.WriteJSON(w, http.StatusOK, Annotate(updated, p))
		case errors.Is(err, ErrForbidden):
			web.WriteDetail(w, http.StatusForbidden, ErrForbidden.Error())
		case errors.Is(err, ErrIllegalTransition):
			web.WriteDetail(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrNotConfirmed):
			web.WriteDetail(w, http.StatusPreconditionRequired, err.Error())
		default:
			if web.RevokeIfUnauthorized(w, r, d.Cookies, err) {
				return
			}
			web.WriteError(w, err)
		}
	}
}

func historyHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := middleware.GetToken(r.Context())
		turnoID := strings.TrimSpace(chi.URLParam(r, "turnoId"))

		// la auditoría es local: sin /auth/me nadie confirma que la sesión sea real
		if _, err := resolveSession(r, d, token); err != nil {
			if web.RevokeIfUnauthorized(w, r, d.Cookies, err) {
				return
			}
			web.WriteError(w, err)
			return
		}

		if d.Audit == nil {
			web.WriteJSON(w, http.StatusOK, []auditResponse{})
			return
		}

		items, err := d.Audit.ListByTurno(r.Context(), turnoID)
		if err != nil {
			d.Log.Error("turnos: audit list failed", map[string]any{"turno_id": turnoID, "err": err})
			web.WriteDetail(w, http.StatusInternalServerError, "internal error")
			return
		}

		out := make([]auditResponse, 0, len(items))
		for _, e := range items {
			out = append(out, auditResponse{
				ID:         e.ID,
				TurnoID:    e.TurnoID,
				Action:     e.Action,
				Username:   e.Username,
				Outcome:    e.Outcome,
				StatusCode: e.StatusCode,
				Message:    e.Message,
				CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		web.WriteJSON(w, http.StatusOK, out)
	}
}

// resolveSession exige una respuesta de /auth/me: a diferencia de resolvePrincipal,
// un cuerpo ilegible o un resolver ausente no alcanzan para dar la sesión por válida.
func resolveSession(r *http.Request, d Deps, token string) (auth.Principal, error) {
	if d.Principals == nil {
		return auth.Principal{}, errors.New("turnos: no principal resolver")
	}
	return d.Principals.Resolve(r.Context(), token)
}

// resolvePrincipal trae /auth/me. Un cuerpo ilegible deja los permisos como desconocidos.
func resolvePrincipal(r *http.Request, d Deps, token string) (auth.Principal, error) {
	if d.Principals == nil {
		return auth.Principal{}, nil
	}
	p, err := d.Principals.Resolve(r.Context(), token)
	if err == nil {
		return p, nil
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) || errors.Is(err, backend.ErrConnectivity) {
		return auth.Principal{}, err
	}
	d.Log.Warn("turnos: unreadable /auth/me response", map[string]any{"err": err})
	return auth.Principal{}, nil
}
