package turnos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"turnos-gateway/internal/adapters/backend"
	"turnos-gateway/internal/platform/httpclient"
	"turnos-gateway/internal/platform/logger"
	"turnos-gateway/internal/ports/auth"

	"github.com/google/uuid"
)

var (
	ErrForbidden         = errors.New("no tenés permiso para esta acción")
	ErrIllegalTransition = errors.New("acción no válida para el estado actual del turno")
	ErrUnknownAction     = errors.New("acción desconocida")
	ErrNotConfirmed      = errors.New("acción no confirmada")
)

// Dispatcher es el lado backend que necesita el executor (ver backend.Client.Forward).
type Dispatcher interface {
	Forward(ctx context.Context, in backend.ForwardRequest) (httpclient.Response, error)
}

// Confirmer es un gate interactivo opcional antes de despachar. Error => no se despacha.
type Confirmer func(ctx context.Context, t Turno, a Action) error

type Executor struct {
	backend Dispatcher
	cache   ViewCache
	audit   AuditRepository
	confirm Confirmer
	log     logger.Logger
	now     func() time.Time
}

func NewExecutor(b Dispatcher, cache ViewCache, audit AuditRepository, log logger.Logger) *Executor {
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{
		backend: b,
		cache:   cache,
		audit:   audit,
		log:     log,
		now:     time.Now,
	}
}

// WithConfirmer devuelve una copia que pide confirmación antes de despachar.
func (e *Executor) WithConfirmer(c Confirmer) *Executor {
	cp := *e
	cp.confirm = c
	return &cp
}

type ExecuteInput struct {
	Token     string
	Turno     Turno
	Action    Action
	Principal auth.Principal
}

// Execute aplica una transición:
//   - permiso conocido y ausente => ErrForbidden
//   - acción ilegal para el estado => ErrIllegalTransition
//   - 401/403 del backend => *backend.APIError (errors.Is ErrUnauthorized), sin tocar cache
//   - otro no-2xx => *backend.APIError normalizado
//   - 2xx => turno actualizado, reemplazado en la vista de la sesión
//
// Las dos primeras validaciones no llaman al backend.
func (e *Executor) Execute(ctx context.Context, in ExecuteInput) (Turno, error) {
	if in.Action.Code() == "" {
		return Turno{}, ErrUnknownAction
	}
	if allowed, known := in.Principal.Can(in.Action.Permission()); known && !allowed {
		return Turno{}, ErrForbidden
	}
	if !IsAllowed(in.Turno.Estado, in.Action) {
		return Turno{}, fmt.Errorf("%w: %s en %s", ErrIllegalTransition, in.Action.Label(), displayEstado(in.Turno.Estado))
	}
	if e.confirm != nil {
		if err := e.confirm(ctx, in.Turno, in.Action); err != nil {
			return Turno{}, fmt.Errorf("%w: %v", ErrNotConfirmed, err)
		}
	}

	// el despacho sigue aunque el cliente se vaya
	dctx := context.WithoutCancel(ctx)

	resp, err := e.backend.Forward(dctx, backend.ForwardRequest{
		Method:   http.MethodPost,
		Segments: in.Action.Endpoint(in.Turno.ID),
		Token:    in.Token,
	})
	if err != nil {
		e.record(dctx, in, OutcomeUnreachable, 0, err.Error())
		return Turno{}, err
	}

	if !resp.OK() {
		apiErr := backend.NewAPIError(resp.StatusCode, resp.Body)
		outcome := OutcomeRejected
		if backend.IsUnauthorizedStatus(resp.StatusCode) {
			outcome = OutcomeUnauthorized
		}
		e.record(dctx, in, outcome, resp.StatusCode, apiErr.Message)
		return Turno{}, apiErr
	}

	var updated Turno
	if err := json.Unmarshal(resp.Body, &updated); err != nil {
		// 2xx con cuerpo inesperado: el backend ya aplicó la acción
		e.log.Warn("turnos: unexpected action response body", map[string]any{
			"turno_id": in.Turno.ID,
			"action":   in.Action.Code(),
			"err":      err,
		})
		updated = in.Turno
		updated.Estado = in.Action.Target()
		updated.Raw = nil
	}
	e.record(dctx, in, OutcomeOK, resp.StatusCode, "")

	if e.cache != nil && strings.TrimSpace(in.Token) != "" {
		if err := e.cache.Replace(dctx, SessionKey(in.Token), updated); err != nil {
			e.log.Warn("turnos: cache replace failed", map[string]any{"turno_id": updated.ID, "err": err})
		}
	}
	return updated, nil
}

func (e *Executor) record(ctx context.Context, in ExecuteInput, outcome Outcome, status int, msg string) {
	if e.audit == nil {
		return
	}
	entry := AuditEntry{
		ID:         uuid.NewString(),
		TurnoID:    in.Turno.ID,
		Action:     in.Action.Code(),
		Username:   in.Principal.Username,
		Outcome:    outcome,
		StatusCode: status,
		Message:    msg,
		CreatedAt:  e.now().UTC(),
	}
	if err := e.audit.Create(ctx, entry); err != nil {
		e.log.Error("turnos: audit write failed", map[string]any{"turno_id": in.Turno.ID, "err": err})
	}
}

func displayEstado(e Estado) string {
	if e == "" {
		return "estado desconocido"
	}
	return string(e)
}
