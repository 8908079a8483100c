package turnos

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ViewCache guarda, por sesión, la última vista de turnos que se le sirvió al usuario.
// No es estado de sesión: perderlo solo obliga a volver a pedir la lista.
type ViewCache interface {
	// Store reemplaza la lista cacheada para query.
	Store(ctx context.Context, session, query string, items []Turno) error
	// List devuelve la lista para query. ok=false si no hay.
	List(ctx context.Context, session, query string) ([]Turno, bool, error)
	// Get devuelve un turno de la vista de la sesión.
	Get(ctx context.Context, session, id string) (Turno, bool, error)
	// Replace actualiza solo ese registro, en todas las listas que lo contengan.
	Replace(ctx context.Context, session string, t Turno) error
}

// SessionKey deriva la clave de cache del token (nunca se guarda el token en claro).
func SessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Outcome del despacho de una acción.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeRejected     Outcome = "rejected"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeUnreachable  Outcome = "unreachable"
)

// AuditEntry registra quién despachó qué acción sobre qué turno.
type AuditEntry struct {
	ID         string
	TurnoID    string
	Action     string
	Username   string
	Outcome    Outcome
	StatusCode int // 0 si no hubo respuesta del backend
	Message    string
	CreatedAt  time.Time
}

type AuditRepository interface {
	Create(ctx context.Context, e AuditEntry) error
	ListByTurno(ctx context.Context, turnoID string) ([]AuditEntry, error)
}
