package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"turnos-gateway/internal/domain/turnos"
)

type auditRepo struct {
	mu      sync.RWMutex
	byID    map[string]struct{}
	byTurno map[string][]turnos.AuditEntry
}

func NewAuditRepo() turnos.AuditRepository {
	return &auditRepo{
		byID:    make(map[string]struct{}),
		byTurno: make(map[string][]turnos.AuditEntry),
	}
}

func (r *auditRepo) Create(ctx context.Context, e turnos.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		return errors.New("audit id required")
	}
	if _, exists := r.byID[e.ID]; exists {
		return errors.New("audit entry already exists")
	}

	r.byID[e.ID] = struct{}{}
	r.byTurno[e.TurnoID] = append(r.byTurno[e.TurnoID], e)
	return nil
}

// ListByTurno devuelve las entradas más recientes primero.
func (r *auditRepo) ListByTurno(ctx context.Context, turnoID string) ([]turnos.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.byTurno[strings.TrimSpace(turnoID)]
	out := make([]turnos.AuditEntry, len(items))
	copy(out, items)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
