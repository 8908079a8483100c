package memory

import (
	"context"
	"sync"
	"time"

	"turnos-gateway/internal/domain/turnos"
)

type sessionView struct {
	records   map[string]turnos.Turno
	queries   map[string][]string // query normalizada -> ids en orden
	expiresAt time.Time
}

// defaultTTL aplica cuando ttl <= 0.
const defaultTTL = 10 * time.Minute

// viewCache es la vista por sesión en memoria del proceso. Expira por TTL al leer,
// y Store barre las sesiones vencidas como mucho una vez por TTL.
type viewCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	sessions  map[string]*sessionView
	lastSweep time.Time
}

func NewViewCache(ttl time.Duration) turnos.ViewCache {
	return newViewCache(ttl, time.Now)
}

func newViewCache(ttl time.Duration, now func() time.Time) *viewCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &viewCache{
		ttl:      ttl,
		now:      now,
		sessions: make(map[string]*sessionView),
	}
}

// view devuelve la vista vigente de la sesión (nil si no hay). Requiere mu tomado.
func (c *viewCache) view(session string) *sessionView {
	v, ok := c.sessions[session]
	if !ok {
		return nil
	}
	if !c.now().Before(v.expiresAt) {
		delete(c.sessions, session)
		return nil
	}
	return v
}

func (c *viewCache) touch(v *sessionView) {
	v.expiresAt = c.now().Add(c.ttl)
}

// sweep borra las sesiones vencidas. Requiere mu tomado.
func (c *viewCache) sweep() {
	now := c.now()
	if now.Sub(c.lastSweep) < c.ttl {
		return
	}
	for id, v := range c.sessions {
		if !now.Before(v.expiresAt) {
			delete(c.sessions, id)
		}
	}
	c.lastSweep = now
}

func (c *viewCache) Store(ctx context.Context, session, query string, items []turnos.Turno) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()

	v := c.view(session)
	if v == nil {
		v = &sessionView{
			records: make(map[string]turnos.Turno),
			queries: make(map[string][]string),
		}
		c.sessions[session] = v
	}

	ids := make([]string, 0, len(items))
	for _, t := range items {
		v.records[t.ID] = t
		ids = append(ids, t.ID)
	}
	v.queries[query] = ids
	c.touch(v)
	return nil
}

func (c *viewCache) List(ctx context.Context, session, query string) ([]turnos.Turno, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.view(session)
	if v == nil {
		return nil, false, nil
	}
	ids, ok := v.queries[query]
	if !ok {
		return nil, false, nil
	}

	out := make([]turnos.Turno, 0, len(ids))
	for _, id := range ids {
		if t, ok := v.records[id]; ok {
			out = append(out, t)
		}
	}
	return out, true, nil
}

func (c *viewCache) Get(ctx context.Context, session, id string) (turnos.Turno, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.view(session)
	if v == nil {
		return turnos.Turno{}, false, nil
	}
	t, ok := v.records[id]
	return t, ok, nil
}

// Replace solo toca un registro ya presente; no agrega ids a las listas.
func (c *viewCache) Replace(ctx context.Context, session string, t turnos.Turno) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.view(session)
	if v == nil {
		return nil
	}
	if _, ok := v.records[t.ID]; !ok {
		return nil
	}
	v.records[t.ID] = t
	return nil
}
