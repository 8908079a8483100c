package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"turnos-gateway/internal/domain/turnos"
)

func TestViewCache_ReplaceKeepsOrderAndOtherRecords(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newViewCache(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	items := []turnos.Turno{
		{ID: "1", Estado: turnos.EstadoReservado},
		{ID: "2", Estado: turnos.EstadoReservado},
		{ID: "3", Estado: turnos.EstadoConfirmado},
	}
	if err := c.Store(ctx, "s1", "page=2", items); err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := c.Replace(ctx, "s1", turnos.Turno{ID: "2", Estado: turnos.EstadoConfirmado}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, ok, _ := c.List(ctx, "s1", "page=2")
	if !ok || len(got) != 3 {
		t.Fatalf("expected cached list, got ok=%v len=%d", ok, len(got))
	}
	if got[0].ID != "1" || got[1].ID != "2" || got[2].ID != "3" {
		t.Fatalf("order changed: %+v", got)
	}
	if got[1].Estado != turnos.EstadoConfirmado || got[0].Estado != turnos.EstadoReservado {
		t.Fatalf("replace touched wrong records: %+v", got)
	}

	// otra sesión no ve nada
	if _, ok, _ := c.Get(ctx, "s2", "1"); ok {
		t.Fatalf("sessions must be isolated")
	}

	// un id desconocido no se agrega
	_ = c.Replace(ctx, "s1", turnos.Turno{ID: "99"})
	if _, ok, _ := c.Get(ctx, "s1", "99"); ok {
		t.Fatalf("replace must not add records")
	}
}

func TestViewCache_Expires(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newViewCache(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	_ = c.Store(ctx, "s1", "", []turnos.Turno{{ID: "1"}})
	now = now.Add(2 * time.Minute)

	if _, ok, _ := c.List(ctx, "s1", ""); ok {
		t.Fatalf("expected expired view")
	}
}

func TestViewCache_StoreSweepsAbandonedSessions(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newViewCache(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_ = c.Store(ctx, fmt.Sprintf("s%d", i), "", []turnos.Turno{{ID: "1"}})
	}
	now = now.Add(time.Hour)

	if err := c.Store(ctx, "nueva", "", []turnos.Turno{{ID: "1"}}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if n := len(c.sessions); n != 1 {
		t.Fatalf("expected only the live session, got %d", n)
	}
}

func TestViewCache_ZeroTTLStillExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newViewCache(0, func() time.Time { return now })
	ctx := context.Background()

	_ = c.Store(ctx, "s1", "", []turnos.Turno{{ID: "1"}})
	now = now.Add(defaultTTL)
	if _, ok, _ := c.List(ctx, "s1", ""); ok {
		t.Fatalf("ttl <= 0 must fall back to the default expiry")
	}
}

func TestAuditRepo_ListByTurno(t *testing.T) {
	r := NewAuditRepo()
	ctx := context.Background()

	base := time.Unix(1000, 0)
	_ = r.Create(ctx, turnos.AuditEntry{ID: "a", TurnoID: "7", Action: "confirmar", CreatedAt: base})
	_ = r.Create(ctx, turnos.AuditEntry{ID: "b", TurnoID: "7", Action: "cancelar", CreatedAt: base.Add(time.Second)})
	_ = r.Create(ctx, turnos.AuditEntry{ID: "c", TurnoID: "8", Action: "confirmar", CreatedAt: base})

	if err := r.Create(ctx, turnos.AuditEntry{ID: "a", TurnoID: "7"}); err == nil {
		t.Fatalf("duplicate id must fail")
	}

	items, err := r.ListByTurno(ctx, "7")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ID != "b" || items[1].ID != "a" {
		t.Fatalf("unexpected entries: %+v", items)
	}
}
