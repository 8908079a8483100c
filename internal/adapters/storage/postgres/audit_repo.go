package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"turnos-gateway/internal/domain/turnos"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS turno_action_audit (
	id          UUID PRIMARY KEY,
	turno_id    TEXT NOT NULL,
	action      TEXT NOT NULL,
	username    TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	message     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turno_action_audit_turno
	ON turno_action_audit (turno_id, created_at DESC);
`

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// EnsureSchema crea la tabla de auditoría si no existe.
func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("postgres: audit schema: %w", err)
	}
	return nil
}

func (r *AuditRepo) Create(ctx context.Context, e turnos.AuditEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO turno_action_audit (
			id, turno_id, action, username,
			outcome, status_code, message, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		e.ID,
		e.TurnoID,
		e.Action,
		e.Username,
		string(e.Outcome),
		e.StatusCode,
		e.Message,
		e.CreatedAt,
	)
	return err
}

func (r *AuditRepo) ListByTurno(ctx context.Context, turnoID string) ([]turnos.AuditEntry, error) {
	turnoID = strings.TrimSpace(turnoID)
	if turnoID == "" {
		return []turnos.AuditEntry{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, turno_id, action, username, outcome, status_code, message, created_at
		FROM turno_action_audit
		WHERE turno_id = $1
		ORDER BY created_at DESC
	`, turnoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]turnos.AuditEntry, 0)
	for rows.Next() {
		var e turnos.AuditEntry
		var outcome string
		if err := rows.Scan(
			&e.ID,
			&e.TurnoID,
			&e.Action,
			&e.Username,
			&outcome,
			&e.StatusCode,
			&e.Message,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Outcome = turnos.Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}
