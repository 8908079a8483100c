package auth

import "context"

// PrincipalResolver obtiene el Principal del token actual (típicamente vía /auth/me).
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (Principal, error)
}
