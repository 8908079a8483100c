package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"turnos-gateway/internal/ports/auth"
)

// Resolver implementa auth.PrincipalResolver contra /auth/me.
type Resolver struct {
	client *Client
}

func NewResolver(c *Client) *Resolver {
	return &Resolver{client: c}
}

var _ auth.PrincipalResolver = (*Resolver)(nil)

// Resolve devuelve el Principal del token. 401/403 salen como *APIError (errors.Is ErrUnauthorized).
func (r *Resolver) Resolve(ctx context.Context, token string) (auth.Principal, error) {
	resp, err := r.client.Me(ctx, token)
	if err != nil {
		return auth.Principal{}, err
	}
	if !resp.OK() {
		return auth.Principal{}, NewAPIError(resp.StatusCode, resp.Body)
	}
	return ParsePrincipal(resp.Body)
}

type meResponse struct {
	User struct {
		ID       json.RawMessage `json:"id"`
		Username string          `json:"username"`
	} `json:"user"`
	Roles       []string        `json:"roles"`
	Permissions json.RawMessage `json:"permissions"`
}

// ParsePrincipal interpreta el cuerpo de /auth/me. permissions puede venir como
// lista de códigos o como mapa {código: [scopes]}; en el mapa cuentan las claves.
// Sin permissions (o null) quedan como desconocidos.
func ParsePrincipal(body []byte) (auth.Principal, error) {
	var me meResponse
	if err := json.Unmarshal(body, &me); err != nil {
		return auth.Principal{}, fmt.Errorf("backend: invalid /auth/me body: %w", err)
	}

	p := auth.Principal{
		UserID:   strings.Trim(strings.TrimSpace(string(me.User.ID)), `"`),
		Username: strings.TrimSpace(me.User.Username),
		Roles:    me.Roles,
	}
	if p.UserID == "null" {
		p.UserID = ""
	}

	raw := strings.TrimSpace(string(me.Permissions))
	if raw == "" || raw == "null" {
		return p, nil
	}

	var codes []string
	var asList []string
	var asMap map[string]json.RawMessage
	switch {
	case json.Unmarshal(me.Permissions, &asList) == nil:
		codes = asList
	case json.Unmarshal(me.Permissions, &asMap) == nil:
		for code := range asMap {
			codes = append(codes, code)
		}
	default:
		// forma desconocida: se deja el chequeo al backend
		return p, nil
	}

	known := auth.NewPrincipal(p.Username, p.Roles, codes...)
	known.UserID = p.UserID
	return known, nil
}
