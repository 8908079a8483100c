package middleware

import (
	"context"
	"net/http"
	"strings"

	"turnos-gateway/internal/session"
)

type ctxKey string

const tokenKey ctxKey = "session_token"

// LoginPath es el destino de los requests protegidos sin sesión.
const LoginPath = "/login"

// Access clasifica un path.
type Access int

const (
	Protected Access = iota
	Public
)

func (a Access) String() string {
	if a == Public {
		return "public"
	}
	return "protected"
}

// publicPrefixes: home, login y todo el namespace /api.
var publicPrefixes = []string{"/login", "/api"}

// Classify decide si el path es público. Prefijos por segmento completo:
// "/api/x" es público, "/apix" no.
func Classify(path string) Access {
	if path == "" || path == "/" {
		return Public
	}
	for _, p := range publicPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return Public
		}
	}
	return Protected
}

// SessionGate:
// - Si hay cookie access_token => el token queda en el contexto (sin validar).
// - Path protegido sin cookie => redirect a /login, sin query de destino.
// - El resto pasa; la autorización real la hace el backend en cada llamada.
func SessionGate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := session.TokenFrom(r)
			if !ok {
				if Classify(r.URL.Path) == Protected {
					http.Redirect(w, r, LoginPath, http.StatusTemporaryRedirect)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetToken devuelve el token de sesión puesto por SessionGate.
func GetToken(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tokenKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
