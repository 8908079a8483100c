package session

import (
	"net/http"
	"strings"
	"time"
)

// CookieName es el nombre de la cookie HttpOnly que transporta el bearer token.
const CookieName = "access_token"

// CookieSpec describe la cookie a emitir. MaxAge nil => cookie de sesión (sin Max-Age).
type CookieSpec struct {
	Name     string
	Value    string
	Path     string
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	MaxAge   *int
}

// HTTPCookie traduce a *http.Cookie. net/http usa MaxAge<0 para emitir "Max-Age=0".
func (c CookieSpec) HTTPCookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
	if c.MaxAge != nil {
		if *c.MaxAge <= 0 {
			hc.MaxAge = -1
		} else {
			hc.MaxAge = *c.MaxAge
		}
	}
	return hc
}

// Manager emite y borra la cookie de sesión.
type Manager struct {
	secure bool
	now    func() time.Time
}

// NewManager: secure=true solo en producción.
func NewManager(secure bool) *Manager {
	return &Manager{
		secure: secure,
		now:    time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

// Issue arma la cookie para token. Con exp+iat decodificables, Max-Age = exp - now (mínimo 0);
// si no, queda como cookie de sesión.
func (m *Manager) Issue(token string) CookieSpec {
	spec := m.base(token)
	spec.Secure = m.secure

	claims, ok := DecodeClaims(token)
	if !ok || !claims.HasLifetime() {
		return spec
	}

	maxAge := int(claims.ExpiresAt.Unix() - m.now().Unix())
	if maxAge < 0 {
		maxAge = 0
	}
	spec.MaxAge = &maxAge
	return spec
}

// Clear expira la cookie inmediatamente, sin importar el entorno.
func (m *Manager) Clear() CookieSpec {
	spec := m.base("")
	zero := 0
	spec.MaxAge = &zero
	return spec
}

// Set escribe la cookie en la respuesta.
func Set(w http.ResponseWriter, spec CookieSpec) {
	http.SetCookie(w, spec.HTTPCookie())
}

// TokenFrom devuelve el token de la cookie de sesión. ok=true si la cookie vino,
// aunque esté vacía: la validez la decide el backend.
func TokenFrom(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(c.Value), true
}

func (m *Manager) base(value string) CookieSpec {
	return CookieSpec{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
