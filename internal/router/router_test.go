package router_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"turnos-gateway/internal/adapters/backend"
	"turnos-gateway/internal/platform/config"
	"turnos-gateway/internal/platform/httpclient"
	"turnos-gateway/internal/router"
	"turnos-gateway/internal/session"
)

// fakeBackend simula el backend de turnos bajo /api.
type fakeBackend struct {
	mu     sync.Mutex
	calls  map[string]int
	auth   map[string]string // "METHOD path" -> Authorization recibido
	estado string
	perms  string // JSON de permissions en /auth/me
	token  string
	denyMe bool
}

func (f *fakeBackend) hit(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.Method + " " + r.URL.Path
	f.calls[key]++
	f.auth[key] = r.Header.Get("Authorization")
}

func (f *fakeBackend) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeBackend) authHeader(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.auth[key]
}

func (f *fakeBackend) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+f.token
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hit(r)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/login":
		_ = r.ParseForm()
		if r.PostForm.Get("password") != "secreto" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Usuario o contraseña incorrectos"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"`+f.token+`","token_type":"bearer"}`)

	case !f.authorized(r):
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Not authenticated"}`)

	case r.URL.Path == "/api/auth/me":
		f.mu.Lock()
		deny := f.denyMe
		f.mu.Unlock()
		if deny {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Token expirado"}`)
			return
		}
		_, _ = io.WriteString(w, `{"user":{"id":1,"username":"recep"},"roles":["RECEPCION"],"permissions":`+f.perms+`}`)

	case r.URL.Path == "/api/pacientes":
		_, _ = io.WriteString(w, `[{"id":1,"nombre":"Ana"}]`)

	case r.Method == http.MethodGet && r.URL.Path == "/api/turnos":
		f.mu.Lock()
		estado := f.estado
		f.mu.Unlock()
		_, _ = io.WriteString(w, `[{"id":1,"paciente_id":1,"profesional_id":2,"estado":{"id":1,"codigo":"`+estado+`","descripcion":"x"}},{"id":2,"paciente_id":1,"profesional_id":2,"estado":{"id":2,"codigo":"CONFIRMADO","descripcion":"x"}}]`)

	case r.Method == http.MethodGet && r.URL.Path == "/api/turnos/2":
		_, _ = io.WriteString(w, `{"id":2,"paciente_id":1,"profesional_id":2,"estado":{"id":2,"codigo":"CONFIRMADO","descripcion":"x"}}`)

	case r.Method == http.MethodPost && r.URL.Path == "/api/turnos/1/confirmar":
		f.mu.Lock()
		f.estado = "CONFIRMADO"
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"id":1,"paciente_id":1,"profesional_id":2,"estado":{"id":2,"codigo":"CONFIRMADO","descripcion":"x"}}`)

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Not Found"}`)
	}
}

func jwtLike(payload string) string {
	return "h." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".s"
}

func setup(t *testing.T, perms string) (*httptest.Server, *fakeBackend) {
	t.Helper()
	return setupWithConfig(t, perms, config.Config{AppName: "turnos-gateway", CacheTTL: time.Minute})
}

func setupWithConfig(t *testing.T, perms string, cfg config.Config) (*httptest.Server, *fakeBackend) {
	t.Helper()

	fb := &fakeBackend{
		calls:  map[string]int{},
		auth:   map[string]string{},
		estado: "RESERVADO",
		perms:  perms,
		token:  jwtLike(`{"sub":"1","iat":1000,"exp":4600}`),
	}
	be := httptest.NewServer(fb)
	t.Cleanup(be.Close)

	hc, err := httpclient.NewWithBaseURL(be.URL+"/api", 0)
	if err != nil {
		t.Fatalf("httpclient: %v", err)
	}
	cookies := session.NewManager(false).WithClock(func() time.Time { return time.Unix(1000, 0) })

	ts := httptest.NewServer(router.NewRouter(router.Options{
		Config:  cfg,
		Backend: backend.NewClient(hc, cookies),
		Cookies: cookies,
	}))
	t.Cleanup(ts.Close)
	return ts, fb
}

func TestHTTP_EndToEnd_LoginListAndAction(t *testing.T) {
	ts, fb := setup(t, `{"turnos.confirmar":["*"],"turnos.cancelar":["*"],"turnos.completar":["*"]}`)

	// 1) Sin cookie, la consola redirige a /login
	{
		st, hdr, _ := doReq(t, ts.URL, "GET", "/turnos", "", nil)
		if st != http.StatusTemporaryRedirect || hdr.Get("Location") != "/login" {
			t.Fatalf("expected 307 to /login, got %d %q", st, hdr.Get("Location"))
		}
	}

	// 2) Login: cookie con Max-Age derivado del token y {ok:true}
	token := login(t, ts.URL)

	// 3) Lista anotada con acciones
	{
		st, _, body := doReq(t, ts.URL, "GET", "/turnos", token, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 list, got %d body=%s", st, body)
		}
		var items []map[string]any
		_ = json.Unmarshal(body, &items)
		if len(items) != 2 {
			t.Fatalf("expected 2 turnos, got %s", body)
		}
		if got := asStrings(items[0]["acciones"]); strings.Join(got, ",") != "confirmar,cancelar" {
			t.Fatalf("acciones for RESERVADO: %v", got)
		}
		if got := asStrings(items[1]["acciones_habilitadas"]); strings.Join(got, ",") != "completar,cancelar" {
			t.Fatalf("habilitadas for CONFIRMADO without turnos.no_asistio: %v", got)
		}
	}

	// 4) completar sobre RESERVADO: rechazo local, sin llamada al backend
	{
		st, _, body := doReq(t, ts.URL, "POST", "/turnos/1/acciones/completar", token, nil)
		if st != http.StatusConflict {
			t.Fatalf("expected 409, got %d body=%s", st, body)
		}
		if fb.count("POST /api/turnos/1/completar") != 0 {
			t.Fatalf("illegal transition reached the backend")
		}
	}

	// 5) confirmar: despacho sin body, vista actualizada solo en ese registro
	{
		st, _, body := doReq(t, ts.URL, "POST", "/turnos/1/acciones/confirmar", token, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 confirmar, got %d body=%s", st, body)
		}
		if fb.count("POST /api/turnos/1/confirmar") != 1 {
			t.Fatalf("expected one dispatch")
		}
	}

	// 6) La lista sale de la cache (sin refetch) con el turno ya confirmado
	{
		st, _, body := doReq(t, ts.URL, "GET", "/turnos", token, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200, got %d", st)
		}
		if fb.count("GET /api/turnos") != 1 {
			t.Fatalf("expected cached list, backend list called %d times", fb.count("GET /api/turnos"))
		}
		var items []map[string]any
		_ = json.Unmarshal(body, &items)
		estado, _ := items[0]["estado"].(map[string]any)
		if estado["codigo"] != "CONFIRMADO" {
			t.Fatalf("cached record not replaced: %s", body)
		}
	}

	// 7) refrescar=1 fuerza el backend
	{
		_, _, _ = doReq(t, ts.URL, "GET", "/turnos?refrescar=1", token, nil)
		if fb.count("GET /api/turnos") != 2 {
			t.Fatalf("refresh must refetch")
		}
	}

	// 8) Historial del turno
	{
		st, _, body := doReq(t, ts.URL, "GET", "/turnos/1/historial", token, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 historial, got %d", st)
		}
		var entries []map[string]any
		_ = json.Unmarshal(body, &entries)
		if len(entries) != 1 || entries[0]["accion"] != "confirmar" || entries[0]["resultado"] != "ok" || entries[0]["usuario"] != "recep" {
			t.Fatalf("unexpected historial: %s", body)
		}
	}

	// 9) Logout siempre 200 y borra la cookie
	{
		st, hdr, body := doReq(t, ts.URL, "POST", "/api/auth/logout", "", nil)
		if st != http.StatusOK || !strings.Contains(string(body), `"ok":true`) {
			t.Fatalf("logout: %d %s", st, body)
		}
		if sc := hdr.Get("Set-Cookie"); !strings.Contains(sc, "access_token=;") || !strings.Contains(sc, "Max-Age=0") {
			t.Fatalf("logout cookie: %q", sc)
		}
	}
}

func TestHTTP_ActionForbiddenWithoutPermission(t *testing.T) {
	ts, fb := setup(t, `["turnos.confirmar"]`)
	token := login(t, ts.URL)

	// turno 2 está CONFIRMADO; cancelar requiere turnos.cancelar
	st, _, body := doReq(t, ts.URL, "POST", "/turnos/2/acciones/cancelar", token, nil)
	if st != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", st, body)
	}
	if fb.count("POST /api/turnos/2/cancelar") != 0 {
		t.Fatalf("forbidden action reached the backend")
	}

	st, _, _ = doReq(t, ts.URL, "POST", "/turnos/2/acciones/reprogramar", token, nil)
	if st != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", st)
	}
}

func TestHTTP_UnauthorizedRevokesSession(t *testing.T) {
	ts, fb := setup(t, `[]`)
	_ = login(t, ts.URL)

	// cookie con un token que el backend no acepta
	st, hdr, _ := doReq(t, ts.URL, "GET", "/turnos", "vencido", nil)
	if st != http.StatusSeeOther || hdr.Get("Location") != "/login" {
		t.Fatalf("expected 303 to /login, got %d %q", st, hdr.Get("Location"))
	}
	if sc := hdr.Get("Set-Cookie"); !strings.Contains(sc, "Max-Age=0") {
		t.Fatalf("cookie not cleared: %q", sc)
	}

	// /auth/me rechazado también cierra la sesión en la acción
	fb.mu.Lock()
	fb.denyMe = true
	fb.mu.Unlock()
	st, _, _ = doReq(t, ts.URL, "POST", "/turnos/1/acciones/confirmar", fb.token, nil)
	if st != http.StatusSeeOther {
		t.Fatalf("expected 303 when /auth/me is rejected, got %d", st)
	}
}

func TestHTTP_ProxyWithoutCookieRelays401(t *testing.T) {
	ts, fb := setup(t, `[]`)

	st, hdr, body := doReq(t, ts.URL, "GET", "/api/pacientes", "", nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 relayed, got %d", st)
	}
	if string(body) != `{"detail":"Not authenticated"}` {
		t.Fatalf("body changed: %s", body)
	}
	if hdr.Get("Set-Cookie") != "" || hdr.Get("Location") != "" {
		t.Fatalf("relay must not revoke or redirect")
	}
	if fb.authHeader("GET /api/pacientes") != "" {
		t.Fatalf("no Authorization expected without cookie")
	}
}

func TestHTTP_LoginRejectedRelaysBackendBody(t *testing.T) {
	ts, _ := setup(t, `[]`)

	st, hdr, body := doReq(t, ts.URL, "POST", "/api/auth/login", "", map[string]any{
		"username": "recep",
		"password": "mal",
	})
	if st != http.StatusUnauthorized || string(body) != `{"detail":"Usuario o contraseña incorrectos"}` {
		t.Fatalf("expected backend body relayed, got %d %s", st, body)
	}
	if hdr.Get("Set-Cookie") != "" {
		t.Fatalf("no cookie on rejected login")
	}
}

func TestHTTP_HistoryRequiresBackendSession(t *testing.T) {
	ts, fb := setup(t, `["turnos.confirmar"]`)
	token := login(t, ts.URL)

	if st, _, body := doReq(t, ts.URL, "POST", "/turnos/1/acciones/confirmar", token, nil); st != http.StatusOK {
		t.Fatalf("confirmar: %d %s", st, body)
	}

	// cookie inventada: el backend la rechaza en /auth/me y no se filtra la auditoría
	st, hdr, body := doReq(t, ts.URL, "GET", "/turnos/1/historial", "forged-garbage", nil)
	if st != http.StatusSeeOther || hdr.Get("Location") != "/login" {
		t.Fatalf("expected 303 to /login, got %d %q body=%s", st, hdr.Get("Location"), body)
	}
	if strings.Contains(string(body), "recep") {
		t.Fatalf("audit leaked: %s", body)
	}
	if fb.count("GET /api/auth/me") == 0 {
		t.Fatalf("historial must check the session against the backend")
	}

	st, _, body = doReq(t, ts.URL, "GET", "/turnos/1/historial", token, nil)
	if st != http.StatusOK || !strings.Contains(string(body), `"usuario":"recep"`) {
		t.Fatalf("real session must read the audit: %d %s", st, body)
	}
}

func TestHTTP_LoginLimitIgnoresForwardedHeaders(t *testing.T) {
	ts, _ := setupWithConfig(t, `[]`, config.Config{
		AppName:         "turnos-gateway",
		CacheTTL:        time.Minute,
		LoginRatePerMin: 1,
		LoginBurst:      1,
	})

	codes := []int{}
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/auth/login",
			strings.NewReader(`{"username":"recep","password":"mal"}`))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))

		res, err := noRedirect.Do(req)
		if err != nil {
			t.Fatalf("do request: %v", err)
		}
		_ = res.Body.Close()
		codes = append(codes, res.StatusCode)
	}

	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("rotating forwarded headers must not reset the limit, got %v", codes)
	}
}

func login(t *testing.T, baseURL string) string {
	t.Helper()

	st, hdr, body := doReq(t, baseURL, "POST", "/api/auth/login", "", map[string]any{
		"username": "recep",
		"password": "secreto",
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 login, got %d body=%s", st, body)
	}
	if strings.TrimSpace(string(body)) != `{"ok":true}` {
		t.Fatalf("login body must not expose the token: %s", body)
	}

	sc := hdr.Get("Set-Cookie")
	for _, attr := range []string{"Max-Age=3600", "Path=/", "HttpOnly", "SameSite=Lax"} {
		if !strings.Contains(sc, attr) {
			t.Fatalf("cookie missing %s: %q", attr, sc)
		}
	}
	if strings.Contains(sc, "Secure") {
		t.Fatalf("Secure outside production: %q", sc)
	}

	res := http.Response{Header: hdr}
	for _, c := range res.Cookies() {
		if c.Name == session.CookieName {
			return c.Value
		}
	}
	t.Fatalf("no %s cookie in %q", session.CookieName, sc)
	return ""
}

func asStrings(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, _ := it.(string)
		out = append(out, s)
	}
	return out
}

var noRedirect = &http.Client{
	CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
}

func doReq(t *testing.T, baseURL, method, path, token string, body any) (int, http.Header, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}

	res, err := noRedirect.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, res.Header, respBody
}
