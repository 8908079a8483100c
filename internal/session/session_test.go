package session

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// makeToken arma un token de 3 segmentos con payload arbitrario (firma falsa).
func makeToken(payload string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return header + "." + body + ".firma"
}

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func TestDecodeClaims_Valid(t *testing.T) {
	c, ok := DecodeClaims(makeToken(`{"sub":"7","iat":1000,"exp":4600}`))
	if !ok {
		t.Fatalf("expected ok")
	}
	if c.IssuedAt == nil || c.IssuedAt.Unix() != 1000 {
		t.Fatalf("iat: got %v", c.IssuedAt)
	}
	if c.ExpiresAt == nil || c.ExpiresAt.Unix() != 4600 {
		t.Fatalf("exp: got %v", c.ExpiresAt)
	}
	if !c.HasLifetime() {
		t.Fatalf("expected lifetime")
	}
}

func TestDecodeClaims_PaddedSegment(t *testing.T) {
	// payload con padding explícito "=" también se acepta
	body := base64.URLEncoding.EncodeToString([]byte(`{"iat":1,"exp":2}`))
	c, ok := DecodeClaims("h." + body + ".s")
	if !ok || !c.HasLifetime() {
		t.Fatalf("expected claims from padded segment, got ok=%v claims=%+v", ok, c)
	}
}

func TestDecodeClaims_StandardAlphabet(t *testing.T) {
	// "?>" produce un "+" en base64 estándar
	payload := `{"iat":1000,"exp":4600,"n":"\u00fb\u00ff?>"}`
	std := base64.RawStdEncoding.EncodeToString([]byte(payload))
	if !strings.ContainsAny(std, "+/") {
		t.Fatalf("fixture must contain standard-alphabet characters: %s", std)
	}
	c, ok := DecodeClaims("h." + std + ".s")
	if !ok || !c.HasLifetime() {
		t.Fatalf("expected claims from standard base64, got ok=%v claims=%+v", ok, c)
	}
}

func TestDecodeClaims_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"one segment":    "abc",
		"empty payload":  "a..c",
		"bad base64":     "a.@@@.c",
		"not json":       "a." + base64.RawURLEncoding.EncodeToString([]byte("hola")) + ".c",
		"json array":     "a." + base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`)) + ".c",
		"json null":      "a." + base64.RawURLEncoding.EncodeToString([]byte(`null`)) + ".c",
		"truncated json": "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":`)) + ".c",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			c, ok := DecodeClaims(tok)
			if ok {
				t.Fatalf("expected !ok for %q", tok)
			}
			if c.IssuedAt != nil || c.ExpiresAt != nil {
				t.Fatalf("expected empty claims, got %+v", c)
			}
		})
	}
}

func TestDecodeClaims_NonNumericClaimsIgnored(t *testing.T) {
	c, ok := DecodeClaims(makeToken(`{"iat":"ayer","exp":4600}`))
	if !ok {
		t.Fatalf("payload is valid json, expected ok")
	}
	if c.IssuedAt != nil {
		t.Fatalf("iat string should be ignored")
	}
	if c.HasLifetime() {
		t.Fatalf("lifetime requires both claims")
	}
}

func TestIssue_MaxAgeFromClaims(t *testing.T) {
	m := NewManager(false).WithClock(fixedClock(1000))

	spec := m.Issue(makeToken(`{"iat":1000,"exp":4600}`))
	if spec.MaxAge == nil || *spec.MaxAge != 3600 {
		t.Fatalf("expected Max-Age=3600, got %v", spec.MaxAge)
	}
	if spec.Name != CookieName || spec.Path != "/" || !spec.HTTPOnly || spec.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected attributes: %+v", spec)
	}
	if spec.Secure {
		t.Fatalf("secure must be off outside production")
	}

	hdr := spec.HTTPCookie().String()
	if !strings.Contains(hdr, "Max-Age=3600") {
		t.Fatalf("header missing Max-Age: %s", hdr)
	}
}

func TestIssue_ExpiredTokenFloorsAtZero(t *testing.T) {
	m := NewManager(true).WithClock(fixedClock(5000))

	spec := m.Issue(makeToken(`{"iat":1000,"exp":4600}`))
	if spec.MaxAge == nil || *spec.MaxAge != 0 {
		t.Fatalf("expected Max-Age=0, got %v", spec.MaxAge)
	}
	if !spec.Secure {
		t.Fatalf("secure expected in production")
	}
	if hdr := spec.HTTPCookie().String(); !strings.Contains(hdr, "Max-Age=0") {
		t.Fatalf("header missing Max-Age=0: %s", hdr)
	}

	// exp == now también da 0
	spec = m.WithClock(fixedClock(4600)).Issue(makeToken(`{"iat":1000,"exp":4600}`))
	if spec.MaxAge == nil || *spec.MaxAge != 0 {
		t.Fatalf("expected Max-Age=0 at exp==now, got %v", spec.MaxAge)
	}
}

func TestIssue_SessionCookieWithoutClaims(t *testing.T) {
	m := NewManager(false).WithClock(fixedClock(1000))

	for _, tok := range []string{"opaco", "a.@@@.c", makeToken(`{"exp":4600}`)} {
		spec := m.Issue(tok)
		if spec.MaxAge != nil {
			t.Fatalf("token %q: expected no Max-Age, got %d", tok, *spec.MaxAge)
		}
		if spec.Value != tok {
			t.Fatalf("cookie value must be the token")
		}
		if hdr := spec.HTTPCookie().String(); strings.Contains(hdr, "Max-Age") {
			t.Fatalf("session cookie must not carry Max-Age: %s", hdr)
		}
	}
}

func TestClear_AlwaysMaxAgeZero(t *testing.T) {
	for _, secure := range []bool{false, true} {
		spec := NewManager(secure).Clear()
		if spec.Value != "" || spec.MaxAge == nil || *spec.MaxAge != 0 {
			t.Fatalf("unexpected clear cookie: %+v", spec)
		}
		hdr := spec.HTTPCookie().String()
		if !strings.Contains(hdr, "Max-Age=0") || !strings.Contains(hdr, "HttpOnly") || !strings.Contains(hdr, "SameSite=Lax") {
			t.Fatalf("unexpected clear header: %s", hdr)
		}
	}
}

func TestTokenFrom(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := TokenFrom(r); ok {
		t.Fatalf("no cookie => !ok")
	}

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "abc"})
	tok, ok := TokenFrom(r)
	if !ok || tok != "abc" {
		t.Fatalf("expected abc, got %q ok=%v", tok, ok)
	}

	// cookie presente pero vacía: cuenta como presente
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Cookie", CookieName+"=")
	tok, ok = TokenFrom(r)
	if !ok || tok != "" {
		t.Fatalf("empty cookie must be present, got %q ok=%v", tok, ok)
	}
}
