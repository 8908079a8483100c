package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims son los únicos datos que el gateway lee del token: sirven para calcular
// la vida de la cookie, nunca para autorizar. nil = el claim no vino o no es numérico.
type Claims struct {
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

// HasLifetime es true cuando vienen exp e iat.
func (c Claims) HasLifetime() bool {
	return c.IssuedAt != nil && c.ExpiresAt != nil
}

// parser solo se usa para decodificar segmentos (base64url con o sin padding);
// la firma nunca se verifica acá.
var parser = jwt.NewParser(jwt.WithPaddingAllowed())

var stdToURL = strings.NewReplacer("+", "-", "/", "_")

// DecodeClaims lee exp/iat del segundo segmento del token sin validar firma.
// Cualquier token malformado devuelve (Claims{}, false).
func DecodeClaims(token string) (Claims, bool) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) < 2 || parts[1] == "" {
		return Claims{}, false
	}

	// también se aceptan "+" y "/" del alfabeto estándar
	seg := stdToURL.Replace(parts[1])
	raw, err := parser.DecodeSegment(seg)
	if err != nil {
		return Claims{}, false
	}

	var mc jwt.MapClaims
	if err := json.Unmarshal(raw, &mc); err != nil || mc == nil {
		return Claims{}, false
	}

	var out Claims
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		out.ExpiresAt = &t
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		out.IssuedAt = &t
	}
	return out, true
}
