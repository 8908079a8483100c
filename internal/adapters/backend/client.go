package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"turnos-gateway/internal/platform/httpclient"
	"turnos-gateway/internal/session"
)

// CredentialsRejected: el backend respondió no-2xx al login.
// Status y RelayBody se devuelven al cliente sin traducir.
type CredentialsRejected struct {
	Status int
	Body   []byte
}

func (e *CredentialsRejected) Error() string {
	return fmt.Sprintf("backend login rejected: status=%d", e.Status)
}

// RelayBody devuelve el cuerpo a reenviar: el JSON tal cual si parsea,
// si no el texto crudo como string JSON.
func (e *CredentialsRejected) RelayBody() []byte {
	trimmed := bytes.TrimSpace(e.Body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return trimmed
	}
	b, _ := json.Marshal(string(e.Body))
	return b
}

// Client habla con el backend clínico: login, introspección de sesión y relay de recursos.
type Client struct {
	http    *httpclient.Client
	cookies *session.Manager
}

func NewClient(hc *httpclient.Client, cookies *session.Manager) *Client {
	return &Client{http: hc, cookies: cookies}
}

// Login intercambia credenciales por token y arma la cookie de sesión.
// El token nunca sale de acá salvo dentro de la cookie.
func (c *Client) Login(ctx context.Context, username, password string) (session.CookieSpec, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		Body:   []byte(form.Encode()),
	})
	if err != nil {
		return session.CookieSpec{}, connectivity(err)
	}
	if !resp.OK() {
		return session.CookieSpec{}, &CredentialsRejected{Status: resp.StatusCode, Body: resp.Body}
	}

	var out struct {
		AccessToken any `json:"access_token"`
	}
	// cuerpo no-JSON en 2xx cuenta como "sin token"
	_ = json.Unmarshal(resp.Body, &out)

	token, _ := out.AccessToken.(string)
	token = strings.TrimSpace(token)
	if token == "" {
		return session.CookieSpec{}, ErrMissingToken
	}
	return c.cookies.Issue(token), nil
}

// Logout no llama al backend: siempre borra la cookie.
func (c *Client) Logout() session.CookieSpec {
	return c.cookies.Clear()
}

// Me consulta /auth/me. Sin token igual se llama, sin Authorization.
func (c *Client) Me(ctx context.Context, token string) (httpclient.Response, error) {
	return c.Forward(ctx, ForwardRequest{
		Method:   http.MethodGet,
		Segments: []string{"auth", "me"},
		Token:    token,
	})
}

func connectivity(err error) error {
	if errors.Is(err, httpclient.ErrTransport) {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return err
}
