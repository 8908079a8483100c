package backend

import (
	"context"
	"net/http"
	"strings"

	"turnos-gateway/internal/platform/httpclient"
)

// ForwardRequest es un request a relayar. Segments se escapan uno por uno.
type ForwardRequest struct {
	Method   string
	Segments []string
	RawQuery string
	Token    string
	Body     []byte
}

// Forward relaya el request al backend y devuelve status/headers/body sin tocar.
// Solo falla por transporte (ErrConnectivity).
func (c *Client) Forward(ctx context.Context, in ForwardRequest) (httpclient.Response, error) {
	h := http.Header{}
	if tok := strings.TrimSpace(in.Token); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}

	var body []byte
	if len(in.Body) > 0 {
		body = in.Body
		h.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method:   in.Method,
		Path:     httpclient.JoinPath(in.Segments...),
		RawQuery: in.RawQuery,
		Header:   h,
		Body:     body,
	})
	if err != nil {
		return httpclient.Response{}, connectivity(err)
	}
	return resp, nil
}

// ContentType devuelve el Content-Type del backend o application/json.
func ContentType(resp httpclient.Response) string {
	if resp.Header != nil {
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			return ct
		}
	}
	return "application/json"
}
