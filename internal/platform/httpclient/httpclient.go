package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// MaxBodyBytes limita lo que se lee de una respuesta upstream.
	MaxBodyBytes = 10 << 20
)

var (
	ErrNilClient = errors.New("httpclient: nil client")
	// ErrTransport envuelve cualquier falla de red (DNS, conexión rechazada, timeout, etc).
	ErrTransport = errors.New("httpclient: transport error")
	// ErrResponseTooLarge: el cuerpo upstream supera el límite; no se relaya truncado.
	ErrResponseTooLarge = errors.New("httpclient: response body too large")
)

// Client envuelve *http.Client con helpers comunes para adapters.
type Client struct {
	HTTP    *http.Client
	BaseURL string // opcional; si se define, Do puede recibir paths relativos
	MaxBody int64  // <= 0 => MaxBodyBytes
}

// New crea un Client. timeout <= 0 deja el default de net/http (sin timeout).
func New(timeout time.Duration) *Client {
	if timeout < 0 {
		timeout = 0
	}
	return &Client{
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewWithBaseURL crea un Client con BaseURL + timeout.
func NewWithBaseURL(baseURL string, timeout time.Duration) (*Client, error) {
	c := New(timeout)
	if strings.TrimSpace(baseURL) == "" {
		return c, nil
	}
	_, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	c.BaseURL = strings.TrimRight(baseURL, "/")
	return c, nil
}

// Request describe un request saliente. Path ya debe venir escapado (ver JoinPath).
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte // nil => sin body
}

// Response es la respuesta upstream tal cual: status + headers + body crudo.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK indica status 2xx.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do ejecuta el request y devuelve la respuesta sin interpretar el status.
// Solo falla por problemas locales o de transporte (ErrTransport).
func (c *Client) Do(ctx context.Context, in Request) (Response, error) {
	if c == nil || c.HTTP == nil {
		return Response{}, ErrNilClient
	}

	fullURL, err := c.resolveURL(in.Path)
	if err != nil {
		return Response{}, err
	}
	if in.RawQuery != "" {
		fullURL += "?" + in.RawQuery
	}

	var body io.Reader
	if in.Body != nil {
		body = bytes.NewReader(in.Body)
	}

	method := in.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return Response{}, fmt.Errorf("httpclient: new request: %w", err)
	}
	for k, vs := range in.Header {
		if strings.TrimSpace(k) == "" {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := readAtMost(resp.Body, c.MaxBody)
	if errors.Is(err, ErrResponseTooLarge) {
		return Response{}, err
	}
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       raw,
	}, nil
}

// JoinPath arma un path escapando cada segmento (evita inyectar "/", "?", "#" o "..").
func JoinPath(segments ...string) string {
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteByte('/')
		sb.WriteString(escapeSegment(s))
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}

func escapeSegment(s string) string {
	if s == "." || s == ".." {
		return strings.ReplaceAll(s, ".", "%2E")
	}
	return url.PathEscape(s)
}

func (c *Client) resolveURL(pathOrURL string) (string, error) {
	pathOrURL = strings.TrimSpace(pathOrURL)
	if pathOrURL == "" {
		return "", errors.New("httpclient: empty url")
	}

	// Si ya es URL absoluta, úsala tal cual.
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL, nil
	}

	// Si no es absoluta, requiere BaseURL.
	if strings.TrimSpace(c.BaseURL) == "" {
		return "", errors.New("httpclient: relative path requires BaseURL")
	}

	if !strings.HasPrefix(pathOrURL, "/") {
		pathOrURL = "/" + pathOrURL
	}
	return c.BaseURL + pathOrURL, nil
}

// readAtMost lee hasta max bytes; si hay más devuelve ErrResponseTooLarge.
func readAtMost(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = MaxBodyBytes
	}
	raw, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > max {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, max)
	}
	return raw, nil
}
