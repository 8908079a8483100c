package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrMissingToken: el backend respondió 2xx al login pero sin access_token.
	ErrMissingToken = errors.New("no access_token in response")
	// ErrConnectivity: no se pudo hablar con el backend (transporte).
	ErrConnectivity = errors.New("error de conexión con el backend")
	// ErrUnauthorized: el backend respondió 401/403. Se matchea con errors.Is sobre *APIError.
	ErrUnauthorized = errors.New("backend unauthorized")
)

// APIError es una respuesta no-2xx del backend, normalizada a {message, fields}
// sin importar si vino como string, lista de validaciones u objeto con "detail".
type APIError struct {
	Status  int
	Message string
	Fields  map[string][]string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: status=%d: %s", e.Status, e.Message)
}

// Is permite errors.Is(err, ErrUnauthorized) para 401/403.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && IsUnauthorizedStatus(e.Status)
}

// IsUnauthorizedStatus: 401 y 403 disparan el cierre de sesión.
func IsUnauthorizedStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// ErrorBody es la forma JSON de los errores que devuelve el gateway.
type ErrorBody struct {
	Detail string              `json:"detail"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// ErrorBody devuelve el error en la forma común del gateway.
func (e *APIError) ErrorBody() ErrorBody {
	return ErrorBody{Detail: e.Message, Fields: e.Fields}
}

// NewAPIError normaliza el cuerpo de error del backend.
func NewAPIError(status int, body []byte) *APIError {
	e := &APIError{
		Status: status,
		Fields: map[string][]string{},
		Body:   body,
	}

	trimmed := bytes.TrimSpace(body)
	var v any
	if len(trimmed) > 0 && json.Unmarshal(trimmed, &v) == nil {
		e.Message = messageFrom(v, e.Fields)
	} else {
		// no-JSON: se usa el texto tal cual
		e.Message = string(trimmed)
	}

	if strings.TrimSpace(e.Message) == "" {
		e.Message = http.StatusText(status)
	}
	if len(e.Fields) == 0 {
		e.Fields = nil
	}
	return e
}

func messageFrom(v any, fields map[string][]string) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		return collectValidation(t, fields)
	case map[string]any:
		if d, ok := t["detail"]; ok {
			return messageFrom(d, fields)
		}
		for _, k := range []string{"message", "msg", "error"} {
			if s, ok := t[k].(string); ok {
				return s
			}
		}
		// {"campo": ["msg", ...]}
		for k, raw := range t {
			if ms := asStrings(raw); len(ms) > 0 {
				fields[k] = append(fields[k], ms...)
			}
		}
		if len(fields) > 0 {
			return firstFieldMessage(fields)
		}
	}
	return ""
}

// collectValidation procesa listas estilo FastAPI: [{"loc": ["body","nombre"], "msg": "..."}].
func collectValidation(items []any, fields map[string][]string) string {
	var first string
	for _, it := range items {
		switch x := it.(type) {
		case string:
			if first == "" {
				first = x
			}
		case map[string]any:
			msg, _ := x["msg"].(string)
			if msg == "" {
				msg, _ = x["message"].(string)
			}
			if msg == "" {
				continue
			}
			if first == "" {
				first = msg
			}
			key := locKey(x["loc"])
			if key != "" {
				fields[key] = append(fields[key], msg)
			}
		}
	}
	return first
}

func locKey(v any) string {
	parts, ok := v.([]any)
	if !ok {
		return ""
	}
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		s := fmt.Sprint(p)
		// "body"/"query"/"path" son ruido para el cliente
		if i == 0 && (s == "body" || s == "query" || s == "path") {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, ".")
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func firstFieldMessage(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(fields[k]) > 0 {
			return fields[k][0]
		}
	}
	return ""
}
