package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"turnos-gateway/internal/adapters/backend"
	"turnos-gateway/internal/middleware"
	"turnos-gateway/internal/platform/httpclient"
	"turnos-gateway/internal/session"
)

// MaxRequestBody limita los cuerpos que se aceptan para relayar.
const MaxRequestBody = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDetail escribe {"detail": msg}.
func WriteDetail(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, backend.ErrorBody{Detail: msg})
}

// Relay copia status y cuerpo del backend sin tocarlos.
func Relay(w http.ResponseWriter, resp httpclient.Response) {
	w.Header().Set("Content-Type", backend.ContentType(resp))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// WriteError traduce errores del lado backend a respuestas del gateway.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr):
		WriteJSON(w, apiErr.Status, apiErr.ErrorBody())
	case errors.Is(err, backend.ErrConnectivity):
		WriteDetail(w, http.StatusBadGateway, "error de conexión")
	case errors.Is(err, httpclient.ErrResponseTooLarge):
		WriteDetail(w, http.StatusBadGateway, "respuesta del backend demasiado grande")
	case errors.Is(err, backend.ErrMissingToken):
		WriteDetail(w, http.StatusInternalServerError, "No access_token in response")
	default:
		WriteDetail(w, http.StatusInternalServerError, "internal error")
	}
}

// Revoke borra la cookie de sesión y manda al login.
func Revoke(w http.ResponseWriter, r *http.Request, cookies *session.Manager) {
	session.Set(w, cookies.Clear())
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

// RevokeIfUnauthorized aplica Revoke si err es un 401/403 del backend.
func RevokeIfUnauthorized(w http.ResponseWriter, r *http.Request, cookies *session.Manager, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}
	Revoke(w, r, cookies)
	return true
}

// ReadBody lee el cuerpo hasta MaxRequestBody. Vacío => nil (se relaya sin body).
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBody))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}
	return b, nil
}
