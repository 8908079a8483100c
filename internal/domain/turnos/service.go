package turnos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"turnos-gateway/internal/adapters/backend"
	"turnos-gateway/internal/platform/logger"
	"turnos-gateway/internal/ports/auth"
)

// RefreshParam fuerza a ignorar la vista cacheada.
const RefreshParam = "refrescar"

// Service arma la vista de consola de turnos: lista/detalle con cache por sesión.
type Service struct {
	backend Dispatcher
	cache   ViewCache
	log     logger.Logger
}

func NewService(b Dispatcher, cache ViewCache, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{backend: b, cache: cache, log: log}
}

// List devuelve los turnos para rawQuery. Usa la vista cacheada salvo refresh.
// Errores del backend salen como *backend.APIError.
func (s *Service) List(ctx context.Context, token, rawQuery string, refresh bool) ([]Turno, error) {
	query := CacheQuery(rawQuery)
	sid := SessionKey(token)

	if s.cache != nil && !refresh {
		items, ok, err := s.cache.List(ctx, sid, query)
		if err != nil {
			s.log.Warn("turnos: cache read failed", map[string]any{"err": err})
		} else if ok {
			return items, nil
		}
	}

	resp, err := s.backend.Forward(ctx, backend.ForwardRequest{
		Method:   http.MethodGet,
		Segments: []string{"turnos"},
		RawQuery: query,
		Token:    token,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, backend.NewAPIError(resp.StatusCode, resp.Body)
	}

	items, err := DecodeList(resp.Body)
	if err != nil {
		return nil, backend.NewAPIError(http.StatusBadGateway, resp.Body)
	}

	if s.cache != nil {
		if err := s.cache.Store(ctx, sid, query, items); err != nil {
			s.log.Warn("turnos: cache write failed", map[string]any{"err": err})
		}
	}
	return items, nil
}

// Get busca el turno en la vista de la sesión y, si no está, en el backend.
func (s *Service) Get(ctx context.Context, token, id string) (Turno, error) {
	sid := SessionKey(token)
	if s.cache != nil {
		t, ok, err := s.cache.Get(ctx, sid, id)
		if err != nil {
			s.log.Warn("turnos: cache read failed", map[string]any{"err": err})
		} else if ok {
			return t, nil
		}
	}
	return s.Fetch(ctx, token, id)
}

// Fetch trae el turno del backend, sin cache.
func (s *Service) Fetch(ctx context.Context, token, id string) (Turno, error) {
	resp, err := s.backend.Forward(ctx, backend.ForwardRequest{
		Method:   http.MethodGet,
		Segments: []string{"turnos", id},
		Token:    token,
	})
	if err != nil {
		return Turno{}, err
	}
	if !resp.OK() {
		return Turno{}, backend.NewAPIError(resp.StatusCode, resp.Body)
	}
	var t Turno
	if err := json.Unmarshal(resp.Body, &t); err != nil {
		return Turno{}, backend.NewAPIError(http.StatusBadGateway, resp.Body)
	}
	return t, nil
}

// CacheQuery normaliza la query (orden de claves) y saca el parámetro de refresco.
func CacheQuery(rawQuery string) string {
	v, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	v.Del(RefreshParam)
	return v.Encode()
}

// View es un turno anotado con las acciones que la consola puede ofrecer.
type View struct {
	Turno       Turno
	Acciones    []string
	Habilitadas []string
}

// Annotate calcula acciones legales y, si los permisos se conocen, las habilitadas.
// Con permisos desconocidos las habilitadas son todas las legales.
func Annotate(t Turno, p auth.Principal) View {
	v := View{Turno: t, Acciones: []string{}, Habilitadas: []string{}}
	for _, a := range AllowedActions(t.Estado) {
		v.Acciones = append(v.Acciones, a.Code())
		if allowed, known := p.Can(a.Permission()); !known || allowed {
			v.Habilitadas = append(v.Habilitadas, a.Code())
		}
	}
	return v
}

// MarshalJSON agrega "acciones" y "acciones_habilitadas" al JSON del turno.
func (v View) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(v.Turno)
	if err != nil {
		return nil, err
	}
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &obj); err != nil {
		return nil, err
	}
	acc, _ := json.Marshal(v.Acciones)
	hab, _ := json.Marshal(v.Habilitadas)
	obj["acciones"] = acc
	obj["acciones_habilitadas"] = hab
	return json.Marshal(obj)
}
