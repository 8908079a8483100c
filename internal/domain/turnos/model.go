package turnos

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Estado es el código de estado de un turno.
// @Enum RESERVADO, CONFIRMADO, COMPLETADO, CANCELADO, NO_ASISTIO
type Estado string

const (
	EstadoReservado  Estado = "RESERVADO"
	EstadoConfirmado Estado = "CONFIRMADO"
	EstadoCompletado Estado = "COMPLETADO"
	EstadoCancelado  Estado = "CANCELADO"
	EstadoNoAsistio  Estado = "NO_ASISTIO"
)

// NormalizeEstado compara sin distinguir mayúsculas.
func NormalizeEstado(s string) Estado {
	return Estado(strings.ToUpper(strings.TrimSpace(s)))
}

// Turno es la vista del gateway sobre un turno del backend.
// Raw conserva el JSON original para relayarlo sin pérdida.
type Turno struct {
	ID            string
	PacienteID    string
	ProfesionalID string
	Inicio        *time.Time
	Fin           *time.Time
	Estado        Estado

	Raw json.RawMessage
}

type turnoWire struct {
	ID            json.RawMessage `json:"id"`
	PacienteID    json.RawMessage `json:"paciente_id"`
	ProfesionalID json.RawMessage `json:"profesional_id"`
	Inicio        string          `json:"fecha_hora_inicio"`
	Fin           string          `json:"fecha_hora_fin"`
	Estado        json.RawMessage `json:"estado"`
	EstadoCodigo  string          `json:"estado_codigo"`
}

var ErrInvalidTurno = errors.New("invalid turno")

func (t *Turno) UnmarshalJSON(b []byte) error {
	var w turnoWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	id := scalar(w.ID)
	if id == "" {
		return ErrInvalidTurno
	}

	*t = Turno{
		ID:            id,
		PacienteID:    scalar(w.PacienteID),
		ProfesionalID: scalar(w.ProfesionalID),
		Inicio:        parseTime(w.Inicio),
		Fin:           parseTime(w.Fin),
		Estado:        estadoFrom(w.Estado),
		Raw:           append(json.RawMessage(nil), bytes.TrimSpace(b)...),
	}
	if t.Estado == "" && w.EstadoCodigo != "" {
		t.Estado = NormalizeEstado(w.EstadoCodigo)
	}
	return nil
}

// MarshalJSON devuelve el JSON original del backend si existe.
func (t Turno) MarshalJSON() ([]byte, error) {
	if len(t.Raw) > 0 {
		return t.Raw, nil
	}
	out := map[string]any{
		"id":             t.ID,
		"paciente_id":    t.PacienteID,
		"profesional_id": t.ProfesionalID,
		"estado":         map[string]string{"codigo": string(t.Estado)},
	}
	if t.Inicio != nil {
		out["fecha_hora_inicio"] = t.Inicio.Format(time.RFC3339)
	}
	if t.Fin != nil {
		out["fecha_hora_fin"] = t.Fin.Format(time.RFC3339)
	}
	return json.Marshal(out)
}

// DecodeList parsea la lista del backend. Un cuerpo que no es array es error.
func DecodeList(body []byte) ([]Turno, error) {
	var items []Turno
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []Turno{}
	}
	return items, nil
}

// estado llega como "RESERVADO" o como {"id":1,"codigo":"RESERVADO","descripcion":"..."}.
func estadoFrom(raw json.RawMessage) Estado {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return NormalizeEstado(s)
	}
	var obj struct {
		Codigo string `json:"codigo"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return NormalizeEstado(obj.Codigo)
	}
	return ""
}

// scalar acepta ids numéricos o string.
func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
