package turnos

import "strings"

// Action es una transición con nombre. Conjunto cerrado.
type Action int

const (
	Confirmar Action = iota + 1
	Cancelar
	Completar
	NoAsistio
)

// Actions en el orden en que se ofrecen.
var Actions = []Action{Confirmar, Cancelar, Completar, NoAsistio}

// ParseAction acepta el código de la acción ("confirmar", "no_asistio", ...).
func ParseAction(code string) (Action, bool) {
	c := strings.ToLower(strings.TrimSpace(code))
	for _, a := range Actions {
		if a.Code() == c {
			return a, true
		}
	}
	return 0, false
}

// Code es el segmento de path y sufijo del permiso.
func (a Action) Code() string {
	switch a {
	case Confirmar:
		return "confirmar"
	case Cancelar:
		return "cancelar"
	case Completar:
		return "completar"
	case NoAsistio:
		return "no_asistio"
	}
	return ""
}

func (a Action) String() string { return a.Code() }

// Label para UI.
func (a Action) Label() string {
	switch a {
	case Confirmar:
		return "Confirmar"
	case Cancelar:
		return "Cancelar"
	case Completar:
		return "Completar"
	case NoAsistio:
		return "No asistió"
	}
	return ""
}

// Permission requerido: "turnos.<acción>".
func (a Action) Permission() string {
	return "turnos." + a.Code()
}

// Endpoint devuelve los segmentos del path backend: /turnos/{id}/{acción}.
func (a Action) Endpoint(turnoID string) []string {
	return []string{"turnos", turnoID, a.Code()}
}

// Target es el estado al que lleva la acción.
func (a Action) Target() Estado {
	switch a {
	case Confirmar:
		return EstadoConfirmado
	case Cancelar:
		return EstadoCancelado
	case Completar:
		return EstadoCompletado
	case NoAsistio:
		return EstadoNoAsistio
	}
	return ""
}

// AllowedActions devuelve las acciones legales para el estado.
// Terminales y códigos desconocidos no ofrecen nada.
func AllowedActions(e Estado) []Action {
	switch NormalizeEstado(string(e)) {
	case EstadoReservado:
		return []Action{Confirmar, Cancelar}
	case EstadoConfirmado:
		return []Action{Completar, NoAsistio, Cancelar}
	}
	return nil
}

func IsAllowed(e Estado, a Action) bool {
	for _, x := range AllowedActions(e) {
		if x == a {
			return true
		}
	}
	return false
}

// IsTerminal: COMPLETADO, CANCELADO, NO_ASISTIO.
func IsTerminal(e Estado) bool {
	switch NormalizeEstado(string(e)) {
	case EstadoCompletado, EstadoCancelado, EstadoNoAsistio:
		return true
	}
	return false
}
