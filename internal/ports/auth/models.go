package auth

// Principal representa al usuario autenticado según /auth/me del backend.
// Vive lo que dura un request; el gateway no lo cachea.
type Principal struct {
	UserID   string
	Username string
	Roles    []string

	// Permissions solo es confiable si PermissionsKnown es true.
	// Desconocido != vacío: con permisos desconocidos el chequeo local se omite.
	Permissions      map[string]struct{}
	PermissionsKnown bool
}

// NewPrincipal arma un Principal con permisos conocidos.
func NewPrincipal(username string, roles []string, perms ...string) Principal {
	p := Principal{
		Username:         username,
		Roles:            roles,
		Permissions:      make(map[string]struct{}, len(perms)),
		PermissionsKnown: true,
	}
	for _, code := range perms {
		p.Permissions[code] = struct{}{}
	}
	return p
}

// Can responde si el principal tiene el permiso. known=false => no hay datos para decidir.
func (p Principal) Can(code string) (allowed bool, known bool) {
	if !p.PermissionsKnown {
		return false, false
	}
	_, ok := p.Permissions[code]
	return ok, true
}
