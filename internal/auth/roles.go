package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Role is one of a closed set of principal roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"

	RoleBodega      Role = "bodega"
	RoleLaboratorio Role = "laboratorio"
	RoleMontaje     Role = "montaje"
	RoleDespacho    Role = "despacho"
	RoleCalidad     Role = "calidad"
	RoleComercial   Role = "comercial"
)

var (
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrForbidden       = errors.New("auth: forbidden")
)

// workerAreas maps each worker role to the area log it writes.
var workerAreas = map[Role]string{
	RoleBodega:      "Bodega",
	RoleLaboratorio: "Laboratorio",
	RoleMontaje:     "Montaje",
	RoleDespacho:    "Despacho",
	RoleCalidad:     "Calidad",
	RoleComercial:   "Comercial",
}

// Principal is an authenticated caller.
type Principal struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r.IsAdmin() {
		return r, nil
	}
	if _, ok := workerAreas[r]; ok {
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Area returns the log a worker role writes to; admins have none.
func (r Role) Area() (string, bool) {
	a, ok := workerAreas[r]
	return a, ok
}

// CanWriteArea reports whether role may append to area's log.
func CanWriteArea(r Role, area string) bool {
	if r.IsAdmin() {
		return true
	}
	own, ok := workerAreas[r]
	return ok && strings.EqualFold(own, area)
}
