package auth

import (
	"fmt"
	"strings"
)

// Role is a closed enumeration. Adding a role requires touching the
// capability table below, which keeps every policy decision reviewable.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleEmployee   Role = "employee"
	RoleViewer     Role = "viewer"
)

// ParseRole normalizes and validates a role name.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleEmployee:
		return RoleEmployee, nil
	case RoleViewer:
		return RoleViewer, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrBadRequest, raw)
}

func (r Role) String() string { return string(r) }

// Privileged reports whether the role carries administrative capability
// beyond self-service. Privileged roles are never self-assignable; they
// are granted through the role-gated admin path.
func (r Role) Privileged() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManager:
		return true
	}
	return false
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Capability classifies what a role may do against a resource class.
type Capability string

const (
	CapRead   Capability = "read"
	CapWrite  Capability = "write"
	CapManage Capability = "manage"
)

// Resource classes subject to role policy.
type Resource string

const (
	ResourceUsers    Resource = "users"
	ResourceSessions Resource = "sessions"
	ResourceTenants  Resource = "tenants"
)

// capabilities is the static policy table. Absence means denial.
var capabilities = map[Role]map[Resource][]Capability{
	RoleSuperAdmin: {
		ResourceUsers:    {CapRead, CapWrite, CapManage},
		ResourceSessions: {CapRead, CapWrite, CapManage},
		ResourceTenants:  {CapRead, CapWrite, CapManage},
	},
	RoleAdmin: {
		ResourceUsers:    {CapRead, CapWrite, CapManage},
		ResourceSessions: {CapRead, CapWrite, CapManage},
		ResourceTenants:  {CapRead},
	},
	RoleManager: {
		ResourceUsers:    {CapRead, CapWrite},
		ResourceSessions: {CapRead},
	},
	RoleEmployee: {
		ResourceUsers:    {CapRead},
		ResourceSessions: {CapRead},
	},
	RoleViewer: {
		ResourceUsers: {CapRead},
	},
}

// Can reports whether the role holds the capability on the resource class.
// Unknown roles never authorize.
func (r Role) Can(res Resource, cap Capability) bool {
	byResource, ok := capabilities[r]
	if !ok {
		return false
	}
	for _, c := range byResource[res] {
		if c == cap {
			return true
		}
	}
	return false
}
