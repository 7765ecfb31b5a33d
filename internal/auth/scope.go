package auth

// Scope is the authenticated (principal, tenant, role) tuple attached to a
// request after token verification. It is passed explicitly through every
// call; the tenant id inside it is authoritative and never taken from
// client-controlled input.
type Scope struct {
	PrincipalID string `json:"principal_id"`
	TenantID    string `json:"tenant_id"`
	Role        Role   `json:"role"`
}

// Authorize returns nil iff the scope's role is in the required set.
// Deny-by-default: an empty required set denies everything.
func (s Scope) Authorize(required ...Role) error {
	for _, r := range required {
		if s.Role == r && r.Valid() {
			return nil
		}
	}
	return ErrForbidden
}

// AuthorizeTarget is Authorize plus the self-action guard for destructive
// operations: acting on one's own principal id is forbidden regardless of
// privilege level.
func (s Scope) AuthorizeTarget(targetID string, required ...Role) error {
	if targetID != "" && targetID == s.PrincipalID {
		return ErrForbidden
	}
	return s.Authorize(required...)
}

// Can evaluates the static capability table for this scope's role.
func (s Scope) Can(res Resource, cap Capability) bool {
	return s.Role.Can(res, cap)
}
