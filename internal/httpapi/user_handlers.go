package httpapi

import (
	"net/http"

	"tenauth.dev/internal/audit"
	"tenauth.dev/internal/auth"
)

// Admin surface. Tenant isolation is enforced by the service: the tenant
// predicate always comes from the caller's scope, any tenant id in the
// request is ignored.

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	users, err := a.auth.ListUsers(r.Context(), scope)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, viewOf(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	user, err := a.auth.GetUser(r.Context(), scope, r.PathValue("id"))
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(user))
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	targetID := r.PathValue("id")
	user, err := a.auth.SetUserStatus(r.Context(), scope, targetID, req.Status)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.user.status_changed", map[string]any{
		"target_id": targetID,
		"status":    req.Status,
	})
	writeJSON(w, http.StatusOK, viewOf(user))
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (a *API) handleSetRole(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	targetID := r.PathValue("id")
	user, err := a.auth.SetUserRole(r.Context(), scope, targetID, role)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.user.role_changed", map[string]any{
		"target_id": targetID,
		"role":      role.String(),
	})
	writeJSON(w, http.StatusOK, viewOf(user))
}

type createTenantRequest struct {
	Name string `json:"name"`
}

func (a *API) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	var req createTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tenant, err := a.auth.CreateTenant(r.Context(), scope, req.Name)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.tenant.created", map[string]any{
		"tenant_id": tenant.ID,
	})
	writeJSON(w, http.StatusCreated, tenant)
}
