package httpapi

import (
	"net/http"

	"tenauth.dev/internal/audit"
	"tenauth.dev/internal/auth"
	"tenauth.dev/internal/obs"
)

type registerRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type loginRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type sessionResponse struct {
	User   userView       `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	in := auth.RegisterInput{
		TenantID: req.TenantID,
		Email:    req.Email,
		Password: req.Password,
	}
	if req.Role != "" {
		role, err := auth.ParseRole(req.Role)
		if err != nil {
			respondAuthError(w, r, err)
			return
		}
		in.Role = role
	}
	user, pair, err := a.auth.Register(r.Context(), in)
	if err != nil {
		obs.RecordAuthAttempt("register", "denied")
		respondAuthError(w, r, err)
		return
	}
	obs.RecordAuthAttempt("register", "ok")
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"tenant_id": user.TenantID,
		"user_id":   user.ID,
	})
	writeJSON(w, http.StatusCreated, sessionResponse{User: viewOf(user), Tokens: pair})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, pair, err := a.auth.Login(r.Context(), req.TenantID, req.Email, req.Password)
	if err != nil {
		obs.RecordAuthAttempt("login", "denied")
		respondAuthError(w, r, err)
		return
	}
	obs.RecordAuthAttempt("login", "ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"tenant_id": user.TenantID,
		"user_id":   user.ID,
	})
	writeJSON(w, http.StatusOK, sessionResponse{User: viewOf(user), Tokens: pair})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		obs.RecordAuthAttempt("refresh", "denied")
		respondAuthError(w, r, err)
		return
	}
	obs.RecordAuthAttempt("refresh", "ok")
	writeJSON(w, http.StatusOK, map[string]any{"tokens": pair})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	if err := a.auth.Logout(r.Context(), scope); err != nil {
		respondAuthError(w, r, err)
		return
	}
	obs.RecordAuthAttempt("logout", "ok")
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	scope, ok := requireScope(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ChangePassword(r.Context(), scope, req.CurrentPassword, req.NewPassword); err != nil {
		respondAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password_changed", nil)
	w.WriteHeader(http.StatusNoContent)
}
