package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tenauth.dev/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// Endpoints reachable without a scope. Everything else requires a verified
// access token.
var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/auth/register",
	"/v1/auth/login",
	"/v1/auth/refresh",
}

// withAuth authenticates the bearer token, derives the tenant scope and
// attaches it to the request context. The scope, not any request
// parameter, is what downstream handlers act on.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tenauth"`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		scope, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			respondAuthError(w, r, err)
			return
		}

		ctx := auth.ContextWithScope(r.Context(), scope)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole guards a handler with a role check against the scope in
// context. Missing scope is 401, insufficient role 403.
func RequireRole(required ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, ok := auth.ScopeFromContext(r.Context())
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="tenauth"`)
				writeError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			if err := scope.Authorize(required...); err != nil {
				respondAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireScope(w http.ResponseWriter, r *http.Request) (auth.Scope, bool) {
	scope, ok := auth.ScopeFromContext(r.Context())
	if !ok {
		respondAuthError(w, r, auth.ErrUnauthorized)
		return auth.Scope{}, false
	}
	return scope, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
