package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tenauth.dev/internal/auth"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "plain", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "surrounding space", header: "  Bearer abc.def.ghi  ", want: "abc.def.ghi"},
		{name: "empty", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic dXNlcjpwdw==", wantErr: true},
		{name: "scheme only", header: "Bearer ", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractBearerToken(tc.header)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got token %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin)(next)

	withScope := func(role auth.Role) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
		ctx := auth.ContextWithScope(req.Context(), auth.Scope{
			PrincipalID: "u1", TenantID: "t1", Role: role,
		})
		return req.WithContext(ctx)
	}

	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, withScope(auth.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: status %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, withScope(auth.RoleViewer))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer: status %d, want 403", rec.Code)
	}

	// A role outside the closed set never passes, whatever the requirement.
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, withScope(auth.Role("root")))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("forged role: status %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing scope: status %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatal("missing WWW-Authenticate challenge on 401")
	}
}

func TestIsPublicPath(t *testing.T) {
	for _, p := range []string{"/healthz", "/readyz", "/metrics", "/v1/auth/login", "/v1/auth/register", "/v1/auth/refresh"} {
		if !isPublicPath(p) {
			t.Errorf("%s should be public", p)
		}
	}
	for _, p := range []string{"/v1/auth/logout", "/v1/auth/password", "/v1/users", "/v1/tenants", "/v1/auth/login/x"} {
		if isPublicPath(p) {
			t.Errorf("%s should require authentication", p)
		}
	}
}
