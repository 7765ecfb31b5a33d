package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenauth.dev/internal/ids"
)

// Service composes hashing, token issuance and refresh rotation into the
// register/login/refresh/logout flows, and derives the tenant scope for
// every authenticated request.
type Service struct {
	store  Store
	issuer *Issuer
	cost   int
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithBcryptCost tunes the password hashing cost factor.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		if cost > 0 {
			s.cost = cost
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the orchestrator.
func NewService(store Store, issuer *Issuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if issuer == nil {
		return nil, errors.New("auth: issuer is required")
	}
	svc := &Service{
		store:  store,
		issuer: issuer,
		cost:   DefaultBcryptCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// RegisterInput carries credentials and profile for a new principal.
type RegisterInput struct {
	TenantID string
	Email    string
	Password string
	Role     Role
	Status   string
}

// Register creates a principal and opens its first session. Duplicate
// (tenant_id, email) yields ErrConflict; a privileged role in the input
// yields ErrForbidden.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, TokenPair, error) {
	tenantID := strings.TrimSpace(in.TenantID)
	email := normalizeEmail(in.Email)
	if tenantID == "" || email == "" || !strings.Contains(email, "@") {
		return nil, TokenPair{}, fmt.Errorf("%w: tenant_id and valid email are required", ErrBadRequest)
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, TokenPair{}, fmt.Errorf("%w: password is required", ErrBadRequest)
	}
	role := in.Role
	if role == "" {
		role = RoleEmployee
	}
	if !role.Valid() {
		return nil, TokenPair{}, fmt.Errorf("%w: unknown role %q", ErrBadRequest, in.Role)
	}
	// Registration is open to anyone who knows a tenant id, so the role it
	// grants must stay non-privileged. Promotion goes through SetUserRole.
	if role.Privileged() {
		return nil, TokenPair{}, fmt.Errorf("%w: role %q cannot be self-assigned", ErrForbidden, role)
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	if !ValidStatus(status) {
		return nil, TokenPair{}, fmt.Errorf("%w: unknown status %q", ErrBadRequest, in.Status)
	}
	if _, err := s.store.Tenants().Find(ctx, tenantID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, TokenPair{}, fmt.Errorf("%w: unknown tenant", ErrBadRequest)
		}
		return nil, TokenPair{}, err
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, TokenPair{}, err
	}
	user := &User{
		ID:           ids.New(),
		TenantID:     tenantID,
		Email:        email,
		Role:         role,
		Status:       status,
		PasswordHash: hash,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Login verifies credentials within a tenant. A missing account, a
// non-active account and a wrong password are indistinguishable to the
// caller: all three are ErrUnauthorized.
func (s *Service) Login(ctx context.Context, tenantID, email, password string) (*User, TokenPair, error) {
	tenantID = strings.TrimSpace(tenantID)
	email = normalizeEmail(email)
	if tenantID == "" || email == "" || password == "" {
		return nil, TokenPair{}, ErrUnauthorized
	}
	user, err := s.store.Users().FindByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, TokenPair{}, ErrUnauthorized
		}
		return nil, TokenPair{}, err
	}
	if user.Status != StatusActive {
		return nil, TokenPair{}, ErrUnauthorized
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, TokenPair{}, ErrUnauthorized
	}
	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	now := s.now().UTC()
	if err := s.store.Users().RecordLogin(ctx, user.TenantID, user.ID, now); err != nil {
		return nil, TokenPair{}, err
	}
	user.LastLoginAt = &now
	return user, pair, nil
}

// Refresh rotates the refresh chain: the presented token must verify
// cryptographically and match the stored fingerprint, and the swap to the
// new fingerprint must win the compare-and-swap. Every failure is
// ErrUnauthorized and leaves the prior chain revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	presented := refreshDigest(refreshToken)
	if err := s.store.RefreshSessions().Verify(ctx, claims.Subject, presented); err != nil {
		return TokenPair{}, ErrUnauthorized
	}

	user, err := s.store.Users().FindByID(ctx, claims.TenantID, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if user.Status != StatusActive {
		return TokenPair{}, ErrUnauthorized
	}

	pair, err := s.mintPair(user)
	if err != nil {
		return TokenPair{}, err
	}
	// The swap is the commit point: minted tokens are worthless unless the
	// new digest replaces the presented one atomically.
	if err := s.store.RefreshSessions().Swap(ctx, user.ID, presented, refreshDigest(pair.RefreshToken)); err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	return pair, nil
}

// Logout revokes the caller's refresh chain. Access tokens stay valid until
// natural expiry; only the refresh path is closed.
func (s *Service) Logout(ctx context.Context, scope Scope) error {
	if scope.PrincipalID == "" {
		return ErrUnauthorized
	}
	return s.store.RefreshSessions().Clear(ctx, scope.PrincipalID)
}

// ChangePassword requires the current password before accepting a new one.
// Existing refresh sessions remain valid.
func (s *Service) ChangePassword(ctx context.Context, scope Scope, current, next string) error {
	if strings.TrimSpace(next) == "" {
		return fmt.Errorf("%w: new password is required", ErrBadRequest)
	}
	user, err := s.store.Users().FindByID(ctx, scope.TenantID, scope.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if !VerifyPassword(user.PasswordHash, current) {
		return fmt.Errorf("%w: current password mismatch", ErrBadRequest)
	}
	hash, err := HashPassword(next, s.cost)
	if err != nil {
		return err
	}
	return s.store.Users().UpdatePassword(ctx, scope.TenantID, scope.PrincipalID, hash)
}

// Authenticate turns a raw access token into a Scope. Beyond the stateless
// signature check it re-fetches the account so that a token minted while
// active stops working the moment the account is suspended.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (Scope, error) {
	claims, err := s.issuer.Verify(rawToken, TokenTypeAccess)
	if err != nil {
		return Scope{}, ErrUnauthorized
	}
	user, err := s.store.Users().FindByID(ctx, claims.TenantID, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Scope{}, ErrUnauthorized
		}
		return Scope{}, err
	}
	if user.Status != StatusActive {
		return Scope{}, ErrUnauthorized
	}
	return Scope{PrincipalID: user.ID, TenantID: user.TenantID, Role: user.Role}, nil
}

// ListUsers returns the caller's tenant's principals. The tenant predicate
// comes from the scope, never from request input.
func (s *Service) ListUsers(ctx context.Context, scope Scope) ([]*User, error) {
	if err := scope.Authorize(RoleSuperAdmin, RoleAdmin, RoleManager); err != nil {
		return nil, err
	}
	return s.store.Users().List(ctx, scope.TenantID)
}

// GetUser fetches a principal within the caller's tenant.
func (s *Service) GetUser(ctx context.Context, scope Scope, userID string) (*User, error) {
	if userID != scope.PrincipalID {
		if err := scope.Authorize(RoleSuperAdmin, RoleAdmin, RoleManager); err != nil {
			return nil, err
		}
	}
	return s.store.Users().FindByID(ctx, scope.TenantID, userID)
}

// SetUserStatus changes an account's status. Deactivation and suspension
// are destructive: the self-action guard applies, and the target's refresh
// chain is revoked immediately.
func (s *Service) SetUserStatus(ctx context.Context, scope Scope, userID, status string) (*User, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrBadRequest, status)
	}
	destructive := status == StatusInactive || status == StatusSuspended
	if destructive {
		if err := scope.AuthorizeTarget(userID, RoleSuperAdmin, RoleAdmin); err != nil {
			return nil, err
		}
	} else if err := scope.Authorize(RoleSuperAdmin, RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.store.Users().UpdateStatus(ctx, scope.TenantID, userID, status, scope.PrincipalID); err != nil {
		return nil, err
	}
	if destructive {
		if err := s.store.RefreshSessions().Clear(ctx, userID); err != nil {
			return nil, err
		}
	}
	return s.store.Users().FindByID(ctx, scope.TenantID, userID)
}

// SetUserRole changes an account's role within the caller's tenant.
// Changing one's own role is forbidden.
func (s *Service) SetUserRole(ctx context.Context, scope Scope, userID string, role Role) (*User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrBadRequest, role)
	}
	if err := scope.AuthorizeTarget(userID, RoleSuperAdmin, RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.store.Users().UpdateRole(ctx, scope.TenantID, userID, role, scope.PrincipalID); err != nil {
		return nil, err
	}
	return s.store.Users().FindByID(ctx, scope.TenantID, userID)
}

// BootstrapInput describes the initial tenant and super admin for an
// empty deployment.
type BootstrapInput struct {
	TenantID   string
	TenantName string
	Email      string
	Password   string
}

// Bootstrap provisions the first tenant and its super admin. This is the
// only path that creates a super_admin without an existing scope; it is
// safe to run on every start because once the tenant holds any principal
// it does nothing and returns false.
func (s *Service) Bootstrap(ctx context.Context, in BootstrapInput) (bool, error) {
	tenantID := strings.TrimSpace(in.TenantID)
	email := normalizeEmail(in.Email)
	if tenantID == "" || email == "" || !strings.Contains(email, "@") {
		return false, fmt.Errorf("%w: tenant id and valid email are required", ErrBadRequest)
	}
	if strings.TrimSpace(in.Password) == "" {
		return false, fmt.Errorf("%w: password is required", ErrBadRequest)
	}

	if _, err := s.store.Tenants().Find(ctx, tenantID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return false, err
		}
		name := strings.TrimSpace(in.TenantName)
		if name == "" {
			name = tenantID
		}
		if err := s.store.Tenants().Create(ctx, &Tenant{ID: tenantID, Name: name}); err != nil && !errors.Is(err, ErrConflict) {
			return false, err
		}
	}

	existing, err := s.store.Users().List(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return false, err
	}
	user := &User{
		ID:           ids.New(),
		TenantID:     tenantID,
		Email:        email,
		Role:         RoleSuperAdmin,
		Status:       StatusActive,
		PasswordHash: hash,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		// A concurrent bootstrap won the race; the system is seeded.
		if errors.Is(err, ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateTenant provisions a new tenant boundary.
func (s *Service) CreateTenant(ctx context.Context, scope Scope, name string) (*Tenant, error) {
	if err := scope.Authorize(RoleSuperAdmin); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tenant name is required", ErrBadRequest)
	}
	tenant := &Tenant{ID: ids.New(), Name: name}
	if err := s.store.Tenants().Create(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// openSession mints a pair and commits it by overwriting the refresh
// fingerprint. An error after minting leaves the tokens unusable.
func (s *Service) openSession(ctx context.Context, user *User) (TokenPair, error) {
	pair, err := s.mintPair(user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RefreshSessions().Rotate(ctx, user.ID, refreshDigest(pair.RefreshToken)); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *Service) mintPair(user *User) (TokenPair, error) {
	access, accessExp, err := s.issuer.IssueAccess(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(user)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// refreshDigest fingerprints a refresh token for storage. SHA-256 rather
// than bcrypt: the input is a high-entropy signed token, not a guessable
// password, and bcrypt truncates past 72 bytes.
func refreshDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// digestEqual compares two fingerprints in constant time.
func digestEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
