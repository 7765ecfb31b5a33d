package auth

import (
	"context"
	"time"
)

// Store describes persistence required by the auth core. Every user-facing
// method takes the tenant id explicitly; there is no query path without a
// tenant predicate.
type Store interface {
	Tenants() TenantStore
	Users() UserStore
	RefreshSessions() RefreshStore
}

// TenantStore manages tenant boundaries.
type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	Find(ctx context.Context, id string) (*Tenant, error)
}

// UserStore manages principals. Create fails with ErrConflict when the
// (tenant_id, email) pair already exists.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, tenantID, email string) (*User, error)
	FindByID(ctx context.Context, tenantID, id string) (*User, error)
	List(ctx context.Context, tenantID string) ([]*User, error)
	UpdatePassword(ctx context.Context, tenantID, userID, passwordHash string) error
	UpdateStatus(ctx context.Context, tenantID, userID, status, updatedBy string) error
	UpdateRole(ctx context.Context, tenantID, userID string, role Role, updatedBy string) error
	RecordLogin(ctx context.Context, tenantID, userID string, at time.Time) error
}

// RefreshStore holds at most one refresh fingerprint per user. Persisting a
// digest is the point of commit for a session: a token whose digest was
// never stored is unusable.
type RefreshStore interface {
	// Rotate overwrites the stored digest unconditionally (login, register).
	Rotate(ctx context.Context, userID, digest string) error
	// Verify compares the presented digest against the stored one in
	// constant time. ErrUnauthorized on absence or mismatch.
	Verify(ctx context.Context, userID, digest string) error
	// Swap replaces oldDigest with newDigest only if oldDigest is still
	// current. The compare-and-swap makes concurrent refreshes with the
	// same stale token admit exactly one winner; losers get
	// ErrUnauthorized.
	Swap(ctx context.Context, userID, oldDigest, newDigest string) error
	// Clear drops the record (logout). Clearing an absent record is a no-op.
	Clear(ctx context.Context, userID string) error
}
