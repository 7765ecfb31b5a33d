package auth

import "time"

// Tenant is an isolated customer boundary. Every row the core touches is
// partitioned by tenant id.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Account statuses. Only active accounts may log in or hold a scope.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusPending   = "pending"
	StatusSuspended = "suspended"
)

// ValidStatus reports whether s is a recognized account status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending, StatusSuspended:
		return true
	}
	return false
}

// User is a principal within a tenant. Email is unique per tenant,
// PasswordHash never holds plaintext. Deletion is a status flip to
// inactive, never a physical removal.
type User struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Email        string     `json:"email"`
	Role         Role       `json:"role"`
	Status       string     `json:"status"`
	PasswordHash string     `json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	UpdatedBy    string     `json:"updated_by,omitempty"`
}

// RefreshSession stores the fingerprint of the single active refresh token
// for a user. It never leaves the auth package.
type RefreshSession struct {
	UserID      string
	TokenDigest string
	RotatedAt   time.Time
}

// TokenPair is what callers receive: two opaque signed strings.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
