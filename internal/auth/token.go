package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuerName = "tenauth"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour

	// clockSkewLeeway tolerates minor drift between issuing and verifying
	// hosts on the exp/iat boundaries.
	clockSkewLeeway = 5 * time.Second
)

// Token types carried in the token_type claim. Access tokens are verified
// statelessly; refresh tokens are additionally checked against the store.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the signed claim set: subject is the principal id, TenantID the
// owning tenant. Verification of access tokens is pure signature+expiry and
// never consults persistent state.
type Claims struct {
	TenantID  string `json:"tid"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies signed HS256 token pairs.
type Issuer struct {
	secret     []byte
	name       string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer) error

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) error {
		if n := strings.TrimSpace(name); n != "" {
			i.name = n
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) error {
		if ttl > 0 {
			i.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) error {
		if ttl > 0 {
			i.refreshTTL = ttl
		}
		return nil
	}
}

// WithIssuerClock overrides the time source (useful for tests).
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) error {
		if fn != nil {
			i.now = fn
		}
		return nil
	}
}

// NewIssuer constructs an Issuer. The signing secret is mandatory and the
// refresh lifetime must strictly exceed the access lifetime.
func NewIssuer(secret string, opts ...IssuerOption) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	iss := &Issuer{
		secret:     []byte(secret),
		name:       defaultIssuerName,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(iss); err != nil {
			return nil, err
		}
	}
	if iss.refreshTTL <= iss.accessTTL {
		return nil, fmt.Errorf("auth: refresh TTL %v must exceed access TTL %v", iss.refreshTTL, iss.accessTTL)
	}
	return iss, nil
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// IssueAccess signs a short-lived access token for the user.
func (i *Issuer) IssueAccess(u *User) (string, time.Time, error) {
	return i.sign(u, TokenTypeAccess, i.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the user.
func (i *Issuer) IssueRefresh(u *User) (string, time.Time, error) {
	return i.sign(u, TokenTypeRefresh, i.refreshTTL)
}

func (i *Issuer) sign(u *User, tokenType string, ttl time.Duration) (string, time.Time, error) {
	if u == nil || u.ID == "" || u.TenantID == "" {
		return "", time.Time{}, errors.New("auth: user identity is incomplete")
	}
	now := i.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		TenantID:  u.TenantID,
		Email:     u.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, structure and expiry, and that the token carries
// the wanted token_type. Any failure is ErrInvalidToken.
func (i *Issuer) Verify(token, wantType string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	},
		jwt.WithTimeFunc(i.now),
		jwt.WithLeeway(clockSkewLeeway),
		jwt.WithIssuer(i.name),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.TenantID) == "" {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
