package auth

import "errors"

var (
	// ErrUnauthorized covers bad credentials, revoked or expired refresh
	// chains and non-active accounts. Callers must not be able to tell
	// the causes apart.
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrForbidden means the identity is valid but the role policy denies
	// the operation.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrConflict signals a duplicate registration within a tenant.
	ErrConflict = errors.New("auth: already exists")

	// ErrBadRequest signals rejected input, e.g. a wrong current password
	// on password change.
	ErrBadRequest = errors.New("auth: bad request")

	ErrNotFound = errors.New("auth: not found")
)

// ErrInvalidToken indicates a token failed signature or claim validation.
var ErrInvalidToken = errors.New("auth: invalid token")
