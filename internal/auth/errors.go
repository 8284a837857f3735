package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")

	// ErrInvalidCredentials covers both unknown email and password mismatch
	// so callers cannot probe which addresses are registered.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidFederatedCredentials indicates the external verifier
	// rejected the presented identity token.
	ErrInvalidFederatedCredentials = errors.New("auth: invalid federated credentials")

	// ErrMethodDisabled is returned when a feature toggle disables an
	// authentication method entirely.
	ErrMethodDisabled = errors.New("auth: authentication method disabled")

	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
	ErrExpiredRefreshToken = errors.New("auth: refresh token has expired")

	// Token verification failures. The HTTP layer collapses all three into
	// one user-facing message to avoid leaking verification internals.
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrTokenExpired     = errors.New("auth: token has expired")
	ErrMalformedClaims  = errors.New("auth: malformed token claims")

	ErrAuthenticationRequired = errors.New("auth: authentication required")
	ErrForbidden              = errors.New("auth: forbidden")
)

// ForbiddenError is an authorization denial carrying the reason shown to
// the caller. It unwraps to ErrForbidden.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("auth: forbidden: %s", e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }
