package auth

import "fmt"

// RequireAuthenticated fails when the request carries no verified claims.
func RequireAuthenticated(rc RequestClaims) error {
	if !rc.Authenticated {
		return ErrAuthenticationRequired
	}
	return nil
}

// RequireAccess verifies that the request's claims grant at least the
// required level on the given project. An empty project id denotes public
// data, which is readable by anyone and writable by no one. Every
// state-mutating endpoint must call this explicitly; nothing applies it
// automatically.
func RequireAccess(rc RequestClaims, projectID string, required ProjectRole) error {
	if !required.Valid() {
		return fmt.Errorf("%w: invalid required access level %d", ErrInvalidInput, required)
	}
	if projectID == "" {
		if required != RoleRead {
			return &ForbiddenError{Reason: "public data cannot be modified"}
		}
		return nil
	}
	level, ok := rc.Projects[projectID]
	if !ok {
		return &ForbiddenError{Reason: "no access to the requested resource"}
	}
	if !level.AtLeast(required) {
		return &ForbiddenError{Reason: fmt.Sprintf(
			"this operation requires access level %q, your access level is %q", required, level)}
	}
	return nil
}
