package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"strainforge.org/internal/ids"
)

// Identity is the decoded assertion returned by an external verifier.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// IdentityVerifier validates an external identity token and returns the
// decoded assertion. Implementations are external collaborators; the
// gateway trusts whatever they return.
type IdentityVerifier interface {
	Verify(ctx context.Context, uid, token string) (*Identity, error)
}

// VerifierFunc adapts a function to the IdentityVerifier interface.
type VerifierFunc func(ctx context.Context, uid, token string) (*Identity, error)

func (f VerifierFunc) Verify(ctx context.Context, uid, token string) (*Identity, error) {
	return f(ctx, uid, token)
}

// GatewayConfig carries the feature toggles for the two authentication
// methods.
type GatewayConfig struct {
	LocalEnabled     bool
	FederatedEnabled bool
}

// Gateway orchestrates the authentication flows. Both converge on
// TokenService.SignClaims once a local user is established.
type Gateway struct {
	store    Store
	tokens   *TokenService
	verifier IdentityVerifier
	cfg      GatewayConfig
}

// NewGateway constructs a Gateway. The verifier may be nil when federated
// authentication is disabled.
func NewGateway(store Store, tokens *TokenService, verifier IdentityVerifier, cfg GatewayConfig) *Gateway {
	return &Gateway{store: store, tokens: tokens, verifier: verifier, cfg: cfg}
}

// AuthenticateLocal validates email/password credentials. Unknown email
// and wrong password fail identically with ErrInvalidCredentials so
// callers cannot enumerate registered addresses.
func (g *Gateway) AuthenticateLocal(ctx context.Context, email, password string) (*TokenPayload, error) {
	if !g.cfg.LocalEnabled {
		return nil, ErrMethodDisabled
	}
	user, err := g.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	// Federated-only accounts have no password hash and cannot log in
	// locally.
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return g.tokens.SignClaims(ctx, user)
}

// AuthenticateFederated validates an external identity token and signs
// claims for the matching local user, provisioning one just in time when
// none exists. Resolution order: stored external uid, then exact email
// match, then create. Note: the email step links the external identity to
// any pre-existing local account with that address without further
// verification.
func (g *Gateway) AuthenticateFederated(ctx context.Context, uid, token string) (*TokenPayload, error) {
	if !g.cfg.FederatedEnabled || g.verifier == nil {
		return nil, ErrMethodDisabled
	}
	identity, err := g.verifier.Verify(ctx, uid, token)
	if err != nil {
		return nil, ErrInvalidFederatedCredentials
	}

	users := g.store.Users(ctx)
	user, err := users.FindByExternalUID(ctx, identity.UID)
	if err == nil {
		return g.tokens.SignClaims(ctx, user)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	user, err = users.FindByEmail(ctx, identity.Email)
	if err == nil {
		if linkErr := users.LinkExternalUID(ctx, user.ID, identity.UID); linkErr != nil {
			return nil, linkErr
		}
		return g.tokens.SignClaims(ctx, user)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	user, err = g.createFederatedUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	return g.tokens.SignClaims(ctx, user)
}

// Register creates a local user with a password and returns a signed
// claims payload, so registration doubles as a first login.
func (g *Gateway) Register(ctx context.Context, firstName, lastName, email, password string) (*TokenPayload, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           ids.New(),
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Email:        email,
		PasswordHash: hash,
	}
	if err := g.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	return g.tokens.SignClaims(ctx, user)
}

func (g *Gateway) createFederatedUser(ctx context.Context, identity *Identity) (*User, error) {
	first, last := SplitName(identity.Name)
	user := &User{
		ID:          ids.New(),
		FirstName:   first,
		LastName:    last,
		Email:       identity.Email,
		ExternalUID: identity.UID,
	}
	if err := g.store.Users(ctx).Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SplitName divides a display name on the first whitespace run. A name
// with no whitespace becomes the first name with an empty last name.
func SplitName(name string) (first, last string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	first = fields[0]
	idx := strings.Index(name, first) + len(first)
	return first, strings.TrimSpace(name[idx:])
}
