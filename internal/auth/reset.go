package auth

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"strainforge.org/internal/obs"
)

const defaultResetValidity = time.Hour

// Mailer dispatches a password-reset email. Delivery is an external
// collaborator; the reset flow only invokes it.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

type resetClaims struct {
	UserID string `json:"usr"`
	// Fingerprint of the password hash current at issuance. Changing the
	// password invalidates outstanding reset tokens, making each token
	// effectively single-use.
	Fingerprint string `json:"pwd"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

// PasswordResetService mints and redeems short-lived signed reset tokens.
type PasswordResetService struct {
	store    Store
	key      *rsa.PrivateKey
	mailer   Mailer
	issuer   string
	validity time.Duration
	now      func() time.Time
}

// ResetOption configures PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetValidity overrides the reset token lifetime.
func WithResetValidity(d time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithResetIssuer sets the iss claim on reset tokens.
func WithResetIssuer(issuer string) ResetOption {
	return func(s *PasswordResetService) {
		s.issuer = issuer
	}
}

// WithResetClock overrides the time source (useful for tests).
func WithResetClock(fn func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewPasswordResetService constructs the reset flow around the signing key
// and mail collaborator.
func NewPasswordResetService(store Store, key *rsa.PrivateKey, mailer Mailer, opts ...ResetOption) (*PasswordResetService, error) {
	if key == nil {
		return nil, errors.New("auth: signing key is required")
	}
	s := &PasswordResetService{
		store:    store,
		key:      key,
		mailer:   mailer,
		validity: defaultResetValidity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequestReset dispatches a reset email for the given address. The outcome
// is uniform regardless of whether the address is registered or the email
// could be delivered: dispatch failures are logged as warnings and
// swallowed so the response leaks nothing.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	token, err := s.mint(user)
	if err != nil {
		return err
	}
	if s.mailer == nil {
		obs.Warnf("password reset requested but no mailer configured", map[string]any{"user_id": user.ID})
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		obs.Warnf("password reset email dispatch failed", map[string]any{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	}
	return nil
}

// Validate checks a reset token without consuming it. Used by the GET
// endpoint so the frontend can show the form only for live tokens.
func (s *PasswordResetService) Validate(ctx context.Context, token string) (*User, error) {
	return s.verify(ctx, token)
}

// Redeem sets a new password for the user identified by a valid reset
// token.
func (s *PasswordResetService) Redeem(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	user, err := s.verify(ctx, token)
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.Users(ctx).UpdatePassword(ctx, user.ID, hash)
}

func (s *PasswordResetService) mint(user *User) (string, error) {
	now := s.now()
	claims := resetClaims{
		UserID:      user.ID,
		Fingerprint: passwordFingerprint(user.PasswordHash),
		TokenType:   "password-reset",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS512, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

func (s *PasswordResetService) verify(ctx context.Context, token string) (*User, error) {
	claims := &resetClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodRS512 {
			return nil, ErrInvalidSignature
		}
		return &s.key.PublicKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformedClaims
		}
	}
	if claims.TokenType != "password-reset" || claims.UserID == "" {
		return nil, ErrMalformedClaims
	}
	user, err := s.store.Users(ctx).Find(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrMalformedClaims
		}
		return nil, err
	}
	if claims.Fingerprint != passwordFingerprint(user.PasswordHash) {
		return nil, ErrTokenExpired
	}
	return user, nil
}

func passwordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}
