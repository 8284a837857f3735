package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultJWTValidity     = 10 * time.Minute
	defaultRefreshValidity = 30 * 24 * time.Hour

	refreshTokenBytes = 32
)

// Claims is the payload embedded in every signed bearer token.
type Claims struct {
	UserID   string    `json:"usr"`
	Projects AccessMap `json:"prj"`
	jwt.RegisteredClaims
}

// TokenPayload is the response of a successful authentication.
type TokenPayload struct {
	JWT          string            `json:"jwt"`
	RefreshToken RefreshDescriptor `json:"refresh_token"`
}

// RefreshDescriptor describes a newly minted refresh token.
type RefreshDescriptor struct {
	Val string `json:"val"`
	Exp int64  `json:"exp"`
}

// TokenService signs, verifies and refreshes bearer tokens. The signing
// key is read-only after construction; the service itself is safe for
// concurrent use.
type TokenService struct {
	store    Store
	resolver *ClaimResolver

	key             *rsa.PrivateKey
	keyID           string
	issuer          string
	jwtValidity     time.Duration
	refreshValidity time.Duration
	now             func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithIssuer sets the iss claim on signed tokens.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		s.issuer = issuer
	}
}

// WithKeyID sets the key identifier embedded in JWT headers and JWKs.
func WithKeyID(kid string) TokenOption {
	return func(s *TokenService) {
		s.keyID = kid
	}
}

// WithJWTValidity configures bearer token lifetime.
func WithJWTValidity(d time.Duration) TokenOption {
	return func(s *TokenService) {
		if d > 0 {
			s.jwtValidity = d
		}
	}
}

// WithRefreshValidity configures refresh token lifetime.
func WithRefreshValidity(d time.Duration) TokenOption {
	return func(s *TokenService) {
		if d > 0 {
			s.refreshValidity = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a TokenService signing with the given RSA key.
func NewTokenService(store Store, key *rsa.PrivateKey, opts ...TokenOption) (*TokenService, error) {
	if key == nil {
		return nil, errors.New("auth: signing key is required")
	}
	s := &TokenService{
		store:           store,
		resolver:        NewClaimResolver(store),
		key:             key,
		jwtValidity:     defaultJWTValidity,
		refreshValidity: defaultRefreshValidity,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignClaims resolves the user's current project access, signs a bearer
// token embedding it and persists a fresh refresh token. Claims are always
// recomputed from the store; nothing is cached across requests.
func (s *TokenService) SignClaims(ctx context.Context, user *User) (*TokenPayload, error) {
	access, err := s.resolver.Resolve(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	signed, err := s.sign(user.ID, access, now)
	if err != nil {
		return nil, err
	}

	value := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(value); err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refresh := &RefreshToken{
		Value:     hex.EncodeToString(value),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.refreshValidity),
		CreatedAt: now.UTC(),
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &TokenPayload{
		JWT: signed,
		RefreshToken: RefreshDescriptor{
			Val: refresh.Value,
			Exp: refresh.ExpiresAt.Unix(),
		},
	}, nil
}

// Refresh exchanges a valid refresh token for a new bearer token. Claims
// are re-resolved so access changes since the original sign take effect.
// The refresh token itself is neither rotated nor extended; it stays valid
// until its natural expiry. Known gap: tokens accumulate per user with no
// revocation path short of expiry.
func (s *TokenService) Refresh(ctx context.Context, value string) (string, error) {
	tok, err := s.store.RefreshTokens(ctx).FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", err
	}
	// Inclusive boundary: a token presented exactly at its expiry instant
	// is already expired.
	if !s.now().Before(tok.ExpiresAt) {
		return "", ErrExpiredRefreshToken
	}

	access, err := s.resolver.Resolve(ctx, tok.UserID)
	if err != nil {
		return "", err
	}
	return s.sign(tok.UserID, access, s.now())
}

func (s *TokenService) sign(userID string, access AccessMap, now time.Time) (string, error) {
	claims := Claims{
		UserID:   userID,
		Projects: access,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtValidity)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS512, claims)
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a bearer token and returns its
// claims. Failure modes are distinct (signature, expiry, malformed) so the
// transport layer can collapse them into one uniform message.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
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
	if claims.UserID == "" {
		return nil, ErrMalformedClaims
	}
	if claims.Projects == nil {
		claims.Projects = make(AccessMap)
	}
	return claims, nil
}

// PublicKeys returns the public half of the signing key as a JWK set for
// external verifiers (RFC 7517).
func (s *TokenService) PublicKeys() JWKSet {
	return JWKSet{Keys: []JWK{newRSAJWK(&s.key.PublicKey, s.keyID)}}
}
