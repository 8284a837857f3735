// Package firebase verifies Firebase ID tokens against Google's published
// signing certificates, without the admin SDK. Tokens are RS256 JWTs signed
// by securetoken.google.com; the certificate set rotates and is cached
// according to the response's max-age.
package firebase

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"strainforge.org/internal/auth"
)

const certsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

var errUnknownKey = errors.New("firebase: unknown signing key")

// keySource resolves a key id to the RSA public key that signed the token.
type keySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// googleCerts fetches and caches Google's securetoken certificates.
type googleCerts struct {
	client *http.Client

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

func (c *googleCerts) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().After(c.expires) {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
	}
	key, ok := c.keys[kid]
	if !ok {
		return nil, errUnknownKey
	}
	return key, nil
}

func (c *googleCerts) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, certsURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch signing certificates: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch signing certificates: unexpected status %d", resp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("decode signing certificates: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(raw))
	for kid, certPEM := range raw {
		block, _ := pem.Decode([]byte(certPEM))
		if block == nil {
			return fmt.Errorf("malformed certificate for key %s", kid)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("parse certificate for key %s: %w", kid, err)
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("certificate for key %s is not RSA", kid)
		}
		keys[kid] = pub
	}

	c.keys = keys
	c.expires = time.Now().Add(cacheTTL(resp.Header.Get("Cache-Control")))
	return nil
}

// cacheTTL extracts max-age from a Cache-Control header, defaulting to one
// hour when absent or malformed.
func cacheTTL(header string) time.Duration {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "max-age="); ok {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return time.Hour
}

type idTokenClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates Firebase ID tokens for one project. It implements
// auth.IdentityVerifier.
type Verifier struct {
	projectID string
	keys      keySource
	now       func() time.Time
}

// NewVerifier constructs a Verifier for the given Firebase project.
func NewVerifier(projectID string) *Verifier {
	return &Verifier{
		projectID: projectID,
		keys:      &googleCerts{client: &http.Client{Timeout: 10 * time.Second}},
		now:       time.Now,
	}
}

// Verify checks the token's signature and claims and confirms it was issued
// to the expected uid.
func (v *Verifier) Verify(ctx context.Context, uid, token string) (*auth.Identity, error) {
	claims := &idTokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodRS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errUnknownKey
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithAudience(v.projectID),
	)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if claims.Subject == "" || claims.Subject != uid {
		return nil, errors.New("id token subject does not match the presented uid")
	}
	return &auth.Identity{
		UID:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}
