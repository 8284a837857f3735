package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations sets the PBKDF2 work factor. Deliberately slow:
	// hashing dominates authentication latency and must stay that way.
	DefaultIterations = 100000

	defaultSaltLength = 12
	derivedKeyLength  = sha256.Size
)

const saltAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewSalt generates a random alphanumeric salt of length n.
func NewSalt(n int) (string, error) {
	salt := make([]byte, n)
	max := big.NewInt(int64(len(saltAlphabet)))
	for i := range salt {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate salt: %w", err)
		}
		salt[i] = saltAlphabet[idx.Int64()]
	}
	return string(salt), nil
}

// EncodePassword derives a PBKDF2-HMAC-SHA256 hash of password and returns
// it in the stored form "{iterations}${salt}${base64(key)}". An empty salt
// requests a fresh random one.
func EncodePassword(password []byte, salt string, iterations int) (string, error) {
	if iterations <= 0 {
		return "", fmt.Errorf("%w: iterations must be positive", ErrInvalidInput)
	}
	if salt == "" {
		var err error
		salt, err = NewSalt(defaultSaltLength)
		if err != nil {
			return "", err
		}
	}
	key := pbkdf2.Key(password, []byte(salt), iterations, derivedKeyLength, sha256.New)
	encoded := base64.StdEncoding.EncodeToString(key)
	return fmt.Sprintf("%d$%s$%s", iterations, salt, encoded), nil
}

// HashPassword encodes password with a fresh salt and the default work
// factor. Callers reject empty passwords before reaching this point.
func HashPassword(password string) (string, error) {
	return EncodePassword([]byte(password), "", DefaultIterations)
}

// VerifyPassword re-derives the candidate password with the parameters
// embedded in encoded and compares the results in constant time. The
// comparison never short-circuits on the first mismatching byte.
func VerifyPassword(encoded, password string) bool {
	iterations, salt, err := splitEncoded(encoded)
	if err != nil {
		return false
	}
	candidate, err := EncodePassword([]byte(password), salt, iterations)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(encoded), []byte(candidate)) == 1
}

func splitEncoded(encoded string) (iterations int, salt string, err error) {
	parts := strings.SplitN(encoded, "$", 3)
	if len(parts) != 3 {
		return 0, "", errors.New("malformed password hash")
	}
	iterations, err = strconv.Atoi(parts[0])
	if err != nil || iterations <= 0 {
		return 0, "", errors.New("malformed iteration count")
	}
	return iterations, parts[1], nil
}
