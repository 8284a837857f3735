package httpapi

import (
	"net/http"
	"strings"

	"strainforge.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth attaches authentication state to every request. A request with
// no Authorization header, or one using a different scheme, proceeds as
// unauthenticated; handlers decide per-endpoint whether that is acceptable.
// A Bearer token that fails verification is rejected outright, with one
// uniform message for every failure mode.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractBearerToken(r.Header.Get(authHeader))
		if !ok {
			ctx := auth.ContextWithRequestClaims(r.Context(), auth.Unauthenticated())
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		claims, err := a.tokens.Verify(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := auth.ContextWithRequestClaims(r.Context(), auth.FromClaims(claims))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}
