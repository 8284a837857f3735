package httpapi

import (
	"net/http"
	"strings"

	"strainforge.org/internal/obs"
)

type localAuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type firebaseAuthRequest struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	JWT string `json:"jwt"`
}

func (a *API) handleAuthenticateLocal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req localAuthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	payload, err := a.gateway.AuthenticateLocal(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.CountAuthAttempt("local", "failure")
		handleAuthError(w, r, err)
		return
	}
	obs.CountAuthAttempt("local", "success")
	writeJSON(w, http.StatusOK, payload)
}

func (a *API) handleAuthenticateFirebase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req firebaseAuthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.UID == "" || req.Token == "" {
		writeError(w, r, http.StatusBadRequest, "uid and token are required")
		return
	}

	payload, err := a.gateway.AuthenticateFederated(r.Context(), req.UID, req.Token)
	if err != nil {
		obs.CountAuthAttempt("firebase", "failure")
		handleAuthError(w, r, err)
		return
	}
	obs.CountAuthAttempt("firebase", "success")
	writeJSON(w, http.StatusOK, payload)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	jwt, err := a.tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		obs.CountAuthAttempt("refresh", "failure")
		handleAuthError(w, r, err)
		return
	}
	obs.CountAuthAttempt("refresh", "success")
	writeJSON(w, http.StatusOK, refreshResponse{JWT: jwt})
}

// handleKeys publishes the JWK set so resource servers can verify bearer
// tokens without sharing the private key.
func (a *API) handleKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, a.tokens.PublicKeys())
}
