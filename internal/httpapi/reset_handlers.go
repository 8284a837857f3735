package httpapi

import (
	"net/http"
	"strings"
)

type resetRequestBody struct {
	Email string `json:"email"`
}

type resetRedeemBody struct {
	Password string `json:"password"`
}

// handleResetRequest accepts a password reset request. The response is the
// same whether or not the address is registered.
func (a *API) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req resetRequestBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	if err := a.reset.RequestReset(r.Context(), req.Email); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

func (a *API) handleResetToken(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, "/password/reset/")
	if token == "" || strings.Contains(token, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.validateResetToken(w, r, token)
	case http.MethodPost:
		a.redeemResetToken(w, r, token)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// validateResetToken lets the frontend check a token before showing the
// new-password form.
func (a *API) validateResetToken(w http.ResponseWriter, r *http.Request, token string) {
	user, err := a.reset.Validate(r.Context(), token)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "valid",
		"email":  user.Email,
	})
}

func (a *API) redeemResetToken(w http.ResponseWriter, r *http.Request, token string) {
	var req resetRedeemBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.reset.Redeem(r.Context(), token, req.Password); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "password updated"})
}
