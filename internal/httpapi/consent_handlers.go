package httpapi

import (
	"net/http"

	"strainforge.org/internal/auth"
	"strainforge.org/internal/consent"
)

type consentRequest struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (a *API) handleConsent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getConsent(w, r)
	case http.MethodPost:
		a.recordConsent(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// getConsent returns the caller's current consent state, one record per
// (type, category) pair. ?view=history returns the full append-only log.
func (a *API) getConsent(w http.ResponseWriter, r *http.Request) {
	rc := auth.RequestClaimsFromContext(r.Context())
	if err := auth.RequireAuthenticated(rc); err != nil {
		handleAuthError(w, r, err)
		return
	}

	var (
		records []*consent.Record
		err     error
	)
	if r.URL.Query().Get("view") == "history" {
		records, err = a.consents.History(r.Context(), rc.UserID)
	} else {
		records, err = a.consents.Current(r.Context(), rc.UserID)
	}
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if records == nil {
		records = []*consent.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) recordConsent(w http.ResponseWriter, r *http.Request) {
	rc := auth.RequestClaimsFromContext(r.Context())
	if err := auth.RequireAuthenticated(rc); err != nil {
		handleAuthError(w, r, err)
		return
	}

	var req consentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec := &consent.Record{
		UserID:   rc.UserID,
		Type:     consent.Type(req.Type),
		Status:   consent.Status(req.Status),
		Category: consent.Category(req.Category),
		Message:  req.Message,
	}
	if err := a.consents.Record(r.Context(), rec); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
