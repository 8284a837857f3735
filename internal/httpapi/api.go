package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"strainforge.org/internal/auth"
	"strainforge.org/internal/consent"
	"strainforge.org/internal/obs"
)

// ReadyProbe reports whether the service can serve traffic. A nil DB is
// treated as ready so development mode works without PostgreSQL.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the transport-level settings of the API.
type Config struct {
	Version            string
	AllowedOrigins     []string
	RateLimitPerSecond int
	RateLimitBurst     int
}

// API is the HTTP layer. Handlers translate between the wire and the auth,
// consent and token services; no authorization decision lives here.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	cfg        Config

	gateway  *auth.Gateway
	tokens   *auth.TokenService
	reset    *auth.PasswordResetService
	store    auth.Store
	consents *consent.Service
}

func New(rp ReadyProbe, cfg Config, gateway *auth.Gateway, tokens *auth.TokenService, reset *auth.PasswordResetService, store auth.Store, consents *consent.Service) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		cfg:        cfg,
		gateway:    gateway,
		tokens:     tokens,
		reset:      reset,
		store:      store,
		consents:   consents,
	}

	a.mux.HandleFunc("/authenticate/local", a.handleAuthenticateLocal)
	a.mux.HandleFunc("/authenticate/firebase", a.handleAuthenticateFirebase)
	a.mux.HandleFunc("/refresh", a.handleRefresh)
	a.mux.HandleFunc("/keys", a.handleKeys)

	a.mux.HandleFunc("/user", a.handleUser)

	a.mux.HandleFunc("/projects", a.handleProjectsCollection)
	a.mux.HandleFunc("/projects/", a.handleProjectResource)

	a.mux.HandleFunc("/consent", a.handleConsent)

	a.mux.HandleFunc("/password/reset-request", a.handleResetRequest)
	a.mux.HandleFunc("/password/reset/", a.handleResetToken)

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.cfg.RateLimitBurst, a.cfg.RateLimitPerSecond)
	h = CORS(h, a.cfg.AllowedOrigins)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "strainforge-iam",
		"version": a.cfg.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
