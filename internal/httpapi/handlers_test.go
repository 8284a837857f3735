package httpapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"strainforge.org/internal/auth"
	"strainforge.org/internal/consent"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
	})
	return testKey
}

type testMailer struct {
	mu    sync.Mutex
	token string
}

func (m *testMailer) SendPasswordReset(_ context.Context, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *testMailer) lastToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

type testEnv struct {
	api     *API
	handler http.Handler
	store   *auth.MemoryStore
	mailer  *testMailer
}

func newTestEnv(t *testing.T, gwCfg auth.GatewayConfig, verifier auth.IdentityVerifier) *testEnv {
	t.Helper()
	store := auth.NewMemoryStore()
	tokens, err := auth.NewTokenService(store, signingKey(t), auth.WithIssuer("strainforge-iam"), auth.WithKeyID("test"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	gateway := auth.NewGateway(store, tokens, verifier, gwCfg)
	mailer := &testMailer{}
	reset, err := auth.NewPasswordResetService(store, signingKey(t), mailer)
	if err != nil {
		t.Fatalf("NewPasswordResetService: %v", err)
	}
	consents := consent.NewService(consent.NewMemoryStore())

	api := New(ReadyProbe{}, Config{
		Version:            "test",
		RateLimitPerSecond: 1000,
		RateLimitBurst:     1000,
	}, gateway, tokens, reset, store, consents)

	return &testEnv{api: api, handler: api.Handler(), store: store, mailer: mailer}
}

func newLocalEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnv(t, auth.GatewayConfig{LocalEnabled: true}, nil)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) register(t *testing.T, email, password string) auth.TokenPayload {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/user", "", map[string]string{
		"first_name": "Test", "last_name": "User", "email": email, "password": password,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[auth.TokenPayload](t, rec)
}

func (e *testEnv) login(t *testing.T, email, password string) auth.TokenPayload {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/authenticate/local", "", map[string]string{
		"email": email, "password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[auth.TokenPayload](t, rec)
}

func TestAuthenticateLocalEndpoint(t *testing.T) {
	e := newLocalEnv(t)
	e.register(t, "alice@example.com", "s3cret")

	payload := e.login(t, "alice@example.com", "s3cret")
	if payload.JWT == "" || len(payload.RefreshToken.Val) != 64 {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	rec := e.do(t, http.MethodPost, "/authenticate/local", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/authenticate/local", "", map[string]string{
		"email": "nobody@example.com", "password": "s3cret",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", rec.Code)
	}
}

func TestAuthenticateLocalDisabledEndpoint(t *testing.T) {
	e := newTestEnv(t, auth.GatewayConfig{}, nil)
	rec := e.do(t, http.MethodPost, "/authenticate/local", "", map[string]string{
		"email": "alice@example.com", "password": "s3cret",
	})
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 when local auth is disabled, got %d", rec.Code)
	}
}

func TestAuthenticateFirebaseEndpoint(t *testing.T) {
	verifier := auth.VerifierFunc(func(_ context.Context, uid, token string) (*auth.Identity, error) {
		if token != "good-token" {
			return nil, fmt.Errorf("bad token")
		}
		return &auth.Identity{UID: uid, Email: "jane@example.com", Name: "Jane Doe"}, nil
	})
	e := newTestEnv(t, auth.GatewayConfig{FederatedEnabled: true}, verifier)

	rec := e.do(t, http.MethodPost, "/authenticate/firebase", "", map[string]string{
		"uid": "fb-1", "token": "good-token",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/authenticate/firebase", "", map[string]string{
		"uid": "fb-1", "token": "forged",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad federated token, got %d", rec.Code)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	e := newLocalEnv(t)
	payload := e.register(t, "alice@example.com", "s3cret")

	rec := e.do(t, http.MethodPost, "/refresh", "", map[string]string{
		"refresh_token": payload.RefreshToken.Val,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decodeBody[map[string]string](t, rec)
	if res["jwt"] == "" {
		t.Fatal("expected a fresh jwt")
	}

	rec = e.do(t, http.MethodPost, "/refresh", "", map[string]string{
		"refresh_token": "never-issued",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown refresh token, got %d", rec.Code)
	}
}

func TestKeysEndpoint(t *testing.T) {
	e := newLocalEnv(t)
	rec := e.do(t, http.MethodGet, "/keys", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	set := decodeBody[auth.JWKSet](t, rec)
	if len(set.Keys) != 1 || set.Keys[0].Alg != "RS512" {
		t.Fatalf("unexpected JWK set: %+v", set)
	}
}

func TestProfileEndpoint(t *testing.T) {
	e := newLocalEnv(t)
	payload := e.register(t, "alice@example.com", "s3cret")

	rec := e.do(t, http.MethodGet, "/user", payload.JWT, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	profile := decodeBody[map[string]string](t, rec)
	if profile["email"] != "alice@example.com" {
		t.Fatalf("unexpected profile: %v", profile)
	}

	// No bearer token: the request proceeds unauthenticated and the handler
	// rejects it.
	rec = e.do(t, http.MethodGet, "/user", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// A present-but-invalid bearer token is rejected by the middleware.
	rec = e.do(t, http.MethodGet, "/user", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rec.Code)
	}
	res := decodeBody[map[string]any](t, rec)
	if res["error"] != "invalid or expired token" {
		t.Fatalf("expected uniform token error, got %v", res["error"])
	}
}

func TestProjectLifecycle(t *testing.T) {
	e := newLocalEnv(t)
	e.register(t, "alice@example.com", "s3cret")
	token := e.login(t, "alice@example.com", "s3cret").JWT

	// Create: grant is stored, but this token predates it.
	rec := e.do(t, http.MethodPost, "/projects", token, map[string]string{"name": "genome"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[map[string]string](t, rec)
	projectID := created["id"]
	if projectID == "" || created["role"] != "admin" {
		t.Fatalf("unexpected create response: %v", created)
	}

	// The stale token has no claim on the new project.
	rec = e.do(t, http.MethodGet, "/projects/"+projectID, token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with stale claims, got %d", rec.Code)
	}

	// A fresh login carries the admin claim.
	token = e.login(t, "alice@example.com", "s3cret").JWT
	rec = e.do(t, http.MethodGet, "/projects/"+projectID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPut, "/projects/"+projectID, token, map[string]string{"name": "renamed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: status %d body %s", rec.Code, rec.Body.String())
	}
	renamed := decodeBody[map[string]string](t, rec)
	if renamed["name"] != "renamed" {
		t.Fatalf("unexpected rename response: %v", renamed)
	}

	rec = e.do(t, http.MethodGet, "/projects", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	list := decodeBody[[]map[string]string](t, rec)
	if len(list) != 1 || list[0]["id"] != projectID {
		t.Fatalf("unexpected list: %v", list)
	}

	rec = e.do(t, http.MethodDelete, "/projects/"+projectID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d body %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, http.MethodGet, "/projects/"+projectID, token, nil)
	// The claim survives in the stale token but the project is gone.
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestProjectAccessLevels(t *testing.T) {
	e := newLocalEnv(t)
	e.register(t, "alice@example.com", "s3cret")
	e.register(t, "bob@example.com", "s3cret")
	alice := e.login(t, "alice@example.com", "s3cret").JWT

	rec := e.do(t, http.MethodPost, "/projects", alice, map[string]string{"name": "genome"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rec.Code)
	}
	projectID := decodeBody[map[string]string](t, rec)["id"]

	// Grant bob read directly in the store.
	ctx := context.Background()
	bobUser, err := e.store.Users(ctx).FindByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("find bob: %v", err)
	}
	grant := auth.UserProject{UserID: bobUser.ID, ProjectID: projectID, Role: auth.RoleRead}
	if err := e.store.Grants(ctx).SetUserProject(ctx, grant); err != nil {
		t.Fatalf("grant bob: %v", err)
	}
	bob := e.login(t, "bob@example.com", "s3cret").JWT

	rec = e.do(t, http.MethodGet, "/projects/"+projectID, bob, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("bob read: status %d", rec.Code)
	}
	rec = e.do(t, http.MethodPut, "/projects/"+projectID, bob, map[string]string{"name": "hijack"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for write with read role, got %d", rec.Code)
	}
	res := decodeBody[map[string]any](t, rec)
	errMsg, _ := res["error"].(string)
	if errMsg == "" {
		t.Fatal("expected forbidden reason in response")
	}
	rec = e.do(t, http.MethodDelete, "/projects/"+projectID, bob, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for delete with read role, got %d", rec.Code)
	}
}

func TestConsentEndpoint(t *testing.T) {
	e := newLocalEnv(t)
	payload := e.register(t, "alice@example.com", "s3cret")

	for _, body := range []map[string]string{
		{"type": "cookie", "status": "accepted", "category": "marketing"},
		{"type": "cookie", "status": "rejected", "category": "marketing"},
		{"type": "gdpr", "status": "accepted"},
	} {
		rec := e.do(t, http.MethodPost, "/consent", payload.JWT, body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("record consent: status %d body %s", rec.Code, rec.Body.String())
		}
	}

	rec := e.do(t, http.MethodGet, "/consent", payload.JWT, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get consent: status %d", rec.Code)
	}
	current := decodeBody[[]map[string]any](t, rec)
	if len(current) != 2 {
		t.Fatalf("expected 2 current records, got %d", len(current))
	}

	rec = e.do(t, http.MethodGet, "/consent?view=history", payload.JWT, nil)
	history := decodeBody[[]map[string]any](t, rec)
	if len(history) != 3 {
		t.Fatalf("expected 3 history records, got %d", len(history))
	}

	rec = e.do(t, http.MethodPost, "/consent", payload.JWT, map[string]string{
		"type": "ccpa", "status": "accepted",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown consent type, got %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/consent", "", map[string]string{
		"type": "gdpr", "status": "accepted",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	e := newLocalEnv(t)
	e.register(t, "alice@example.com", "old-password")

	rec := e.do(t, http.MethodPost, "/password/reset-request", "", map[string]string{
		"email": "alice@example.com",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("reset request: status %d body %s", rec.Code, rec.Body.String())
	}
	token := e.mailer.lastToken()
	if token == "" {
		t.Fatal("expected reset token dispatched")
	}

	// Unknown address gets the same response.
	rec = e.do(t, http.MethodPost, "/password/reset-request", "", map[string]string{
		"email": "nobody@example.com",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected uniform 202, got %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/password/reset/"+token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("validate token: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/password/reset/"+token, "", map[string]string{
		"password": "new-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("redeem token: status %d body %s", rec.Code, rec.Body.String())
	}

	e.login(t, "alice@example.com", "new-password")

	// The token died with the password change.
	rec = e.do(t, http.MethodPost, "/password/reset/"+token, "", map[string]string{
		"password": "again",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for reused token, got %d", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	e := newLocalEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
	rec = e.do(t, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: status %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	e := newLocalEnv(t)
	rec := e.do(t, http.MethodGet, "/authenticate/local", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("expected Allow header POST, got %q", allow)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	e := newLocalEnv(t)
	rec := e.do(t, http.MethodPost, "/authenticate/local", "", map[string]string{
		"email": "a@b.c", "password": "x", "extra": "field",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}
