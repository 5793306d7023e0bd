package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func sessionTestConfig() Config {
	return Config{
		Mode:                  ModeOIDC,
		RolesClaim:            "roles",
		EmailClaim:            "email",
		SessionCookieName:     "taskfolio_session",
		SessionCookieMaxAge:   time.Hour,
		SessionCookieSameSite: "Lax",
		OIDCIssuerURL:         "https://idp.example",
		OIDCClientID:          "taskfolio",
		OIDCClientSecret:      "shhh",
		OIDCRedirectURL:       "https://app.example/v1/auth/callback",
		OIDCScopes:            []string{"openid", "email"},
	}
}

func sessionTestService(cfg Config) *OIDCService {
	return &OIDCService{
		cfg: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			Endpoint:     oauth2.Endpoint{AuthURL: "https://idp.example/authorize", TokenURL: "https://idp.example/token"},
			RedirectURL:  cfg.OIDCRedirectURL,
			Scopes:       cfg.OIDCScopes,
		},
	}
}

func cookieByName(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestLoginRedirectCarriesFlowCookies(t *testing.T) {
	svc := sessionTestService(sessionTestConfig())
	handler, err := svc.LoginHandler()
	if err != nil {
		t.Fatalf("login handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/login?return_to=/lists", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	resp := rec.Result()
	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	query := location.Query()

	state := cookieByName(t, resp, cookieLoginState)
	nonce := cookieByName(t, resp, cookieLoginNonce)
	verifier := cookieByName(t, resp, cookieLoginVerifier)
	returnTo := cookieByName(t, resp, cookieReturnTo)
	if state == nil || nonce == nil || verifier == nil || returnTo == nil {
		t.Fatalf("expected all flow cookies to be set")
	}
	if returnTo.Value != "/lists" {
		t.Fatalf("unexpected return_to cookie: %q", returnTo.Value)
	}
	if query.Get("state") != state.Value {
		t.Fatalf("state query must match state cookie")
	}
	if query.Get("nonce") != nonce.Value {
		t.Fatalf("nonce query must match nonce cookie")
	}
	if query.Get("code_challenge_method") != "S256" {
		t.Fatalf("expected S256 challenge method, got %q", query.Get("code_challenge_method"))
	}
	if query.Get("code_challenge") != pkceS256Challenge(verifier.Value) {
		t.Fatalf("challenge must derive from the verifier cookie")
	}
}

func TestLoginHandlerRequiresClientSecret(t *testing.T) {
	cfg := sessionTestConfig()
	cfg.OIDCClientSecret = ""
	svc := sessionTestService(cfg)

	if _, err := svc.LoginHandler(); err == nil {
		t.Fatal("expected error without client secret")
	}
	if _, err := svc.CallbackHandler(); err == nil {
		t.Fatal("expected error without client secret")
	}
}

func TestCallbackRejectsMissingCodeOrState(t *testing.T) {
	svc := sessionTestService(sessionTestConfig())
	handler, err := svc.CallbackHandler()
	if err != nil {
		t.Fatalf("callback handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/callback", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "missing_code_or_state" {
		t.Fatalf("unexpected error code: %q", code)
	}
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	svc := sessionTestService(sessionTestConfig())
	handler, err := svc.CallbackHandler()
	if err != nil {
		t.Fatalf("callback handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/callback?state=query-state&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: cookieLoginState, Value: "cookie-state"})
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_state" {
		t.Fatalf("unexpected error code: %q", code)
	}
}

func TestCallbackRequiresFlowCookies(t *testing.T) {
	svc := sessionTestService(sessionTestConfig())
	handler, err := svc.CallbackHandler()
	if err != nil {
		t.Fatalf("callback handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/callback?state=s1&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: cookieLoginState, Value: "s1"})
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "missing_pkce_or_nonce" {
		t.Fatalf("unexpected error code: %q", code)
	}
}

func TestLogoutClearsSessionCookie(t *testing.T) {
	cfg := sessionTestConfig()
	svc := sessionTestService(cfg)

	rec := httptest.NewRecorder()
	svc.LogoutHandler()(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cleared := cookieByName(t, rec.Result(), cfg.SessionCookieName)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected session cookie to be expired, got %+v", cleared)
	}
}

func TestSessionRequiresCredentials(t *testing.T) {
	svc := sessionTestService(sessionTestConfig())

	rec := httptest.NewRecorder()
	svc.SessionHandler()(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "unauthorized" {
		t.Fatalf("unexpected error code: %q", code)
	}
}

func TestSafeReturnTo(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"", "/"},
		{"/lists", "/lists"},
		{"/lists/abc", "/lists/abc"},
		{"https://evil.example/", "/"},
		{"//evil.example", "/"},
		{"lists", "/"},
		{"%%%", "/"},
	}
	for _, tc := range cases {
		if got := safeReturnTo(tc.raw); got != tc.want {
			t.Errorf("safeReturnTo(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
