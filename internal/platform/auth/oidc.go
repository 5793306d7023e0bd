package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Login-flow cookies live only for the duration of one authorization
// round-trip; the session cookie name comes from config.
const (
	cookieLoginState    = "taskfolio_login_state"
	cookieLoginVerifier = "taskfolio_login_verifier"
	cookieLoginNonce    = "taskfolio_login_nonce"
	cookieReturnTo      = "taskfolio_return_to"

	loginFlowTTL = 10 * time.Minute
)

type OIDCService struct {
	cfg      Config
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth    oauth2.Config
}

func NewOIDCService(ctx context.Context, cfg Config) (*OIDCService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode != ModeOIDC {
		return nil, fmt.Errorf("auth mode must be oidc (got %q)", cfg.Mode)
	}

	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	return &OIDCService{
		cfg:      cfg,
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID}),
		oauth: oauth2.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.OIDCRedirectURL,
			Scopes:       cfg.OIDCScopes,
		},
	}, nil
}

func (s *OIDCService) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	rawToken := tokenFromHeader(r)
	if rawToken == "" {
		rawToken = tokenFromCookie(r, s.cfg.SessionCookieName)
	}
	if rawToken == "" {
		return Identity{}, ErrUnauthenticated
	}

	idToken, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, err
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, err
	}

	subject, _ := claims["sub"].(string)
	return Identity{
		Subject: subject,
		Email:   extractStringClaim(claims, s.cfg.EmailClaim),
		Roles:   extractRolesClaim(claims, s.cfg.RolesClaim),
	}, nil
}

// loginFlow is the per-attempt CSRF and PKCE material carried between the
// login redirect and the provider callback.
type loginFlow struct {
	state    string
	verifier string
	nonce    string
	returnTo string
}

func newLoginFlow(returnTo string) (loginFlow, error) {
	var flow loginFlow
	var err error
	if flow.state, err = randomBase64URL(32); err != nil {
		return loginFlow{}, err
	}
	if flow.verifier, err = randomBase64URL(32); err != nil {
		return loginFlow{}, err
	}
	if flow.nonce, err = randomBase64URL(32); err != nil {
		return loginFlow{}, err
	}
	flow.returnTo = safeReturnTo(returnTo)
	return flow, nil
}

func (f loginFlow) setCookies(w http.ResponseWriter, cfg Config) {
	setCookie(w, cookieLoginState, f.state, loginFlowTTL, cfg)
	setCookie(w, cookieLoginVerifier, f.verifier, loginFlowTTL, cfg)
	setCookie(w, cookieLoginNonce, f.nonce, loginFlowTTL, cfg)
	setCookie(w, cookieReturnTo, f.returnTo, loginFlowTTL, cfg)
}

func readLoginFlow(r *http.Request) loginFlow {
	return loginFlow{
		state:    tokenFromCookie(r, cookieLoginState),
		verifier: tokenFromCookie(r, cookieLoginVerifier),
		nonce:    tokenFromCookie(r, cookieLoginNonce),
		returnTo: safeReturnTo(tokenFromCookie(r, cookieReturnTo)),
	}
}

func clearLoginFlow(w http.ResponseWriter, cfg Config) {
	clearCookie(w, cookieLoginState, cfg)
	clearCookie(w, cookieLoginVerifier, cfg)
	clearCookie(w, cookieLoginNonce, cfg)
	clearCookie(w, cookieReturnTo, cfg)
}

func (s *OIDCService) LoginHandler() (http.HandlerFunc, error) {
	if err := s.cfg.ValidateForLogin(); err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		flow, err := newLoginFlow(r.URL.Query().Get("return_to"))
		if err != nil {
			sessionError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		flow.setCookies(w, s.cfg)

		authURL := s.oauth.AuthCodeURL(
			flow.state,
			oauth2.AccessTypeOnline,
			oauth2.SetAuthURLParam("code_challenge", pkceS256Challenge(flow.verifier)),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
			oauth2.SetAuthURLParam("nonce", flow.nonce),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}, nil
}

func (s *OIDCService) CallbackHandler() (http.HandlerFunc, error) {
	if err := s.cfg.ValidateForLogin(); err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")
		if state == "" || code == "" {
			sessionError(w, http.StatusBadRequest, "missing_code_or_state")
			return
		}

		flow := readLoginFlow(r)
		if flow.state == "" || flow.state != state {
			sessionError(w, http.StatusBadRequest, "invalid_state")
			return
		}
		if flow.verifier == "" || flow.nonce == "" {
			sessionError(w, http.StatusBadRequest, "missing_pkce_or_nonce")
			return
		}

		exchangeCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		token, err := s.oauth.Exchange(exchangeCtx, code, oauth2.SetAuthURLParam("code_verifier", flow.verifier))
		if err != nil {
			sessionError(w, http.StatusUnauthorized, "token_exchange_failed")
			return
		}

		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok || rawIDToken == "" {
			sessionError(w, http.StatusUnauthorized, "missing_id_token")
			return
		}

		idToken, err := s.verifier.Verify(exchangeCtx, rawIDToken)
		if err != nil {
			sessionError(w, http.StatusUnauthorized, "invalid_id_token")
			return
		}

		var claims struct {
			Nonce string `json:"nonce"`
		}
		if err := idToken.Claims(&claims); err != nil {
			sessionError(w, http.StatusUnauthorized, "invalid_id_token_claims")
			return
		}
		if claims.Nonce == "" || claims.Nonce != flow.nonce {
			sessionError(w, http.StatusUnauthorized, "invalid_nonce")
			return
		}

		setCookie(w, s.cfg.SessionCookieName, rawIDToken, s.cfg.SessionCookieMaxAge, s.cfg)
		clearLoginFlow(w, s.cfg)
		http.Redirect(w, r, flow.returnTo, http.StatusFound)
	}, nil
}

func (s *OIDCService) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clearCookie(w, s.cfg.SessionCookieName, s.cfg)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

func (s *OIDCService) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.Authenticate(r.Context(), r)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				sessionError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			sessionError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"subject": identity.Subject,
			"email":   identity.Email,
			"roles":   identity.Roles,
		})
	}
}

func sessionError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}

func tokenFromHeader(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return ""
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func tokenFromCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func randomBase64URL(nBytes int) (string, error) {
	if nBytes <= 0 {
		return "", errors.New("nBytes must be positive")
	}
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func pkceS256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// safeReturnTo keeps post-login redirects on this origin. Anything absolute,
// protocol-relative, or not rooted collapses to "/".
func safeReturnTo(raw string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return u.Path
}

func setCookie(w http.ResponseWriter, name, value string, ttl time.Duration, cfg Config) {
	if ttl <= 0 {
		ttl = loginFlowTTL
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.SessionCookieSecure,
		SameSite: parseSameSite(cfg.SessionCookieSameSite),
	})
}

func clearCookie(w http.ResponseWriter, name string, cfg Config) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.SessionCookieSecure,
		SameSite: parseSameSite(cfg.SessionCookieSameSite),
	})
}

func parseSameSite(raw string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func extractStringClaim(claims map[string]any, key string) string {
	v, ok := claims[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func extractRolesClaim(claims map[string]any, key string) []string {
	v, ok := claims[key]
	if !ok {
		return nil
	}
	switch typed := v.(type) {
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			s, ok := item.(string)
			if !ok {
				continue
			}
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			out = append(out, s)
		}
		return out
	case []string:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			s := strings.ToLower(strings.TrimSpace(item))
			if s == "" {
				continue
			}
			out = append(out, s)
		}
		return out
	case string:
		return parseCSV(typed)
	default:
		return nil
	}
}
