package main

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/platform/auth"
	"github.com/taskfolio/taskfolio-go/internal/repo"
)

type tokenRequest struct {
	GrantType    string `json:"grant_type,omitempty"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type registerClientRequest struct {
	Name string `json:"name"`
}

type registerClientResponse struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// handleIssueToken implements the client-credentials exchange. Lookup failures
// and secret mismatches are indistinguishable to the caller.
func (api *taskfolioAPI) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if api.clients == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}

	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.GrantType != "" && req.GrantType != "client_credentials" {
		api.writeErrorMessage(w, r, http.StatusBadRequest, "unsupported_grant_type", "only client_credentials is supported")
		return
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" || strings.TrimSpace(req.ClientSecret) == "" {
		api.writeErrorMessage(w, r, http.StatusBadRequest, "invalid_request", "client_id and client_secret are required")
		return
	}

	client, err := api.clients.Get(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			api.writeError(w, r, http.StatusUnauthorized, "invalid_client")
			return
		}
		api.writeDomainError(w, r, err)
		return
	}
	got := domain.HashClientSecret(strings.TrimSpace(req.ClientSecret))
	if !hmac.Equal([]byte(got), []byte(client.SecretSHA256)) {
		api.writeError(w, r, http.StatusUnauthorized, "invalid_client")
		return
	}

	now := time.Now().UTC()
	token, err := auth.GenerateServiceToken(api.authCfg.TokenSecret, auth.ServiceTokenClaims{
		Subject:       client.ID,
		Roles:         []string{auth.RoleEditor},
		ExpiresAtUnix: now.Add(api.authCfg.TokenTTL).Unix(),
	}, now)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}

	api.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(api.authCfg.TokenTTL.Seconds()),
	})
}

func (api *taskfolioAPI) handleRegisterClient(w http.ResponseWriter, r *http.Request) {
	if api.clients == nil {
		api.writeError(w, r, http.StatusInternalServerError, "service_unavailable")
		return
	}

	var req registerClientRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		api.writeErrorMessage(w, r, http.StatusBadRequest, "name_required", "client name is required")
		return
	}

	secret, err := randomSecret(32)
	if err != nil {
		api.writeDomainError(w, r, err)
		return
	}
	client := domain.APIClient{
		ID:           uuid.NewString(),
		Name:         name,
		SecretSHA256: domain.HashClientSecret(secret),
		CreatedAt:    time.Now().UTC(),
	}
	if err := api.clients.Create(r.Context(), client); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			api.writeError(w, r, http.StatusConflict, "client_exists")
			return
		}
		api.writeDomainError(w, r, err)
		return
	}

	// The plaintext secret is returned once and never stored.
	api.writeJSON(w, http.StatusCreated, registerClientResponse{
		ClientID:     client.ID,
		ClientSecret: secret,
		Name:         client.Name,
		CreatedAt:    client.CreatedAt,
	})
}

func randomSecret(nBytes int) (string, error) {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
