package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// APIClient is a registered caller in the client-credentials flow. Only the
// SHA-256 of the secret is stored.
type APIClient struct {
	ID           string
	Name         string
	SecretSHA256 string
	CreatedAt    time.Time
}

func (c APIClient) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("client id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("client name is required")
	}
	if strings.TrimSpace(c.SecretSHA256) == "" {
		return errors.New("client secret hash is required")
	}
	return nil
}

func HashClientSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
