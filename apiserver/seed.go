package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/repo"
)

type seedFile struct {
	Clients []seedClient `yaml:"clients"`
}

type seedClient struct {
	ClientID string `yaml:"client_id"`
	Name     string `yaml:"name"`
	Secret   string `yaml:"secret"`
}

// seedClients bootstraps API clients from a YAML file so deployments can
// provision credentials without calling the admin endpoint. Existing clients
// are left untouched.
func seedClients(ctx context.Context, logger *slog.Logger, path string, clients repo.ClientRepository) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var doc seedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for _, entry := range doc.Clients {
		client := domain.APIClient{
			ID:           strings.TrimSpace(entry.ClientID),
			Name:         strings.TrimSpace(entry.Name),
			SecretSHA256: domain.HashClientSecret(strings.TrimSpace(entry.Secret)),
			CreatedAt:    time.Now().UTC(),
		}
		if err := client.Validate(); err != nil {
			return fmt.Errorf("seed client %q: %w", entry.ClientID, err)
		}
		if err := clients.Create(ctx, client); err != nil {
			if errors.Is(err, repo.ErrAlreadyExists) {
				logger.Info("seed client already present", "client_id", client.ID)
				continue
			}
			return fmt.Errorf("seed client %q: %w", entry.ClientID, err)
		}
		logger.Info("seed client created", "client_id", client.ID, "name", client.Name)
	}
	return nil
}
