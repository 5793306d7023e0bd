package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskfolio/taskfolio-go/internal/domain"
	"github.com/taskfolio/taskfolio-go/internal/repo"
)

const uniqueViolation = "23505"

type ClientStore struct {
	db DB
}

func NewClientStore(db DB) *ClientStore {
	if db == nil {
		return nil
	}
	return &ClientStore{db: db}
}

func (s *ClientStore) Create(ctx context.Context, client domain.APIClient) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("client store not initialized")
	}
	if err := client.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO api_clients (
			client_id,
			name,
			secret_sha256,
			created_at
		) VALUES ($1,$2,$3,$4)`,
		strings.TrimSpace(client.ID),
		strings.TrimSpace(client.Name),
		strings.TrimSpace(client.SecretSHA256),
		normalizeTime(client.CreatedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repo.ErrAlreadyExists
		}
		return fmt.Errorf("insert api client: %w", err)
	}
	return nil
}

func (s *ClientStore) Get(ctx context.Context, id string) (domain.APIClient, error) {
	if s == nil || s.db == nil {
		return domain.APIClient{}, fmt.Errorf("client store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.APIClient{}, fmt.Errorf("client id is required")
	}
	var client domain.APIClient
	row := s.db.QueryRowContext(
		ctx,
		`SELECT client_id, name, secret_sha256, created_at
		 FROM api_clients
		 WHERE client_id = $1`,
		id,
	)
	if err := row.Scan(&client.ID, &client.Name, &client.SecretSHA256, &client.CreatedAt); err != nil {
		return domain.APIClient{}, handleNotFound(err)
	}
	return client, nil
}
