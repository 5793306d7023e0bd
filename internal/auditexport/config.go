package auditexport

import (
	"fmt"
	"strings"

	"github.com/taskfolio/taskfolio-go/internal/platform/env"
)

// Config controls audit export format and destination.
type Config struct {
	Format      string
	Destination string
	BatchSize   int
}

func ConfigFromEnv() (Config, error) {
	batchSize, err := env.Int("AUDIT_EXPORT_BATCH_SIZE", 100)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Format:      env.String("AUDIT_EXPORT_FORMAT", "ndjson"),
		Destination: env.String("AUDIT_EXPORT_DESTINATION", "none"),
		BatchSize:   batchSize,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	format := strings.ToLower(strings.TrimSpace(c.Format))
	destination := strings.ToLower(strings.TrimSpace(c.Destination))
	if format == "" {
		format = "ndjson"
	}
	if destination == "" {
		destination = "none"
	}
	if format != "ndjson" {
		return fmt.Errorf("unsupported audit export format: %s", format)
	}
	switch destination {
	case "none", "archive":
	default:
		return fmt.Errorf("unsupported audit export destination: %s", destination)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("AUDIT_EXPORT_BATCH_SIZE must be >= 1")
	}
	return nil
}
