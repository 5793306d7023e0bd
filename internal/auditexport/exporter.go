// Package auditexport ships audit events out of the primary store: NDJSON
// over a writer for streaming export, and a MinIO archiver for durable
// batched snapshots.
package auditexport

import (
	"context"

	"github.com/taskfolio/taskfolio-go/internal/domain"
)

// Exporter sends audit events to external systems.
type Exporter interface {
	Export(ctx context.Context, event domain.AuditEvent) error
}

// NoopExporter is a stub exporter for append-only pipelines.
type NoopExporter struct{}

func (NoopExporter) Export(ctx context.Context, event domain.AuditEvent) error {
	return nil
}
