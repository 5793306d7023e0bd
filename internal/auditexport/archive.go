package auditexport

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/taskfolio/taskfolio-go/internal/domain"
)

// ObjectPutter is the slice of *minio.Client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader *bytes.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// minioPutter adapts *minio.Client's io.Reader-based PutObject.
type minioPutter struct {
	client *minio.Client
}

func (p minioPutter) PutObject(ctx context.Context, bucketName, objectName string, reader *bytes.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return p.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

// ArchiveExporter batches audit events and writes them to object storage as
// NDJSON files keyed by date. Export buffers; a full batch triggers an upload.
type ArchiveExporter struct {
	putter    ObjectPutter
	bucket    string
	batchSize int
	now       func() time.Time

	mu  sync.Mutex
	buf bytes.Buffer
	n   int
}

func NewArchiveExporter(client *minio.Client, bucket string, batchSize int) *ArchiveExporter {
	if client == nil || bucket == "" {
		return nil
	}
	return newArchiveExporter(minioPutter{client: client}, bucket, batchSize)
}

func newArchiveExporter(putter ObjectPutter, bucket string, batchSize int) *ArchiveExporter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ArchiveExporter{
		putter:    putter,
		bucket:    bucket,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (e *ArchiveExporter) Export(ctx context.Context, event domain.AuditEvent) error {
	if e == nil || e.putter == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	enc := NewNDJSONExporter(&e.buf)
	if err := enc.Export(ctx, event); err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	e.n++
	if e.n < e.batchSize {
		return nil
	}
	return e.flushLocked(ctx)
}

// Flush uploads any buffered events. Call on shutdown.
func (e *ArchiveExporter) Flush(ctx context.Context) error {
	if e == nil || e.putter == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked(ctx)
}

func (e *ArchiveExporter) flushLocked(ctx context.Context) error {
	if e.n == 0 {
		return nil
	}
	key := e.objectKey()
	data := make([]byte, e.buf.Len())
	copy(data, e.buf.Bytes())

	_, err := e.putter.PutObject(ctx, e.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return fmt.Errorf("archive audit batch: %w", err)
	}
	e.buf.Reset()
	e.n = 0
	return nil
}

func (e *ArchiveExporter) objectKey() string {
	now := e.now().UTC()
	return fmt.Sprintf("audit/%04d/%02d/%02d/%s.ndjson", now.Year(), now.Month(), now.Day(), uuid.NewString())
}
