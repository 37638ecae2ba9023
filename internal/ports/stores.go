package ports

import (
	"context"
	"io"
	"time"

	"ppesuite/internal/domain/compliance"
)

// BlobStore holds uploaded images, directory photos and pipeline sidecars.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Get returns compliance.ErrBlobNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// OutcomeReader is the read side of the outcome table, the only part the
// correlator may touch.
type OutcomeReader interface {
	// FindByImageKey returns every record whose LastImageKey equals imageKey.
	FindByImageKey(ctx context.Context, imageKey string) ([]compliance.OutcomeRecord, error)
	Get(ctx context.Context, employeeID string) (compliance.OutcomeRecord, bool, error)
	List(ctx context.Context) ([]compliance.OutcomeRecord, error)
}

// OutcomeStore adds the ledger edits made from the violations screen.
type OutcomeStore interface {
	OutcomeReader
	SetViolationCount(ctx context.Context, employeeID string, count int) error
	Upsert(ctx context.Context, record compliance.OutcomeRecord) error
}

// ProfileReader is the read side of the employee directory.
type ProfileReader interface {
	Get(ctx context.Context, employeeID string) (compliance.ProfileRecord, bool, error)
	List(ctx context.Context) ([]compliance.ProfileRecord, error)
}

type ProfileStore interface {
	ProfileReader
	Put(ctx context.Context, profile compliance.ProfileRecord) error
}
