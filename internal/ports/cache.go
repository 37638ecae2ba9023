package ports

import (
	"context"
	"time"
)

// Cache defines a generic key-value capability for usecases.
// A ttl of zero keeps the value until it is deleted or overwritten.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
