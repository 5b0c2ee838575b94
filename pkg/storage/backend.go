package storage

import (
	"context"
	"os"
)

// ErrNotFound is returned when a key has no stored artifact.
// It aliases os.ErrNotExist so file-system misses match errors.Is checks.
var ErrNotFound = os.ErrNotExist

// Backend stores opaque blobs under string keys. Put replaces whole values.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
