package storage

import (
	"context"
	"io"
)

// BlobStore persists uploaded binary content and returns a resolvable URL
// for it. Exactly one backend is active per process, selected by
// configuration.
type BlobStore interface {
	Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error)
}
