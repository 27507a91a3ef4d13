package blob

import (
	"context"
	"io"
)

// BlobStore is where archived journal history lands once pruned from the
// primary store.
type BlobStore interface {
	// Put uploads content under key.
	Put(ctx context.Context, key string, reader io.Reader) error

	// Get retrieves content by key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a blob.
	Delete(ctx context.Context, key string) error
}
