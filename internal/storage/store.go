// Package storage provides the content store for delivery packages: durable
// uploads plus time-limited signed access URLs.
package storage

import (
	"context"
	"time"
)

// ObjectStore is the upload and signed-URL surface used by the packager.
type ObjectStore interface {
	// Upload stores data under path and returns the stored path.
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	// SignedURL returns a time-limited access URL for a stored path.
	SignedURL(ctx context.Context, storedPath string, ttl time.Duration) (string, error)
}
