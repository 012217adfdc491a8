package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrBadKey   = errors.New("invalid media key")
	ErrNotFound = errors.New("media not found")
)

// BlobStore holds question media (images, justification images).
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	URL(key string) string // path the host serves the blob under
}
