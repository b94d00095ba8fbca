// Package storage holds post image attachments in object storage. A Backend
// adapts one concrete store (MinIO or Google Cloud Storage); Storage is the
// handle the board service uploads through and the image handler reads from.
package storage

import (
	"context"
	"io"
)

// Backend is implemented once per object store.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage dispatches to a single configured backend.
type Storage struct {
	backend Backend
}

// NewStorage wraps a backend.
func NewStorage(backend Backend) *Storage {
	return &Storage{backend: backend}
}

// EnsureBucket creates the image bucket when it does not exist yet. Called
// once at startup.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put stores an image under key. Size may be -1 when unknown.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens the stored image for streaming to a response.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes a stored image. Used when a post replaces or drops its
// attachment.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the bucket images live in.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
