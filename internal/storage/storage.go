// Package storage defines the Storage interface shared by the object stores that
// hold raw Luma payloads and the merged cleaned-events document.
//
// Backends register themselves with the factory from an init() function in
// their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// Binaries blank-import each backend they want available.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned (wrapped) by Download when the object does not exist.
var ErrNotFound = errors.New("object not found")

// Storage defines the interface for all storage backends.
// Paths are slash-separated keys relative to the backend root.
type Storage interface {
	// Upload stores an object and returns the storage result with path and checksum
	Upload(ctx context.Context, path string, reader io.Reader, size int64) (*UploadResult, error)

	// Download retrieves an object. Missing objects yield an error wrapping ErrNotFound.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error

	// Exists checks if an object exists at the specified path
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the keys beginning with prefix, sorted lexically.
	List(ctx context.Context, prefix string) ([]string, error)
}

// UploadResult contains information about an uploaded object
type UploadResult struct {
	// Path is the storage path where the object was stored
	Path string

	// Size is the object size in bytes
	Size int64

	// Checksum is the SHA256 hash of the object contents
	Checksum string
}

// ReadAll downloads path and returns its full contents.
func ReadAll(ctx context.Context, s Storage, path string) ([]byte, error) {
	rc, err := s.Download(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteBytes uploads data to path.
func WriteBytes(ctx context.Context, s Storage, path string, data []byte) (*UploadResult, error) {
	return s.Upload(ctx, path, bytes.NewReader(data), int64(len(data)))
}
