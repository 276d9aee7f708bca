// Package blobstore abstracts where built artifacts are kept.
//
// The engine persists its matrix and index as opaque blobs. A Store must
// make Put atomic: a reader either sees the previous complete blob or the
// new complete blob, never a partial write. Local stores achieve this with a
// temp-file-and-rename commit; object stores get it from the backend's
// atomic object semantics.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for reading and atomically writing artifact blobs.
type Store interface {
	// Open opens a blob for reading. The caller must close the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}
