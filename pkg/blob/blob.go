// Package blob defines the object-store abstraction backing audio payloads.
//
// The API server streams uploads into a Store under a generated key and hands
// only the key to the worker through the task queue; the worker fetches the
// bytes back out when the job runs. Keys are uniquely generated per job, so
// readers and writers of the same key never race.
//
// Implementations live in subpackages (httpblob, fsblob, mock) and are
// selected at startup via the config registry.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get and Delete when no object exists under the
// requested key.
var ErrNotFound = errors.New("blob: object not found")

// Store is the narrow contract Lexia requires from an object store.
type Store interface {
	// Put stores the bytes read from r under key. contentType is advisory;
	// stores that cannot record it may ignore it.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// Get opens the object stored under key. The caller must close the
	// returned reader. Returns ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object under key. Deleting a missing key returns
	// ErrNotFound.
	Delete(ctx context.Context, key string) error
}

// GenerateKey builds a collision-free storage key for an uploaded file:
//
//	<prefix>/<yyyy>/<mm>/<dd>/<uuid><ext>
//
// The extension is taken from filename (lowercased); a file without an
// extension produces a key without one. Shared by all Store implementations
// so that keys look identical regardless of backing store.
func GenerateKey(filename, prefix string) string {
	ext := strings.ToLower(path.Ext(filename))
	now := time.Now().UTC()
	return path.Join(prefix, now.Format("2006/01/02"), uuid.NewString()+ext)
}
