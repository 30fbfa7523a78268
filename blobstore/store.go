package blobstore

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// Store is a flat namespace of immutable blobs.
type Store interface {
	// Put writes a blob, replacing any previous blob of that name.
	Put(ctx context.Context, name string, data []byte) error
	// Get returns the full contents of a blob.
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Join builds a blob name from a prefix and a base name.
func Join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

// PutAll uploads blobs concurrently. It returns the first error; blobs that
// were already written are left in place.
func PutAll(ctx context.Context, s Store, blobs map[string][]byte) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for name, data := range blobs {
		g.Go(func() error {
			if err := s.Put(ctx, name, data); err != nil {
				return fmt.Errorf("blobstore: put %s: %w", name, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// GetAll downloads blobs concurrently.
func GetAll(ctx context.Context, s Store, names ...string) (map[string][]byte, error) {
	var mu sync.Mutex
	out := make(map[string][]byte, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, name := range names {
		g.Go(func() error {
			data, err := s.Get(ctx, name)
			if err != nil {
				return fmt.Errorf("blobstore: get %s: %w", name, err)
			}
			mu.Lock()
			out[name] = data
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
