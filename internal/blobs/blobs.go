// Package blobs stores serialized results under string keys, either in a
// local directory or in a Google Cloud Storage bucket.
package blobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey is returned for empty keys or keys escaping the store.
var ErrInvalidKey = errors.New("invalid blob key")

// Store persists blobs.
type Store interface {
	// Put stores data under key, replacing an existing blob.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the blob stored under key. If no such blob exists, the
	// error satisfies errors.Is(err, os.ErrNotExist).
	Get(ctx context.Context, key string) ([]byte, error)
}

// Open returns the store for a location: gs://bucket[/prefix] selects GCS,
// anything else is a local directory.
func Open(location string) (Store, error) {
	if rest, ok := strings.CutPrefix(location, "gs://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("no bucket in %q", location)
		}
		return &GCSStore{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
	}
	if location == "" {
		return nil, errors.New("empty blob store location")
	}
	return &LocalStore{Dir: location}, nil
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
