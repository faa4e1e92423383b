package blobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"k8s.io/klog/v2"
)

// GCSStore keeps blobs as objects in a Google Cloud Storage bucket, below an
// optional prefix. Credentials come from the environment.
type GCSStore struct {
	Bucket string
	Prefix string
}

var _ Store = (*GCSStore)(nil)

func (s *GCSStore) objectKey(key string) string {
	if s.Prefix == "" {
		return key
	}
	return path.Join(s.Prefix, key)
}

// URL returns the gs:// URL of key.
func (s *GCSStore) URL(key string) string {
	return "gs://" + s.Bucket + "/" + s.objectKey(key)
}

// Put implements Store.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	log := klog.FromContext(ctx)
	gcsURL := s.URL(key)

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating GCS storage client: %w", err)
	}
	defer client.Close()

	log.Info("uploading blob to GCS", "destination", gcsURL, "bytes", len(data))

	startedAt := time.Now()
	w := client.Bucket(s.Bucket).Object(s.objectKey(key)).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return fmt.Errorf("uploading to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing GCS writer: %w", err)
	}

	log.Info("uploaded blob to GCS", "url", gcsURL, "duration", time.Since(startedAt))
	return nil
}

// Get implements Store.
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	log := klog.FromContext(ctx)
	gcsURL := s.URL(key)

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}
	defer client.Close()

	log.Info("downloading blob from GCS", "source", gcsURL)

	startedAt := time.Now()
	r, err := client.Bucket(s.Bucket).Object(s.objectKey(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("opening object %q: %w: %w", gcsURL, os.ErrNotExist, err)
		}
		return nil, fmt.Errorf("opening object from GCS %q: %w", gcsURL, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("downloading from GCS: %w", err)
	}

	log.Info("downloaded blob from GCS", "source", gcsURL, "bytes", len(data), "duration", time.Since(startedAt))
	return data, nil
}
