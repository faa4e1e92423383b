package blobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		location string
		want     Store
	}{
		{"gs://results", &GCSStore{Bucket: "results"}},
		{"gs://results/runs/1/", &GCSStore{Bucket: "results", Prefix: "runs/1"}},
		{"/tmp/out", &LocalStore{Dir: "/tmp/out"}},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, err := Open(tt.location)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Open("gs://")
	assert.Error(t, err)
	_, err = Open("")
	assert.Error(t, err)
}

func TestGCSURL(t *testing.T) {
	assert.Equal(t, "gs://b/k.btns", (&GCSStore{Bucket: "b"}).URL("k.btns"))
	assert.Equal(t, "gs://b/p/q/k.btns", (&GCSStore{Bucket: "b", Prefix: "p/q"}).URL("k.btns"))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := &LocalStore{Dir: dir}

	require.NoError(t, s.Put(ctx, "job/C.btns", []byte("first")))
	require.NoError(t, s.Put(ctx, "job/C.btns", []byte("second")))

	data, err := s.Get(ctx, "job/C.btns")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	entries, err := os.ReadDir(filepath.Join(dir, "job"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLocalStoreMissing(t *testing.T) {
	s := &LocalStore{Dir: t.TempDir()}
	_, err := s.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInvalidKeys(t *testing.T) {
	s := &LocalStore{Dir: t.TempDir()}
	for _, key := range []string{"", "/abs", "a/../b", "a//b", "./a"} {
		assert.ErrorIs(t, s.Put(context.Background(), key, nil), ErrInvalidKey, key)
		_, err := s.Get(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}
