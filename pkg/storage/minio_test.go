package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live MinIO when NEUROCOST_MINIO_ENDPOINT is set, e.g.
// NEUROCOST_MINIO_ENDPOINT=localhost:9000 NEUROCOST_MINIO_BUCKET=models.
func TestMinioBackendLive(t *testing.T) {
	endpoint := os.Getenv("NEUROCOST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("NEUROCOST_MINIO_ENDPOINT not set")
	}
	bucket := os.Getenv("NEUROCOST_MINIO_BUCKET")
	if bucket == "" {
		bucket = "neurocost-test"
	}
	ctx := context.Background()

	client, err := DialMinio(endpoint, os.Getenv("MINIO_ACCESS_KEY"), os.Getenv("MINIO_SECRET_KEY"), false)
	require.NoError(t, err)
	b := NewMinioBackend(client, bucket, "test")

	require.NoError(t, b.Delete(ctx, "lcm"))
	ok, err := b.Exists(ctx, "lcm")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.Get(ctx, "lcm")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Put(ctx, "lcm", []byte("payload")))
	got, err := b.Get(ctx, "lcm")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}
