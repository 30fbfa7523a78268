package minio

import (
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecgraph/blobstore"
)

// TestStore_Integration requires a running MinIO instance at
// VECGRAPH_MINIO_ENDPOINT (default localhost:9000).
func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	endpoint := os.Getenv("VECGRAPH_MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	bucket := "test-vecgraph"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	require.NoError(t, store.Put(ctx, "idx/graph.hnsw", []byte("hello minio")))

	data, err := store.Get(ctx, "idx/graph.hnsw")
	require.NoError(t, err)
	assert.Equal(t, "hello minio", string(data))

	names, err := store.List(ctx, "idx/")
	require.NoError(t, err)
	assert.Contains(t, names, "idx/graph.hnsw")

	require.NoError(t, store.Delete(ctx, "idx/graph.hnsw"))
	_, err = store.Get(ctx, "idx/graph.hnsw")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "bucket", "root/")
	assert.Equal(t, "root/a/b", s.key("a/b"))

	s = NewStore(nil, "bucket", "")
	assert.Equal(t, "a", s.key("a"))
}
