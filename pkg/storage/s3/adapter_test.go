package s3

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"sealdrive/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 检查本地 MinIO 端口是否开放 (9000)，没开就跳过
func isMinIOAvailable(t *testing.T) bool {
	host := "localhost:9000"
	conn, err := net.DialTimeout("tcp", host, 1*time.Second)
	if err != nil {
		t.Logf("MinIO not reachable at %s. Skipping integration tests.", host)
		return false
	}
	conn.Close()
	return true
}

func TestS3Adapter_Integration(t *testing.T) {
	if !isMinIOAvailable(t) {
		t.Skip("Skipping S3 integration tests (MinIO down)")
	}

	cfg := Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "sealdrive-test-bucket",
		AccessKeyID:     "admin",
		SecretAccessKey: "password",
	}

	ctx := context.Background()
	store, err := NewAdapter(ctx, cfg, nil)
	require.NoError(t, err, "Failed to connect to MinIO")

	prefix := "it-" + time.Now().Format("150405.000000") + "/"
	key := prefix + "objects/QmS3"
	data := []byte("Hello S3 World from SealDrive")

	t.Run("Put", func(t *testing.T) {
		assert.NoError(t, store.Put(ctx, key, data, ""))
	})

	t.Run("Has", func(t *testing.T) {
		exists, err := store.Has(ctx, key)
		assert.NoError(t, err)
		assert.True(t, exists)

		exists, _ = store.Has(ctx, prefix+"objects/missing")
		assert.False(t, exists)
	})

	t.Run("Get", func(t *testing.T) {
		reader, err := store.Get(ctx, key)
		require.NoError(t, err)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		assert.NoError(t, err)
		assert.Equal(t, data, content)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, prefix+"objects/QmS3b", []byte("b"), ""))
		keys, err := store.List(ctx, prefix+"objects/")
		require.NoError(t, err)
		assert.Equal(t, []string{prefix + "objects/QmS3", prefix + "objects/QmS3b"}, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key))
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, key), storage.ErrNotFound)
	})
}
