package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	key := "saved/ab/abcdef.jpg"
	exists, err := st.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	data := []byte("not really a jpeg")
	require.NoError(t, st.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "image/jpeg"))

	exists, err = st.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := st.Download(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.True(t, strings.HasPrefix(st.GetURL(key), "file://"))
	assert.True(t, strings.HasSuffix(st.GetURL(key), "/saved/ab/abcdef.jpg"))

	require.NoError(t, st.Delete(ctx, key))
	require.NoError(t, st.Delete(ctx, key))
	_, err = st.Download(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_PublicURL(t *testing.T) {
	st, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/files/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/shared/10.jpg", st.GetURL("shared/10.jpg"))
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	st, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	for _, key := range []string{"../outside", "a/../../outside", ".", ""} {
		t.Run(key, func(t *testing.T) {
			err := st.Upload(context.Background(), key, strings.NewReader("x"), 1, "text/plain")
			assert.Error(t, err)
		})
	}
}

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{"", StorageTypeLocal},
		{"https://abc.r2.cloudflarestorage.com", StorageTypeR2},
		{"s3.eu-west-1.amazonaws.com", StorageTypeS3},
		{"localhost:9000", StorageTypeS3Compatible},
	}
	for _, tc := range tests {
		t.Run(tc.endpoint, func(t *testing.T) {
			assert.Equal(t, tc.want, detectStorageType(tc.endpoint))
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "localhost:9000", normalizeEndpoint("http://localhost:9000/"))
	assert.Equal(t, "abc.r2.cloudflarestorage.com", normalizeEndpoint("https://abc.r2.cloudflarestorage.com/bucket"))
	assert.Equal(t, "minio:9000", normalizeEndpoint("minio:9000"))
}

func TestNewStorage(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		st, err := NewStorage(&Config{Type: StorageTypeLocal, LocalDir: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, st)
	})

	t.Run("s3 compatible", func(t *testing.T) {
		st, err := NewStorage(&Config{
			Endpoint:  "http://localhost:9000",
			AccessKey: "access",
			SecretKey: "secret",
			Bucket:    "gallery",
		})
		require.NoError(t, err)
		s3st, ok := st.(*S3Storage)
		require.True(t, ok)
		assert.Equal(t, StorageTypeS3Compatible, s3st.storeType)
		assert.Equal(t, "localhost:9000/gallery/saved/a.jpg", s3st.GetURL("saved/a.jpg"))
	})

	t.Run("missing bucket", func(t *testing.T) {
		_, err := NewStorage(&Config{Type: StorageTypeS3})
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewStorage(&Config{Type: "ftp"})
		assert.Error(t, err)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := NewStorage(nil)
		assert.Error(t, err)
	})
}

func TestS3Storage_PresignGet(t *testing.T) {
	st, err := NewS3Storage(&Config{
		Type:      StorageTypeS3Compatible,
		Endpoint:  "localhost:9000",
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "gallery",
		PublicURL: "https://cdn.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/shared/10.jpg", st.GetURL("shared/10.jpg"))

	raw, err := st.PresignGet(context.Background(), "shared/10.jpg", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/gallery/shared/10.jpg", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

type ensuringStorage struct {
	ObjectStorage
	calls int
}

func (e *ensuringStorage) EnsureBucket(context.Context) error {
	e.calls++
	return nil
}

func TestPrepare(t *testing.T) {
	local, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	assert.NoError(t, Prepare(context.Background(), local))

	e := &ensuringStorage{ObjectStorage: local}
	require.NoError(t, Prepare(context.Background(), e))
	assert.Equal(t, 1, e.calls)
}
