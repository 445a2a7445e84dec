package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/picgallery/internal/config"
	"github.com/timmy/picgallery/internal/domain"
	"github.com/timmy/picgallery/internal/pager"
	"github.com/timmy/picgallery/internal/repository"
	"github.com/timmy/picgallery/internal/storage"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type mediaRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *mediaRecorder) MediaObserved(kind string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "err"
	}
	r.calls = append(r.calls, kind+":"+outcome)
}

// presigningStorage adds presigned URLs to local storage.
type presigningStorage struct {
	*storage.LocalStorage
}

func (p presigningStorage) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://signed.example.com/" + key + "?ttl=" + ttl.String(), nil
}

type mediaFixture struct {
	svc      *MediaService
	store    *storage.LocalStorage
	repo     *repository.SavedImageRepository
	observer *mediaRecorder
	server   *httptest.Server
}

func newMediaFixture(t *testing.T, wrap func(*storage.LocalStorage) storage.ObjectStorage) *mediaFixture {
	t.Helper()
	f := &mediaFixture{observer: &mediaRecorder{}}

	body := pngBytes(t, 3, 2)
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/id/1/3/2", "/id/2/3/2":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		case "/text":
			_, _ = w.Write([]byte("hello"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)

	var err error
	f.store, err = storage.NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "media.db"),
		MaxOpenConns: 1,
		AutoMigrate:  true,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	f.repo = repository.NewSavedImageRepository(db)

	var objectStorage storage.ObjectStorage = f.store
	if wrap != nil {
		objectStorage = wrap(f.store)
	}
	f.svc = NewMediaService(objectStorage, f.repo, f.observer, nil, &MediaConfig{
		DownloadTimeout: 5 * time.Second,
		MaxBytes:        1 << 20,
		ShareTTL:        time.Hour,
	})
	return f
}

func (f *mediaFixture) image(id, path string) domain.ImageRecord {
	return domain.ImageRecord{ID: id, Author: "Alejandro Escamilla", DownloadURL: f.server.URL + path}
}

func TestMediaService_Save(t *testing.T) {
	f := newMediaFixture(t, nil)
	ctx := context.Background()

	saved, err := f.svc.Save(ctx, f.image("1", "/id/1/3/2"))
	require.NoError(t, err)

	assert.Equal(t, "1", saved.ImageID)
	assert.Equal(t, domain.SavedKindSave, saved.Kind)
	assert.Equal(t, "png", saved.Format)
	assert.Equal(t, 3, saved.Width)
	assert.Equal(t, 2, saved.Height)
	assert.Len(t, saved.MD5Hash, 32)
	assert.Equal(t, "saved/"+saved.MD5Hash[:2]+"/"+saved.MD5Hash+".png", saved.StorageKey)
	assert.True(t, strings.HasPrefix(saved.URL, "file://"))

	exists, err := f.store.Exists(ctx, saved.StorageKey)
	require.NoError(t, err)
	assert.True(t, exists)

	// same bytes under another image share the stored object
	other, err := f.svc.Save(ctx, f.image("2", "/id/2/3/2"))
	require.NoError(t, err)
	assert.Equal(t, saved.StorageKey, other.StorageKey)

	again, err := f.svc.Save(ctx, f.image("1", "/id/1/3/2"))
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)

	images, total, err := f.svc.ListSaved(ctx, domain.SavedKindSave, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, images, 2)

	assert.Equal(t, []string{"save:ok", "save:ok", "save:ok"}, f.observer.calls)
}

func TestMediaService_ShareLocal(t *testing.T) {
	f := newMediaFixture(t, nil)

	link, err := f.svc.Share(context.Background(), f.image("1", "/id/1/3/2"))
	require.NoError(t, err)

	assert.Nil(t, link.ExpiresAt)
	assert.True(t, strings.HasSuffix(link.URL, "/shared/1.png"))
	require.NotNil(t, link.Image)
	assert.Equal(t, domain.SavedKindShare, link.Image.Kind)
	assert.Equal(t, "shared/1.png", link.Image.StorageKey)
}

func TestMediaService_SharePresigned(t *testing.T) {
	f := newMediaFixture(t, func(l *storage.LocalStorage) storage.ObjectStorage {
		return presigningStorage{LocalStorage: l}
	})
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	link, err := f.svc.Share(context.Background(), f.image("a/b", "/id/1/3/2"))
	require.NoError(t, err)

	assert.Equal(t, "https://signed.example.com/shared/a_b.png?ttl=1h0m0s", link.URL)
	require.NotNil(t, link.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour), *link.ExpiresAt)
	assert.Equal(t, link.URL, link.Image.URL)
}

func TestMediaService_Failures(t *testing.T) {
	f := newMediaFixture(t, nil)
	ctx := context.Background()

	t.Run("status", func(t *testing.T) {
		_, err := f.svc.Save(ctx, f.image("9", "/missing"))
		var fe *pager.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, pager.KindStatus, fe.Kind)
		assert.Equal(t, "Not Found: The requested resource could not be found.", fe.Error())
	})

	t.Run("transport", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := f.svc.Share(ctx, domain.ImageRecord{ID: "9", DownloadURL: url + "/x"})
		var fe *pager.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, pager.KindTransport, fe.Kind)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := f.svc.Save(ctx, f.image("9", "/text"))
		assert.ErrorIs(t, err, ErrNotAnImage)
	})

	t.Run("no url", func(t *testing.T) {
		_, err := f.svc.Save(ctx, domain.ImageRecord{ID: "9"})
		assert.ErrorIs(t, err, ErrNoDownloadURL)
	})

	count, err := f.repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, []string{"save:err", "share:err", "save:err", "save:err"}, f.observer.calls)
}

func TestSafeKeyPart(t *testing.T) {
	assert.Equal(t, "10", safeKeyPart("10"))
	assert.Equal(t, "a_b_c", safeKeyPart("a/b.c"))
	assert.Equal(t, "___", safeKeyPart("../"))
}
