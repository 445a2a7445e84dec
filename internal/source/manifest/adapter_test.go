package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/picgallery/internal/domain"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFetchPage_PagesThroughFile(t *testing.T) {
	path := writeManifest(t, `{"id":"a","author":"x","width":10,"height":20}

{"id":"b","author":"y"}
{"author":"no id"}
{"id":"c","author":"z"}
`)
	a := NewAdapter(path, "local")
	ctx := context.Background()

	page1, err := a.FetchPage(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "a", page1[0].ID)
	assert.Equal(t, 20, page1[0].Height)
	assert.Equal(t, "b", page1[1].ID)

	page2, err := a.FetchPage(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "c", page2[0].ID)

	page3, err := a.FetchPage(ctx, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, page3)

	n, err := a.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "manifest:local", a.GetSourceID())
}

func TestFetchPage_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewAdapter(filepath.Join(t.TempDir(), "absent.jsonl"), "x").FetchPage(context.Background(), 1, 5)
		assert.Error(t, err)
	})

	t.Run("bad line", func(t *testing.T) {
		path := writeManifest(t, "{\"id\":\"a\"}\nnot json\n")
		_, err := NewAdapter(path, "x").FetchPage(context.Background(), 1, 5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewFromRecords("x", nil).FetchPage(ctx, 1, 5)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewFromRecords_CopiesInput(t *testing.T) {
	records := []domain.ImageRecord{{ID: "1"}, {ID: "2"}}
	a := NewFromRecords("mem", records)
	records[0].ID = "changed"

	page, err := a.FetchPage(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "1", page[0].ID)
}
