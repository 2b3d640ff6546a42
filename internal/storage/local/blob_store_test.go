package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/series-collector/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("CreatesMissingDir", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "output")
		store, err := local.New(local.Config{Dir: dir})
		require.NoError(t, err)
		assert.NotNil(t, store)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingDir", func(t *testing.T) {
		t.Parallel()
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("PathIsAFile", func(t *testing.T) {
		t.Parallel()
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{Dir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{Dir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("WritesAndReplaces", func(t *testing.T) {
		path, err := store.PutObject(ctx, "Alpha Saga.html", "text/html", strings.NewReader("first"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "Alpha Saga.html"), path)

		path, err = store.PutObject(ctx, "Alpha Saga.html", "text/html", strings.NewReader("second"))
		require.NoError(t, err)
		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "staging files are cleaned up")
	})

	t.Run("NestedName", func(t *testing.T) {
		path, err := store.PutObject(ctx, "runs/one/report.json", "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "runs", "one", "report.json"), path)
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := store.PutObject(ctx, " ", "text/html", strings.NewReader("x"))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(ctx, "../escape.html", "text/html", strings.NewReader("x"))
		assert.Error(t, err)
	})
}
