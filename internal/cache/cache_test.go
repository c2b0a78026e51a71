package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "recipes")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "recipes", `[]`))
	got, err := c.Get(ctx, "recipes")
	require.NoError(t, err)
	assert.Equal(t, `[]`, got)

	require.NoError(t, c.MultiSet(ctx, []Entry{
		{Key: "extractionsMonth", Value: "2026-10"},
		{Key: "extractionsCount", Value: "2"},
		{Key: "recipes", Value: `[{"id":"1"}]`},
	}))
	for key, want := range map[string]string{
		"extractionsMonth": "2026-10",
		"extractionsCount": "2",
		"recipes":          `[{"id":"1"}]`,
	} {
		got, err := c.Get(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}
}

func TestInMemoryCache(t *testing.T) {
	exerciseCache(t, NewInMemoryCache())
}

func TestFileCache(t *testing.T) {
	dir := t.TempDir()
	exerciseCache(t, NewFileCache(dir))

	// no temp files survive a successful MultiSet
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, '.', e.Name()[0], "leftover temp file %s", e.Name())
	}
}

func TestFileCacheNestedKey(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir)
	require.NoError(t, c.Set(context.Background(), "users/abc", "x"))
	data, err := os.ReadFile(filepath.Join(dir, "users", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(c) })
	exerciseCache(t, c)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c, err := NewRedisCache(context.Background(), addr, "cookflow-test:"+t.Name()+":")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(c) })
	exerciseCache(t, c)
}
