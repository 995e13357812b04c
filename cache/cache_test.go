package cache_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brimdata/sift/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "0123456789abcdef"

func put(t *testing.T, c cache.Cache, key, data string) error {
	w, err := c.Create(context.Background(), key)
	require.NoError(t, err)
	defer w.Close()
	_, err = io.WriteString(w, data)
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	return w.Complete()
}

func get(t *testing.T, c cache.Cache, key string) string {
	r, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func exercise(t *testing.T, c cache.Cache) {
	ctx := context.Background()
	ok, err := c.IsCached(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = c.Get(ctx, key)
	assert.True(t, errors.Is(err, cache.ErrNotFound))

	// An entry closed before Complete is never visible.
	w, err := c.Create(ctx, key)
	require.NoError(t, err)
	_, err = io.WriteString(w, "partial")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	ok, err = c.IsCached(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, put(t, c, key, "a\t1\n"))
	ok, err = c.IsCached(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a\t1\n", get(t, c, key))

	path := filepath.Join(t.TempDir(), "result.tsv")
	require.NoError(t, os.WriteFile(path, []byte("b\t2\n"), 0644))
	require.NoError(t, c.WriteFromFile(ctx, "fedcba9876543210", path))
	assert.Equal(t, "b\t2\n", get(t, c, "fedcba9876543210"))
}

func TestMemory(t *testing.T) {
	c, err := cache.NewMemory(16, 0)
	require.NoError(t, err)
	exercise(t, c)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryEntryLimit(t *testing.T) {
	c, err := cache.NewMemory(16, 4)
	require.NoError(t, err)
	w, err := c.Create(context.Background(), key)
	require.NoError(t, err)
	defer w.Close()
	_, err = io.WriteString(w, "too long")
	var tooLarge *cache.TooLargeError
	assert.True(t, errors.As(err, &tooLarge))
}

func TestDir(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.NewDir(dir)
	require.NoError(t, err)
	exercise(t, c)
	_, err = os.Stat(filepath.Join(dir, "01", key))
	assert.NoError(t, err)
	entries, err := os.ReadDir(filepath.Join(dir, "01"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not remain")
	_, err = c.Get(context.Background(), "../x")
	assert.Error(t, err)
}

func TestCompressed(t *testing.T) {
	inner, err := cache.NewMemory(16, 0)
	require.NoError(t, err)
	c := cache.NewCompressed(inner)
	exercise(t, c)
	require.NoError(t, put(t, c, key, strings.Repeat("row\t1\n", 1000)))
	raw := get(t, inner, key)
	assert.Less(t, len(raw), 6000)
	assert.Equal(t, strings.Repeat("row\t1\n", 1000), get(t, c, key))
}

func TestCollision(t *testing.T) {
	ctx := context.Background()
	inner, err := cache.NewMemory(16, 0)
	require.NoError(t, err)
	c := cache.NewCollision(inner)
	require.NoError(t, put(t, c, key, "a\t1\n"))
	ok, err := c.IsCached(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrNotFound)
	assert.Equal(t, "a\t1\n", get(t, inner, key))

	require.NoError(t, put(t, c, key, "a\t1\n"))
	err = put(t, c, key, "a\t2\n")
	var collision *cache.CollisionError
	require.True(t, errors.As(err, &collision))
	assert.Equal(t, key, collision.Key)
	assert.Contains(t, err.Error(), "CacheCollisionException")
	assert.Equal(t, "a\t1\n", get(t, inner, key))
	assert.NoError(t, c.Verify(ctx, key))

	path := filepath.Join(t.TempDir(), "result.tsv")
	require.NoError(t, os.WriteFile(path, []byte("b\t2\n"), 0644))
	require.NoError(t, c.WriteFromFile(ctx, "fedcba9876543210", path))
	assert.Equal(t, 2, c.Keys())
}

func TestNop(t *testing.T) {
	c := cache.Nop{}
	require.NoError(t, put(t, c, key, "x"))
	_, err := c.Get(context.Background(), key)
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	c, err := cache.Open(ctx, cache.Config{})
	require.NoError(t, err)
	assert.IsType(t, cache.Nop{}, c)
	c, err = cache.Open(ctx, cache.Config{Type: "memory", MaxEntrySize: "1KB", Compress: true, CollisionCheck: true})
	require.NoError(t, err)
	assert.IsType(t, &cache.Collision{}, c)
	c, err = cache.Open(ctx, cache.Config{Type: "none", CollisionCheck: true})
	require.NoError(t, err)
	require.IsType(t, &cache.Collision{}, c)
	require.NoError(t, put(t, c, key, "a\t1\n"))
	var collision *cache.CollisionError
	assert.ErrorAs(t, put(t, c, key, "a\t2\n"), &collision)
	_, err = cache.Open(ctx, cache.Config{Type: "memory", MaxEntrySize: "lots"})
	assert.Error(t, err)
	_, err = cache.Open(ctx, cache.Config{Type: "tape"})
	assert.EqualError(t, err, `unknown cache type "tape"`)
}
