package cache

import (
	"context"
	"fmt"
	"hash"
	"io"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// CollisionError reports two different results written under one key.
type CollisionError struct {
	Key string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("CacheCollisionException: key %s was written with two different results", e.Key)
}

// Collision wraps a cache and remembers a digest of every entry written
// through it.  Writing a different result under a key seen before fails
// with a CollisionError instead of completing.  A Collision never reports
// a hit, so every query executes and its result is checked against what
// earlier queries with the same key produced.
type Collision struct {
	Cache

	mu   sync.Mutex
	sums map[string][blake2b.Size256]byte
}

func NewCollision(c Cache) *Collision {
	return &Collision{
		Cache: c,
		sums:  make(map[string][blake2b.Size256]byte),
	}
}

func (c *Collision) IsCached(context.Context, string) (bool, error) {
	return false, nil
}

func (c *Collision) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrNotFound
}

func (c *Collision) Create(ctx context.Context, key string) (Writer, error) {
	w, err := c.Cache.Create(ctx, key)
	if err != nil {
		return nil, err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &collisionWriter{Writer: w, c: c, key: key, hash: h}, nil
}

func (c *Collision) WriteFromFile(ctx context.Context, key, path string) error {
	return writeFromFile(ctx, c, key, path)
}

// Keys returns the number of distinct keys written.
func (c *Collision) Keys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sums)
}

func (c *Collision) check(key string, sum [blake2b.Size256]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.sums[key]; ok && prev != sum {
		return &CollisionError{Key: key}
	}
	c.sums[key] = sum
	return nil
}

type collisionWriter struct {
	Writer
	c    *Collision
	key  string
	hash hash.Hash
}

func (w *collisionWriter) Write(p []byte) (int, error) {
	n, err := w.Writer.Write(p)
	w.hash.Write(p[:n])
	return n, err
}

func (w *collisionWriter) Complete() error {
	var sum [blake2b.Size256]byte
	w.hash.Sum(sum[:0])
	if err := w.c.check(w.key, sum); err != nil {
		return err
	}
	return w.Writer.Complete()
}

// Verify reads the entry under key and checks it against the recorded
// digest, if any.
func (c *Collision) Verify(ctx context.Context, key string) error {
	r, err := c.Cache.Get(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()
	h, err := blake2b.New256(nil)
	if err != nil {
		return err
	}
	if _, err := io.Copy(h, r); err != nil {
		return err
	}
	var sum [blake2b.Size256]byte
	h.Sum(sum[:0])
	return c.check(key, sum)
}

