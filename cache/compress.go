package cache

import (
	"context"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Compressed stores the entries of an underlying cache as LZ4 frames.
type Compressed struct {
	cache Cache
}

var _ Cache = (*Compressed)(nil)

func NewCompressed(c Cache) *Compressed {
	return &Compressed{cache: c}
}

func (c *Compressed) IsCached(ctx context.Context, key string) (bool, error) {
	return c.cache.IsCached(ctx, key)
}

func (c *Compressed) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &lz4ReadCloser{Reader: lz4.NewReader(r), closer: r}, nil
}

func (c *Compressed) Create(ctx context.Context, key string) (Writer, error) {
	w, err := c.cache.Create(ctx, key)
	if err != nil {
		return nil, err
	}
	return &lz4Writer{Writer: lz4.NewWriter(w), inner: w}, nil
}

func (c *Compressed) WriteFromFile(ctx context.Context, key, path string) error {
	return writeFromFile(ctx, c, key, path)
}

type lz4ReadCloser struct {
	*lz4.Reader
	closer io.Closer
}

func (r *lz4ReadCloser) Close() error {
	return r.closer.Close()
}

type lz4Writer struct {
	*lz4.Writer
	inner Writer
}

func (w *lz4Writer) Flush() error {
	if err := w.Writer.Flush(); err != nil {
		return err
	}
	return w.inner.Flush()
}

func (w *lz4Writer) Complete() error {
	if err := w.Writer.Close(); err != nil {
		return err
	}
	return w.inner.Complete()
}

func (w *lz4Writer) Close() error {
	return w.inner.Close()
}
