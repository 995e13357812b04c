// Package cache stores serialized query results under their cache keys.
//
// An entry is written through a Writer and becomes visible only when
// Complete succeeds.  Closing a Writer that was not completed discards
// what was written, so a query that fails midway never leaves a partial
// entry behind.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrNotFound = errors.New("cache entry not found")

type Cache interface {
	IsCached(ctx context.Context, key string) (bool, error)
	// Get returns ErrNotFound when key has no complete entry.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Create(ctx context.Context, key string) (Writer, error)
	WriteFromFile(ctx context.Context, key, path string) error
}

type Writer interface {
	io.Writer
	Flush() error
	// Complete publishes the entry.  The Writer must still be closed.
	Complete() error
	Close() error
}

// writeFromFile copies the file at path into a new entry of c.
func writeFromFile(ctx context.Context, c Cache, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := c.Create(ctx, key)
	if err != nil {
		return err
	}
	defer w.Close()
	if _, err := io.Copy(w, f); err != nil {
		return err
	}
	return w.Complete()
}

// bufferWriter collects an entry in memory and hands it to commit on
// Complete.
type bufferWriter struct {
	buf    bytes.Buffer
	max    int64
	commit func([]byte) error
	done   bool
	closed bool
}

func newBufferWriter(max int64, commit func([]byte) error) *bufferWriter {
	return &bufferWriter{max: max, commit: commit}
}

func (b *bufferWriter) Write(p []byte) (int, error) {
	if b.done || b.closed {
		return 0, errors.New("write to finished cache entry")
	}
	if b.max > 0 && int64(b.buf.Len()+len(p)) > b.max {
		return 0, &TooLargeError{Limit: b.max}
	}
	return b.buf.Write(p)
}

func (*bufferWriter) Flush() error { return nil }

func (b *bufferWriter) Complete() error {
	if b.closed {
		return errors.New("complete of closed cache entry")
	}
	if b.done {
		return nil
	}
	b.done = true
	return b.commit(b.buf.Bytes())
}

func (b *bufferWriter) Close() error {
	b.closed = true
	b.buf = bytes.Buffer{}
	return nil
}

// TooLargeError is returned by a Writer whose entry outgrows the size
// limit of its cache.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("cache entry exceeds %d bytes", e.Limit)
}

// Nop is a cache that holds nothing.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) IsCached(context.Context, string) (bool, error) { return false, nil }

func (Nop) Get(context.Context, string) (io.ReadCloser, error) { return nil, ErrNotFound }

func (Nop) Create(context.Context, string) (Writer, error) {
	return newBufferWriter(0, func([]byte) error { return nil }), nil
}

func (Nop) WriteFromFile(context.Context, string, string) error { return nil }
