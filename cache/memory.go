package cache

import (
	"bytes"
	"context"
	"io"
	"slices"

	"github.com/hashicorp/golang-lru/arc/v2"
)

// Memory keeps entries in an adaptive replacement cache bounded by entry
// count.  Entries larger than the entry size limit are refused.
type Memory struct {
	arc          *arc.ARCCache[string, []byte]
	maxEntrySize int64
}

var _ Cache = (*Memory)(nil)

func NewMemory(entries int, maxEntrySize int64) (*Memory, error) {
	c, err := arc.NewARC[string, []byte](entries)
	if err != nil {
		return nil, err
	}
	return &Memory{arc: c, maxEntrySize: maxEntrySize}, nil
}

func (m *Memory) IsCached(_ context.Context, key string) (bool, error) {
	return m.arc.Contains(key), nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := m.arc.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *Memory) Create(_ context.Context, key string) (Writer, error) {
	return newBufferWriter(m.maxEntrySize, func(b []byte) error {
		m.arc.Add(key, slices.Clone(b))
		return nil
	}), nil
}

func (m *Memory) WriteFromFile(ctx context.Context, key, path string) error {
	return writeFromFile(ctx, m, key, path)
}

func (m *Memory) Len() int {
	return m.arc.Len()
}
