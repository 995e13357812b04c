package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis keeps entries as string values under a key prefix.
type Redis struct {
	client       *redis.Client
	prefix       string
	ttl          time.Duration
	maxEntrySize int64
}

var _ Cache = (*Redis)(nil)

// NewRedis connects to addr and checks the connection.  A zero ttl keeps
// entries until redis evicts them.
func NewRedis(ctx context.Context, addr, prefix string, ttl time.Duration, maxEntrySize int64) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Redis{
		client:       client,
		prefix:       prefix,
		ttl:          ttl,
		maxEntrySize: maxEntrySize,
	}, nil
}

func (r *Redis) IsCached(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	return n > 0, err
}

func (r *Redis) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (r *Redis) Create(ctx context.Context, key string) (Writer, error) {
	return newBufferWriter(r.maxEntrySize, func(b []byte) error {
		return r.client.Set(ctx, r.prefix+key, b, r.ttl).Err()
	}), nil
}

func (r *Redis) WriteFromFile(ctx context.Context, key, path string) error {
	return writeFromFile(ctx, r, key, path)
}

func (r *Redis) Close() error {
	return r.client.Close()
}
