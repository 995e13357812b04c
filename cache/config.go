package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/units"
	"github.com/pbnjay/memory"
)

type Config struct {
	// Type is one of none, memory, dir, redis, or s3.
	Type string `yaml:"type"`
	// Entries bounds the number of entries of a memory cache.
	Entries int `yaml:"entries"`
	// MaxEntrySize is a size like "16MB".  Results that encode larger
	// are not cached.  It defaults to 1/256 of physical memory, capped
	// at 64MB.
	MaxEntrySize   string      `yaml:"max_entry_size"`
	Dir            string      `yaml:"dir"`
	Compress       bool        `yaml:"compress"`
	CollisionCheck bool        `yaml:"collision_check"`
	Redis          RedisConfig `yaml:"redis"`
	S3             S3Config    `yaml:"s3"`
}

type RedisConfig struct {
	Addr   string        `yaml:"addr"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

const maxDefaultEntrySize = 64 * int64(units.MiB)

func (c Config) maxEntrySize() (int64, error) {
	if c.MaxEntrySize == "" {
		n := int64(memory.TotalMemory() / 256)
		if n <= 0 || n > maxDefaultEntrySize {
			n = maxDefaultEntrySize
		}
		return n, nil
	}
	n, err := units.ParseStrictBytes(c.MaxEntrySize)
	if err != nil {
		return 0, fmt.Errorf("cache max_entry_size: %w", err)
	}
	return n, nil
}

// Open builds the cache described by cfg.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	size, err := cfg.maxEntrySize()
	if err != nil {
		return nil, err
	}
	var c Cache
	switch cfg.Type {
	case "", "none":
		c = Nop{}
	case "memory":
		entries := cfg.Entries
		if entries <= 0 {
			entries = 1024
		}
		c, err = NewMemory(entries, size)
	case "dir":
		c, err = NewDir(cfg.Dir)
	case "redis":
		c, err = NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Prefix, cfg.Redis.TTL, size)
	case "s3":
		c, err = NewS3(cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Region, cfg.S3.Endpoint, size)
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Compress && c != (Nop{}) {
		c = NewCompressed(c)
	}
	if cfg.CollisionCheck {
		c = NewCollision(c)
	}
	return c, nil
}
