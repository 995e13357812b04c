package serviceflags

import (
	"context"
	"errors"
	"flag"

	"github.com/brimdata/sift/backend/memory"
	"github.com/brimdata/sift/cache"
	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/cli/logflags"
	"github.com/brimdata/sift/service"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Flags struct {
	ConfigPath string
	Catalog    string
	Data       string
	Demo       bool
	Timezone   string
	GroupLimit int
	CacheType  string
	CacheDir   string
	logflags.Flags

	// Changed reports whether a flag was given on the command line.
	// SetFlags points it at the flag set.
	Changed func(name string) bool
}

func (f *Flags) SetFlags(fs *flag.FlagSet) {
	f.Changed = logflags.Visited(fs)
	fs.StringVar(&f.ConfigPath, "config", "", "path of a YAML service config")
	fs.StringVar(&f.Catalog, "catalog", "", "path of the YAML field catalog (overrides config)")
	fs.StringVar(&f.Data, "data", "", "path of YAML documents to query (overrides config)")
	fs.BoolVar(&f.Demo, "demo", false, "query the built-in organic demo dataset")
	fs.StringVar(&f.Timezone, "timezone", "", "default query time zone (overrides config)")
	fs.IntVar(&f.GroupLimit, "grouplimit", -1, "maximum number of groups (overrides config)")
	fs.StringVar(&f.CacheType, "cache", "", "cache type: none, memory, dir, redis, or s3 (overrides config)")
	fs.StringVar(&f.CacheDir, "cachedir", "", "directory of the dir cache (overrides config)")
	f.Flags.SetFlags(fs)
}

// Config loads the config file, if any, and applies the flags over it.
func (f *Flags) Config() (service.Config, error) {
	cfg := service.DefaultConfig()
	if f.ConfigPath != "" {
		var err error
		if cfg, err = service.LoadConfig(f.ConfigPath); err != nil {
			return cfg, err
		}
	}
	if f.Catalog != "" {
		cfg.Catalog = f.Catalog
	}
	if f.Data != "" {
		cfg.Data = f.Data
	}
	if f.Timezone != "" {
		cfg.Timezone = f.Timezone
	}
	if f.GroupLimit >= 0 {
		cfg.GroupLimit = f.GroupLimit
	}
	if f.CacheType != "" {
		cfg.Cache.Type = f.CacheType
	}
	if f.CacheDir != "" {
		cfg.Cache.Dir = f.CacheDir
	}
	if f.Changed != nil {
		if err := f.Flags.Apply(f.Changed, cfg.Log.Level, cfg.Log.Encoding, cfg.Log.File); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// Open builds the service described by the config and flags.  The
// returned logger is the one the service logs to.
func (f *Flags) Open(ctx context.Context, reg prometheus.Registerer) (*service.Service, service.Config, *zap.Logger, error) {
	cfg, err := f.Config()
	if err != nil {
		return nil, cfg, nil, err
	}
	logger, err := f.Flags.Open()
	if err != nil {
		return nil, cfg, nil, err
	}
	var cat *catalog.Catalog
	var index *memory.Index
	switch {
	case f.Demo:
		cat = memory.OrganicCatalog()
		index = memory.Organic()
	case cfg.Catalog == "" || cfg.Data == "":
		return nil, cfg, nil, errors.New("a catalog and data are required: use -catalog and -data, a config file, or -demo")
	default:
		if cat, err = catalog.LoadFile(cfg.Catalog); err != nil {
			return nil, cfg, nil, err
		}
		if index, err = memory.LoadFile(cfg.Data); err != nil {
			return nil, cfg, nil, err
		}
	}
	c, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, cfg, nil, err
	}
	s, err := service.New(cfg, logger, catalog.NewStore(cat), index, c, reg)
	if err != nil {
		return nil, cfg, nil, err
	}
	return s, cfg, logger, nil
}
