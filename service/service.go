// Package service answers queries: it compiles them, computes their cache
// keys, serves cached results, and otherwise executes them against the
// backend on a bounded pool of workers.  Concurrent requests for the same
// key share one execution.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/cache"
	"github.com/brimdata/sift/cachekey"
	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/compiler"
	"github.com/brimdata/sift/compiler/describe"
	"github.com/brimdata/sift/compiler/parser"
	"github.com/brimdata/sift/compiler/semantic"
	"github.com/brimdata/sift/runtime/exec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

type Request struct {
	Query string
	// Dialect overrides the configured dialect when not empty.
	Dialect    string
	NoCache    bool
	NoWarnings bool
	Lenient    bool
	// Now anchors relative times.  The zero value means the current time.
	Now time.Time
}

type Response struct {
	ID        ksuid.KSUID
	Key       cachekey.Key
	Names     []string
	Rows      [][]string
	Warnings  []string
	Cached    bool
	Truncated bool
	Progress  exec.Progress
}

type Service struct {
	cfg      Config
	logger   *zap.Logger
	catalogs *catalog.Store
	env      *exec.Environment
	cache    cache.Cache
	location *time.Location
	dialect  parser.Dialect
	workers  *semaphore.Weighted
	flight   singleflight.Group
	metrics  *metrics
}

// New returns a service.  A nil cache disables caching and a nil
// registerer leaves the metrics unregistered.
func New(cfg Config, logger *zap.Logger, catalogs *catalog.Store, client backend.Client, c cache.Cache, reg prometheus.Registerer) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.Nop{}
	}
	loc, err := semantic.ParseLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	dialect, err := parser.ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultConfig().Workers
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		catalogs: catalogs,
		env:      exec.NewEnvironment(client),
		cache:    c,
		location: loc,
		dialect:  dialect,
		workers:  semaphore.NewWeighted(int64(workers)),
		metrics:  m,
	}, nil
}

// Compile compiles the query of req against the current catalog snapshot.
func (s *Service) Compile(ctx context.Context, req Request) (*compiler.Job, error) {
	dialect := s.dialect
	if req.Dialect != "" {
		var err error
		if dialect, err = parser.ParseDialect(req.Dialect); err != nil {
			return nil, err
		}
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	return compiler.Compile(ctx, req.Query, s.catalogs.Snapshot(), compiler.Options{
		Dialect:    dialect,
		Now:        now,
		Location:   s.location,
		Lenient:    s.cfg.Lenient || req.Lenient,
		RowLimit:   s.cfg.RowLimit,
		GroupLimit: s.cfg.GroupLimit,
	})
}

// Describe compiles req and reports the datasets and shards it would read
// and its cache key, without executing it.
func (s *Service) Describe(ctx context.Context, req Request) (*describe.Info, error) {
	job, err := s.Compile(ctx, req)
	if err != nil {
		return nil, err
	}
	return describe.Analyze(ctx, job, s.env, s.location)
}

// Run answers req from the cache or by executing it.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp := &Response{ID: ksuid.New()}
	logger := s.logger.With(zap.Stringer("query_id", resp.ID))
	err := s.run(ctx, logger, req, resp)
	elapsed := time.Since(start)
	switch {
	case err != nil:
		s.metrics.observe("error", elapsed)
		logger.Info("Query failed", zap.String("query", req.Query), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	case resp.Cached:
		s.metrics.observe("hit", elapsed)
	default:
		s.metrics.observe("miss", elapsed)
	}
	logger.Info("Query",
		zap.Stringer("cache_key", resp.Key),
		zap.Bool("cached", resp.Cached),
		zap.Int("rows", len(resp.Rows)),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

func (s *Service) run(ctx context.Context, logger *zap.Logger, req Request, resp *Response) error {
	job, err := s.Compile(ctx, req)
	if err != nil {
		return err
	}
	shards, err := s.env.Shards(ctx, job.Plan)
	if err != nil {
		return err
	}
	key, err := cachekey.Compute(job.Plan, shards)
	if err != nil {
		return err
	}
	resp.Key = key
	s.metrics.sawKey(key[:])
	var result *decoded
	if !req.NoCache {
		result = s.lookup(ctx, logger, key)
	}
	if result != nil {
		resp.Cached = true
	} else {
		flight := key.String()
		if req.NoCache {
			flight += "/nocache"
		}
		// The execution is shared, so it must outlive any one caller.
		ch := s.flight.DoChan(flight, func() (any, error) {
			return s.execute(context.WithoutCancel(ctx), logger, job, shards, key, !req.NoCache)
		})
		var done singleflight.Result
		select {
		case done = <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		if done.Err != nil {
			return done.Err
		}
		out := done.Val.(*executed)
		result = out.decoded
		resp.Progress = out.progress
	}
	resp.Names = job.Plan.Output.Names
	resp.Rows = result.rows
	resp.Truncated = result.truncated
	if !req.NoWarnings {
		resp.Warnings = job.Warnings
		if result.truncated {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("Only first %d rows returned", job.Plan.Output.Limit))
		}
	}
	return nil
}

// lookup returns the cached result under key or nil.  Cache failures are
// logged and treated as misses.
func (s *Service) lookup(ctx context.Context, logger *zap.Logger, key cachekey.Key) *decoded {
	r, err := s.cache.Get(ctx, key.String())
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			logger.Warn("Cache read failed", zap.Stringer("cache_key", key), zap.Error(err))
		}
		return nil
	}
	defer r.Close()
	result, err := decodeResult(r)
	if err != nil {
		logger.Warn("Cached result unreadable", zap.Stringer("cache_key", key), zap.Error(err))
		return nil
	}
	return result
}

type executed struct {
	*decoded
	progress exec.Progress
}

func (s *Service) execute(ctx context.Context, logger *zap.Logger, job *compiler.Job, shards [][]backend.Shard, key cachekey.Key, store bool) (*executed, error) {
	if err := s.workers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.workers.Release(1)
	s.metrics.inflight.Inc()
	defer s.metrics.inflight.Dec()
	sessions, err := s.env.Open(ctx, job.Plan, shards)
	if err != nil {
		return nil, err
	}
	defer sessions.Close()
	res, err := exec.Run(ctx, logger, job.Plan, sessions, exec.Options{GroupLimit: s.cfg.GroupLimit})
	if err != nil {
		return nil, err
	}
	s.metrics.groups.Observe(float64(res.Progress.MaxGroups))
	b, err := encodeResult(res)
	if err != nil {
		return nil, err
	}
	if store {
		if err := s.store(ctx, key, b); err != nil {
			var collision *cache.CollisionError
			if errors.As(err, &collision) {
				return nil, err
			}
			logger.Warn("Cache write failed", zap.Stringer("cache_key", key), zap.Error(err))
		}
	}
	d, err := decodeResult(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return &executed{decoded: d, progress: res.Progress}, nil
}

func (s *Service) store(ctx context.Context, key cachekey.Key, b []byte) error {
	w, err := s.cache.Create(ctx, key.String())
	if err != nil {
		return err
	}
	defer w.Close()
	if _, err := w.Write(b); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return w.Complete()
}
