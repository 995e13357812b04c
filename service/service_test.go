package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/backend/memory"
	"github.com/brimdata/sift/cache"
	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/runtime/exec"
	"github.com/brimdata/sift/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var now = memory.OrganicDay.AddDate(0, 0, 1)

func newService(t *testing.T, cfg service.Config, c cache.Cache) *service.Service {
	cfg.Timezone = "-06:00"
	s, err := service.New(cfg, zaptest.NewLogger(t), catalog.NewStore(memory.OrganicCatalog()), memory.Organic(), c, prometheus.NewRegistry())
	require.NoError(t, err)
	return s
}

func query(q string) service.Request {
	return service.Request{Query: q, Now: now}
}

func TestRunAndHit(t *testing.T) {
	c, err := cache.NewMemory(16, 0)
	require.NoError(t, err)
	s := newService(t, service.DefaultConfig(), c)
	ctx := context.Background()

	first, err := s.Run(ctx, query("FROM organic yesterday today GROUP BY tk HAVING count() = 4 SELECT count()"))
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, [][]string{{"a", "4"}, {"c", "4"}}, first.Rows)
	assert.Equal(t, 4, first.Progress.MaxGroups)

	second, err := s.Run(ctx, query("from organic yesterday today group by tk having (count()) = 4 select count()"))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Names, second.Names)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = s.Run(ctx, query("FROM organix yesterday today SELECT count()"))
	assert.ErrorContains(t, err, "UnknownDatasetException")
}

func TestAliasesShareKey(t *testing.T) {
	c, err := cache.NewMemory(16, 0)
	require.NoError(t, err)
	s := newService(t, service.DefaultConfig(), c)
	ctx := context.Background()
	first, err := s.Run(ctx, query("FROM organic yesterday today GROUP BY tk SELECT count() AS n"))
	require.NoError(t, err)
	second, err := s.Run(ctx, query("FROM organic yesterday today GROUP BY tk SELECT count() AS total"))
	require.NoError(t, err)
	assert.Equal(t, first.Key, second.Key)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, []string{"n"}, first.Names)
	assert.Equal(t, []string{"total"}, second.Names)
}

func TestCollisionCheckExecutesEveryRun(t *testing.T) {
	c, err := cache.NewMemory(16, 0)
	require.NoError(t, err)
	collision := cache.NewCollision(c)
	s := newService(t, service.DefaultConfig(), collision)
	for range 2 {
		resp, err := s.Run(context.Background(), query("FROM organic yesterday today GROUP BY tk SELECT count()"))
		require.NoError(t, err)
		assert.False(t, resp.Cached)
		assert.Len(t, resp.Rows, 4)
	}
	assert.Equal(t, 1, collision.Keys())
	assert.Equal(t, 1, c.Len())
}

// gatedClient holds every session open until release is closed.
type gatedClient struct {
	backend.Client
	opened  chan struct{}
	release chan struct{}
}

func (g *gatedClient) Open(ctx context.Context, d *dag.Dataset, shards []backend.Shard) (backend.Session, error) {
	g.opened <- struct{}{}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.Client.Open(ctx, d, shards)
}

// lookupCache signals each lookup.
type lookupCache struct {
	cache.Cache
	lookups chan struct{}
}

func (l *lookupCache) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	defer func() { l.lookups <- struct{}{} }()
	return l.Cache.Get(ctx, key)
}

func TestCanceledCallerDoesNotFailWaiter(t *testing.T) {
	client := &gatedClient{
		Client:  memory.Organic(),
		opened:  make(chan struct{}, 4),
		release: make(chan struct{}),
	}
	c, err := cache.NewMemory(16, 0)
	require.NoError(t, err)
	lookups := &lookupCache{Cache: c, lookups: make(chan struct{}, 4)}
	cfg := service.DefaultConfig()
	cfg.Timezone = "-06:00"
	s, err := service.New(cfg, zaptest.NewLogger(t), catalog.NewStore(memory.OrganicCatalog()), client, lookups, nil)
	require.NoError(t, err)
	q := query("FROM organic yesterday today GROUP BY tk SELECT count()")

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx, q)
		firstErr <- err
	}()
	<-client.opened
	<-lookups.lookups
	type result struct {
		resp *service.Response
		err  error
	}
	second := make(chan result, 1)
	go func() {
		resp, err := s.Run(context.Background(), q)
		second <- result{resp, err}
	}()
	<-lookups.lookups
	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(client.release)
	r := <-second
	require.NoError(t, r.err)
	assert.Len(t, r.resp.Rows, 4)
}

func TestNoCache(t *testing.T) {
	c, err := cache.NewMemory(16, 0)
	require.NoError(t, err)
	s := newService(t, service.DefaultConfig(), c)
	req := query("FROM organic yesterday today SELECT count()")
	req.NoCache = true
	resp, err := s.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"", "151"}}, resp.Rows)
	assert.Equal(t, 0, c.Len())
}

func TestTruncationWarning(t *testing.T) {
	c, err := cache.NewMemory(16, 0)
	require.NoError(t, err)
	s := newService(t, service.DefaultConfig(), c)
	q := "FROM organic yesterday today GROUP BY tk SELECT count() LIMIT 2"
	for _, cached := range []bool{false, true} {
		resp, err := s.Run(context.Background(), query(q))
		require.NoError(t, err)
		assert.Equal(t, cached, resp.Cached)
		assert.True(t, resp.Truncated)
		assert.Equal(t, [][]string{{"a", "4"}, {"b", "2"}}, resp.Rows)
		assert.Contains(t, resp.Warnings, "Only first 2 rows returned")
	}
	req := query(q)
	req.NoWarnings = true
	resp, err := s.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, resp.Warnings)
}

func TestGroupLimit(t *testing.T) {
	cfg := service.DefaultConfig()
	cfg.GroupLimit = 10
	s := newService(t, cfg, nil)
	_, err := s.Run(context.Background(), query("FROM organic yesterday today GROUP BY time(1h) SELECT count()"))
	var limitErr *exec.GroupLimitError
	assert.True(t, errors.As(err, &limitErr))
}

func TestConcurrentRuns(t *testing.T) {
	c, err := cache.NewMemory(16, 0)
	require.NoError(t, err)
	cfg := service.DefaultConfig()
	cfg.Workers = 2
	s := newService(t, cfg, cache.NewCollision(c))
	var wg sync.WaitGroup
	rows := make([][][]string, 8)
	errs := make([]error, 8)
	for k := range rows {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := s.Run(context.Background(), query("FROM organic yesterday today GROUP BY time(1h) SELECT count(), running(count())"))
			errs[k] = err
			if err == nil {
				rows[k] = resp.Rows
			}
		}()
	}
	wg.Wait()
	for k := range rows {
		require.NoError(t, errs[k])
		assert.Equal(t, rows[0], rows[k])
	}
	require.Len(t, rows[0], 24)
	assert.Equal(t, "151", rows[0][23][2])
}

func TestCacheFailureFallsBack(t *testing.T) {
	c, err := cache.NewMemory(16, 8)
	require.NoError(t, err)
	s := newService(t, service.DefaultConfig(), c)
	resp, err := s.Run(context.Background(), query("FROM organic yesterday today GROUP BY tk SELECT count()"))
	require.NoError(t, err)
	assert.Len(t, resp.Rows, 4)
	assert.Equal(t, 0, c.Len())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
group_limit: 500
timezone: "-06:00"
cache:
  type: memory
  entries: 10
  max_entry_size: 1MB
`), 0644))
	cfg, err := service.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.GroupLimit)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, "iql2", cfg.Dialect)
	assert.Positive(t, cfg.Workers)

	require.NoError(t, os.WriteFile(path, []byte("timezone: Mars/Olympus\n"), 0644))
	_, err = service.LoadConfig(path)
	assert.Error(t, err)
}
