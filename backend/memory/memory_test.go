package memory_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/backend/memory"
	"github.com/brimdata/sift/compiler/dag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dayStart = memory.OrganicDay.Unix()
	dayEnd   = dayStart + 86400
)

func openOrganic(t *testing.T, start, end int64) backend.Session {
	ctx := context.Background()
	x := memory.Organic()
	shards, err := x.Shards(ctx, "organic", start, end)
	require.NoError(t, err)
	s, err := x.Open(ctx, &dag.Dataset{Name: "organic", Alias: "organic", Start: start, End: end, TimeField: "unixtime"}, shards)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func field(name string) dag.DocMetric {
	return &dag.Field{Kind: "Field", Name: name}
}

func TestShards(t *testing.T) {
	x := memory.Organic()
	shards, err := x.Shards(context.Background(), "organic", dayStart, dayEnd)
	require.NoError(t, err)
	require.Len(t, shards, 24)
	assert.Equal(t, "index20150101.00", shards[0].ID)
	assert.Equal(t, int64(10), shards[0].Docs)
	assert.Equal(t, "index20150101.23", shards[23].ID)
	_, err = x.Shards(context.Background(), "nope", dayStart, dayEnd)
	assert.Error(t, err)
}

func TestOrganicTotals(t *testing.T) {
	s := openOrganic(t, dayStart, dayEnd)
	stats, err := s.Stats(context.Background(), []dag.DocMetric{dag.NewConst(1), field("oji"), field("ojc")}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(151), stats[0][1])
	assert.Equal(t, int64(2653), stats[1][1])
	assert.Equal(t, int64(306), stats[2][1])
}

func TestTimeRangeHalfOpen(t *testing.T) {
	s := openOrganic(t, dayStart, dayStart+3600)
	stats, err := s.Stats(context.Background(), []dag.DocMetric{dag.NewConst(1)}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats[0][1])
}

func TestFTGSTermOrder(t *testing.T) {
	s := openOrganic(t, dayStart, dayEnd)
	var terms []string
	var counts []int64
	err := s.FTGS(context.Background(), "tk", []dag.DocMetric{dag.NewConst(1)}, func(term dag.Term, group int, stats []int64) error {
		assert.Equal(t, 1, group)
		terms = append(terms, term.Str)
		counts = append(counts, stats[0])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, terms)
	assert.Equal(t, []int64{4, 2, 4, 141}, counts)
}

func TestTermRegroup(t *testing.T) {
	s := openOrganic(t, dayStart, dayEnd)
	ctx := context.Background()
	err := s.Regroup(ctx, &backend.TermRule{
		Field:   "tk",
		Base:    []int{0, 1},
		Terms:   []map[string]int{nil, {"a": 0, "c": 1}},
		Default: []int{0, 3},
	})
	require.NoError(t, err)
	stats, err := s.Stats(ctx, []dag.DocMetric{dag.NewConst(1)}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 4, 4, 143}, stats[0])
}

func TestMetricRegroup(t *testing.T) {
	s := openOrganic(t, dayStart, dayEnd)
	ctx := context.Background()
	// [0, 10) [10, 20) then < 0 and >= 20.
	err := s.Regroup(ctx, &backend.MetricRule{
		Metric:   field("oji"),
		Min:      0,
		Max:      20,
		Interval: 10,
		Base:     []int{0, 1},
	})
	require.NoError(t, err)
	stats, err := s.Stats(ctx, []dag.DocMetric{dag.NewConst(1)}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 7, 138, 0, 6}, stats[0])
}

func TestMetricRuleWideRange(t *testing.T) {
	s := openOrganic(t, dayStart, dayEnd)
	ctx := context.Background()
	err := s.Regroup(ctx, &backend.MetricRule{
		Metric:   field("oji"),
		Min:      -math.MaxInt64,
		Max:      math.MaxInt64,
		Interval: math.MaxInt64,
		Base:     []int{0, 1},
	})
	require.NoError(t, err)
	stats, err := s.Stats(ctx, []dag.DocMetric{dag.NewConst(1)}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 151, 0, 0}, stats[0])
	assert.Equal(t, uint64(2), backend.Buckets(-math.MaxInt64, math.MaxInt64, math.MaxInt64))
}

func TestFilterRule(t *testing.T) {
	s := openOrganic(t, dayStart, dayEnd)
	ctx := context.Background()
	tkB := &dag.TermIs{Kind: "TermIs", Field: "tk", Term: dag.Term{Str: "b"}}
	big := &dag.Compare{Kind: "Compare", Op: ">=", LHS: field("oji"), RHS: dag.NewConst(100)}
	err := s.Regroup(ctx, &backend.FilterRule{
		Filters: []dag.DocFilter{&dag.Not{Kind: "Not", Filter: tkB}, tkB},
		Base:    []int{0, 1},
	})
	require.NoError(t, err)
	stats, err := s.Stats(ctx, []dag.DocMetric{dag.NewConst(1), &dag.FilterMetric{Kind: "FilterMetric", Filter: big}}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 149, 2}, stats[0])
	assert.Equal(t, []int64{0, 1, 1}, stats[1])
}

func TestRegexpAndDivision(t *testing.T) {
	s := openOrganic(t, dayStart, dayEnd)
	ctx := context.Background()
	err := s.Regroup(ctx, &backend.FilterRule{
		Filters: []dag.DocFilter{&dag.Regexp{Kind: "Regexp", Field: "tk", Pattern: "[ab]"}},
		Base:    []int{0, 1},
	})
	require.NoError(t, err)
	div := &dag.DocBinary{Kind: "DocBinary", Op: "/", LHS: field("oji"), RHS: field("fakeField")}
	stats, err := s.Stats(ctx, []dag.DocMetric{dag.NewConst(1), div}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats[0][1])
	assert.Equal(t, int64(0), stats[1][1])
}

func TestHashRuleStable(t *testing.T) {
	ctx := context.Background()
	counts := func(m dag.DocMetric) []int64 {
		s := openOrganic(t, dayStart, dayEnd)
		require.NoError(t, s.Regroup(ctx, &backend.HashRule{Metric: m, Salt: "x", Buckets: 3, Base: []int{0, 1}}))
		stats, err := s.Stats(ctx, []dag.DocMetric{dag.NewConst(1)}, 3)
		require.NoError(t, err)
		return stats[0]
	}
	plus := &dag.DocBinary{Kind: "DocBinary", Op: "+", LHS: field("oji"), RHS: dag.NewConst(0)}
	a := counts(field("oji"))
	assert.Equal(t, a, counts(plus))
	assert.Equal(t, int64(151), a[1]+a[2]+a[3])
}

func TestLoad(t *testing.T) {
	const data = `
datasets:
  - name: small
    shard_by: 1h
    docs:
      - {unixtime: 3600, tk: x, n: 1}
      - {unixtime: 3601, tk: y, n: 2}
      - {unixtime: 7200, tk: x, n: 3}
`
	x, err := memory.Load(strings.NewReader(data))
	require.NoError(t, err)
	ctx := context.Background()
	shards, err := x.Shards(ctx, "small", 0, 10800)
	require.NoError(t, err)
	require.Len(t, shards, 2)
	assert.Equal(t, "index19700101.01", shards[0].ID)
	assert.Equal(t, int64(2), shards[0].Docs)
	s, err := x.Open(ctx, &dag.Dataset{Name: "small", Start: 0, End: 10800}, shards)
	require.NoError(t, err)
	stats, err := s.Stats(ctx, []dag.DocMetric{field("n")}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats[0][1])
}
