package exec_test

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/backend/memory"
	"github.com/brimdata/sift/compiler"
	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/runtime/exec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, query string, opts exec.Options) (*exec.Result, error) {
	ctx := context.Background()
	job, err := compiler.Compile(ctx, query, memory.OrganicCatalog(), compiler.Options{
		Now:      memory.OrganicDay.AddDate(0, 0, 1),
		Location: memory.OrganicZone,
	})
	require.NoError(t, err)
	env := exec.NewEnvironment(memory.Organic())
	shards, err := env.Shards(ctx, job.Plan)
	require.NoError(t, err)
	sessions, err := env.Open(ctx, job.Plan, shards)
	require.NoError(t, err)
	defer sessions.Close()
	return exec.Run(ctx, nil, job.Plan, sessions, opts)
}

func rows(t *testing.T, query string) [][]string {
	res, err := run(t, query, exec.Options{})
	require.NoError(t, err)
	return res.Strings()
}

func TestCount(t *testing.T) {
	assert.Equal(t, [][]string{{"", "151"}}, rows(t, "FROM organic yesterday today SELECT count()"))
}

func TestHavingTerms(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "4"}, {"c", "4"}},
		rows(t, "FROM organic yesterday today GROUP BY tk HAVING count() = 4 SELECT count()"))
}

func TestHourlyRunning(t *testing.T) {
	out := rows(t, "FROM organic yesterday today GROUP BY time(1h) SELECT count(), running(count())")
	require.Len(t, out, 24)
	assert.Equal(t, []string{"[2015-01-01 00:00:00, 2015-01-01 01:00:00)", "10", "10"}, out[0])
	assert.Equal(t, []string{"[2015-01-01 01:00:00, 2015-01-01 02:00:00)", "60", "70"}, out[1])
	assert.Equal(t, []string{"[2015-01-01 02:00:00, 2015-01-01 03:00:00)", "60", "130"}, out[2])
	assert.Equal(t, "1", out[23][1])
	assert.Equal(t, "151", out[23][2])
}

func TestTimeBucketsSumToTotal(t *testing.T) {
	total := rows(t, "FROM organic 2014-12-01 today SELECT count(), sum(oji), sum(ojc)")
	require.Len(t, total, 1)
	for _, period := range []string{"1h", "3h", "1d", "8b"} {
		out := rows(t, "FROM organic 2014-12-01 today GROUP BY time("+period+") SELECT count(), sum(oji), sum(ojc)")
		sums := make([]float64, 3)
		for _, row := range out {
			for k := range sums {
				v, err := strconv.ParseFloat(row[k+1], 64)
				require.NoError(t, err)
				sums[k] += v
			}
		}
		for k, v := range sums {
			assert.Equal(t, total[0][k+1], exec.FormatValue(v, -1), period)
		}
	}
}

func TestRandomIsReproducible(t *testing.T) {
	query := "FROM organic yesterday today GROUP BY random(oji, 4, 'seed') SELECT count()"
	first := rows(t, query)
	require.Len(t, first, 4)
	for range 3 {
		assert.Equal(t, first, rows(t, query))
	}
	assert.Equal(t, first, rows(t, "FROM organic yesterday today GROUP BY random(oji + 0, 4, 'seed') SELECT count()"))
	var n int
	for _, row := range first {
		c, err := strconv.Atoi(row[1])
		require.NoError(t, err)
		n += c
	}
	assert.Equal(t, 151, n)
}

func TestTopK(t *testing.T) {
	assert.Equal(t, [][]string{{"d", "141"}, {"c", "4"}},
		rows(t, "FROM organic yesterday today GROUP BY tk[2 BY sum(oji)] SELECT count()"))
}

func TestSumOverKeepsDocuments(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "4"}, {"b", "2"}, {"c", "4"}, {"d", "141"}},
		rows(t, "FROM organic yesterday today GROUP BY tk SELECT sum_over(oji, count())"))
}

func TestParent(t *testing.T) {
	out := rows(t, "FROM organic yesterday today GROUP BY tk, ojc SELECT count(), parent(count())")
	require.GreaterOrEqual(t, len(out), 3)
	assert.Equal(t, [][]string{
		{"a", "0", "1", "4"},
		{"a", "1", "2", "4"},
		{"a", "5", "1", "4"},
	}, out[:3])
}

// failingSession fails every call.
type failingSession struct {
	backend.Session
}

var errBackend = errors.New("backend unavailable")

func (failingSession) Stats(context.Context, []dag.DocMetric, int) ([][]int64, error) {
	return nil, errBackend
}

func (failingSession) FTGS(context.Context, string, []dag.DocMetric, backend.TermFunc) error {
	return errBackend
}

func (failingSession) Regroup(context.Context, backend.Rule) error {
	return errBackend
}

// stalledSession blocks every call until its context is canceled.
type stalledSession struct {
	backend.Session
}

func (stalledSession) Stats(ctx context.Context, _ []dag.DocMetric, _ int) ([][]int64, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledSession) FTGS(ctx context.Context, _ string, _ []dag.DocMetric, _ backend.TermFunc) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledSession) Regroup(ctx context.Context, _ backend.Rule) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSessionFailureCancelsOthers(t *testing.T) {
	ctx := context.Background()
	job, err := compiler.Compile(ctx, "FROM organic yesterday today AS A, organic AS B SELECT count()", memory.OrganicCatalog(), compiler.Options{
		Now:      memory.OrganicDay.AddDate(0, 0, 1),
		Location: memory.OrganicZone,
	})
	require.NoError(t, err)
	sessions := exec.Sessions{
		"A": failingSession{},
		"B": stalledSession{},
	}
	done := make(chan error, 1)
	go func() {
		_, err := exec.Run(ctx, nil, job.Plan, sessions, exec.Options{})
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, errBackend)
	case <-time.After(5 * time.Second):
		t.Fatal("a stalled session outlived a failed one")
	}
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, [][]string{{"", "4"}}, rows(t, "FROM organic yesterday today SELECT distinct(tk)"))
}

func TestGroupLimit(t *testing.T) {
	_, err := run(t, "FROM organic yesterday today GROUP BY time(1h) SELECT count()", exec.Options{GroupLimit: 10})
	var limitErr *exec.GroupLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 24, limitErr.Groups)
	assert.EqualError(t, err, "GroupLimitExceededException: Number of groups [24] exceeds the group limit [10]")
}

func TestProgress(t *testing.T) {
	res, err := run(t, "FROM organic yesterday today GROUP BY time(1h) SELECT count()", exec.Options{})
	require.NoError(t, err)
	assert.Equal(t, 24, res.Progress.MaxGroups)
	assert.Equal(t, 1, res.Progress.Regroups)
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		v        float64
		rounding int
		out      string
	}{
		{151, -1, "151"},
		{0.5, -1, "0.5"},
		{1.0 / 3, -1, "0.3333333"},
		{1.0 / 3, 2, "0.33"},
		{2, 2, "2.00"},
		{-0.00000001, -1, "0"},
		{math.NaN(), -1, "NaN"},
		{math.Inf(1), 3, "Infinity"},
		{math.Inf(-1), -1, "-Infinity"},
	}
	for _, c := range cases {
		assert.Equal(t, c.out, exec.FormatValue(c.v, c.rounding))
	}
}
