package describe_test

import (
	"context"
	"testing"

	"github.com/brimdata/sift/backend/memory"
	"github.com/brimdata/sift/compiler"
	"github.com/brimdata/sift/compiler/describe"
	"github.com/brimdata/sift/runtime/exec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	job, err := compiler.Compile(ctx, "FROM organic yesterday today GROUP BY tk, time(1h) SELECT count(), sum_over(oji, count())", memory.OrganicCatalog(), compiler.Options{
		Now:      memory.OrganicDay.AddDate(0, 0, 1),
		Location: memory.OrganicZone,
	})
	require.NoError(t, err)
	info, err := describe.Analyze(ctx, job, exec.NewEnvironment(memory.Organic()), memory.OrganicZone)
	require.NoError(t, err)
	require.Len(t, info.Datasets, 1)
	assert.Equal(t, describe.Dataset{
		Name:      "organic",
		Alias:     "organic",
		Start:     "2015-01-01T00:00:00-06:00",
		End:       "2015-01-02T00:00:00-06:00",
		TimeField: "unixtime",
		Shards:    24,
		Docs:      151,
	}, info.Datasets[0])
	assert.Equal(t, []describe.Grouping{
		{Kind: "FieldRegroup", Fields: []string{"tk"}},
		{Kind: "TimeRegroup", Fields: []string{"unixtime"}},
	}, info.Groupings)
	assert.Len(t, info.Key, 64)
}
