package cachekey_test

import (
	"context"
	"testing"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/backend/memory"
	"github.com/brimdata/sift/cachekey"
	"github.com/brimdata/sift/compiler"
	"github.com/brimdata/sift/compiler/parser"
	"github.com/brimdata/sift/runtime/exec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(t *testing.T, query string) cachekey.Key {
	k, _ := keyAndShards(t, query, parser.IQL2)
	return k
}

func legacyKey(t *testing.T, query string) cachekey.Key {
	k, _ := keyAndShards(t, query, parser.Legacy)
	return k
}

func keyAndShards(t *testing.T, query string, dialect parser.Dialect) (cachekey.Key, [][]backend.Shard) {
	ctx := context.Background()
	job, err := compiler.Compile(ctx, query, memory.OrganicCatalog(), compiler.Options{
		Dialect:  dialect,
		Now:      memory.OrganicDay.AddDate(0, 0, 1),
		Location: memory.OrganicZone,
	})
	require.NoError(t, err)
	shards, err := exec.NewEnvironment(memory.Organic()).Shards(ctx, job.Plan)
	require.NoError(t, err)
	k, err := cachekey.Compute(job.Plan, shards)
	require.NoError(t, err)
	return k, shards
}

func TestSpellingCollapses(t *testing.T) {
	base := key(t, "FROM organic yesterday today GROUP BY tk HAVING count() = 4 SELECT count()")
	assert.Equal(t, base, key(t, "from   organic yesterday  today\n group by tk having (count()) = (4) select count()"))
	assert.Equal(t, base, key(t, "FROM organic yesterday today GROUP BY tk HAVING count() = 2 + 2 SELECT count()"))
}

func TestAliasesShareKey(t *testing.T) {
	assert.Equal(t,
		key(t, "FROM organic yesterday today GROUP BY tk SELECT count() AS n, sum(oji)"),
		key(t, "FROM organic yesterday today GROUP BY tk SELECT count() AS total, sum(oji) AS clicks"))
}

func TestRandomFieldMatchesMetric(t *testing.T) {
	base := key(t, "FROM organic yesterday today GROUP BY random(oji, 2, 'x') SELECT count()")
	assert.Equal(t, base, key(t, "FROM organic yesterday today GROUP BY random(oji + 0, 2, 'x') SELECT count()"))
	assert.Equal(t, base, key(t, "FROM organic yesterday today GROUP BY random(oji * 1, 2, 'x') SELECT count()"))
	assert.NotEqual(t, base, key(t, "FROM organic yesterday today GROUP BY random(ojc, 2, 'x') SELECT count()"))
	sample := key(t, "FROM organic yesterday today WHERE sample(oji, 1, 2) SELECT count()")
	assert.Equal(t, sample, key(t, "FROM organic yesterday today WHERE sample(oji + 0, 1, 2) SELECT count()"))
}

func TestDialectsShareKey(t *testing.T) {
	assert.Equal(t,
		key(t, "FROM organic yesterday today GROUP BY tk SELECT count()"),
		legacyKey(t, "FROM organic yesterday today GROUP BY tk SELECT count()"))
	assert.Equal(t,
		key(t, "FROM organic yesterday today WHERE oji BETWEEN 10 AND 101 SELECT count()"),
		legacyKey(t, "FROM organic yesterday today WHERE oji BETWEEN 10 AND 100 SELECT count()"))
	assert.Equal(t,
		key(t, "FROM organic yesterday today GROUP BY time(30m) SELECT count()"),
		legacyKey(t, "FROM organic yesterday today GROUP BY time(30M) SELECT count()"))
}

func TestSemanticChangeDiffers(t *testing.T) {
	keys := []cachekey.Key{
		key(t, "FROM organic yesterday today GROUP BY tk HAVING count() = 4 SELECT count()"),
		key(t, "FROM organic yesterday today GROUP BY tk HAVING count() = 5 SELECT count()"),
		key(t, "FROM organic yesterday today GROUP BY tk SELECT count()"),
		key(t, "FROM organic yesterday today WHERE tk =~ 'a' SELECT count()"),
		key(t, "FROM organic yesterday today WHERE tk =~ 'b' SELECT count()"),
		key(t, "FROM organic yesterday today GROUP BY random(oji, 2, 'x') SELECT count()"),
		key(t, "FROM organic yesterday today GROUP BY random(oji, 2, 'y') SELECT count()"),
		key(t, "FROM organic yesterday today SELECT count() LIMIT 1"),
		key(t, "FROM organic 2014-12-31 today SELECT count()"),
	}
	seen := make(map[cachekey.Key]int)
	for i, k := range keys {
		j, ok := seen[k]
		assert.False(t, ok, "queries %d and %d share a key", i, j)
		seen[k] = i
	}
}

func TestShardsChangeKey(t *testing.T) {
	ctx := context.Background()
	job, err := compiler.Compile(ctx, "FROM organic yesterday today SELECT count()", memory.OrganicCatalog(), compiler.Options{
		Now:      memory.OrganicDay.AddDate(0, 0, 1),
		Location: memory.OrganicZone,
	})
	require.NoError(t, err)
	_, shards := keyAndShards(t, "FROM organic yesterday today SELECT count()", parser.IQL2)
	before, err := cachekey.Compute(job.Plan, shards)
	require.NoError(t, err)
	shards[0][3].Docs++
	after, err := cachekey.Compute(job.Plan, shards)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	_, err = cachekey.Compute(job.Plan, nil)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	k := key(t, "FROM organic yesterday today SELECT count()")
	parsed, err := cachekey.Parse(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
	assert.Len(t, k.String(), 64)
	_, err = cachekey.Parse("abc")
	assert.Error(t, err)
}
