package catalog_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/brimdata/sift/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
datasets:
  - name: organic
    fields:
      - {name: unixtime, type: int}
      - {name: oji, type: int}
      - {name: OJI, type: int}
      - {name: ojc, type: int}
      - {name: tk, type: string}
    dimensions:
      - {name: ctr, expr: "ojc * 100 / oji"}
  - name: Sponsored
    deprecated: true
    fields:
      - {name: unixtime, type: int}
`

func load(t *testing.T) *catalog.Catalog {
	c, err := catalog.Load(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	return c
}

func TestDatasetLookup(t *testing.T) {
	c := load(t)
	d, err := c.Dataset("ORGANIC")
	require.NoError(t, err)
	assert.Equal(t, "organic", d.Name)
	assert.Equal(t, "unixtime", d.TimeField)
	d, err = c.Dataset("sponsored")
	require.NoError(t, err)
	assert.True(t, d.Deprecated)
	_, err = c.Dataset("organik")
	var unknown *catalog.UnknownError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "UnknownDatasetException", unknown.Kind())
	assert.Equal(t, `Unknown dataset "organik" (did you mean "organic"?)`, err.Error())
}

func TestFieldTwoTier(t *testing.T) {
	d, err := load(t).Dataset("organic")
	require.NoError(t, err)
	// Exact matches win even when a case-insensitive match also exists.
	f, _, err := d.Lookup("OJI")
	require.NoError(t, err)
	assert.Equal(t, "OJI", f.Name)
	f, _, err = d.Lookup("oji")
	require.NoError(t, err)
	assert.Equal(t, "oji", f.Name)
	// A unique case-insensitive match resolves.
	f, _, err = d.Lookup("TK")
	require.NoError(t, err)
	assert.Equal(t, "tk", f.Name)
	assert.Equal(t, catalog.String, f.Type)
	// Two case-insensitive matches and no exact match are ambiguous.
	_, _, err = d.Lookup("Oji")
	var ambiguous *catalog.AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, []string{"OJI", "oji"}, ambiguous.Candidates)
	assert.Equal(t, "AmbiguousNameException", ambiguous.Kind())
}

func TestDimensions(t *testing.T) {
	d, err := load(t).Dataset("organic")
	require.NoError(t, err)
	f, dim, err := d.Lookup("CTR")
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.Equal(t, "ojc * 100 / oji", dim.Expr)
	_, dim, err = d.Lookup("dayofweek")
	require.NoError(t, err)
	assert.Equal(t, "(((unixtime-280800)%604800)/86400)", dim.Expr)
	assert.Nil(t, d.Field("ctr"))
}

func TestUnknownField(t *testing.T) {
	d, err := load(t).Dataset("organic")
	require.NoError(t, err)
	_, _, err = d.Lookup("ojcc")
	var unknown *catalog.UnknownError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "UnknownFieldException", unknown.Kind())
	assert.Equal(t, `Unknown field "ojcc" in dataset organic (did you mean "ojc"?)`, err.Error())
	_, _, err = d.Lookup("zzzzzzzz")
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, unknown.Suggestion)
}

func TestBadCatalog(t *testing.T) {
	_, err := catalog.Load(strings.NewReader("datasets:\n  - name: a\n    fields:\n      - {name: x, type: float}\n"))
	assert.ErrorContains(t, err, `unknown type "float"`)
	_, err = catalog.Load(strings.NewReader("datasets:\n  - name: a\n  - name: a\n"))
	assert.ErrorContains(t, err, "duplicate dataset a")
	_, err = catalog.Load(strings.NewReader("datasets:\n  - name: a\n    colour: red\n"))
	assert.Error(t, err)
}

func TestStoreSwap(t *testing.T) {
	first := load(t)
	store := catalog.NewStore(first)
	second, err := catalog.New(&catalog.Dataset{Name: "other"})
	require.NoError(t, err)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := store.Snapshot()
			require.NotNil(t, snap)
			_, err := snap.Dataset(snap.Datasets()[0].Name)
			assert.NoError(t, err)
		}()
	}
	old := store.Swap(second)
	wg.Wait()
	assert.Same(t, first, old)
	assert.Same(t, second, store.Snapshot())
}
