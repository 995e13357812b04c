package semantic_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/compiler/parser"
	"github.com/brimdata/sift/compiler/semantic"
	"github.com/brimdata/sift/compiler/semantic/sem"
	"github.com/brimdata/sift/compiler/srcfiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var zone = time.FixedZone("-06:00", -6*3600)

func testCatalog(t *testing.T) *catalog.Catalog {
	fields := func() []*catalog.Field {
		return []*catalog.Field{
			{Name: "unixtime", Type: catalog.Int},
			{Name: "oji", Type: catalog.Int},
			{Name: "ojc", Type: catalog.Int},
			{Name: "allbit", Type: catalog.Int},
			{Name: "tk", Type: catalog.String},
			{Name: "fakeField", Type: catalog.Int},
		}
	}
	cat, err := catalog.New(
		&catalog.Dataset{
			Name:   "organic",
			Fields: fields(),
			Dimensions: []*catalog.Dimension{
				{Name: "ctr", Expr: "ojc * 100 / oji"},
				{Name: "loop1", Expr: "loop2 + 1"},
				{Name: "loop2", Expr: "loop1 + 1"},
			},
		},
		&catalog.Dataset{
			Name:       "legacyorganic",
			Deprecated: true,
			Fields:     fields(),
		},
		&catalog.Dataset{
			Name: "mixed",
			Fields: []*catalog.Field{
				{Name: "unixtime", Type: catalog.Int},
				{Name: "Foo", Type: catalog.Int},
				{Name: "FOO", Type: catalog.Int},
			},
		},
	)
	require.NoError(t, err)
	return cat
}

func analyze(t *testing.T, query string, lenient bool) (*sem.Query, error) {
	p, err := parser.ParseQuery(query, parser.IQL2)
	require.NoError(t, err)
	return semantic.Analyze(context.Background(), p, testCatalog(t), semantic.Options{
		Now:      time.Date(2015, 1, 2, 0, 0, 0, 0, zone),
		Location: zone,
		Lenient:  lenient,
	})
}

func mustAnalyze(t *testing.T, query string) *sem.Query {
	q, err := analyze(t, query, false)
	require.NoError(t, err)
	return q
}

func requireError(t *testing.T, query, kind, substr string) {
	_, err := analyze(t, query, false)
	require.Error(t, err)
	assert.Equal(t, kind, srcfiles.KindOf(err))
	assert.Contains(t, err.Error(), substr)
}

func TestCount(t *testing.T) {
	q := mustAnalyze(t, "FROM organic yesterday today SELECT count()")
	require.Len(t, q.Datasets, 1)
	d := q.Datasets[0]
	assert.Equal(t, "organic", d.Alias)
	assert.Equal(t, time.Date(2015, 1, 1, 0, 0, 0, 0, zone).Unix(), d.Start.Unix())
	assert.Equal(t, time.Date(2015, 1, 2, 0, 0, 0, 0, zone).Unix(), d.End.Unix())
	require.Len(t, q.Selects, 1)
	stats, ok := q.Selects[0].Metric.(*sem.DocStats)
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Metric.(*sem.Constant).Value)
}

func TestDefaultSelect(t *testing.T) {
	q := mustAnalyze(t, "FROM organic yesterday today GROUP BY tk")
	require.Len(t, q.Selects, 1)
	assert.IsType(t, &sem.DocStats{}, q.Selects[0].Metric)
}

func TestTimeForms(t *testing.T) {
	for _, c := range []struct {
		query string
		start time.Time
		end   time.Time
	}{
		{"FROM organic 2015-01-01 2015-01-02", time.Date(2015, 1, 1, 0, 0, 0, 0, zone), time.Date(2015, 1, 2, 0, 0, 0, 0, zone)},
		{"FROM organic \"2015-01-01 01:00:00\" today", time.Date(2015, 1, 1, 1, 0, 0, 0, zone), time.Date(2015, 1, 2, 0, 0, 0, 0, zone)},
		{"FROM organic 10d today", time.Date(2014, 12, 23, 0, 0, 0, 0, zone), time.Date(2015, 1, 2, 0, 0, 0, 0, zone)},
		{"FROM organic \"3 days ago\" tomorrow", time.Date(2014, 12, 30, 0, 0, 0, 0, zone), time.Date(2015, 1, 3, 0, 0, 0, 0, zone)},
		{"FROM organic 1420092000 1420178400", time.Unix(1420092000, 0), time.Unix(1420178400, 0)},
	} {
		q := mustAnalyze(t, c.query)
		assert.Equal(t, c.start.Unix(), q.Datasets[0].Start.Unix(), c.query)
		assert.Equal(t, c.end.Unix(), q.Datasets[0].End.Unix(), c.query)
	}
}

func TestTimezoneClause(t *testing.T) {
	q := mustAnalyze(t, "FROM organic 2015-01-01 2015-01-02 TIMEZONE UTC")
	assert.Equal(t, time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC).Unix(), q.Datasets[0].Start.Unix())
	requireError(t, "FROM organic yesterday today TIMEZONE Mars/Olympus", srcfiles.ValidationError, "unknown time zone")
}

func TestInheritedRange(t *testing.T) {
	q := mustAnalyze(t, "FROM organic yesterday today AS A, organic AS B SELECT count()")
	require.Len(t, q.Datasets, 2)
	assert.Equal(t, "B", q.Datasets[1].Alias)
	assert.Equal(t, q.Datasets[0].Start, q.Datasets[1].Start)
	assert.Equal(t, q.Datasets[0].End, q.Datasets[1].End)
	requireError(t, "FROM organic yesterday today, organic", srcfiles.ValidationError, "Duplicate dataset alias organic")
}

func TestDatasetRangeErrors(t *testing.T) {
	query := "FROM organic today yesterday AS A SELECT count()"
	_, err := analyze(t, query, false)
	var list srcfiles.ErrorList
	require.ErrorAs(t, err, &list)
	require.Len(t, list, 1)
	assert.Equal(t, srcfiles.ValidationError, list[0].Kind)
	assert.Equal(t, "Start time 2015-01-02 00:00:00 must be before end time 2015-01-01 00:00:00", list[0].Msg)
	assert.Equal(t, strings.Index(query, "organic"), list[0].Pos)
	assert.Equal(t, strings.Index(query, "AS A")+len("AS A"), list[0].End)

	requireError(t, "FROM organic SELECT count()", srcfiles.ValidationError, "Dataset organic has no time range")
}

func TestUnknownNames(t *testing.T) {
	requireError(t, "FROM organix yesterday today", srcfiles.UnknownDataset, `did you mean "organic"`)
	requireError(t, "FROM organic yesterday today SELECT oij", srcfiles.UnknownField, `Unknown field "oij" in dataset organic`)
	requireError(t, "FROM organic yesterday today WHERE C.tk = 'a'", srcfiles.UnknownDataset, "Unknown dataset alias")
}

func TestCaseInsensitiveMatch(t *testing.T) {
	q := mustAnalyze(t, "FROM ORGANIC yesterday today GROUP BY TK SELECT OJI")
	g := q.GroupBys[0].Group.(*sem.FieldGroup)
	assert.Equal(t, "tk", g.Field.Names["organic"])
	mustAnalyze(t, "FROM mixed yesterday today SELECT Foo, FOO")
	requireError(t, "FROM mixed yesterday today SELECT foo", srcfiles.AmbiguousName, "FOO, Foo")
}

func TestMetricAliasAsField(t *testing.T) {
	requireError(t, "FROM organic yesterday today GROUP BY c SELECT count() AS c", srcfiles.MetricAliasAsField, "Metric alias cannot be used as a field")
	requireError(t, "FROM organic yesterday today WHERE c > 1 SELECT count() AS c", srcfiles.MetricAliasAsField, "Metric alias cannot be used as a field")
	q := mustAnalyze(t, "FROM organic yesterday today SELECT count() AS c, c * 2")
	b := q.Selects[1].Metric.(*sem.AggBinary)
	assert.Equal(t, &sem.Named{AST: b.LHS.(*sem.Named).AST, Name: "c", Index: 0}, b.LHS)
	assert.Equal(t, 2.0, b.RHS.(*sem.Number).Value)
}

func TestNotComputedYet(t *testing.T) {
	for _, query := range []string{
		"FROM organic yesterday today SELECT c * 2, count() AS c",
		"FROM organic yesterday today SELECT count() AS c, c + d, sum(oji) AS d",
		"FROM organic yesterday today GROUP BY tk[2 BY distinct(ojc)] SELECT count()",
		"FROM organic yesterday today GROUP BY tk[2 BY running(count())] SELECT count()",
		"FROM organic yesterday today GROUP BY tk[2 BY c] SELECT count() AS c",
		"FROM organic yesterday today GROUP BY tk HAVING c > 1 SELECT count() AS c",
		"FROM organic yesterday today GROUP BY tk SELECT distinct(ojc HAVING distinct(oji) > 1)",
		"FROM organic yesterday today GROUP BY tk SELECT sum_over(ojc, running(count()))",
		"FROM organic yesterday today GROUP BY tk, ojc SELECT count() AS c, parent(c)",
	} {
		requireError(t, query, srcfiles.ValidationError, "Cannot use value that has not been computed yet")
	}
	mustAnalyze(t, "FROM organic yesterday today GROUP BY tk SELECT count() AS c, running(c), lag(1, c) HAVING c > 1")
}

func TestParentDepth(t *testing.T) {
	requireError(t, "FROM organic yesterday today SELECT parent(count())", srcfiles.ValidationError, "PARENT() requires")
	requireError(t, "FROM organic yesterday today GROUP BY tk SELECT parent(parent(count()))", srcfiles.ValidationError, "PARENT() requires")
	mustAnalyze(t, "FROM organic yesterday today GROUP BY tk, time(1h) SELECT parent(parent(count()))")
}

func TestCrossDataset(t *testing.T) {
	requireError(t, "FROM organic yesterday today AS A, organic AS B WHERE A.oji > B.ojc", srcfiles.ValidationError, "Cannot mix fields of datasets A and B")
	q := mustAnalyze(t, "FROM organic yesterday today AS A, organic AS B WHERE A.tk = 'a' AND B.oji > 10 SELECT A.oji + B.oji")
	and := q.Filter.(*sem.And)
	assert.Equal(t, "A", and.LHS.(*sem.QualifiedFilter).Dataset)
	assert.Equal(t, "B", and.RHS.(*sem.QualifiedFilter).Dataset)
	sum := q.Selects[0].Metric.(*sem.AggBinary)
	assert.Equal(t, "A", sum.LHS.(*sem.DocStats).Metric.(*sem.QualifiedMetric).Dataset)
	assert.Equal(t, "B", sum.RHS.(*sem.DocStats).Metric.(*sem.QualifiedMetric).Dataset)
}

func TestLenientMismatch(t *testing.T) {
	requireError(t, "FROM organic yesterday today WHERE tk = 5", srcfiles.ValidationError, "String field tk compared with non-string value 5")
	q, err := analyze(t, "FROM organic yesterday today WHERE tk = 5", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"String field tk compared with non-string value 5"}, q.Warnings)
	assert.Equal(t, sem.Term{Str: "5"}, q.Filter.(*sem.TermEquals).Term)
}

func TestTerms(t *testing.T) {
	q := mustAnalyze(t, "FROM organic yesterday today WHERE tk IN ('b', 'a', 'b') AND oji != 10")
	and := q.Filter.(*sem.And)
	assert.Equal(t, []sem.Term{{Str: "a"}, {Str: "b"}}, and.LHS.(*sem.TermIn).Terms)
	not := and.RHS.(*sem.Not)
	assert.Equal(t, sem.Term{Int: 10, IsInt: true}, not.Filter.(*sem.TermEquals).Term)
}

func TestBetweenBounds(t *testing.T) {
	q := mustAnalyze(t, "FROM organic yesterday today WHERE oji BETWEEN 10 AND 100")
	b := q.Filter.(*sem.Between)
	assert.Equal(t, int64(10), b.Lower)
	assert.Equal(t, int64(100), b.Upper)
	p, err := parser.ParseQuery("FROM organic yesterday today WHERE oji BETWEEN 10 AND 100", parser.Legacy)
	require.NoError(t, err)
	q, err = semantic.Analyze(context.Background(), p, testCatalog(t), semantic.Options{Now: time.Date(2015, 1, 2, 0, 0, 0, 0, zone)})
	require.NoError(t, err)
	assert.Equal(t, int64(101), q.Filter.(*sem.Between).Upper)
}

func TestRegexpValidation(t *testing.T) {
	requireError(t, `FROM organic yesterday today WHERE tk =~ "a("`, srcfiles.ValidationError, "Invalid regular expression")
	requireError(t, `FROM organic yesterday today WHERE tk =~ "(a{1000}){1000}"`, srcfiles.ValidationError, "")
}

func TestBucketInterval(t *testing.T) {
	requireError(t, "FROM organic yesterday today GROUP BY bucket(oji, 1, 100, 10)", srcfiles.ValidationError,
		"Bucket range should be a multiple of the interval. To correct, decrease the upper bound to 91 or increase to 101")
	q := mustAnalyze(t, "FROM organic yesterday today GROUP BY bucket(ojc, 1, 11, 2, true)")
	assert.True(t, q.GroupBys[0].WithDefault)
}

func TestBucketOverflow(t *testing.T) {
	requireError(t, "FROM organic yesterday today GROUP BY bucket(oji, -9223372036854775807, 9223372036854775807, 3)", srcfiles.ValidationError,
		"Bucket range should be a multiple of the interval. To correct, decrease the upper bound to 9223372036854775805")
	requireError(t, "FROM organic yesterday today GROUP BY bucket(oji, -9223372036854775807, 9223372036854775807, 2)", srcfiles.ValidationError,
		"Too many buckets")
	requireError(t, "FROM organic yesterday today GROUP BY bucket(oji, -4611686018427387904, 4611686018427387904, 4294967296)", srcfiles.ValidationError,
		"Too many buckets")
	q := mustAnalyze(t, "FROM organic yesterday today GROUP BY bucket(oji, -9223372036854775807, 9223372036854775807, 9223372036854775807)")
	b := q.GroupBys[0].Group.(*sem.BucketGroup)
	assert.Equal(t, int64(9223372036854775807), b.Interval)
}

func TestBucketGroupLimit(t *testing.T) {
	query := "FROM organic yesterday today GROUP BY bucket(oji, 0, 1000, 10)"
	p, err := parser.ParseQuery(query, parser.IQL2)
	require.NoError(t, err)
	_, err = semantic.Analyze(context.Background(), p, testCatalog(t), semantic.Options{
		Now:        time.Date(2015, 1, 2, 0, 0, 0, 0, zone),
		Location:   zone,
		GroupLimit: 50,
	})
	require.Error(t, err)
	assert.Equal(t, srcfiles.GroupLimit, srcfiles.KindOf(err))
	assert.Contains(t, err.Error(), "Number of buckets [100] exceeds the group limit [50]")
	_, err = semantic.Analyze(context.Background(), p, testCatalog(t), semantic.Options{
		Now:        time.Date(2015, 1, 2, 0, 0, 0, 0, zone),
		Location:   zone,
		GroupLimit: 100,
	})
	assert.NoError(t, err)
}

func TestTimeBucketRemedy(t *testing.T) {
	requireError(t, "FROM organic 10d today GROUP BY time(1w)", srcfiles.ValidationError,
		"You requested a time period (10 days) for dataset organic not evenly divisible by the bucket size (7 days). To correct, increase the time range by 4 days or reduce the time range by 3 days")
	requireError(t, "FROM organic 10s today GROUP BY time(3b)", srcfiles.ValidationError,
		"increase the time range by 2 seconds or reduce the time range by 1 seconds")
	requireError(t, "FROM organic 100s today GROUP BY time(7b)", srcfiles.ValidationError,
		"increase the time range by 12 seconds or reduce the time range by 2 seconds")
	q := mustAnalyze(t, "FROM organic yesterday today GROUP BY time(6b)")
	assert.Equal(t, sem.Period{Seconds: 4 * 3600}, q.GroupBys[0].Group.(*sem.TimeGroup).Period)
	q = mustAnalyze(t, "FROM organic yesterday today GROUP BY time()")
	assert.Equal(t, sem.Period{Seconds: 3600}, q.GroupBys[0].Group.(*sem.TimeGroup).Period)
	q = mustAnalyze(t, "FROM organic 2014-01-01 2015-01-01 GROUP BY time(1q)")
	assert.Equal(t, sem.Period{Months: 3}, q.GroupBys[0].Group.(*sem.TimeGroup).Period)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "1 days 1 hours 1 minutes 1 seconds", semantic.FormatSeconds(90061))
	assert.Equal(t, "2 hours", semantic.FormatSeconds(7200))
	assert.Equal(t, "0 seconds", semantic.FormatSeconds(0))
}

func TestLimits(t *testing.T) {
	requireError(t, "FROM organic yesterday today LIMIT 0", srcfiles.ValidationError, "Query Limit should be a positive, not exceeding 2147483646")
	requireError(t, "FROM organic yesterday today LIMIT 2147483647", srcfiles.ValidationError, "Query Limit should be a positive, not exceeding 2147483646")
	requireError(t, "FROM organic yesterday today GROUP BY tk[2147483647]", srcfiles.ValidationError, "Top-K limit should be non-negative and less than 2147483646")
	requireError(t, "FROM organic yesterday today GROUP BY tk[2147483646]", srcfiles.ValidationError, "Top-K limit should be non-negative and less than 2147483646")
	q := mustAnalyze(t, "FROM organic yesterday today GROUP BY tk[2147483645]")
	assert.Equal(t, 2147483645, *q.GroupBys[0].Group.(*sem.FieldGroup).Limit)
	q = mustAnalyze(t, "FROM organic yesterday today GROUP BY tk[0] LIMIT 2147483646")
	assert.Equal(t, 0, *q.GroupBys[0].Group.(*sem.FieldGroup).Limit)
	assert.Equal(t, 2147483646, q.Limit)
}

func TestDimensions(t *testing.T) {
	q := mustAnalyze(t, "FROM organic yesterday today SELECT ctr, dayofweek")
	per := q.Selects[0].Metric.(*sem.DocStats).Metric.(*sem.PerDataset)
	assert.IsType(t, &sem.DocBinary{}, per.Metrics["organic"])
	requireError(t, "FROM organic yesterday today GROUP BY ctr", srcfiles.ValidationError, "Dimension ctr of dataset organic is a metric")
	requireError(t, "FROM organic yesterday today SELECT loop1", srcfiles.ValidationError, "Dimension cycle: organic.loop1 -> organic.loop2 -> organic.loop1")
}

func TestWarnings(t *testing.T) {
	q := mustAnalyze(t, `FROM legacyorganic yesterday today WHERE tk = "\'a" SELECT avg(oji / ojc), avg(oji / ojc)`)
	assert.Equal(t, []string{
		"Unnecessary escape of ' in string literal",
		"Dataset legacyorganic is deprecated",
		"avg() of a per-document division averages the ratios; use avg(a)/avg(b) for the ratio of totals",
	}, q.Warnings)
}

func TestHaving(t *testing.T) {
	q := mustAnalyze(t, "FROM organic yesterday today GROUP BY tk HAVING count() = 4 SELECT count()")
	cmp := q.GroupBys[0].Having.(*sem.AggCompare)
	assert.Equal(t, "=", cmp.Op)
	assert.Equal(t, 4.0, cmp.RHS.(*sem.Number).Value)
}

func TestWithDefault(t *testing.T) {
	requireError(t, "FROM organic yesterday today GROUP BY time(1h) WITH DEFAULT", srcfiles.ValidationError, "WITH DEFAULT applies only")
	q := mustAnalyze(t, "FROM organic yesterday today GROUP BY tk NOT IN ('a') WITH DEFAULT")
	g := q.GroupBys[0].Group.(*sem.FieldGroup)
	assert.True(t, g.Exclude)
	assert.True(t, q.GroupBys[0].WithDefault)
}
