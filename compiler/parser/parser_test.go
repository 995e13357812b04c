package parser_test

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/brimdata/sift/compiler/ast"
	"github.com/brimdata/sift/compiler/parser"
	"github.com/brimdata/sift/compiler/srcfiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, name string) []string {
	file, err := os.Open(name)
	require.NoError(t, err)
	defer file.Close()
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestValid(t *testing.T) {
	for _, line := range readLines(t, "valid.iql") {
		a, err := parser.ParseQuery(line, parser.IQL2)
		if assert.NoError(t, err, "query: %q", line) {
			_, err := json.Marshal(a.Parsed())
			assert.NoError(t, err, "query: %q", line)
		}
	}
}

func TestInvalid(t *testing.T) {
	for _, line := range readLines(t, "invalid.iql") {
		_, err := parser.ParseQuery(line, parser.IQL2)
		if assert.Error(t, err, "query: %q", line) {
			assert.Equal(t, srcfiles.ParseError, srcfiles.KindOf(err), "query: %q", line)
		}
	}
}

func TestErrorPosition(t *testing.T) {
	_, err := parser.ParseQuery("FROM organic yesterday today\nSELECT count() extra", parser.IQL2)
	require.Error(t, err)
	assert.Equal(t, `ParseErrorException: unexpected "extra", expected end of query at line 2, column 16:
SELECT count() extra
               ~~~~~`, err.Error())
}

func TestDialectNot(t *testing.T) {
	const query = `FROM organic yesterday today WHERE NOT tk = "a" SELECT count()`
	_, err := parser.ParseQuery(query, parser.IQL2)
	require.NoError(t, err)
	_, err = parser.ParseQuery(query, parser.Legacy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unary NOT is not supported in the legacy dialect")
}

func TestDialectRegexp(t *testing.T) {
	const query = `FROM organic yesterday today WHERE tk =~ [ab].* SELECT count()`
	_, err := parser.ParseQuery(query, parser.IQL2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected quoted regular expression")
	a, err := parser.ParseQuery(query, parser.Legacy)
	require.NoError(t, err)
	m, ok := a.Parsed().Where.(*ast.RegexpMatch)
	require.True(t, ok)
	assert.Equal(t, "[ab].*", m.Pattern)
}

func TestDialectBetween(t *testing.T) {
	const query = `FROM organic yesterday today WHERE oji BETWEEN 1 AND 5 SELECT count()`
	a, err := parser.ParseQuery(query, parser.IQL2)
	require.NoError(t, err)
	assert.False(t, a.Parsed().Where.(*ast.BetweenExpr).Inclusive)
	assert.Empty(t, a.Warnings())
	a, err = parser.ParseQuery(query, parser.Legacy)
	require.NoError(t, err)
	assert.True(t, a.Parsed().Where.(*ast.BetweenExpr).Inclusive)
	assert.Equal(t, []string{"BETWEEN includes its upper bound in the legacy dialect"}, a.Warnings())
}

func TestDialectMonthUnit(t *testing.T) {
	const query = `FROM organic 1M today SELECT count()`
	a, err := parser.ParseQuery(query, parser.IQL2)
	require.NoError(t, err)
	ago := a.Parsed().Datasets[0].From.(*ast.TimeAgo)
	assert.Equal(t, []ast.PeriodTerm{{Count: 1, Unit: "month"}}, ago.Period.Terms)
	a, err = parser.ParseQuery(query, parser.Legacy)
	require.NoError(t, err)
	ago = a.Parsed().Datasets[0].From.(*ast.TimeAgo)
	assert.Equal(t, []ast.PeriodTerm{{Count: 1, Unit: "minute"}}, ago.Period.Terms)
}

func TestTimeForms(t *testing.T) {
	a, err := parser.ParseQuery(`FROM organic "3 days ago" 2015-01-01T00:00:00, other 1420092000 today AS o SELECT count()`, parser.IQL2)
	require.NoError(t, err)
	ds := a.Parsed().Datasets
	require.Len(t, ds, 2)
	assert.Equal(t, []ast.PeriodTerm{{Count: 3, Unit: "day"}}, ds[0].From.(*ast.TimeAgo).Period.Terms)
	assert.Equal(t, "2015-01-01T00:00:00", ds[0].To.(*ast.TimeLiteral).Text)
	assert.Equal(t, int64(1420092000), ds[1].From.(*ast.TimeEpoch).Seconds)
	assert.Equal(t, "today", ds[1].To.(*ast.TimeWord).Word)
	assert.Equal(t, "o", ds[1].Alias.Name)
}

func TestInheritedRange(t *testing.T) {
	a, err := parser.ParseQuery(`FROM organic yesterday today AS a, organic AS b SELECT count()`, parser.IQL2)
	require.NoError(t, err)
	ds := a.Parsed().Datasets
	require.Len(t, ds, 2)
	assert.Nil(t, ds[1].From)
	assert.Nil(t, ds[1].To)
}

func TestGroupByForms(t *testing.T) {
	a, err := parser.ParseQuery(`FROM organic yesterday today GROUP BY tk[BOTTOM 3 BY oji] HAVING count() > 1, time(1w2d, "%Y", relative), oji > 5 WITH DEFAULT SELECT count()`, parser.IQL2)
	require.NoError(t, err)
	items := a.Parsed().GroupBy
	require.Len(t, items, 3)
	field := items[0].Spec.(*ast.FieldGroup)
	assert.True(t, field.Bottom)
	assert.Equal(t, "3", field.Limit.Text)
	assert.NotNil(t, field.By)
	assert.NotNil(t, items[0].Having)
	tg := items[1].Spec.(*ast.TimeGroup)
	assert.Equal(t, []ast.PeriodTerm{{Count: 1, Unit: "week"}, {Count: 2, Unit: "day"}}, tg.Period.Terms)
	assert.Equal(t, "%Y", tg.Format.Text)
	assert.True(t, tg.Relative)
	_, ok := items[2].Spec.(*ast.PredicateGroup)
	assert.True(t, ok)
	assert.True(t, items[2].WithDefault)
}

func TestUnnecessaryEscape(t *testing.T) {
	a, err := parser.ParseQuery(`FROM organic yesterday today WHERE tk = "it\'s" SELECT count()`, parser.IQL2)
	require.NoError(t, err)
	assert.Equal(t, "it's", a.Parsed().Where.(*ast.BinaryExpr).RHS.(*ast.Primitive).Text)
	assert.Equal(t, []string{"Unnecessary escape of ' in string literal"}, a.Warnings())
}

func TestParseExpr(t *testing.T) {
	files := srcfiles.NewList("FROM organic yesterday today SELECT dayofweek")
	off := files.Add("dimension dayofweek", "(((unixtime-280800)%604800)/86400)")
	e, err := parser.ParseExpr(files, off, parser.IQL2)
	require.NoError(t, err)
	b, ok := e.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "/", b.Op)
	assert.Equal(t, off+3, b.Pos())
}
