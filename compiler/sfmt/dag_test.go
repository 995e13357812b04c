package sfmt_test

import (
	"testing"

	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/compiler/sfmt"
	"github.com/stretchr/testify/assert"
)

func TestPlan(t *testing.T) {
	limit := 2
	plan := &dag.Plan{
		Datasets: []*dag.Dataset{{
			Name:      "organic",
			Alias:     "organic",
			Start:     1420092000,
			End:       1420178400,
			TimeField: "unixtime",
		}},
		Commands: dag.Seq{
			&dag.Filter{Kind: "Filter", Filters: map[string]dag.DocFilter{
				"organic": &dag.Compare{
					Kind: "Compare",
					Op:   ">",
					LHS:  &dag.Field{Kind: "Field", Name: "oji"},
					RHS:  dag.NewConst(3),
				},
			}},
			&dag.FieldRegroup{
				Kind:   "FieldRegroup",
				Fields: map[string]string{"organic": "tk"},
				Limit:  &limit,
			},
			&dag.GetGroupStats{Kind: "GetGroupStats", Stats: []*dag.Stat{{
				Name:    "s0",
				Metrics: map[string]dag.DocMetric{"organic": dag.NewConst(1)},
			}}},
		},
		Output: &dag.Output{
			Names:    []string{"n"},
			Selects:  []dag.AggExpr{&dag.Lookup{Kind: "Lookup", Name: "s0", Depth: 1}},
			Rounding: -1,
		},
	}
	expected := `from organic [2015-01-01 06:00:00, 2015-01-02 06:00:00) time unixtime
filter organic:oji>3
| regroup field organic.tk top 2
| stats
  s0 = sum(organic:1)
| output
  $0 n = s0@1
`
	assert.Equal(t, expected, sfmt.Plan(plan))
}

func TestExprs(t *testing.T) {
	e := &dag.AggBinary{
		Kind: "AggBinary",
		Op:   "*",
		LHS: &dag.AggBinary{
			Kind: "AggBinary",
			Op:   "+",
			LHS:  &dag.Column{Kind: "Column", Index: 0},
			RHS:  dag.NewNumber(1.5),
		},
		RHS: &dag.Running{Kind: "Running", Expr: &dag.Lookup{Kind: "Lookup", Name: "s1", Depth: 2}},
	}
	assert.Equal(t, "($0+1.5)*running(s1@2)", sfmt.AggExpr(e))
	f := &dag.Or{Kind: "Or", Exprs: []dag.DocFilter{
		&dag.TermIs{Kind: "TermIs", Field: "tk", Term: dag.Term{Str: "a"}},
		&dag.Not{Kind: "Not", Filter: &dag.Regexp{Kind: "Regexp", Field: "tk", Pattern: "b.*"}},
	}}
	assert.Equal(t, `tk="a" or !tk=~"b.*"`, sfmt.DocFilter(f))
}

func TestNamesWithVerbs(t *testing.T) {
	f := &dag.And{Kind: "And", Exprs: []dag.DocFilter{
		&dag.Between{Kind: "Between", Metric: &dag.Field{Kind: "Field", Name: "pct%d"}, Lower: 1, Upper: 5},
		&dag.Sample{Kind: "Sample", Field: "rate%s", Numerator: 1, Denominator: 4, Salt: "x"},
	}}
	assert.Equal(t, `between(pct%d, 1, 5) and sample(rate%s, 1, 4, "x")`, sfmt.DocFilter(f))
	assert.Equal(t, "1e+21", sfmt.AggExpr(dag.NewNumber(1e21)))
}
