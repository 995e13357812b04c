package optimizer_test

import (
	"testing"

	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/compiler/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func field(name string) *dag.Field {
	return &dag.Field{Kind: "Field", Name: name}
}

func binary(op string, lhs, rhs dag.DocMetric) *dag.DocBinary {
	return &dag.DocBinary{Kind: "DocBinary", Op: op, LHS: lhs, RHS: rhs}
}

func TestFoldMetricIdentities(t *testing.T) {
	plan := &dag.Plan{
		Commands: dag.Seq{
			&dag.RandomRegroup{
				Kind: "RandomRegroup",
				Metrics: map[string]dag.DocMetric{
					"a": binary("+", field("x"), dag.NewConst(0)),
					"b": binary("*", dag.NewConst(1), binary("-", field("y"), binary("*", dag.NewConst(2), dag.NewConst(0)))),
				},
				Buckets: 4,
			},
		},
		Output: &dag.Output{},
	}
	optimizer.Optimize(plan)
	regroup := plan.Commands[0].(*dag.RandomRegroup)
	assert.Equal(t, field("x"), regroup.Metrics["a"])
	assert.Equal(t, field("y"), regroup.Metrics["b"])
}

func TestDivisionByZeroKept(t *testing.T) {
	plan := &dag.Plan{
		Commands: dag.Seq{
			&dag.GetGroupStats{
				Kind: "GetGroupStats",
				Stats: []*dag.Stat{{
					Name:    "s0",
					Metrics: map[string]dag.DocMetric{"a": binary("/", dag.NewConst(4), dag.NewConst(0))},
				}},
			},
		},
		Output: &dag.Output{
			Selects: []dag.AggExpr{
				&dag.AggBinary{Kind: "AggBinary", Op: "/", LHS: dag.NewNumber(1), RHS: dag.NewNumber(0)},
				&dag.AggBinary{Kind: "AggBinary", Op: "/", LHS: dag.NewNumber(9), RHS: dag.NewNumber(2)},
			},
		},
	}
	optimizer.Optimize(plan)
	stat := plan.Commands[0].(*dag.GetGroupStats).Stats[0]
	assert.IsType(t, &dag.DocBinary{}, stat.Metrics["a"])
	assert.IsType(t, &dag.AggBinary{}, plan.Output.Selects[0])
	assert.Equal(t, dag.NewNumber(4.5), plan.Output.Selects[1])
}

func TestZeroSumsDropped(t *testing.T) {
	plan := &dag.Plan{
		Commands: dag.Seq{
			&dag.GetGroupStats{
				Kind: "GetGroupStats",
				Stats: []*dag.Stat{{
					Name: "s0",
					Metrics: map[string]dag.DocMetric{
						"a": dag.NewConst(1),
						"b": binary("*", field("x"), dag.NewConst(0)),
					},
				}},
			},
		},
		Output: &dag.Output{},
	}
	optimizer.Optimize(plan)
	stat := plan.Commands[0].(*dag.GetGroupStats).Stats[0]
	assert.Equal(t, map[string]dag.DocMetric{"a": dag.NewConst(1)}, stat.Metrics)
}

func TestFilters(t *testing.T) {
	tk := &dag.TermIs{Kind: "TermIs", Field: "tk", Term: dag.Term{Str: "a"}}
	plan := &dag.Plan{
		Commands: dag.Seq{
			&dag.Filter{
				Kind: "Filter",
				Filters: map[string]dag.DocFilter{
					"a": &dag.And{Kind: "And", Exprs: []dag.DocFilter{dag.True, tk}},
					"b": &dag.Not{Kind: "Not", Filter: dag.False},
				},
			},
			&dag.Filter{
				Kind: "Filter",
				Filters: map[string]dag.DocFilter{
					"a": &dag.Compare{Kind: "Compare", Op: ">", LHS: field("x"), RHS: dag.NewConst(3)},
				},
			},
			&dag.Filter{
				Kind:    "Filter",
				Filters: map[string]dag.DocFilter{"b": dag.True},
			},
		},
		Output: &dag.Output{},
	}
	optimizer.Optimize(plan)
	require.Len(t, plan.Commands, 1)
	filter := plan.Commands[0].(*dag.Filter)
	require.Len(t, filter.Filters, 1)
	and, ok := filter.Filters["a"].(*dag.And)
	require.True(t, ok)
	require.Len(t, and.Exprs, 2)
	assert.Equal(t, tk, and.Exprs[0])
}

func TestEmptyFilterRemoved(t *testing.T) {
	plan := &dag.Plan{
		Commands: dag.Seq{
			&dag.Filter{
				Kind:    "Filter",
				Filters: map[string]dag.DocFilter{"a": &dag.Or{Kind: "Or", Exprs: []dag.DocFilter{dag.False, dag.True}}},
			},
			&dag.FilterGroups{
				Kind: "FilterGroups",
				Filter: &dag.AggCompare{
					Kind: "AggCompare",
					Op:   "<",
					LHS:  dag.NewNumber(1),
					RHS:  dag.NewNumber(2),
				},
			},
		},
		Output: &dag.Output{},
	}
	optimizer.Optimize(plan)
	assert.Empty(t, plan.Commands)
}

func TestExplodeDropsFalse(t *testing.T) {
	plan := &dag.Plan{
		Commands: dag.Seq{
			&dag.ExplodeGroups{
				Kind: "ExplodeGroups",
				Buckets: []*dag.Bucket{{
					Label: "1",
					Filters: map[string]dag.DocFilter{
						"a": &dag.Between{Kind: "Between", Metric: dag.NewConst(5), Lower: 1, Upper: 5},
						"b": &dag.Between{Kind: "Between", Metric: field("x"), Lower: 1, Upper: 5},
					},
				}},
			},
		},
		Output: &dag.Output{},
	}
	optimizer.Optimize(plan)
	bucket := plan.Commands[0].(*dag.ExplodeGroups).Buckets[0]
	assert.Len(t, bucket.Filters, 1)
	assert.Contains(t, bucket.Filters, "b")
}

func TestHavingFolded(t *testing.T) {
	plan := &dag.Plan{
		Output: &dag.Output{
			Having: &dag.AggOr{
				Kind: "AggOr",
				LHS:  &dag.AggCompare{Kind: "AggCompare", Op: "=", LHS: &dag.Column{Kind: "Column"}, RHS: dag.NewNumber(4)},
				RHS:  &dag.AggBool{Kind: "AggBool", Value: true},
			},
		},
	}
	optimizer.Optimize(plan)
	assert.Nil(t, plan.Output.Having)
}
