// Package optimizer rewrites a compiled plan into its simplest equivalent
// form.  Queries that differ only in how constants are spelled produce the
// same plan after optimization and therefore the same cache key.
package optimizer

import (
	"github.com/brimdata/sift/compiler/dag"
)

// Optimize folds the expressions of plan, drops document expressions that
// cannot change a result, and merges adjacent filters.  plan is modified
// in place.
func Optimize(plan *dag.Plan) *dag.Plan {
	for _, cmd := range plan.Commands {
		foldCommand(cmd)
	}
	plan.Commands = mergeFilters(plan.Commands)
	plan.Commands = removeNoops(plan.Commands)
	if out := plan.Output; out != nil {
		for k, e := range out.Selects {
			out.Selects[k] = foldAgg(e)
		}
		if out.Having != nil {
			out.Having = foldAggFilter(out.Having)
			if isAggTrue(out.Having) {
				out.Having = nil
			}
		}
	}
	return plan
}

// mergeFilters merges adjacent filter commands so that "where a" followed
// by "where b" becomes "where a and b".
func mergeFilters(seq dag.Seq) dag.Seq {
	// Start at the next to last element and work toward the first.
	for i := len(seq) - 2; i >= 0; i-- {
		f1, ok := seq[i].(*dag.Filter)
		if !ok {
			continue
		}
		f2, ok := seq[i+1].(*dag.Filter)
		if !ok {
			continue
		}
		for alias, f := range f2.Filters {
			if prev, ok := f1.Filters[alias]; ok {
				f = foldFilter(&dag.And{Kind: "And", Exprs: []dag.DocFilter{prev, f}})
			}
			f1.Filters[alias] = f
		}
		seq.Delete(i+1, i+2)
	}
	return seq
}

// removeNoops deletes filters that keep every document and group filters
// that keep every group.
func removeNoops(seq dag.Seq) dag.Seq {
	for i := 0; i < len(seq); i++ {
		switch cmd := seq[i].(type) {
		case *dag.Filter:
			if len(cmd.Filters) != 0 {
				continue
			}
		case *dag.FilterGroups:
			if !isAggTrue(cmd.Filter) {
				continue
			}
		default:
			continue
		}
		seq.Delete(i, i+1)
		i--
	}
	return seq
}

func foldCommand(cmd dag.Command) {
	switch cmd := cmd.(type) {
	case *dag.Filter:
		foldFilters(cmd.Filters)
		for alias, f := range cmd.Filters {
			if dag.IsTrue(f) {
				delete(cmd.Filters, alias)
			}
		}
	case *dag.FieldRegroup:
		if cmd.By != nil {
			cmd.By = foldAgg(cmd.By)
		}
	case *dag.MetricRegroup:
		foldMetrics(cmd.Metrics)
	case *dag.RandomRegroup:
		foldMetrics(cmd.Metrics)
	case *dag.ExplodeGroups:
		for _, b := range cmd.Buckets {
			foldFilters(b.Filters)
			for alias, f := range b.Filters {
				if dag.IsFalse(f) {
					delete(b.Filters, alias)
				}
			}
		}
	case *dag.GetGroupStats:
		for _, s := range cmd.Stats {
			foldSum(s.Metrics)
		}
	case *dag.RegroupIntoParent:
		cmd.Expr = foldAgg(cmd.Expr)
		if cmd.Having != nil {
			cmd.Having = foldAggFilter(cmd.Having)
			if isAggTrue(cmd.Having) {
				cmd.Having = nil
			}
		}
	case *dag.ComputeGroups:
		cmd.Expr = foldAgg(cmd.Expr)
	case *dag.FilterGroups:
		cmd.Filter = foldAggFilter(cmd.Filter)
	}
}

func foldMetrics(metrics map[string]dag.DocMetric) {
	for alias, m := range metrics {
		metrics[alias] = foldMetric(m)
	}
}

// foldSum folds the metrics of a sum and drops those that are zero for
// every document since a dataset with no entry contributes nothing.
func foldSum(metrics map[string]dag.DocMetric) {
	foldMetrics(metrics)
	for alias, m := range metrics {
		if isConst(m, 0) {
			delete(metrics, alias)
		}
	}
}

func foldFilters(filters map[string]dag.DocFilter) {
	for alias, f := range filters {
		filters[alias] = foldFilter(f)
	}
}
