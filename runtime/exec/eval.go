package exec

import (
	"fmt"

	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/pkg/anymath"
)

// frame is a set of rows aggregates are evaluated over.  Each row belongs
// to a group of the top level.  A level frame has one row per group.  A
// term frame has one row per term and group and carries the document sums
// of that term in the group.
type frame struct {
	groups []int
	stats  map[*dag.DocStats][]float64
	cols   [][]float64
}

func (x *executor) levelFrame() *frame {
	n := x.top().size()
	groups := make([]int, n)
	for r := range groups {
		groups[r] = r + 1
	}
	return &frame{groups: groups}
}

func (f *frame) fill(v float64) []float64 {
	out := make([]float64, len(f.groups))
	for r := range out {
		out[r] = v
	}
	return out
}

func (x *executor) eval(f *frame, e dag.AggExpr) ([]float64, error) {
	switch e := e.(type) {
	case *dag.Number:
		return f.fill(e.Value), nil
	case *dag.DocStats:
		vals, ok := f.stats[e]
		if !ok {
			return nil, fmt.Errorf("document sums are only available per term")
		}
		return vals, nil
	case *dag.Lookup:
		anc, err := x.ancestors(e.Depth)
		if err != nil {
			return nil, err
		}
		vals, ok := x.levels[e.Depth].values[e.Name]
		if !ok {
			return nil, fmt.Errorf("value %s@%d has not been computed", e.Name, e.Depth)
		}
		out := make([]float64, len(f.groups))
		for r, g := range f.groups {
			out[r] = vals[anc[g]]
		}
		return out, nil
	case *dag.Column:
		if e.Index < 0 || e.Index >= len(f.cols) {
			return nil, fmt.Errorf("column %d is not available", e.Index)
		}
		return f.cols[e.Index], nil
	case *dag.AggBinary:
		fn := anymath.Lookup(e.Op)
		if fn == nil {
			return nil, fmt.Errorf("unknown aggregate operator %q", e.Op)
		}
		lhs, err := x.eval(f, e.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := x.eval(f, e.RHS)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(lhs))
		for r := range out {
			out[r] = fn.Float64(lhs[r], rhs[r])
		}
		return out, nil
	case *dag.AggUnary:
		vals, err := x.eval(f, e.Operand)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(vals))
		for r, v := range vals {
			var ok bool
			if out[r], ok = anymath.Unary(e.Op, v); !ok {
				return nil, fmt.Errorf("unknown aggregate operator %q", e.Op)
			}
		}
		return out, nil
	case *dag.AggFunc:
		fn := anymath.Lookup(e.Name)
		if fn == nil || len(e.Args) == 0 {
			return nil, fmt.Errorf("bad aggregate function %q", e.Name)
		}
		out, err := x.eval(f, e.Args[0])
		if err != nil {
			return nil, err
		}
		out = append([]float64(nil), out...)
		for _, arg := range e.Args[1:] {
			vals, err := x.eval(f, arg)
			if err != nil {
				return nil, err
			}
			for r, v := range vals {
				out[r] = fn.Float64(out[r], v)
			}
		}
		return out, nil
	case *dag.AggCond:
		cond, err := x.evalFilter(f, e.Cond)
		if err != nil {
			return nil, err
		}
		then, err := x.eval(f, e.Then)
		if err != nil {
			return nil, err
		}
		els, err := x.eval(f, e.Else)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(cond))
		for r, c := range cond {
			if c {
				out[r] = then[r]
			} else {
				out[r] = els[r]
			}
		}
		return out, nil
	case *dag.Window:
		return x.siblings(f, e.Expr, func(run []float64, out []float64) {
			var sum float64
			for k, v := range run {
				sum += v
				if k >= e.N {
					sum -= run[k-e.N]
				}
				out[k] = sum
			}
		})
	case *dag.Lag:
		return x.siblings(f, e.Expr, func(run []float64, out []float64) {
			for k := range run {
				if k >= e.N {
					out[k] = run[k-e.N]
				}
			}
		})
	case *dag.Running:
		return x.siblings(f, e.Expr, func(run []float64, out []float64) {
			var sum float64
			for k, v := range run {
				sum += v
				out[k] = sum
			}
		})
	}
	return nil, fmt.Errorf("unknown aggregate %T", e)
}

// siblings evaluates e and applies fn to each run of rows whose groups
// share a parent.  Rows of a run are contiguous in group order.
func (x *executor) siblings(f *frame, e dag.AggExpr, fn func(run, out []float64)) ([]float64, error) {
	if f.stats != nil {
		return nil, fmt.Errorf("window functions cannot be evaluated per term")
	}
	vals, err := x.eval(f, e)
	if err != nil {
		return nil, err
	}
	parents := x.top().parents
	out := make([]float64, len(vals))
	for start := 0; start < len(vals); {
		end := start + 1
		for end < len(vals) && parents[f.groups[end]] == parents[f.groups[start]] {
			end++
		}
		fn(vals[start:end], out[start:end])
		start = end
	}
	return out, nil
}

func (x *executor) evalFilter(f *frame, filter dag.AggFilter) ([]bool, error) {
	switch filter := filter.(type) {
	case *dag.AggBool:
		out := make([]bool, len(f.groups))
		for r := range out {
			out[r] = filter.Value
		}
		return out, nil
	case *dag.AggCompare:
		lhs, err := x.eval(f, filter.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := x.eval(f, filter.RHS)
		if err != nil {
			return nil, err
		}
		out := make([]bool, len(lhs))
		for r := range out {
			var ok bool
			if out[r], ok = anymath.Compare(filter.Op, lhs[r], rhs[r]); !ok {
				return nil, fmt.Errorf("unknown comparison %q", filter.Op)
			}
		}
		return out, nil
	case *dag.AggNot:
		inner, err := x.evalFilter(f, filter.Filter)
		if err != nil {
			return nil, err
		}
		for r := range inner {
			inner[r] = !inner[r]
		}
		return inner, nil
	case *dag.AggAnd:
		lhs, err := x.evalFilter(f, filter.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := x.evalFilter(f, filter.RHS)
		if err != nil {
			return nil, err
		}
		for r := range lhs {
			lhs[r] = lhs[r] && rhs[r]
		}
		return lhs, nil
	case *dag.AggOr:
		lhs, err := x.evalFilter(f, filter.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := x.evalFilter(f, filter.RHS)
		if err != nil {
			return nil, err
		}
		for r := range lhs {
			lhs[r] = lhs[r] || rhs[r]
		}
		return lhs, nil
	}
	return nil, fmt.Errorf("unknown aggregate filter %T", filter)
}

// docStats lists the document sums of e in evaluation order.
func docStats(e dag.AggExpr) []*dag.DocStats {
	var out []*dag.DocStats
	var walk func(dag.AggExpr)
	var walkFilter func(dag.AggFilter)
	walk = func(e dag.AggExpr) {
		switch e := e.(type) {
		case *dag.DocStats:
			out = append(out, e)
		case *dag.AggBinary:
			walk(e.LHS)
			walk(e.RHS)
		case *dag.AggUnary:
			walk(e.Operand)
		case *dag.AggFunc:
			for _, arg := range e.Args {
				walk(arg)
			}
		case *dag.AggCond:
			walkFilter(e.Cond)
			walk(e.Then)
			walk(e.Else)
		case *dag.Window:
			walk(e.Expr)
		case *dag.Lag:
			walk(e.Expr)
		case *dag.Running:
			walk(e.Expr)
		}
	}
	walkFilter = func(f dag.AggFilter) {
		switch f := f.(type) {
		case *dag.AggCompare:
			walk(f.LHS)
			walk(f.RHS)
		case *dag.AggNot:
			walkFilter(f.Filter)
		case *dag.AggAnd:
			walkFilter(f.LHS)
			walkFilter(f.RHS)
		case *dag.AggOr:
			walkFilter(f.LHS)
			walkFilter(f.RHS)
		}
	}
	walk(e)
	return out
}
