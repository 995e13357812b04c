package optimizer

import (
	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/pkg/anymath"
)

func isConst(m dag.DocMetric, v int64) bool {
	c, ok := m.(*dag.Const)
	return ok && c.Value == v
}

func isNumber(e dag.AggExpr, v float64) bool {
	n, ok := e.(*dag.Number)
	return ok && n.Value == v
}

func isAggTrue(f dag.AggFilter) bool {
	b, ok := f.(*dag.AggBool)
	return ok && b.Value
}

func isAggFalse(f dag.AggFilter) bool {
	b, ok := f.(*dag.AggBool)
	return ok && !b.Value
}

func foldMetric(m dag.DocMetric) dag.DocMetric {
	switch m := m.(type) {
	case *dag.DocBinary:
		lhs, rhs := foldMetric(m.LHS), foldMetric(m.RHS)
		l, lok := lhs.(*dag.Const)
		r, rok := rhs.(*dag.Const)
		if lok && rok {
			if v, ok := evalInt(m.Op, l.Value, r.Value); ok {
				return dag.NewConst(v)
			}
		}
		switch {
		case (m.Op == "+" || m.Op == "-") && isConst(rhs, 0):
			return lhs
		case m.Op == "+" && isConst(lhs, 0):
			return rhs
		case (m.Op == "*" || m.Op == "/") && isConst(rhs, 1):
			return lhs
		case m.Op == "*" && isConst(lhs, 1):
			return rhs
		case m.Op == "*" && (isConst(lhs, 0) || isConst(rhs, 0)):
			return dag.NewConst(0)
		}
		return &dag.DocBinary{Kind: "DocBinary", Op: m.Op, LHS: lhs, RHS: rhs}
	case *dag.DocUnary:
		operand := foldMetric(m.Operand)
		if c, ok := operand.(*dag.Const); ok {
			if v, ok := anymath.UnaryInt64(m.Op, c.Value); ok {
				return dag.NewConst(v)
			}
		}
		if u, ok := operand.(*dag.DocUnary); ok && m.Op == "-" && u.Op == "-" {
			return u.Operand
		}
		return &dag.DocUnary{Kind: "DocUnary", Op: m.Op, Operand: operand}
	case *dag.DocCond:
		cond := foldFilter(m.Cond)
		then, els := foldMetric(m.Then), foldMetric(m.Else)
		if b, ok := cond.(*dag.Bool); ok {
			if b.Value {
				return then
			}
			return els
		}
		return &dag.DocCond{Kind: "DocCond", Cond: cond, Then: then, Else: els}
	case *dag.FilterMetric:
		f := foldFilter(m.Filter)
		if b, ok := f.(*dag.Bool); ok {
			if b.Value {
				return dag.NewConst(1)
			}
			return dag.NewConst(0)
		}
		return &dag.FilterMetric{Kind: "FilterMetric", Filter: f}
	}
	return m
}

// evalInt applies a document-level operator to constants.  Division and
// modulus by zero are left for the executor.
func evalInt(op string, a, b int64) (int64, bool) {
	fn := anymath.Lookup(op)
	if fn == nil || ((op == "/" || op == "%") && b == 0) {
		return 0, false
	}
	return fn.Int64(a, b), true
}

func foldFilter(f dag.DocFilter) dag.DocFilter {
	switch f := f.(type) {
	case *dag.Compare:
		lhs, rhs := foldMetric(f.LHS), foldMetric(f.RHS)
		l, lok := lhs.(*dag.Const)
		r, rok := rhs.(*dag.Const)
		if lok && rok {
			if v, ok := anymath.Compare(f.Op, l.Value, r.Value); ok {
				return dag.NewBool(v)
			}
		}
		return &dag.Compare{Kind: "Compare", Op: f.Op, LHS: lhs, RHS: rhs}
	case *dag.Between:
		m := foldMetric(f.Metric)
		if c, ok := m.(*dag.Const); ok {
			return dag.NewBool(f.Lower <= c.Value && c.Value < f.Upper)
		}
		if f.Lower >= f.Upper {
			return dag.False
		}
		return &dag.Between{Kind: "Between", Metric: m, Lower: f.Lower, Upper: f.Upper}
	case *dag.Not:
		inner := foldFilter(f.Filter)
		switch inner := inner.(type) {
		case *dag.Bool:
			return dag.NewBool(!inner.Value)
		case *dag.Not:
			return inner.Filter
		}
		return &dag.Not{Kind: "Not", Filter: inner}
	case *dag.And:
		var exprs []dag.DocFilter
		for _, e := range flatten(f.Exprs, true) {
			e = foldFilter(e)
			if dag.IsFalse(e) {
				return dag.False
			}
			if !dag.IsTrue(e) {
				exprs = append(exprs, flatten([]dag.DocFilter{e}, true)...)
			}
		}
		switch len(exprs) {
		case 0:
			return dag.True
		case 1:
			return exprs[0]
		}
		return &dag.And{Kind: "And", Exprs: exprs}
	case *dag.Or:
		var exprs []dag.DocFilter
		for _, e := range flatten(f.Exprs, false) {
			e = foldFilter(e)
			if dag.IsTrue(e) {
				return dag.True
			}
			if !dag.IsFalse(e) {
				exprs = append(exprs, flatten([]dag.DocFilter{e}, false)...)
			}
		}
		switch len(exprs) {
		case 0:
			return dag.False
		case 1:
			return exprs[0]
		}
		return &dag.Or{Kind: "Or", Exprs: exprs}
	case *dag.TermIn:
		if len(f.Terms) == 0 {
			return dag.False
		}
		if len(f.Terms) == 1 {
			return &dag.TermIs{Kind: "TermIs", Field: f.Field, Term: f.Terms[0]}
		}
	case *dag.Sample:
		if f.Metric != nil {
			return &dag.Sample{
				Kind:        "Sample",
				Metric:      foldMetric(f.Metric),
				Numerator:   f.Numerator,
				Denominator: f.Denominator,
				Salt:        f.Salt,
			}
		}
	}
	return f
}

// flatten lifts the operands of nested conjunctions (or disjunctions
// when and is false) into one list.
func flatten(exprs []dag.DocFilter, and bool) []dag.DocFilter {
	var out []dag.DocFilter
	for _, e := range exprs {
		switch e := e.(type) {
		case *dag.And:
			if and {
				out = append(out, flatten(e.Exprs, and)...)
				continue
			}
		case *dag.Or:
			if !and {
				out = append(out, flatten(e.Exprs, and)...)
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func foldAgg(e dag.AggExpr) dag.AggExpr {
	switch e := e.(type) {
	case *dag.DocStats:
		foldSum(e.Metrics)
		if len(e.Metrics) == 0 {
			return dag.NewNumber(0)
		}
		return e
	case *dag.AggBinary:
		lhs, rhs := foldAgg(e.LHS), foldAgg(e.RHS)
		l, lok := lhs.(*dag.Number)
		r, rok := rhs.(*dag.Number)
		if lok && rok {
			if v, ok := evalFloat(e.Op, l.Value, r.Value); ok {
				return dag.NewNumber(v)
			}
		}
		switch {
		case (e.Op == "+" || e.Op == "-") && isNumber(rhs, 0):
			return lhs
		case e.Op == "+" && isNumber(lhs, 0):
			return rhs
		case (e.Op == "*" || e.Op == "/") && isNumber(rhs, 1):
			return lhs
		case e.Op == "*" && isNumber(lhs, 1):
			return rhs
		}
		return &dag.AggBinary{Kind: "AggBinary", Op: e.Op, LHS: lhs, RHS: rhs}
	case *dag.AggUnary:
		operand := foldAgg(e.Operand)
		if n, ok := operand.(*dag.Number); ok && e.Op == "-" {
			return dag.NewNumber(-n.Value)
		}
		return &dag.AggUnary{Kind: "AggUnary", Op: e.Op, Operand: operand}
	case *dag.AggFunc:
		fn := &dag.AggFunc{Kind: "AggFunc", Name: e.Name}
		constant := true
		for _, arg := range e.Args {
			arg = foldAgg(arg)
			if _, ok := arg.(*dag.Number); !ok {
				constant = false
			}
			fn.Args = append(fn.Args, arg)
		}
		if constant && len(fn.Args) > 0 {
			v := fn.Args[0].(*dag.Number).Value
			for _, arg := range fn.Args[1:] {
				w := arg.(*dag.Number).Value
				v = anymath.Lookup(e.Name).Float64(v, w)
			}
			return dag.NewNumber(v)
		}
		return fn
	case *dag.AggCond:
		cond := foldAggFilter(e.Cond)
		then, els := foldAgg(e.Then), foldAgg(e.Else)
		if b, ok := cond.(*dag.AggBool); ok {
			if b.Value {
				return then
			}
			return els
		}
		return &dag.AggCond{Kind: "AggCond", Cond: cond, Then: then, Else: els}
	case *dag.Window:
		return &dag.Window{Kind: "Window", N: e.N, Expr: foldAgg(e.Expr)}
	case *dag.Lag:
		return &dag.Lag{Kind: "Lag", N: e.N, Expr: foldAgg(e.Expr)}
	case *dag.Running:
		return &dag.Running{Kind: "Running", Expr: foldAgg(e.Expr)}
	}
	return e
}

// evalFloat applies an aggregate operator to constants.  Division and
// modulus by zero are left for the executor.
func evalFloat(op string, a, b float64) (float64, bool) {
	fn := anymath.Lookup(op)
	if fn == nil || op == "min" || op == "max" || ((op == "/" || op == "%") && b == 0) {
		return 0, false
	}
	return fn.Float64(a, b), true
}

func foldAggFilter(f dag.AggFilter) dag.AggFilter {
	switch f := f.(type) {
	case *dag.AggCompare:
		lhs, rhs := foldAgg(f.LHS), foldAgg(f.RHS)
		l, lok := lhs.(*dag.Number)
		r, rok := rhs.(*dag.Number)
		if lok && rok {
			if v, ok := anymath.Compare(f.Op, l.Value, r.Value); ok {
				return &dag.AggBool{Kind: "AggBool", Value: v}
			}
		}
		return &dag.AggCompare{Kind: "AggCompare", Op: f.Op, LHS: lhs, RHS: rhs}
	case *dag.AggNot:
		inner := foldAggFilter(f.Filter)
		switch inner := inner.(type) {
		case *dag.AggBool:
			return &dag.AggBool{Kind: "AggBool", Value: !inner.Value}
		case *dag.AggNot:
			return inner.Filter
		}
		return &dag.AggNot{Kind: "AggNot", Filter: inner}
	case *dag.AggAnd:
		lhs, rhs := foldAggFilter(f.LHS), foldAggFilter(f.RHS)
		switch {
		case isAggFalse(lhs) || isAggFalse(rhs):
			return &dag.AggBool{Kind: "AggBool", Value: false}
		case isAggTrue(lhs):
			return rhs
		case isAggTrue(rhs):
			return lhs
		}
		return &dag.AggAnd{Kind: "AggAnd", LHS: lhs, RHS: rhs}
	case *dag.AggOr:
		lhs, rhs := foldAggFilter(f.LHS), foldAggFilter(f.RHS)
		switch {
		case isAggTrue(lhs) || isAggTrue(rhs):
			return &dag.AggBool{Kind: "AggBool", Value: true}
		case isAggFalse(lhs):
			return rhs
		case isAggFalse(rhs):
			return lhs
		}
		return &dag.AggOr{Kind: "AggOr", LHS: lhs, RHS: rhs}
	}
	return f
}
