package semantic

import (
	"fmt"

	"github.com/brimdata/sift/compiler/ast"
	"github.com/brimdata/sift/compiler/semantic/sem"
	"github.com/brimdata/sift/compiler/srcfiles"
)

const notComputed = "Cannot use value that has not been computed yet"

// checker validates where each aggregate may be evaluated.  Aggregates are
// computed level by level as GROUP BY elements explode the group space, so
// a value is usable only where the pass that computes it has already run.
type checker struct {
	t *translator
}

func newChecker(t *translator) *checker {
	return &checker{t: t}
}

// evalContext describes where an aggregate is evaluated.
type evalContext struct {
	// depth is the number of GROUP BY levels exploded so far.
	depth int
	// named is the number of SELECT items that are computed.
	named int
	// term is set for metrics evaluated per term of a field while the
	// field is being exploded, e.g., the BY metric of a top-K.
	term bool
	// inner is set inside sum_over(), where window functions and
	// term iteration are unavailable.
	inner bool
}

func (c *checker) check(q *sem.Query) {
	n := len(q.GroupBys)
	for i, item := range q.GroupBys {
		if g, ok := item.Group.(*sem.FieldGroup); ok && g.By != nil {
			c.aggMetric(g.By, evalContext{depth: i, term: true})
		}
		if item.Having != nil {
			c.aggFilter(item.Having, evalContext{depth: i + 1})
		}
	}
	for i, s := range q.Selects {
		c.aggMetric(s.Metric, evalContext{depth: n, named: i})
	}
	if q.Having != nil {
		c.aggFilter(q.Having, evalContext{depth: n, named: len(q.Selects)})
	}
}

func (c *checker) error(n ast.Node, msg string) {
	c.t.errorf(n, srcfiles.ValidationError, "%s", msg)
}

func (c *checker) aggMetric(m sem.AggMetric, cx evalContext) {
	switch m := m.(type) {
	case *sem.Number, *sem.DocStats, *sem.BadAgg:
	case *sem.AggBinary:
		c.aggMetric(m.LHS, cx)
		c.aggMetric(m.RHS, cx)
	case *sem.AggUnary:
		c.aggMetric(m.Operand, cx)
	case *sem.AggFunc:
		for _, arg := range m.Args {
			c.aggMetric(arg, cx)
		}
	case *sem.AggCond:
		c.aggFilter(m.Cond, cx)
		c.aggMetric(m.Then, cx)
		c.aggMetric(m.Else, cx)
	case *sem.Named:
		if cx.term || m.Index >= cx.named {
			c.error(m.AST, notComputed)
		}
	case *sem.Parent:
		if cx.term {
			c.error(m.AST, notComputed)
			return
		}
		if cx.depth < 1 {
			c.error(m.AST, "PARENT() requires one more GROUP BY level than is available here")
			return
		}
		c.aggMetric(m.Metric, evalContext{depth: cx.depth - 1, inner: cx.inner})
	case *sem.Distinct:
		if cx.term || cx.inner {
			c.error(m.AST, notComputed)
			return
		}
		if m.Having != nil {
			c.aggFilter(m.Having, evalContext{depth: cx.depth + 1, term: true})
		}
	case *sem.Percentile:
		c.ftgs(m.AST, cx)
	case *sem.FieldMin:
		c.ftgs(m.AST, cx)
	case *sem.FieldMax:
		c.ftgs(m.AST, cx)
	case *sem.Window:
		c.window(m.AST, m.Metric, cx)
	case *sem.Lag:
		c.window(m.AST, m.Metric, cx)
	case *sem.Running:
		c.window(m.AST, m.Metric, cx)
	case *sem.SumOver:
		if cx.term || cx.inner {
			c.error(m.AST, notComputed)
			return
		}
		if m.Having != nil {
			c.aggFilter(m.Having, evalContext{depth: cx.depth + 1, term: true})
		}
		c.aggMetric(m.Metric, evalContext{depth: cx.depth + 1, inner: true})
	default:
		panic(fmt.Sprintf("unknown aggregate %T", m))
	}
}

func (c *checker) ftgs(n ast.Node, cx evalContext) {
	if cx.term || cx.inner {
		c.error(n, notComputed)
	}
}

func (c *checker) window(n ast.Node, m sem.AggMetric, cx evalContext) {
	if cx.term || cx.inner {
		c.error(n, notComputed)
		return
	}
	c.aggMetric(m, cx)
}

func (c *checker) aggFilter(f sem.AggFilter, cx evalContext) {
	switch f := f.(type) {
	case *sem.AggLiteral:
	case *sem.AggCompare:
		c.aggMetric(f.LHS, cx)
		c.aggMetric(f.RHS, cx)
	case *sem.AggNot:
		c.aggFilter(f.Filter, cx)
	case *sem.AggAnd:
		c.aggFilter(f.LHS, cx)
		c.aggFilter(f.RHS, cx)
	case *sem.AggOr:
		c.aggFilter(f.LHS, cx)
		c.aggFilter(f.RHS, cx)
	default:
		panic(fmt.Sprintf("unknown aggregate filter %T", f))
	}
}

// mismatch reports use of a string field where an int is expected or
// vice versa.  It is a warning in lenient mode.
func (t *translator) mismatch(n ast.Node, format string, args ...any) {
	if t.opts.Lenient {
		t.warn(format, args...)
		return
	}
	t.errorf(n, srcfiles.ValidationError, format, args...)
}
