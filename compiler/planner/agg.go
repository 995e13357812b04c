package planner

import (
	"fmt"

	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/compiler/semantic/sem"
)

// scope maps a group depth to the level collecting what must be computed
// there.  Inside sum_over() the level one below the enclosing depth is a
// temporary one whose commands run within the sum_over block.
type scope interface {
	level(depth int) *level
}

type rootScope struct {
	p *planner
}

func (r *rootScope) level(depth int) *level {
	return r.p.levels[depth]
}

type blockScope struct {
	parent scope
	depth  int
	lvl    *level
}

func (b *blockScope) level(depth int) *level {
	if depth == b.depth {
		return b.lvl
	}
	return b.parent.level(depth)
}

// lowering is the context of an aggregate being lowered.  depth is the
// group depth the aggregate is computed at and eval is the depth of the
// command that evaluates the lowered expression.  When inline is set,
// document sums stay in place for per-term evaluation.
type lowering struct {
	scope  scope
	depth  int
	eval   int
	inline bool
}

func (l *lowering) at(depth int) *lowering {
	out := *l
	out.depth = depth
	return &out
}

func (p *planner) aggMetric(m sem.AggMetric, cx *lowering) dag.AggExpr {
	switch m := m.(type) {
	case *sem.Number:
		return dag.NewNumber(m.Value)
	case *sem.DocStats:
		metrics := p.metrics(m.Metric)
		if cx.inline {
			return &dag.DocStats{Kind: "DocStats", Metrics: metrics}
		}
		return lookup(p.stat(cx.scope.level(cx.depth), metrics), cx.depth)
	case *sem.AggBinary:
		return &dag.AggBinary{
			Kind: "AggBinary",
			Op:   m.Op,
			LHS:  p.aggMetric(m.LHS, cx),
			RHS:  p.aggMetric(m.RHS, cx),
		}
	case *sem.AggUnary:
		return &dag.AggUnary{
			Kind:    "AggUnary",
			Op:      m.Op,
			Operand: p.aggMetric(m.Operand, cx),
		}
	case *sem.AggFunc:
		fn := &dag.AggFunc{Kind: "AggFunc", Name: m.Name}
		for _, arg := range m.Args {
			fn.Args = append(fn.Args, p.aggMetric(arg, cx))
		}
		return fn
	case *sem.AggCond:
		return &dag.AggCond{
			Kind: "AggCond",
			Cond: p.aggFilter(m.Cond, cx),
			Then: p.aggMetric(m.Then, cx),
			Else: p.aggMetric(m.Else, cx),
		}
	case *sem.Named:
		return &dag.Column{Kind: "Column", Index: m.Index}
	case *sem.Parent:
		return p.aggMetric(m.Metric, cx.at(cx.depth-1))
	case *sem.Distinct:
		if m.Having != nil {
			return p.sumOver(m.Field, m.Having, &sem.Number{Value: 1}, cx)
		}
		return p.ftgs(cx, &dag.FtgsIterate{Op: "distinct", Fields: fieldNames(m.Field)})
	case *sem.Percentile:
		return p.ftgs(cx, &dag.FtgsIterate{Op: "percentile", Fields: fieldNames(m.Field), Percentile: m.P})
	case *sem.FieldMin:
		return p.ftgs(cx, &dag.FtgsIterate{Op: "min", Fields: fieldNames(m.Field)})
	case *sem.FieldMax:
		return p.ftgs(cx, &dag.FtgsIterate{Op: "max", Fields: fieldNames(m.Field)})
	case *sem.SumOver:
		return p.sumOver(m.Field, m.Having, m.Metric, cx)
	case *sem.Window:
		return p.sibling(cx, func(inner *lowering) dag.AggExpr {
			return &dag.Window{Kind: "Window", N: m.N, Expr: p.aggMetric(m.Metric, inner)}
		})
	case *sem.Lag:
		return p.sibling(cx, func(inner *lowering) dag.AggExpr {
			return &dag.Lag{Kind: "Lag", N: m.N, Expr: p.aggMetric(m.Metric, inner)}
		})
	case *sem.Running:
		return p.sibling(cx, func(inner *lowering) dag.AggExpr {
			return &dag.Running{Kind: "Running", Expr: p.aggMetric(m.Metric, inner)}
		})
	}
	panic(fmt.Sprintf("planner: unknown aggregate %T", m))
}

func (p *planner) aggFilter(f sem.AggFilter, cx *lowering) dag.AggFilter {
	switch f := f.(type) {
	case *sem.AggLiteral:
		return &dag.AggBool{Kind: "AggBool", Value: f.Value}
	case *sem.AggCompare:
		return &dag.AggCompare{
			Kind: "AggCompare",
			Op:   f.Op,
			LHS:  p.aggMetric(f.LHS, cx),
			RHS:  p.aggMetric(f.RHS, cx),
		}
	case *sem.AggNot:
		return &dag.AggNot{Kind: "AggNot", Filter: p.aggFilter(f.Filter, cx)}
	case *sem.AggAnd:
		return &dag.AggAnd{
			Kind: "AggAnd",
			LHS:  p.aggFilter(f.LHS, cx),
			RHS:  p.aggFilter(f.RHS, cx),
		}
	case *sem.AggOr:
		return &dag.AggOr{
			Kind: "AggOr",
			LHS:  p.aggFilter(f.LHS, cx),
			RHS:  p.aggFilter(f.RHS, cx),
		}
	}
	panic(fmt.Sprintf("planner: unknown aggregate filter %T", f))
}

func lookup(name string, depth int) *dag.Lookup {
	return &dag.Lookup{Kind: "Lookup", Name: name, Depth: depth}
}

func (p *planner) ftgs(cx *lowering, f *dag.FtgsIterate) dag.AggExpr {
	f.Kind = "FtgsIterate"
	f.Name = fmt.Sprintf("f%d", p.nftgs)
	p.nftgs++
	lvl := cx.scope.level(cx.depth)
	lvl.ftgs = append(lvl.ftgs, f)
	return lookup(f.Name, cx.depth)
}

// sumOver explodes the groups at the current depth by field into a
// temporary level, evaluates metric there, and folds the terms passing
// having back into their groups.
func (p *planner) sumOver(field *sem.Field, having sem.AggFilter, metric sem.AggMetric, cx *lowering) dag.AggExpr {
	depth := cx.depth
	block := &blockScope{parent: cx.scope, depth: depth + 1, lvl: newLevel()}
	inner := &lowering{scope: block, depth: depth + 1, eval: depth + 1}
	cmd := &dag.RegroupIntoParent{
		Kind: "RegroupIntoParent",
		Name: fmt.Sprintf("r%d", p.nsum),
		Expr: p.aggMetric(metric, inner),
	}
	p.nsum++
	if having != nil {
		cmd.Having = p.aggFilter(having, inner)
	}
	cmds := []dag.Command{&dag.FieldRegroup{Kind: "FieldRegroup", Fields: fieldNames(field)}}
	var seq dag.Seq
	block.lvl.emit(&seq)
	cmds = append(cmds, seq...)
	cmds = append(cmds, cmd)
	lvl := cx.scope.level(depth)
	lvl.blocks = append(lvl.blocks, cmds)
	return lookup(cmd.Name, depth)
}

// sibling lowers a function over the siblings of a group.  It is evaluated
// in place when the group space is at the function's depth and is
// otherwise computed at that depth and read back.
func (p *planner) sibling(cx *lowering, build func(*lowering) dag.AggExpr) dag.AggExpr {
	if cx.depth == cx.eval {
		return build(cx)
	}
	e := build(&lowering{scope: cx.scope, depth: cx.depth, eval: cx.depth})
	c := &dag.ComputeGroups{
		Kind: "ComputeGroups",
		Name: fmt.Sprintf("c%d", p.ncomp),
		Expr: e,
	}
	p.ncomp++
	lvl := cx.scope.level(cx.depth)
	lvl.computes = append(lvl.computes, c)
	return lookup(c.Name, cx.depth)
}
