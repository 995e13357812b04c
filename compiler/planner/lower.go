package planner

import (
	"fmt"

	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/compiler/semantic/sem"
)

// Document expressions are lowered once per dataset alias.  Parts
// qualified with another alias drop out: a filter becomes true and a
// metric becomes zero.

func lowerMetric(m sem.DocMetric, alias string) dag.DocMetric {
	switch m := m.(type) {
	case *sem.Field:
		name, ok := m.Names[alias]
		if !ok {
			return dag.NewConst(0)
		}
		return &dag.Field{Kind: "Field", Name: name}
	case *sem.Constant:
		return dag.NewConst(m.Value)
	case *sem.DocBinary:
		return &dag.DocBinary{
			Kind: "DocBinary",
			Op:   m.Op,
			LHS:  lowerMetric(m.LHS, alias),
			RHS:  lowerMetric(m.RHS, alias),
		}
	case *sem.DocUnary:
		return &dag.DocUnary{
			Kind:    "DocUnary",
			Op:      m.Op,
			Operand: lowerMetric(m.Operand, alias),
		}
	case *sem.DocCond:
		return &dag.DocCond{
			Kind: "DocCond",
			Cond: lowerFilter(m.Cond, alias),
			Then: lowerMetric(m.Then, alias),
			Else: lowerMetric(m.Else, alias),
		}
	case *sem.FilterMetric:
		return &dag.FilterMetric{
			Kind:   "FilterMetric",
			Filter: lowerFilter(m.Filter, alias),
		}
	case *sem.QualifiedMetric:
		if m.Dataset != alias {
			return dag.NewConst(0)
		}
		return lowerMetric(m.Metric, alias)
	case *sem.PerDataset:
		inner, ok := m.Metrics[alias]
		if !ok {
			return dag.NewConst(0)
		}
		return lowerMetric(inner, alias)
	}
	panic(fmt.Sprintf("planner: unknown document metric %T", m))
}

func lowerFilter(f sem.DocFilter, alias string) dag.DocFilter {
	switch f := f.(type) {
	case *sem.Literal:
		return dag.NewBool(f.Value)
	case *sem.TermEquals:
		name, ok := f.Field.Names[alias]
		if !ok {
			return dag.False
		}
		return &dag.TermIs{Kind: "TermIs", Field: name, Term: lowerTerm(f.Term)}
	case *sem.TermIn:
		name, ok := f.Field.Names[alias]
		if !ok {
			return dag.False
		}
		return &dag.TermIn{Kind: "TermIn", Field: name, Terms: lowerTerms(f.Terms)}
	case *sem.Regexp:
		name, ok := f.Field.Names[alias]
		if !ok {
			return dag.False
		}
		return &dag.Regexp{Kind: "Regexp", Field: name, Pattern: f.Pattern}
	case *sem.Compare:
		return &dag.Compare{
			Kind: "Compare",
			Op:   f.Op,
			LHS:  lowerMetric(f.LHS, alias),
			RHS:  lowerMetric(f.RHS, alias),
		}
	case *sem.Between:
		return &dag.Between{
			Kind:   "Between",
			Metric: lowerMetric(f.Metric, alias),
			Lower:  f.Lower,
			Upper:  f.Upper,
		}
	case *sem.Not:
		return &dag.Not{Kind: "Not", Filter: lowerFilter(f.Filter, alias)}
	case *sem.And:
		return &dag.And{
			Kind:  "And",
			Exprs: []dag.DocFilter{lowerFilter(f.LHS, alias), lowerFilter(f.RHS, alias)},
		}
	case *sem.Or:
		return &dag.Or{
			Kind:  "Or",
			Exprs: []dag.DocFilter{lowerFilter(f.LHS, alias), lowerFilter(f.RHS, alias)},
		}
	case *sem.Sample:
		s := &dag.Sample{
			Kind:        "Sample",
			Numerator:   f.Numerator,
			Denominator: f.Denominator,
			Salt:        f.Salt,
		}
		if f.Field != nil {
			name, ok := f.Field.Names[alias]
			if !ok {
				return dag.False
			}
			s.Field = name
		} else {
			s.Metric = lowerMetric(f.Metric, alias)
		}
		return s
	case *sem.QualifiedFilter:
		if f.Dataset != alias {
			return dag.True
		}
		return lowerFilter(f.Filter, alias)
	}
	panic(fmt.Sprintf("planner: unknown document filter %T", f))
}

func lowerTerm(t sem.Term) dag.Term {
	return dag.Term{Int: t.Int, Str: t.Str, IsInt: t.IsInt}
}

func lowerTerms(terms []sem.Term) []dag.Term {
	var out []dag.Term
	for _, t := range terms {
		out = append(out, lowerTerm(t))
	}
	return out
}

func (p *planner) metrics(m sem.DocMetric) map[string]dag.DocMetric {
	out := make(map[string]dag.DocMetric)
	for _, alias := range p.aliases {
		out[alias] = lowerMetric(m, alias)
	}
	return out
}

func (p *planner) filters(f sem.DocFilter) map[string]dag.DocFilter {
	out := make(map[string]dag.DocFilter)
	for _, alias := range p.aliases {
		out[alias] = lowerFilter(f, alias)
	}
	return out
}

func fieldNames(f *sem.Field) map[string]string {
	out := make(map[string]string, len(f.Names))
	for alias, name := range f.Names {
		out[alias] = name
	}
	return out
}
