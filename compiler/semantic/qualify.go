package semantic

import (
	"fmt"
	"slices"
	"strings"

	"github.com/brimdata/sift/compiler/ast"
	"github.com/brimdata/sift/compiler/semantic/sem"
	"github.com/brimdata/sift/compiler/srcfiles"
)

// rootFilter wraps each maximal subtree of f that refers to a single
// qualified dataset so it applies to that dataset only.  An atom mixing
// two datasets is an error.
func (t *translator) rootFilter(n ast.Node, f sem.DocFilter) sem.DocFilter {
	quals := filterQuals(f)
	switch len(quals) {
	case 0:
		return f
	case 1:
		return &sem.QualifiedFilter{AST: n, Dataset: quals[0], Filter: f}
	}
	switch f := f.(type) {
	case *sem.And:
		return &sem.And{AST: f.AST, LHS: t.rootFilter(n, f.LHS), RHS: t.rootFilter(n, f.RHS)}
	case *sem.Or:
		return &sem.Or{AST: f.AST, LHS: t.rootFilter(n, f.LHS), RHS: t.rootFilter(n, f.RHS)}
	case *sem.Not:
		return &sem.Not{AST: f.AST, Filter: t.rootFilter(n, f.Filter)}
	}
	t.mixed(n, quals)
	return f
}

func (t *translator) rootMetric(n ast.Node, m sem.DocMetric) sem.DocMetric {
	quals := metricQuals(m)
	switch len(quals) {
	case 0:
		return m
	case 1:
		if q, ok := m.(*sem.QualifiedMetric); ok && q.Dataset == quals[0] {
			return q
		}
		return &sem.QualifiedMetric{AST: n, Dataset: quals[0], Metric: m}
	}
	t.mixed(n, quals)
	return m
}

func (t *translator) mixed(n ast.Node, quals []string) {
	t.errorf(n, srcfiles.ValidationError, "Cannot mix fields of datasets %s in one expression", strings.Join(quals, " and "))
}

func metricQuals(m sem.DocMetric) []string {
	var quals []string
	walkMetric(m, &quals)
	slices.Sort(quals)
	return quals
}

func filterQuals(f sem.DocFilter) []string {
	var quals []string
	walkFilter(f, &quals)
	slices.Sort(quals)
	return quals
}

func addQual(quals *[]string, q string) {
	if q != "" && !slices.Contains(*quals, q) {
		*quals = append(*quals, q)
	}
}

func walkField(f *sem.Field, quals *[]string) {
	if f != nil {
		addQual(quals, f.Qualifier)
	}
}

func walkMetric(m sem.DocMetric, quals *[]string) {
	switch m := m.(type) {
	case *sem.Field:
		walkField(m, quals)
	case *sem.Constant, *sem.BadMetric:
	case *sem.DocBinary:
		walkMetric(m.LHS, quals)
		walkMetric(m.RHS, quals)
	case *sem.DocUnary:
		walkMetric(m.Operand, quals)
	case *sem.DocCond:
		walkFilter(m.Cond, quals)
		walkMetric(m.Then, quals)
		walkMetric(m.Else, quals)
	case *sem.FilterMetric:
		walkFilter(m.Filter, quals)
	case *sem.QualifiedMetric:
		addQual(quals, m.Dataset)
	case *sem.PerDataset:
		for _, m := range m.Metrics {
			walkMetric(m, quals)
		}
	default:
		panic(fmt.Sprintf("unknown document metric %T", m))
	}
}

func walkFilter(f sem.DocFilter, quals *[]string) {
	switch f := f.(type) {
	case *sem.Literal, *sem.BadFilter:
	case *sem.TermEquals:
		walkField(f.Field, quals)
	case *sem.TermIn:
		walkField(f.Field, quals)
	case *sem.Regexp:
		walkField(f.Field, quals)
	case *sem.Compare:
		walkMetric(f.LHS, quals)
		walkMetric(f.RHS, quals)
	case *sem.Between:
		walkMetric(f.Metric, quals)
	case *sem.Not:
		walkFilter(f.Filter, quals)
	case *sem.And:
		walkFilter(f.LHS, quals)
		walkFilter(f.RHS, quals)
	case *sem.Or:
		walkFilter(f.LHS, quals)
		walkFilter(f.RHS, quals)
	case *sem.Sample:
		walkField(f.Field, quals)
		if f.Metric != nil {
			walkMetric(f.Metric, quals)
		}
	case *sem.QualifiedFilter:
		addQual(quals, f.Dataset)
	default:
		panic(fmt.Sprintf("unknown document filter %T", f))
	}
}
