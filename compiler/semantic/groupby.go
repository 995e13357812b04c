package semantic

import (
	"math"
	"time"

	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/compiler/ast"
	"github.com/brimdata/sift/compiler/semantic/sem"
	"github.com/brimdata/sift/compiler/srcfiles"
	"github.com/lestrrat-go/strftime"
)

func (t *translator) semGroupByItem(item *ast.GroupByItem) *sem.GroupByItem {
	out := &sem.GroupByItem{
		AST:         item,
		Group:       t.semGroupBy(item.Spec),
		WithDefault: item.WithDefault,
	}
	switch g := item.Spec.(type) {
	case *ast.FieldGroup:
	case *ast.BucketGroup:
		if g.WithDefault != nil {
			out.WithDefault = out.WithDefault || t.boolArg(g.WithDefault)
		}
	default:
		if item.WithDefault {
			t.errorf(item, srcfiles.ValidationError, "WITH DEFAULT applies only to field and bucket groupings")
		}
	}
	if item.Having != nil {
		out.Having = t.aggFilter(item.Having)
	}
	return out
}

func (t *translator) boolArg(e ast.Expr) bool {
	if p, ok := e.(*ast.Primitive); ok {
		switch {
		case p.Type == "bool":
			return p.Text == "true"
		case p.Type == "int" && (p.Text == "0" || p.Text == "1"):
			return p.Text == "1"
		}
	}
	t.errorf(e, srcfiles.ValidationError, "Expected true or false")
	return false
}

func (t *translator) semGroupBy(g ast.GroupBy) sem.GroupBy {
	switch g := g.(type) {
	case *ast.FieldGroup:
		return t.semFieldGroup(g)
	case *ast.TimeGroup:
		return t.semTimeGroup(g)
	case *ast.BucketGroup:
		return t.semBucketGroup(g)
	case *ast.RandomGroup:
		out := &sem.RandomGroup{AST: g}
		if f := t.hashField(g.Arg); f != nil {
			out.Field = f
		} else {
			out.Metric = t.rootMetric(g.Arg, t.docMetric(g.Arg))
		}
		if n, ok := t.intLiteral(g.Buckets); ok {
			if n < 1 || n > MaxLimit {
				t.errorf(g.Buckets, srcfiles.ValidationError, "random() bucket count must be positive")
			}
			out.Buckets = int(n)
		}
		if g.Salt != nil {
			out.Salt = g.Salt.Text
		}
		return out
	case *ast.QuantileGroup:
		out := &sem.QuantileGroup{AST: g, Field: t.intField(g.Metric)}
		if n, ok := t.intLiteral(g.N); ok {
			if n < 1 || n > 1000 {
				t.errorf(g.N, srcfiles.ValidationError, "quantiles() bucket count must be between 1 and 1000")
			}
			out.N = int(n)
		}
		return out
	case *ast.PredicateGroup:
		return &sem.PredicateGroup{AST: g, Filter: t.rootFilter(g.Expr, t.docFilter(g.Expr))}
	case *ast.DatasetGroup:
		return &sem.DatasetGroup{AST: g}
	}
	panic("unknown group by")
}

func (t *translator) semFieldGroup(g *ast.FieldGroup) sem.GroupBy {
	out := &sem.FieldGroup{
		AST:     g,
		Field:   t.fieldRef(g.Field),
		Bottom:  g.Bottom,
		Exclude: g.NotIn,
	}
	if g.Limit != nil {
		if n, ok := t.intLiteral(g.Limit); ok {
			if n < 0 || n >= MaxLimit {
				t.errorf(g.Limit, srcfiles.ValidationError, "Top-K limit should be non-negative and less than %d", MaxLimit)
			}
			k := int(n)
			out.Limit = &k
		}
	}
	if g.By != nil {
		out.By = t.aggMetric(g.By)
	}
	if out.Field != nil {
		for _, e := range g.In {
			if term, ok := t.term(out.Field, e); ok {
				out.Terms = append(out.Terms, term)
			}
		}
		out.Terms = sortTerms(out.Terms)
	}
	return out
}

func (t *translator) semTimeGroup(g *ast.TimeGroup) sem.GroupBy {
	out := &sem.TimeGroup{AST: g, Relative: g.Relative}
	if g.Field != nil {
		out.Field = t.fieldRef(g.Field)
		if out.Field != nil && out.Field.Type != catalog.Int {
			t.errorf(g.Field, srcfiles.ValidationError, "Time field %s must be an int field", g.Field.Name)
		}
	} else {
		out.Field = &sem.Field{
			AST:   g,
			Name:  catalog.DefaultTimeField,
			Type:  catalog.Int,
			Names: make(map[string]string),
		}
		for _, d := range t.datasets {
			out.Field.Names[d.Alias] = d.TimeField
		}
	}
	if g.Format != nil {
		if _, err := strftime.New(g.Format.Text); err != nil {
			t.errorf(g.Format, srcfiles.ValidationError, "Incorrect DateTime format string: <%s>", g.Format.Text)
		}
		out.Format = g.Format.Text
	}
	start, end := span(t.datasets)
	if g.Relative {
		start, end = t.datasets[0].Start, t.datasets[0].End
	}
	rangeSecs := int64(end.Sub(start) / time.Second)
	if g.Period == nil {
		out.Period = sem.Period{Seconds: inferPeriod(start, end)}
	} else {
		out.Period = t.semPeriod(g.Period, rangeSecs)
	}
	if out.Period.Seconds > 0 {
		for _, d := range t.datasets {
			t.checkTimeRange(g, d, out.Period.Seconds)
		}
	}
	return out
}

func (t *translator) semBucketGroup(g *ast.BucketGroup) sem.GroupBy {
	out := &sem.BucketGroup{
		AST:    g,
		Metric: t.rootMetric(g.Metric, t.docMetric(g.Metric)),
	}
	var ok1, ok2, ok3 bool
	out.Min, ok1 = t.intLiteral(g.Min)
	out.Max, ok2 = t.intLiteral(g.Max)
	out.Interval, ok3 = t.intLiteral(g.Interval)
	if !ok1 || !ok2 || !ok3 {
		return out
	}
	switch {
	case out.Interval <= 0:
		t.errorf(g.Interval, srcfiles.ValidationError, "Bucket interval must be positive")
		return out
	case out.Min >= out.Max:
		t.errorf(g, srcfiles.ValidationError, "Bucket minimum must be less than the maximum")
		return out
	}
	// Max-Min does not fit an int64 when the bounds straddle zero widely
	// but it always fits a uint64.
	span := uint64(out.Max) - uint64(out.Min)
	interval := uint64(out.Interval)
	if rem := span % interval; rem != 0 {
		lower := out.Max - int64(rem)
		if up := interval - rem; out.Max <= 0 || up <= uint64(math.MaxInt64-out.Max) {
			t.errorf(g, srcfiles.ValidationError,
				"Bucket range should be a multiple of the interval. To correct, decrease the upper bound to %d or increase to %d",
				lower, out.Max+int64(up))
		} else {
			t.errorf(g, srcfiles.ValidationError,
				"Bucket range should be a multiple of the interval. To correct, decrease the upper bound to %d", lower)
		}
		return out
	}
	buckets := span / interval
	if buckets > MaxLimit {
		t.errorf(g, srcfiles.ValidationError, "Too many buckets")
		return out
	}
	t.checkBuckets(g, int(buckets))
	return out
}

// checkBuckets rejects a grouping of n buckets that would exceed the group
// limit.
func (t *translator) checkBuckets(n ast.Node, buckets int) {
	if limit := t.opts.GroupLimit; limit > 0 && buckets > limit {
		t.errorf(n, srcfiles.GroupLimit, "Number of buckets [%d] exceeds the group limit [%d]", buckets, limit)
	}
}
