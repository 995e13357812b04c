package memory

import (
	"fmt"
	"regexp"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/pkg/anymath"
)

// metric evaluates m for every document of the session.  Absent and
// string values read as zero.
func (s *session) metric(m dag.DocMetric) ([]int64, error) {
	switch m := m.(type) {
	case *dag.Const:
		out := make([]int64, s.n)
		if m.Value != 0 {
			for i := range out {
				out[i] = m.Value
			}
		}
		return out, nil
	case *dag.Field:
		if col := s.columns[m.Name]; col != nil {
			return col.values, nil
		}
		return make([]int64, s.n), nil
	case *dag.DocBinary:
		fn := anymath.Lookup(m.Op)
		if fn == nil {
			return nil, fmt.Errorf("unknown metric operator %q", m.Op)
		}
		lhs, err := s.metric(m.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := s.metric(m.RHS)
		if err != nil {
			return nil, err
		}
		out := make([]int64, s.n)
		for i := range out {
			out[i] = fn.Int64(lhs[i], rhs[i])
		}
		return out, nil
	case *dag.DocUnary:
		operand, err := s.metric(m.Operand)
		if err != nil {
			return nil, err
		}
		out := make([]int64, s.n)
		for i, v := range operand {
			var ok bool
			if out[i], ok = anymath.UnaryInt64(m.Op, v); !ok {
				return nil, fmt.Errorf("unknown metric operator %q", m.Op)
			}
		}
		return out, nil
	case *dag.DocCond:
		cond, err := s.filter(m.Cond)
		if err != nil {
			return nil, err
		}
		then, err := s.metric(m.Then)
		if err != nil {
			return nil, err
		}
		els, err := s.metric(m.Else)
		if err != nil {
			return nil, err
		}
		out := make([]int64, s.n)
		for i := range out {
			if cond.Contains(uint32(i)) {
				out[i] = then[i]
			} else {
				out[i] = els[i]
			}
		}
		return out, nil
	case *dag.FilterMetric:
		f, err := s.filter(m.Filter)
		if err != nil {
			return nil, err
		}
		out := make([]int64, s.n)
		it := f.Iterator()
		for it.HasNext() {
			out[it.Next()] = 1
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown metric %T", m)
}

// filter returns the documents of the session matching f.
func (s *session) filter(f dag.DocFilter) (*roaring.Bitmap, error) {
	switch f := f.(type) {
	case *dag.Bool:
		if f.Value {
			return s.all.Clone(), nil
		}
		return roaring.New(), nil
	case *dag.TermIs:
		return s.postings(f.Field, f.Term), nil
	case *dag.TermIn:
		out := roaring.New()
		for _, t := range f.Terms {
			out.Or(s.postings(f.Field, t))
		}
		return out, nil
	case *dag.Regexp:
		re, err := regexp.Compile("^(?:" + f.Pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("regex %q: %w", f.Pattern, err)
		}
		out := roaring.New()
		if col := s.columns[f.Field]; col != nil {
			for k, t := range col.terms {
				if re.MatchString(backend.TermKey(t)) {
					out.Or(col.postings[k])
				}
			}
		}
		return out, nil
	case *dag.Compare:
		lhs, err := s.metric(f.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := s.metric(f.RHS)
		if err != nil {
			return nil, err
		}
		out := roaring.New()
		for i := range lhs {
			ok, known := anymath.Compare(f.Op, lhs[i], rhs[i])
			if !known {
				return nil, fmt.Errorf("unknown comparison %q", f.Op)
			}
			if ok {
				out.Add(uint32(i))
			}
		}
		return out, nil
	case *dag.Between:
		vals, err := s.metric(f.Metric)
		if err != nil {
			return nil, err
		}
		out := roaring.New()
		for i, v := range vals {
			if f.Lower <= v && v < f.Upper {
				out.Add(uint32(i))
			}
		}
		return out, nil
	case *dag.Not:
		inner, err := s.filter(f.Filter)
		if err != nil {
			return nil, err
		}
		return roaring.AndNot(s.all, inner), nil
	case *dag.And:
		out := s.all.Clone()
		for _, e := range f.Exprs {
			bm, err := s.filter(e)
			if err != nil {
				return nil, err
			}
			out.And(bm)
		}
		return out, nil
	case *dag.Or:
		out := roaring.New()
		for _, e := range f.Exprs {
			bm, err := s.filter(e)
			if err != nil {
				return nil, err
			}
			out.Or(bm)
		}
		return out, nil
	case *dag.Sample:
		text, err := s.text(f.Field, f.Metric)
		if err != nil {
			return nil, err
		}
		out := roaring.New()
		for i := range s.n {
			if v, ok := text(i); ok && backend.Sampled(f.Salt, v, f.Numerator, f.Denominator) {
				out.Add(uint32(i))
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown filter %T", f)
}

func (s *session) postings(field string, t dag.Term) *roaring.Bitmap {
	col := s.columns[field]
	if col == nil {
		return roaring.New()
	}
	k, ok := col.keys[backend.TermKey(t)]
	if !ok {
		return roaring.New()
	}
	return col.postings[k].Clone()
}
