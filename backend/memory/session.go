package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/compiler/dag"
)

// column indexes one field of a session's documents.
type column struct {
	terms    []dag.Term
	postings []*roaring.Bitmap
	keys     map[string]int
	// ords holds each document's index into terms or -1.
	ords   []int32
	values []int64
}

func (c *column) term(doc int) (dag.Term, bool) {
	if c == nil || c.ords[doc] < 0 {
		return dag.Term{}, false
	}
	return c.terms[c.ords[doc]], true
}

type session struct {
	n       int
	columns map[string]*column
	groups  []int
	all     *roaring.Bitmap
}

var _ backend.Session = (*session)(nil)

func newSession(docs []Doc) *session {
	s := &session{
		n:       len(docs),
		columns: make(map[string]*column),
		groups:  make([]int, len(docs)),
		all:     roaring.New(),
	}
	if len(docs) > 0 {
		s.all.AddRange(0, uint64(len(docs)))
	}
	raw := make(map[string][]dag.Term)
	has := make(map[string]*roaring.Bitmap)
	for i, doc := range docs {
		s.groups[i] = 1
		for name, v := range doc {
			if raw[name] == nil {
				raw[name] = make([]dag.Term, len(docs))
				has[name] = roaring.New()
			}
			switch v := v.(type) {
			case int64:
				raw[name][i] = dag.Term{Int: v, IsInt: true}
			case string:
				raw[name][i] = dag.Term{Str: v}
			default:
				continue
			}
			has[name].Add(uint32(i))
		}
	}
	for name, vals := range raw {
		s.columns[name] = newColumn(vals, has[name])
	}
	return s
}

func newColumn(vals []dag.Term, has *roaring.Bitmap) *column {
	c := &column{
		keys:   make(map[string]int),
		ords:   make([]int32, len(vals)),
		values: make([]int64, len(vals)),
	}
	for i := range c.ords {
		c.ords[i] = -1
	}
	it := has.Iterator()
	for it.HasNext() {
		i := it.Next()
		t := vals[i]
		key := backend.TermKey(t)
		if _, ok := c.keys[key]; !ok {
			c.keys[key] = len(c.terms)
			c.terms = append(c.terms, t)
		}
	}
	order := make([]int, len(c.terms))
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, b int) bool {
		return backend.CompareTerms(c.terms[order[a]], c.terms[order[b]]) < 0
	})
	terms := make([]dag.Term, len(c.terms))
	for k, o := range order {
		terms[k] = c.terms[o]
	}
	c.terms = terms
	c.postings = make([]*roaring.Bitmap, len(terms))
	for k, t := range terms {
		c.keys[backend.TermKey(t)] = k
		c.postings[k] = roaring.New()
	}
	it = has.Iterator()
	for it.HasNext() {
		i := it.Next()
		t := vals[i]
		k := c.keys[backend.TermKey(t)]
		c.ords[i] = int32(k)
		c.postings[k].Add(i)
		if t.IsInt {
			c.values[i] = t.Int
		}
	}
	return c
}

func (s *session) Stats(ctx context.Context, metrics []dag.DocMetric, numGroups int) ([][]int64, error) {
	out := make([][]int64, len(metrics))
	for k, m := range metrics {
		vals, err := s.metric(m)
		if err != nil {
			return nil, err
		}
		sums := make([]int64, numGroups+1)
		for i, g := range s.groups {
			if g > 0 && g <= numGroups {
				sums[g] += vals[i]
			}
		}
		out[k] = sums
	}
	return out, ctx.Err()
}

func (s *session) FTGS(ctx context.Context, field string, metrics []dag.DocMetric, fn backend.TermFunc) error {
	col := s.columns[field]
	if col == nil {
		return nil
	}
	vecs := make([][]int64, len(metrics))
	for k, m := range metrics {
		var err error
		if vecs[k], err = s.metric(m); err != nil {
			return err
		}
	}
	for t, postings := range col.postings {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats := make(map[int][]int64)
		it := postings.Iterator()
		for it.HasNext() {
			doc := it.Next()
			g := s.groups[doc]
			if g == 0 {
				continue
			}
			sums, ok := stats[g]
			if !ok {
				sums = make([]int64, len(metrics))
				stats[g] = sums
			}
			for k, vec := range vecs {
				sums[k] += vec[doc]
			}
		}
		groups := make([]int, 0, len(stats))
		for g := range stats {
			groups = append(groups, g)
		}
		slices.Sort(groups)
		for _, g := range groups {
			if err := fn(col.terms[t], g, stats[g]); err != nil {
				return err
			}
		}
	}
	return nil
}

func at(base []int, g int) int {
	if g < len(base) {
		return base[g]
	}
	return 0
}

func (s *session) Regroup(ctx context.Context, rule backend.Rule) error {
	next := make([]int, s.n)
	move := func(fn func(doc, g int) int) {
		for i, g := range s.groups {
			if g > 0 {
				next[i] = fn(i, g)
			}
		}
	}
	switch r := rule.(type) {
	case *backend.TermRule:
		col := s.columns[r.Field]
		move(func(doc, g int) int {
			if t, ok := col.term(doc); ok && g < len(r.Terms) {
				if off, ok := r.Terms[g][backend.TermKey(t)]; ok {
					if b := at(r.Base, g); b > 0 {
						return b + off
					}
					return 0
				}
			}
			return at(r.Default, g)
		})
	case *backend.MetricRule:
		if r.Interval <= 0 {
			return fmt.Errorf("metric regroup with interval %d", r.Interval)
		}
		vals, err := s.metric(r.Metric)
		if err != nil {
			return err
		}
		n := int(backend.Buckets(r.Min, r.Max, r.Interval))
		move(func(doc, g int) int {
			b := at(r.Base, g)
			if b == 0 {
				return 0
			}
			v := vals[doc]
			switch {
			case v < r.Min:
				return b + n
			case v >= r.Max:
				if r.WithDefault {
					return b + n
				}
				return b + n + 1
			}
			return b + int(backend.Buckets(r.Min, v, r.Interval))
		})
	case *backend.BoundsRule:
		col := s.columns[r.Field]
		move(func(doc, g int) int {
			t, ok := col.term(doc)
			b := at(r.Base, g)
			if !ok || !t.IsInt || b == 0 || g >= len(r.Bounds) {
				return 0
			}
			bounds := r.Bounds[g]
			k := sort.Search(len(bounds), func(k int) bool { return bounds[k] > t.Int }) - 1
			if k < 0 || k >= len(bounds)-1 {
				return 0
			}
			return b + k
		})
	case *backend.HashRule:
		if r.Buckets <= 0 {
			return fmt.Errorf("hash regroup with %d buckets", r.Buckets)
		}
		text, err := s.text(r.Field, r.Metric)
		if err != nil {
			return err
		}
		move(func(doc, g int) int {
			b := at(r.Base, g)
			v, ok := text(doc)
			if !ok || b == 0 {
				return 0
			}
			return b + int(backend.Hash(r.Salt, v)%uint64(r.Buckets))
		})
	case *backend.FilterRule:
		bitmaps := make([]*roaring.Bitmap, len(r.Filters))
		for k, f := range r.Filters {
			if f == nil {
				continue
			}
			var err error
			if bitmaps[k], err = s.filter(f); err != nil {
				return err
			}
		}
		move(func(doc, g int) int {
			b := at(r.Base, g)
			if b == 0 {
				return 0
			}
			for k, bm := range bitmaps {
				if bm != nil && bm.Contains(uint32(doc)) {
					return b + k
				}
			}
			return 0
		})
	case *backend.RemapRule:
		move(func(_, g int) int { return at(r.Base, g) })
	default:
		return fmt.Errorf("unknown regroup rule %T", rule)
	}
	s.groups = next
	return ctx.Err()
}

// text returns the hashed text of a document's field value or metric.
func (s *session) text(field string, m dag.DocMetric) (func(int) (string, bool), error) {
	if field != "" {
		col := s.columns[field]
		return func(doc int) (string, bool) {
			t, ok := col.term(doc)
			if !ok {
				return "", false
			}
			return backend.TermKey(t), true
		}, nil
	}
	vals, err := s.metric(m)
	if err != nil {
		return nil, err
	}
	return func(doc int) (string, bool) {
		return strconv.FormatInt(vals[doc], 10), true
	}, nil
}

func (s *session) Close() error {
	s.columns = nil
	s.groups = nil
	return nil
}
