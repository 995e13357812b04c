package exec

import (
	"fmt"
)

// level is one group space.  Slices are indexed by group id and index 0,
// the group of discarded documents, is unused.
type level struct {
	parents []int
	labels  []string
	// hidden marks groups that only hold documents for a later return to
	// the parent level.  It is nil when there are none.
	hidden []bool
	values map[string][]float64
}

func rootLevel() *level {
	return &level{
		parents: []int{0, 0},
		labels:  []string{"", ""},
		values:  make(map[string][]float64),
	}
}

func (l *level) size() int {
	return len(l.parents) - 1
}

func (l *level) isHidden(g int) bool {
	return l.hidden != nil && l.hidden[g]
}

// set retains vals, indexed by group id, under name.
func (l *level) set(name string, vals []float64) {
	l.values[name] = vals
}

// setRows retains the values of a level frame under name.
func (l *level) setRows(name string, rows []float64) {
	l.values[name] = append([]float64{0}, rows...)
}

// compact drops the groups failing keep and returns the mapping from old
// to new group ids.
func (l *level) compact(keep func(g int) bool) []int {
	mapping := make([]int, len(l.parents))
	out := &level{
		parents: []int{0},
		labels:  []string{""},
		values:  make(map[string][]float64),
	}
	for g := 1; g < len(l.parents); g++ {
		if !keep(g) {
			continue
		}
		mapping[g] = len(out.parents)
		out.parents = append(out.parents, l.parents[g])
		out.labels = append(out.labels, l.labels[g])
		if l.hidden != nil {
			if out.hidden == nil {
				out.hidden = []bool{false}
			}
			out.hidden = append(out.hidden, l.hidden[g])
		}
	}
	for name, vals := range l.values {
		next := make([]float64, len(out.parents))
		for g, to := range mapping {
			if to > 0 {
				next[to] = vals[g]
			}
		}
		out.values[name] = next
	}
	*l = *out
	return mapping
}

func (x *executor) top() *level {
	return x.levels[len(x.levels)-1]
}

// ancestors maps each group of the top level to its ancestor at depth.
func (x *executor) ancestors(depth int) ([]int, error) {
	if depth < 0 || depth >= len(x.levels) {
		return nil, fmt.Errorf("group depth %d not available at depth %d", depth, len(x.levels)-1)
	}
	anc := make([]int, x.top().size()+1)
	for g := range anc {
		anc[g] = g
	}
	for d := len(x.levels) - 1; d > depth; d-- {
		parents := x.levels[d].parents
		for g := range anc {
			anc[g] = parents[anc[g]]
		}
	}
	return anc, nil
}

// builder lays out the level created by a regroup.  Children are added
// parent by parent so the siblings of a group are contiguous.
type builder struct {
	x    *executor
	lvl  *level
	base []int
}

func (x *executor) newBuilder() *builder {
	return &builder{
		x: x,
		lvl: &level{
			parents: []int{0},
			labels:  []string{""},
			values:  make(map[string][]float64),
		},
		base: make([]int, x.top().size()+1),
	}
}

// add appends a group under parent and returns its offset from the
// parent's first child.  Children of a hidden group are hidden.
func (b *builder) add(parent int, label string, hidden bool) (int, error) {
	hidden = hidden || b.x.top().isHidden(parent)
	id := len(b.lvl.parents)
	if limit := b.x.opts.GroupLimit; limit > 0 && id > limit {
		return 0, &GroupLimitError{Groups: id, Limit: limit}
	}
	if b.base[parent] == 0 {
		b.base[parent] = id
	}
	b.lvl.parents = append(b.lvl.parents, parent)
	b.lvl.labels = append(b.lvl.labels, label)
	if hidden && b.lvl.hidden == nil {
		b.lvl.hidden = make([]bool, id)
	}
	if b.lvl.hidden != nil {
		b.lvl.hidden = append(b.lvl.hidden, hidden)
	}
	return id - b.base[parent], nil
}

// push makes the built level the top level.
func (b *builder) push() {
	b.x.levels = append(b.x.levels, b.lvl)
	b.x.progress.Regroups++
}

// uniform lays out k groups under every group of the top level.
func (x *executor) uniform(k int, label func(int) string) (*builder, error) {
	n := x.top().size()
	if limit := x.opts.GroupLimit; limit > 0 && n*k > limit {
		return nil, &GroupLimitError{Groups: n * k, Limit: limit}
	}
	b := x.newBuilder()
	labels := make([]string, k)
	for j := range labels {
		labels[j] = label(j)
	}
	for p := 1; p <= n; p++ {
		for _, l := range labels {
			if _, err := b.add(p, l, false); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}
