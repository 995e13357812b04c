// Package backend defines the contract between the executor and an index
// engine.  The engine keeps every document of a session in one group; group
// 0 holds discarded documents and the executor numbers the live groups from
// 1.  The executor never sees documents.  It moves them between groups with
// regroup rules and reads per-group sums and per-term iterations back.
package backend

import (
	"context"
	"strconv"

	"github.com/brimdata/sift/compiler/dag"
)

// Shard is an immutable slice of a dataset's index.  A shard's identity
// changes whenever its contents do, so cache keys computed from shard
// identities go stale with the data.
type Shard struct {
	ID    string `json:"id"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Docs  int64  `json:"docs"`
}

type Client interface {
	// Shards lists the shards of dataset overlapping [start, end).
	Shards(ctx context.Context, dataset string, start, end int64) ([]Shard, error)
	// Open starts a session over the documents of shards whose time
	// field falls in the range of d.  Every such document starts in
	// group 1.
	Open(ctx context.Context, d *dag.Dataset, shards []Shard) (Session, error)
}

// TermFunc receives one term of a field and one group holding documents
// with that term, together with the sums of the requested metrics over
// those documents.
type TermFunc func(term dag.Term, group int, stats []int64) error

type Session interface {
	// Stats sums each metric over the documents of groups 1 through
	// numGroups.  The result is indexed by metric then by group, with
	// index 0 holding group 0.
	Stats(ctx context.Context, metrics []dag.DocMetric, numGroups int) ([][]int64, error)
	// FTGS calls fn for the terms of field in term order and, for each
	// term, for the groups holding documents with it in group order.
	// Group 0 is skipped.
	FTGS(ctx context.Context, field string, metrics []dag.DocMetric, fn TermFunc) error
	// Regroup moves every document in a live group to the group rule
	// assigns it.
	Regroup(ctx context.Context, rule Rule) error
	Close() error
}

// Rule assigns each document a new group from its current group and its
// values.  Each rule has a Base indexed by current group: a document
// moves to Base[group] plus an offset chosen by the rule, or to group 0
// when the base is 0 or the rule finds no offset.
type Rule interface {
	ruleNode()
}

type (
	// TermRule offsets a document by the position of its term of Field
	// in Terms[group].  Documents with none of those terms, or without
	// the field, go to Default[group] when Default is non-nil.
	TermRule struct {
		Field   string
		Base    []int
		Terms   []map[string]int
		Default []int
	}
	// MetricRule offsets a document by the bucket of its metric value:
	// (v-Min)/Interval when Min <= v < Max.  With n such buckets, values
	// below Min go to n and values at or above Max go to n+1, or both go
	// to n when WithDefault is set.
	MetricRule struct {
		Metric      dag.DocMetric
		Min         int64
		Max         int64
		Interval    int64
		WithDefault bool
		Base        []int
	}
	// BoundsRule offsets a document by k where Bounds[group][k] <= v <
	// Bounds[group][k+1] for the value v of Field.
	BoundsRule struct {
		Field  string
		Bounds [][]int64
		Base   []int
	}
	// HashRule offsets a document by Hash(Salt, value) mod Buckets where
	// value is the text of Field or the decimal value of Metric.
	HashRule struct {
		Field   string
		Metric  dag.DocMetric
		Salt    string
		Buckets int
		Base    []int
	}
	// FilterRule offsets a document by the index of the first of Filters
	// it matches.  A nil filter never matches.
	FilterRule struct {
		Filters []dag.DocFilter
		Base    []int
	}
	// RemapRule moves documents of group g to Base[g].
	RemapRule struct {
		Base []int
	}
)

func (*TermRule) ruleNode()   {}
func (*MetricRule) ruleNode() {}
func (*BoundsRule) ruleNode() {}
func (*HashRule) ruleNode()   {}
func (*FilterRule) ruleNode() {}
func (*RemapRule) ruleNode()  {}

// TermKey is the key of t in the maps of a TermRule.
func TermKey(t dag.Term) string {
	if t.IsInt {
		return strconv.FormatInt(t.Int, 10)
	}
	return t.Str
}

// CompareTerms orders int terms numerically before string terms, which
// are ordered bytewise.
func CompareTerms(a, b dag.Term) int {
	switch {
	case a.IsInt && b.IsInt:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		}
		return 0
	case a.IsInt:
		return -1
	case b.IsInt:
		return 1
	}
	switch {
	case a.Str < b.Str:
		return -1
	case a.Str > b.Str:
		return 1
	}
	return 0
}

// Buckets returns the number of whole intervals from lo up to v, for
// lo <= v and a positive interval.  It does not overflow when v-lo
// exceeds an int64.
func Buckets(lo, v, interval int64) uint64 {
	return (uint64(v) - uint64(lo)) / uint64(interval)
}
