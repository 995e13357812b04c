package exec

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/compiler/dag"
	"golang.org/x/sync/errgroup"
)

// each runs fn for every session concurrently.
// The context passed to fn is canceled when any call fails.
func (x *executor) each(fn func(ctx context.Context, alias string, s backend.Session) error) error {
	g, ctx := errgroup.WithContext(x.ctx)
	for _, alias := range x.aliases {
		s := x.sessions[alias]
		g.Go(func() error {
			return fn(ctx, alias, s)
		})
	}
	return g.Wait()
}

// termGroup holds the document sums of one term in one group, summed over
// every session.
type termGroup struct {
	term  dag.Term
	group int
	stats []int64
}

// ftgs walks the field of each session named by fields and merges the
// results.  metrics returns the metrics summed for a session; every
// session must ask for the same number.  The result is in term order and
// then group order.
func (x *executor) ftgs(fields map[string]string, metrics func(alias string) []dag.DocMetric) ([]termGroup, error) {
	type key struct {
		term  dag.Term
		group int
	}
	var mu sync.Mutex
	merged := make(map[key][]int64)
	err := x.each(func(ctx context.Context, alias string, s backend.Session) error {
		field, ok := fields[alias]
		if !ok {
			return nil
		}
		return s.FTGS(ctx, field, metrics(alias), func(term dag.Term, group int, stats []int64) error {
			mu.Lock()
			defer mu.Unlock()
			k := key{term, group}
			sums, ok := merged[k]
			if !ok {
				merged[k] = slices.Clone(stats)
				return nil
			}
			for i, v := range stats {
				sums[i] += v
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	out := make([]termGroup, 0, len(merged))
	for k, stats := range merged {
		out = append(out, termGroup{term: k.term, group: k.group, stats: stats})
	}
	slices.SortFunc(out, func(a, b termGroup) int {
		if c := backend.CompareTerms(a.term, b.term); c != 0 {
			return c
		}
		return a.group - b.group
	})
	return out, nil
}

func countMetric(string) []dag.DocMetric {
	return []dag.DocMetric{dag.NewConst(1)}
}

func (x *executor) getGroupStats(cmd *dag.GetGroupStats) error {
	n := x.top().size()
	sums := make([][]float64, len(cmd.Stats))
	for k := range sums {
		sums[k] = make([]float64, n+1)
	}
	var mu sync.Mutex
	err := x.each(func(ctx context.Context, alias string, s backend.Session) error {
		var index []int
		var metrics []dag.DocMetric
		for k, stat := range cmd.Stats {
			if m, ok := stat.Metrics[alias]; ok {
				index = append(index, k)
				metrics = append(metrics, m)
			}
		}
		if len(metrics) == 0 {
			return nil
		}
		stats, err := s.Stats(ctx, metrics, n)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		for i, k := range index {
			for g := 1; g <= n && g < len(stats[i]); g++ {
				sums[k][g] += float64(stats[i][g])
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	top := x.top()
	for k, stat := range cmd.Stats {
		top.set(stat.Name, sums[k])
	}
	return nil
}

// ftgsIterate computes a per-group value from the terms of a field and
// their document counts.  Only int terms have a minimum, maximum, or
// percentile.  Groups without such terms get NaN.
func (x *executor) ftgsIterate(cmd *dag.FtgsIterate) error {
	entries, err := x.ftgs(cmd.Fields, countMetric)
	if err != nil {
		return err
	}
	n := x.top().size()
	out := make([]float64, n+1)
	switch cmd.Op {
	case "distinct":
		for _, e := range entries {
			if e.stats[0] > 0 {
				out[e.group]++
			}
		}
	case "min", "max":
		seen := make([]bool, n+1)
		for _, e := range entries {
			if !e.term.IsInt || e.stats[0] <= 0 {
				continue
			}
			v := float64(e.term.Int)
			switch {
			case !seen[e.group]:
				out[e.group] = v
			case cmd.Op == "min":
				out[e.group] = math.Min(out[e.group], v)
			default:
				out[e.group] = math.Max(out[e.group], v)
			}
			seen[e.group] = true
		}
		for g := 1; g <= n; g++ {
			if !seen[g] {
				out[g] = math.NaN()
			}
		}
	case "percentile":
		percentiles(entries, cmd.Percentile, out)
	default:
		return fmt.Errorf("unknown term iteration %q", cmd.Op)
	}
	x.top().set(cmd.Name, out)
	return nil
}

// percentiles sets out[g] to the smallest int term of group g at or below
// which p percent of the group's documents fall.
func percentiles(entries []termGroup, p float64, out []float64) {
	byGroup := make(map[int][]termGroup)
	for _, e := range entries {
		if e.term.IsInt && e.stats[0] > 0 {
			byGroup[e.group] = append(byGroup[e.group], e)
		}
	}
	for g := 1; g < len(out); g++ {
		terms := byGroup[g]
		if len(terms) == 0 {
			out[g] = math.NaN()
			continue
		}
		var total int64
		for _, t := range terms {
			total += t.stats[0]
		}
		target := math.Max(1, math.Ceil(p/100*float64(total)))
		var cum int64
		for _, t := range terms {
			cum += t.stats[0]
			if float64(cum) >= target {
				out[g] = float64(t.term.Int)
				break
			}
		}
	}
}
