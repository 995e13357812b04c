package exec

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/compiler/semantic"
	"github.com/lestrrat-go/strftime"
)

const (
	defaultLabel      = "DEFAULT"
	defaultTimeFormat = "%Y-%m-%d %H:%M:%S"
)

// fieldRegroup explodes each group by the terms present in it.  When the
// level is returned to its parent later, documents of terms not kept are
// parked in a hidden group per parent so none are lost.
func (x *executor) fieldRegroup(cmd *dag.FieldRegroup, block bool) error {
	top := x.top()
	n := top.size()
	var sums []*dag.DocStats
	if cmd.By != nil {
		sums = docStats(cmd.By)
	}
	ranked := cmd.By != nil || cmd.Limit != nil
	entries, err := x.ftgs(cmd.Fields, func(alias string) []dag.DocMetric {
		metrics := []dag.DocMetric{dag.NewConst(1)}
		for _, s := range sums {
			m, ok := s.Metrics[alias]
			if !ok {
				m = dag.NewConst(0)
			}
			metrics = append(metrics, m)
		}
		return metrics
	})
	if err != nil {
		return err
	}
	listed := make(map[string]bool)
	for _, t := range cmd.Terms {
		listed[backend.TermKey(t)] = true
	}
	kept := entries[:0]
	for _, e := range entries {
		if top.isHidden(e.group) || e.stats[0] == 0 {
			continue
		}
		if cmd.Terms != nil && listed[backend.TermKey(e.term)] == cmd.Exclude {
			continue
		}
		kept = append(kept, e)
	}
	perGroup := make([][]termGroup, n+1)
	if ranked {
		scores, err := x.scores(kept, sums, cmd.By)
		if err != nil {
			return err
		}
		perGroup = rank(kept, scores, cmd.Limit, cmd.Bottom, n)
	} else {
		for _, e := range kept {
			perGroup[e.group] = append(perGroup[e.group], e)
		}
	}
	b := x.newBuilder()
	terms := make([]map[string]int, n+1)
	var defaults []int
	if cmd.WithDefault || block {
		defaults = make([]int, n+1)
	}
	for p := 1; p <= n; p++ {
		if len(perGroup[p]) > 0 {
			terms[p] = make(map[string]int, len(perGroup[p]))
		}
		for _, e := range perGroup[p] {
			key := backend.TermKey(e.term)
			off, err := b.add(p, key, false)
			if err != nil {
				return err
			}
			terms[p][key] = off
		}
		if defaults == nil {
			continue
		}
		off, err := b.add(p, defaultLabel, !cmd.WithDefault)
		if err != nil {
			return err
		}
		defaults[p] = b.base[p] + off
	}
	err = x.each(func(ctx context.Context, alias string, s backend.Session) error {
		return s.Regroup(ctx, &backend.TermRule{
			Field:   cmd.Fields[alias],
			Base:    b.base,
			Terms:   terms,
			Default: defaults,
		})
	})
	if err != nil {
		return err
	}
	b.push()
	return nil
}

// scores evaluates the ranking of each term in its group: By, or the
// document count when there is no By.
func (x *executor) scores(entries []termGroup, sums []*dag.DocStats, by dag.AggExpr) ([]float64, error) {
	f := &frame{
		groups: make([]int, len(entries)),
		stats:  make(map[*dag.DocStats][]float64),
	}
	for r, e := range entries {
		f.groups[r] = e.group
	}
	if by == nil {
		counts := make([]float64, len(entries))
		for r, e := range entries {
			counts[r] = float64(e.stats[0])
		}
		return counts, nil
	}
	for k, s := range sums {
		vals := make([]float64, len(entries))
		for r, e := range entries {
			vals[r] = float64(e.stats[k+1])
		}
		f.stats[s] = vals
	}
	return x.eval(f, by)
}

// rank orders the terms of each group by score, highest first or lowest
// first for bottom, with ties in term order, and keeps the first limit.
// NaN scores rank below every number.
func rank(entries []termGroup, scores []float64, limit *int, bottom bool, n int) [][]termGroup {
	index := make([][]int, n+1)
	for r, e := range entries {
		index[e.group] = append(index[e.group], r)
	}
	key := func(r int) float64 {
		v := scores[r]
		if math.IsNaN(v) {
			if bottom {
				return math.Inf(1)
			}
			return math.Inf(-1)
		}
		return v
	}
	out := make([][]termGroup, n+1)
	for g, rows := range index {
		sort.SliceStable(rows, func(i, j int) bool {
			if bottom {
				return key(rows[i]) < key(rows[j])
			}
			return key(rows[i]) > key(rows[j])
		})
		if limit != nil && len(rows) > *limit {
			rows = rows[:*limit]
		}
		for _, r := range rows {
			out[g] = append(out[g], entries[r])
		}
	}
	return out
}

func (x *executor) timeRegroup(cmd *dag.TimeRegroup) error {
	loc, err := semantic.ParseLocation(cmd.Location)
	if err != nil {
		return err
	}
	format := cmd.Format
	if format == "" {
		format = defaultTimeFormat
	}
	f, err := strftime.New(format)
	if err != nil {
		return fmt.Errorf("time format %q: %w", cmd.Format, err)
	}
	bounds := func(origin int64) []int64 {
		out := make([]int64, cmd.Buckets+1)
		start := time.Unix(origin, 0).In(loc)
		for k := range out {
			if cmd.Seconds > 0 {
				out[k] = origin + int64(k)*cmd.Seconds
			} else {
				out[k] = start.AddDate(0, k*cmd.Months, 0).Unix()
			}
		}
		return out
	}
	labels := bounds(cmd.LabelOrigin)
	b, err := x.uniform(cmd.Buckets, func(k int) string {
		start := f.FormatString(time.Unix(labels[k], 0).In(loc))
		if cmd.Format != "" {
			return start
		}
		end := f.FormatString(time.Unix(labels[k+1], 0).In(loc))
		return "[" + start + ", " + end + ")"
	})
	if err != nil {
		return err
	}
	n := x.top().size()
	err = x.each(func(ctx context.Context, alias string, s backend.Session) error {
		field, ok := cmd.Fields[alias]
		if !ok {
			return fmt.Errorf("time regroup has no field for %q", alias)
		}
		perGroup := make([][]int64, n+1)
		edges := bounds(cmd.Origins[alias])
		for g := range perGroup {
			perGroup[g] = edges
		}
		return s.Regroup(ctx, &backend.BoundsRule{Field: field, Bounds: perGroup, Base: b.base})
	})
	if err != nil {
		return err
	}
	b.push()
	return nil
}

func (x *executor) metricRegroup(cmd *dag.MetricRegroup) error {
	if cmd.Interval <= 0 {
		return fmt.Errorf("bucket interval %d is not positive", cmd.Interval)
	}
	nb := int(backend.Buckets(cmd.Min, cmd.Max, cmd.Interval))
	k := nb + 2
	if cmd.WithDefault {
		k = nb + 1
	}
	b, err := x.uniform(k, func(j int) string {
		switch {
		case j < nb:
			lo := cmd.Min + int64(j)*cmd.Interval
			return fmt.Sprintf("[%d, %d)", lo, lo+cmd.Interval)
		case cmd.WithDefault:
			return defaultLabel
		case j == nb:
			return fmt.Sprintf("< %d", cmd.Min)
		}
		return fmt.Sprintf(">= %d", cmd.Max)
	})
	if err != nil {
		return err
	}
	err = x.each(func(ctx context.Context, alias string, s backend.Session) error {
		m, ok := cmd.Metrics[alias]
		if !ok {
			m = dag.NewConst(0)
		}
		return s.Regroup(ctx, &backend.MetricRule{
			Metric:      m,
			Min:         cmd.Min,
			Max:         cmd.Max,
			Interval:    cmd.Interval,
			WithDefault: cmd.WithDefault,
			Base:        b.base,
		})
	})
	if err != nil {
		return err
	}
	b.push()
	return nil
}

func (x *executor) randomRegroup(cmd *dag.RandomRegroup) error {
	if cmd.Buckets <= 0 {
		return fmt.Errorf("random regroup into %d buckets", cmd.Buckets)
	}
	b, err := x.uniform(cmd.Buckets, func(j int) string {
		return strconv.Itoa(j + 1)
	})
	if err != nil {
		return err
	}
	err = x.each(func(ctx context.Context, alias string, s backend.Session) error {
		rule := &backend.HashRule{
			Field:   cmd.Fields[alias],
			Metric:  cmd.Metrics[alias],
			Salt:    cmd.Salt,
			Buckets: cmd.Buckets,
			Base:    b.base,
		}
		if rule.Field == "" && rule.Metric == nil {
			rule.Base = nil
		}
		return s.Regroup(ctx, rule)
	})
	if err != nil {
		return err
	}
	b.push()
	return nil
}

// quantileRegroup cuts each group into N buckets of about equal document
// counts.  Documents with equal values always share a bucket.
func (x *executor) quantileRegroup(cmd *dag.QuantileRegroup) error {
	if cmd.N <= 0 {
		return fmt.Errorf("quantiles into %d buckets", cmd.N)
	}
	entries, err := x.ftgs(cmd.Fields, countMetric)
	if err != nil {
		return err
	}
	n := x.top().size()
	bounds := quantileBounds(entries, cmd.N, n)
	b, err := x.uniform(cmd.N, func(j int) string {
		return "[" + fraction(j, cmd.N) + ", " + fraction(j+1, cmd.N) + ")"
	})
	if err != nil {
		return err
	}
	err = x.each(func(ctx context.Context, alias string, s backend.Session) error {
		field, ok := cmd.Fields[alias]
		if !ok {
			return s.Regroup(ctx, &backend.RemapRule{})
		}
		return s.Regroup(ctx, &backend.BoundsRule{Field: field, Bounds: bounds, Base: b.base})
	})
	if err != nil {
		return err
	}
	b.push()
	return nil
}

func quantileBounds(entries []termGroup, buckets, n int) [][]int64 {
	byGroup := make([][]termGroup, n+1)
	totals := make([]int64, n+1)
	for _, e := range entries {
		if e.term.IsInt {
			byGroup[e.group] = append(byGroup[e.group], e)
			totals[e.group] += e.stats[0]
		}
	}
	out := make([][]int64, n+1)
	for g := 1; g <= n; g++ {
		bounds := make([]int64, buckets+1)
		for k := range bounds {
			bounds[k] = math.MaxInt64
		}
		bounds[0] = math.MinInt64
		var before int64
		for _, e := range byGroup[g] {
			k := int(before * int64(buckets) / totals[g])
			for j := k; j > 0 && bounds[j] == math.MaxInt64; j-- {
				bounds[j] = e.term.Int
			}
			before += e.stats[0]
		}
		out[g] = bounds
	}
	return out
}

func fraction(k, n int) string {
	s := strconv.FormatFloat(float64(k)/float64(n), 'f', -1, 64)
	if k == 0 || k == n {
		s += ".0"
	}
	return s
}

func (x *executor) explodeGroups(cmd *dag.ExplodeGroups) error {
	b, err := x.uniform(len(cmd.Buckets), func(j int) string {
		return cmd.Buckets[j].Label
	})
	if err != nil {
		return err
	}
	err = x.each(func(ctx context.Context, alias string, s backend.Session) error {
		filters := make([]dag.DocFilter, len(cmd.Buckets))
		for j, bucket := range cmd.Buckets {
			filters[j] = bucket.Filters[alias]
		}
		return s.Regroup(ctx, &backend.FilterRule{Filters: filters, Base: b.base})
	})
	if err != nil {
		return err
	}
	b.push()
	return nil
}
