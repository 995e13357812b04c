package planner

import (
	"fmt"
	"time"

	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/compiler/semantic/sem"
)

// regroup lowers the GROUP BY element that turns depth into depth+1.
func (p *planner) regroup(item *sem.GroupByItem, depth int) (dag.Command, error) {
	switch g := item.Group.(type) {
	case *sem.FieldGroup:
		cmd := &dag.FieldRegroup{
			Kind:        "FieldRegroup",
			Fields:      fieldNames(g.Field),
			Limit:       g.Limit,
			Bottom:      g.Bottom,
			Terms:       lowerTerms(g.Terms),
			Exclude:     g.Exclude,
			WithDefault: item.WithDefault,
		}
		if g.By != nil {
			cmd.By = p.aggMetric(g.By, &lowering{
				scope:  &rootScope{p: p},
				depth:  depth,
				eval:   depth,
				inline: true,
			})
		}
		return cmd, nil
	case *sem.TimeGroup:
		return p.timeRegroup(g)
	case *sem.BucketGroup:
		return &dag.MetricRegroup{
			Kind:        "MetricRegroup",
			Metrics:     p.metrics(g.Metric),
			Min:         g.Min,
			Max:         g.Max,
			Interval:    g.Interval,
			WithDefault: item.WithDefault,
		}, nil
	case *sem.RandomGroup:
		cmd := &dag.RandomRegroup{
			Kind:    "RandomRegroup",
			Buckets: g.Buckets,
			Salt:    g.Salt,
		}
		if g.Field != nil {
			cmd.Fields = fieldNames(g.Field)
		} else {
			cmd.Metrics = p.metrics(g.Metric)
		}
		return cmd, nil
	case *sem.QuantileGroup:
		return &dag.QuantileRegroup{
			Kind:   "QuantileRegroup",
			Fields: fieldNames(g.Field),
			N:      g.N,
		}, nil
	case *sem.PredicateGroup:
		return &dag.ExplodeGroups{
			Kind: "ExplodeGroups",
			Buckets: []*dag.Bucket{
				{Label: "0", Filters: p.filters(&sem.Not{Filter: g.Filter})},
				{Label: "1", Filters: p.filters(g.Filter)},
			},
		}, nil
	case *sem.DatasetGroup:
		cmd := &dag.ExplodeGroups{Kind: "ExplodeGroups"}
		for _, alias := range p.aliases {
			cmd.Buckets = append(cmd.Buckets, &dag.Bucket{
				Label:   alias,
				Filters: map[string]dag.DocFilter{alias: dag.True},
			})
		}
		return cmd, nil
	}
	return nil, fmt.Errorf("planner: unknown group by %T", item.Group)
}

// timeRegroup aligns buckets to the start of the query span, or with
// relative, to the start of each dataset.  Labels always count from one
// origin so the buckets of relative datasets line up.
func (p *planner) timeRegroup(g *sem.TimeGroup) (dag.Command, error) {
	loc := p.q.Location
	if loc == nil {
		loc = time.UTC
	}
	cmd := &dag.TimeRegroup{
		Kind:     "TimeRegroup",
		Fields:   fieldNames(g.Field),
		Origins:  make(map[string]int64),
		Seconds:  g.Period.Seconds,
		Months:   g.Period.Months,
		Location: loc.String(),
		Format:   g.Format,
	}
	if g.Period.Seconds <= 0 && g.Period.Months <= 0 {
		return nil, fmt.Errorf("planner: time period is empty")
	}
	if g.Relative {
		cmd.LabelOrigin = p.q.Datasets[0].Start.Unix()
		for _, d := range p.q.Datasets {
			cmd.Origins[d.Alias] = d.Start.Unix()
			cmd.Buckets = max(cmd.Buckets, countBuckets(d.Start.In(loc), d.End.In(loc), g.Period))
		}
		return cmd, nil
	}
	start, end := span(p.q.Datasets)
	cmd.LabelOrigin = start.Unix()
	for _, d := range p.q.Datasets {
		cmd.Origins[d.Alias] = start.Unix()
	}
	cmd.Buckets = countBuckets(start.In(loc), end.In(loc), g.Period)
	return cmd, nil
}

// countBuckets returns the number of periods needed to cover [start, end).
func countBuckets(start, end time.Time, period sem.Period) int {
	if period.Seconds > 0 {
		secs := int64(end.Sub(start) / time.Second)
		return int((secs + period.Seconds - 1) / period.Seconds)
	}
	n := 0
	for start.AddDate(0, n*period.Months, 0).Before(end) {
		n++
	}
	return n
}
