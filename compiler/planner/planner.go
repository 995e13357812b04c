// Package planner turns an analyzed query into a dag.Plan, the ordered
// command sequence run against the backend sessions.
//
// Planning happens in two passes.  The first lowers every aggregate of the
// query and records, per group depth, the statistics that must be gathered
// once the group space reaches that depth.  The second emits the commands
// level by level: the regroup that creates a level is followed by the
// statistics gathered there, then by the group filter of the GROUP BY
// element that created it.
package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/compiler/semantic/sem"
)

type planner struct {
	q       *sem.Query
	aliases []string
	levels  []*level
	nstat   int
	nftgs   int
	nsum    int
	ncomp   int
}

// level holds what is computed while the group space is at one depth.
type level struct {
	stats    []*dag.Stat
	statKeys map[string]string
	ftgs     []*dag.FtgsIterate
	blocks   [][]dag.Command
	computes []*dag.ComputeGroups
}

func newLevel() *level {
	return &level{statKeys: make(map[string]string)}
}

// Compile plans q, which must have been analyzed without error.
func Compile(q *sem.Query) (*dag.Plan, error) {
	if len(q.Datasets) == 0 {
		return nil, errors.New("query has no datasets")
	}
	p := &planner{q: q}
	for _, d := range q.Datasets {
		p.aliases = append(p.aliases, d.Alias)
	}
	for range len(q.GroupBys) + 1 {
		p.levels = append(p.levels, newLevel())
	}
	return p.plan()
}

func (p *planner) plan() (*dag.Plan, error) {
	q := p.q
	n := len(q.GroupBys)
	root := &rootScope{p: p}
	// Pass one.
	regroups := make([]dag.Command, n)
	havings := make([]dag.AggFilter, n)
	for i, item := range q.GroupBys {
		cmd, err := p.regroup(item, i)
		if err != nil {
			return nil, err
		}
		regroups[i] = cmd
		if item.Having != nil {
			havings[i] = p.aggFilter(item.Having, &lowering{scope: root, depth: i + 1, eval: i + 1})
		}
	}
	out := &dag.Output{
		Limit:    q.Limit,
		Rounding: q.Rounding,
	}
	for _, s := range q.Selects {
		out.Names = append(out.Names, s.Name)
		out.Selects = append(out.Selects, p.aggMetric(s.Metric, &lowering{scope: root, depth: n, eval: n}))
	}
	if q.Having != nil {
		out.Having = p.aggFilter(q.Having, &lowering{scope: root, depth: n, eval: n})
	}
	// Pass two.
	plan := &dag.Plan{Output: out}
	for _, d := range q.Datasets {
		plan.Datasets = append(plan.Datasets, &dag.Dataset{
			Name:      d.Name,
			Alias:     d.Alias,
			Start:     d.Start.Unix(),
			End:       d.End.Unix(),
			TimeField: d.TimeField,
		})
	}
	if q.Filter != nil {
		plan.Commands.Append(&dag.Filter{Kind: "Filter", Filters: p.filters(q.Filter)})
	}
	for depth, lvl := range p.levels {
		if depth > 0 {
			plan.Commands.Append(regroups[depth-1])
		}
		lvl.emit(&plan.Commands)
		if depth > 0 && havings[depth-1] != nil {
			plan.Commands.Append(&dag.FilterGroups{Kind: "FilterGroups", Filter: havings[depth-1]})
		}
	}
	return plan, nil
}

func (l *level) emit(seq *dag.Seq) {
	if len(l.stats) > 0 {
		seq.Append(&dag.GetGroupStats{Kind: "GetGroupStats", Stats: l.stats})
	}
	for _, f := range l.ftgs {
		seq.Append(f)
	}
	for _, block := range l.blocks {
		for _, cmd := range block {
			seq.Append(cmd)
		}
	}
	for _, c := range l.computes {
		seq.Append(c)
	}
}

// stat registers the sum of metrics at l and returns its name.  Equal
// sums share a name.
func (p *planner) stat(l *level, metrics map[string]dag.DocMetric) string {
	b, err := json.Marshal(metrics)
	if err != nil {
		panic(err)
	}
	key := string(b)
	if name, ok := l.statKeys[key]; ok {
		return name
	}
	name := fmt.Sprintf("s%d", p.nstat)
	p.nstat++
	l.statKeys[key] = name
	l.stats = append(l.stats, &dag.Stat{Name: name, Metrics: metrics})
	return name
}

// span returns the earliest start and the latest end over the datasets.
func span(datasets []*sem.Dataset) (time.Time, time.Time) {
	start, end := datasets[0].Start, datasets[0].End
	for _, d := range datasets[1:] {
		if d.Start.Before(start) {
			start = d.Start
		}
		if d.End.After(end) {
			end = d.End
		}
	}
	return start, end
}
