// Package exec runs a dag.Plan against one backend session per dataset.
//
// The executor keeps an arena of group levels.  Level 0 holds the single
// group every document starts in and each regroup pushes a level whose
// groups point at their parents one level down.  Values retained by
// GetGroupStats, FtgsIterate, ComputeGroups, and RegroupIntoParent live in
// the level they were computed at, so reading a value for an ancestor is
// array indexing through the parent links.
package exec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/compiler/dag"
	"go.uber.org/zap"
)

type Options struct {
	// GroupLimit bounds the number of groups of a level.  Zero means no
	// limit.
	GroupLimit int
}

// GroupLimitError is returned as soon as a regroup would create more
// groups than the limit allows.
type GroupLimitError struct {
	Groups int
	Limit  int
}

func (e *GroupLimitError) Error() string {
	return fmt.Sprintf("GroupLimitExceededException: Number of groups [%d] exceeds the group limit [%d]", e.Groups, e.Limit)
}

type Row struct {
	Keys   []string
	Values []float64
}

// Result is the output of a plan.  Every row has one key per GROUP BY
// element, or a single empty key when there is none.
type Result struct {
	Names     []string
	Rows      []Row
	Rounding  int
	Truncated bool
	Progress  Progress
}

// Progress counts the work done by a run.
type Progress struct {
	Commands  int `json:"commands"`
	Regroups  int `json:"regroups"`
	MaxGroups int `json:"max_groups"`
}

type executor struct {
	ctx      context.Context
	logger   *zap.Logger
	plan     *dag.Plan
	aliases  []string
	sessions map[string]backend.Session
	opts     Options
	levels   []*level
	progress Progress
}

// Run executes plan.  sessions holds an open session for every dataset
// alias of the plan.  Run does not close the sessions.
func Run(ctx context.Context, logger *zap.Logger, plan *dag.Plan, sessions map[string]backend.Session, opts Options) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, alias := range plan.Aliases() {
		if sessions[alias] == nil {
			return nil, fmt.Errorf("no session for dataset %q", alias)
		}
	}
	x := &executor{
		ctx:      ctx,
		logger:   logger,
		plan:     plan,
		aliases:  plan.Aliases(),
		sessions: sessions,
		opts:     opts,
		levels:   []*level{rootLevel()},
	}
	blocks := blockStarts(plan.Commands)
	for i, cmd := range plan.Commands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		if err := x.run(cmd, blocks[i]); err != nil {
			return nil, err
		}
		x.progress.Commands++
		x.progress.MaxGroups = max(x.progress.MaxGroups, x.top().size())
		x.logger.Debug("Command",
			zap.Int("index", i),
			zap.String("command", commandName(cmd)),
			zap.Int("groups", x.top().size()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return x.output(plan.Output)
}

func (x *executor) run(cmd dag.Command, block bool) error {
	switch cmd := cmd.(type) {
	case *dag.Filter:
		return x.filter(cmd)
	case *dag.FieldRegroup:
		return x.fieldRegroup(cmd, block)
	case *dag.TimeRegroup:
		return x.timeRegroup(cmd)
	case *dag.MetricRegroup:
		return x.metricRegroup(cmd)
	case *dag.RandomRegroup:
		return x.randomRegroup(cmd)
	case *dag.QuantileRegroup:
		return x.quantileRegroup(cmd)
	case *dag.ExplodeGroups:
		return x.explodeGroups(cmd)
	case *dag.GetGroupStats:
		return x.getGroupStats(cmd)
	case *dag.FtgsIterate:
		return x.ftgsIterate(cmd)
	case *dag.RegroupIntoParent:
		return x.regroupIntoParent(cmd)
	case *dag.ComputeGroups:
		vals, err := x.eval(x.levelFrame(), cmd.Expr)
		if err != nil {
			return err
		}
		x.top().setRows(cmd.Name, vals)
		return nil
	case *dag.FilterGroups:
		return x.filterGroups(cmd)
	}
	return fmt.Errorf("unknown command %T", cmd)
}

// blockStarts finds the regroups whose levels are popped by a
// RegroupIntoParent.  Their documents must all be returned to the parent
// level, so those regroups keep every document in some group.
func blockStarts(seq dag.Seq) map[int]bool {
	blocks := make(map[int]bool)
	var stack []int
	for i, cmd := range seq {
		switch cmd.(type) {
		case *dag.RegroupIntoParent:
			if len(stack) > 0 {
				blocks[stack[len(stack)-1]] = true
				stack = stack[:len(stack)-1]
			}
		default:
			if dag.IsRegroup(cmd) {
				stack = append(stack, i)
			}
		}
	}
	return blocks
}

func commandName(cmd dag.Command) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", cmd), "*dag.")
}

func (x *executor) filter(cmd *dag.Filter) error {
	n := x.top().size()
	return x.each(func(ctx context.Context, alias string, s backend.Session) error {
		f, ok := cmd.Filters[alias]
		if !ok {
			return nil
		}
		return s.Regroup(ctx, &backend.FilterRule{
			Filters: []dag.DocFilter{f},
			Base:    identity(n),
		})
	})
}

func (x *executor) filterGroups(cmd *dag.FilterGroups) error {
	keep, err := x.evalFilter(x.levelFrame(), cmd.Filter)
	if err != nil {
		return err
	}
	mapping := x.top().compact(func(g int) bool { return keep[g-1] })
	return x.remap(mapping)
}

func (x *executor) remap(mapping []int) error {
	x.progress.Regroups++
	return x.each(func(ctx context.Context, _ string, s backend.Session) error {
		return s.Regroup(ctx, &backend.RemapRule{Base: mapping})
	})
}

func (x *executor) regroupIntoParent(cmd *dag.RegroupIntoParent) error {
	if len(x.levels) < 2 {
		return fmt.Errorf("%s: no level to return from", cmd.Name)
	}
	f := x.levelFrame()
	vals, err := x.eval(f, cmd.Expr)
	if err != nil {
		return err
	}
	var keep []bool
	if cmd.Having != nil {
		if keep, err = x.evalFilter(f, cmd.Having); err != nil {
			return err
		}
	}
	top := x.top()
	x.levels = x.levels[:len(x.levels)-1]
	parent := x.top()
	sums := make([]float64, parent.size()+1)
	for r, g := range f.groups {
		if top.isHidden(g) || (keep != nil && !keep[r]) {
			continue
		}
		sums[top.parents[g]] += vals[r]
	}
	parent.set(cmd.Name, sums)
	return x.remap(top.parents)
}

func identity(n int) []int {
	out := make([]int, n+1)
	for g := range out {
		out[g] = g
	}
	return out
}

func (x *executor) output(out *dag.Output) (*Result, error) {
	if out == nil {
		return nil, fmt.Errorf("plan has no output")
	}
	f := x.levelFrame()
	for _, sel := range out.Selects {
		vals, err := x.eval(f, sel)
		if err != nil {
			return nil, err
		}
		f.cols = append(f.cols, vals)
	}
	var keep []bool
	if out.Having != nil {
		var err error
		if keep, err = x.evalFilter(f, out.Having); err != nil {
			return nil, err
		}
	}
	res := &Result{
		Names:    out.Names,
		Rounding: out.Rounding,
	}
	top := x.top()
	for r, g := range f.groups {
		if top.isHidden(g) || (keep != nil && !keep[r]) {
			continue
		}
		if out.Limit > 0 && len(res.Rows) == out.Limit {
			res.Truncated = true
			break
		}
		row := Row{Keys: x.keys(g)}
		for _, col := range f.cols {
			row.Values = append(row.Values, col[r])
		}
		res.Rows = append(res.Rows, row)
	}
	res.Progress = x.progress
	return res, nil
}

// keys returns the labels of group g of the top level and of its
// ancestors, outermost first.
func (x *executor) keys(g int) []string {
	if len(x.levels) == 1 {
		return []string{""}
	}
	keys := make([]string, len(x.levels)-1)
	for d := len(x.levels) - 1; d > 0; d-- {
		keys[d-1] = x.levels[d].labels[g]
		g = x.levels[d].parents[g]
	}
	return keys
}
