// Package describe summarizes what a compiled query reads and how its
// output is keyed, without executing it.
package describe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/brimdata/sift/cachekey"
	"github.com/brimdata/sift/compiler"
	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/runtime/exec"
)

type Info struct {
	Datasets  []Dataset  `json:"datasets"`
	Groupings []Grouping `json:"groupings"`
	Columns   []string   `json:"columns"`
	Key       string     `json:"cache_key"`
	Warnings  []string   `json:"warnings,omitempty"`
}

type Dataset struct {
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	Start     string `json:"start"`
	End       string `json:"end"`
	TimeField string `json:"time_field"`
	Shards    int    `json:"shards"`
	Docs      int64  `json:"docs"`
}

// Grouping is a regroup whose groups key the output rows.
type Grouping struct {
	Kind   string   `json:"kind"`
	Fields []string `json:"fields,omitempty"`
}

// Analyze describes job, whose relative times were resolved in loc.
func Analyze(ctx context.Context, job *compiler.Job, env *exec.Environment, loc *time.Location) (*Info, error) {
	shards, err := env.Shards(ctx, job.Plan)
	if err != nil {
		return nil, err
	}
	key, err := cachekey.Compute(job.Plan, shards)
	if err != nil {
		return nil, err
	}
	info := &Info{
		Groupings: describeGroupings(job.Plan.Commands),
		Key:       key.String(),
		Warnings:  job.Warnings,
	}
	if job.Plan.Output != nil {
		info.Columns = job.Plan.Output.Names
	}
	for k, d := range job.Plan.Datasets {
		ds := Dataset{
			Name:      d.Name,
			Alias:     d.Alias,
			Start:     time.Unix(d.Start, 0).In(loc).Format(time.RFC3339),
			End:       time.Unix(d.End, 0).In(loc).Format(time.RFC3339),
			TimeField: d.TimeField,
			Shards:    len(shards[k]),
		}
		for _, s := range shards[k] {
			ds.Docs += s.Docs
		}
		info.Datasets = append(info.Datasets, ds)
	}
	return info, nil
}

// describeGroupings returns the regroups still in effect after seq, in
// the order their levels were pushed.
func describeGroupings(seq dag.Seq) []Grouping {
	groupings := []Grouping{}
	for _, cmd := range seq {
		switch cmd := cmd.(type) {
		case *dag.RegroupIntoParent:
			if len(groupings) > 0 {
				groupings = groupings[:len(groupings)-1]
			}
		default:
			if dag.IsRegroup(cmd) {
				groupings = append(groupings, describeRegroup(cmd))
			}
		}
	}
	return groupings
}

func describeRegroup(cmd dag.Command) Grouping {
	switch cmd := cmd.(type) {
	case *dag.FieldRegroup:
		return Grouping{Kind: cmd.Kind, Fields: distinct(cmd.Fields)}
	case *dag.TimeRegroup:
		return Grouping{Kind: cmd.Kind, Fields: distinct(cmd.Fields)}
	case *dag.RandomRegroup:
		return Grouping{Kind: cmd.Kind, Fields: distinct(cmd.Fields)}
	case *dag.QuantileRegroup:
		return Grouping{Kind: cmd.Kind, Fields: distinct(cmd.Fields)}
	case *dag.MetricRegroup:
		return Grouping{Kind: cmd.Kind}
	case *dag.ExplodeGroups:
		return Grouping{Kind: cmd.Kind}
	}
	panic(fmt.Sprintf("unknown regroup %T", cmd))
}

func distinct(fields map[string]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
