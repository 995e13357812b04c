// Package compiler runs the query pipeline: parse, analyze, plan, and
// optimize.  The resulting Job holds everything needed to compute a cache
// key and, on a miss, to execute the query.
package compiler

import (
	"context"
	"time"

	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/compiler/dag"
	"github.com/brimdata/sift/compiler/optimizer"
	"github.com/brimdata/sift/compiler/parser"
	"github.com/brimdata/sift/compiler/planner"
	"github.com/brimdata/sift/compiler/semantic"
	"github.com/brimdata/sift/compiler/semantic/sem"
)

type Options struct {
	Dialect  parser.Dialect
	Now      time.Time
	Location *time.Location
	Lenient  bool
	RowLimit int
	// GroupLimit rejects groupings that create more buckets.  Zero means
	// no limit.
	GroupLimit int
	// NoOptimize skips plan folding.  Plans compiled this way still run
	// correctly but queries that differ only in the spelling of
	// constants get different cache keys.
	NoOptimize bool
}

type Job struct {
	Query    *sem.Query
	Plan     *dag.Plan
	Warnings []string
}

func Parse(query string, dialect parser.Dialect) (*parser.AST, error) {
	return parser.ParseQuery(query, dialect)
}

func Analyze(ctx context.Context, ast *parser.AST, cat *catalog.Catalog, opts Options) (*sem.Query, error) {
	return semantic.Analyze(ctx, ast, cat, semantic.Options{
		Now:        opts.Now,
		Location:   opts.Location,
		Lenient:    opts.Lenient,
		RowLimit:   opts.RowLimit,
		GroupLimit: opts.GroupLimit,
	})
}

func CompileWithAST(ctx context.Context, ast *parser.AST, cat *catalog.Catalog, opts Options) (*Job, error) {
	q, err := Analyze(ctx, ast, cat, opts)
	if err != nil {
		return nil, err
	}
	plan, err := planner.Compile(q)
	if err != nil {
		return nil, err
	}
	if !opts.NoOptimize {
		plan = optimizer.Optimize(plan)
	}
	return &Job{Query: q, Plan: plan, Warnings: q.Warnings}, nil
}

// Compile compiles query against a catalog snapshot.  Errors in the query
// are returned as a srcfiles.ErrorList.
func Compile(ctx context.Context, query string, cat *catalog.Catalog, opts Options) (*Job, error) {
	ast, err := Parse(query, opts.Dialect)
	if err != nil {
		return nil, err
	}
	return CompileWithAST(ctx, ast, cat, opts)
}
