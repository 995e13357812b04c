package exec

import (
	"context"
	"sync"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/compiler/dag"
	"golang.org/x/sync/errgroup"
)

// Environment resolves the datasets of a plan against a backend.
type Environment struct {
	client backend.Client
}

func NewEnvironment(client backend.Client) *Environment {
	return &Environment{client: client}
}

func (e *Environment) Client() backend.Client {
	return e.client
}

// Shards lists the shards of each dataset of plan, in dataset order.
func (e *Environment) Shards(ctx context.Context, plan *dag.Plan) ([][]backend.Shard, error) {
	out := make([][]backend.Shard, len(plan.Datasets))
	g, ctx := errgroup.WithContext(ctx)
	for k, d := range plan.Datasets {
		g.Go(func() error {
			shards, err := e.client.Shards(ctx, d.Name, d.Start, d.End)
			out[k] = shards
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Open opens a session for each dataset of plan over the shards returned
// by Shards.  When any open fails the sessions already opened are closed.
func (e *Environment) Open(ctx context.Context, plan *dag.Plan, shards [][]backend.Shard) (Sessions, error) {
	var mu sync.Mutex
	sessions := make(Sessions)
	g, gctx := errgroup.WithContext(ctx)
	for k, d := range plan.Datasets {
		g.Go(func() error {
			s, err := e.client.Open(gctx, d, shards[k])
			if err != nil {
				return err
			}
			mu.Lock()
			sessions[d.Alias] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sessions.Close()
		return nil, err
	}
	return sessions, nil
}

// Sessions maps dataset aliases to open sessions.
type Sessions map[string]backend.Session

func (s Sessions) Close() error {
	var err error
	for _, session := range s {
		if closeErr := session.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
