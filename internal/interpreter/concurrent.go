package interpreter

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arcanea/internal/runtime"
)

// Source is one named program text.
type Source struct {
	Name string
	Text string
}

// EvalAll interprets each source against the shared registry. With parallel
// set, sources run concurrently and the first failure cancels the rest;
// otherwise they run in order. Results are indexed like sources.
func (in *Interpreter) EvalAll(ctx context.Context, sources []Source, parallel bool) ([]runtime.Value, error) {
	results := make([]runtime.Value, len(sources))

	if !parallel {
		for i, src := range sources {
			v, err := in.EvalSource(ctx, src.Text, src.Name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", src.Name, err)
			}
			results[i] = v
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			v, err := in.EvalSource(gctx, src.Text, src.Name)
			if err != nil {
				return fmt.Errorf("%s: %w", src.Name, err)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		in.logger.Warn("parallel evaluation failed", zap.Int("sources", len(sources)), zap.Error(err))
		return nil, err
	}
	return results, nil
}
