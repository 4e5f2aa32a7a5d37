package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"arcanea/internal/graph"
	"arcanea/internal/interpreter"
	"arcanea/internal/runtime"
)

// RunOptions controls a run.
type RunOptions struct {
	Files    []string
	Casts    []string // statement lists evaluated after the files
	Load     []string // modules loaded before the files
	Parallel bool
	Timeout  time.Duration // per cast; zero means none
}

// ReadSources reads files into named sources.
func ReadSources(files []string) ([]interpreter.Source, error) {
	sources := make([]interpreter.Source, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error reading file: %w", err)
		}
		sources = append(sources, interpreter.Source{Name: file, Text: string(data)})
	}
	return sources, nil
}

// Run loads modules, evaluates the files and then each cast, writing every
// non-nil cast result to w.
func Run(ctx context.Context, s *Session, opts RunOptions, w io.Writer) error {
	if err := s.Load(ctx, opts.Load...); err != nil {
		return err
	}

	sources, err := ReadSources(opts.Files)
	if err != nil {
		return err
	}
	if _, err := s.Interpreter.EvalAll(ctx, sources, opts.Parallel); err != nil {
		return err
	}

	for _, cast := range opts.Casts {
		v, err := evalCast(ctx, s, cast, opts.Timeout)
		if err != nil {
			return err
		}
		if v != nil {
			fmt.Fprintln(w, runtime.Stringify(v))
		}
	}
	return nil
}

func evalCast(ctx context.Context, s *Session, cast string, timeout time.Duration) (runtime.Value, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.Interpreter.EvalStatements(ctx, cast, nil)
}

// Graph evaluates the files and writes the registry graph as JSON.
func Graph(ctx context.Context, s *Session, files []string, w io.Writer) error {
	sources, err := ReadSources(files)
	if err != nil {
		return err
	}
	if _, err := s.Interpreter.EvalAll(ctx, sources, false); err != nil {
		return err
	}
	return graph.Build(s.Registry).Write(w)
}
