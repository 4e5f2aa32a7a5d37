package interpreter

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"arcanea/internal/errors"
	"arcanea/internal/lexer"
	"arcanea/internal/parser"
	"arcanea/internal/runtime"
)

// DefaultMaxCallDepth bounds nested spell activations.
const DefaultMaxCallDepth = 256

// Interpreter evaluates parsed programs against a registry. It holds no
// per-call state, so one instance may serve concurrent evaluations.
type Interpreter struct {
	registry *runtime.Registry
	globals  *runtime.Environment
	logger   *zap.Logger
	maxDepth int
}

type Option func(*Interpreter)

// WithLogger overrides the registry's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(in *Interpreter) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithMaxCallDepth sets the activation limit. Non-positive values keep the default.
func WithMaxCallDepth(depth int) Option {
	return func(in *Interpreter) {
		if depth > 0 {
			in.maxDepth = depth
		}
	}
}

// WithGlobals evaluates top-level code in env instead of a fresh frame.
func WithGlobals(env *runtime.Environment) Option {
	return func(in *Interpreter) {
		if env != nil {
			in.globals = env
		}
	}
}

func New(registry *runtime.Registry, opts ...Option) *Interpreter {
	in := &Interpreter{
		registry: registry,
		globals:  runtime.NewEnvironment(nil),
		logger:   registry.Logger(),
		maxDepth: DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

func (in *Interpreter) Registry() *runtime.Registry {
	return in.registry
}

// Globals is the frame top-level declarations close over.
func (in *Interpreter) Globals() *runtime.Environment {
	return in.globals
}

// Evaluate runs node in env (the global frame when env is nil).
func (in *Interpreter) Evaluate(ctx context.Context, node parser.Node, env *runtime.Environment) (runtime.Value, error) {
	if node == nil {
		return nil, errors.New(errors.InternalError, "cannot evaluate a nil node")
	}
	if env == nil {
		env = in.globals
	}
	act := &activation{in: in, ctx: ctx, env: env}
	return act.eval(node)
}

// Interpret evaluates every declaration of program in order and returns the
// value of the last one.
func (in *Interpreter) Interpret(ctx context.Context, program *parser.Program) (runtime.Value, error) {
	return in.Evaluate(ctx, program, in.globals)
}

// EvalSource parses and interprets a whole source file.
func (in *Interpreter) EvalSource(ctx context.Context, source, file string) (runtime.Value, error) {
	program, err := parser.ParseSource(source, file)
	if err != nil {
		return nil, err
	}
	v, err := in.Interpret(ctx, program)
	if err != nil {
		return nil, attachSource(err, source, file)
	}
	return v, nil
}

// EvalStatements parses src as a bare statement list and evaluates it in env.
func (in *Interpreter) EvalStatements(ctx context.Context, source string, env *runtime.Environment) (runtime.Value, error) {
	const file = "<cast>"
	tokens := lexer.NewScannerWithFile(source, file).ScanTokens()
	stmts, err := parser.NewParserWithSource(tokens, source, file).ParseStatements()
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = in.globals
	}

	act := &activation{in: in, ctx: ctx, env: env}
	var result runtime.Value
	for _, stmt := range stmts {
		result, err = act.eval(stmt)
		if err != nil {
			return nil, attachSource(err, source, file)
		}
	}
	return result, nil
}

// attachSource fills in the offending source line for errors raised in file.
func attachSource(err error, source, file string) error {
	ae, ok := errors.As(err)
	if !ok || ae.Source != "" || ae.Location.File != file || ae.Location.Line < 1 {
		return err
	}
	lines := strings.Split(source, "\n")
	if ae.Location.Line <= len(lines) {
		ae.WithSource(lines[ae.Location.Line-1])
	}
	return err
}
