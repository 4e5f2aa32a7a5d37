package interpreter

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"arcanea/internal/errors"
	"arcanea/internal/parser"
	"arcanea/internal/runtime"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestInterpreter(t *testing.T, opts ...Option) (*Interpreter, *runtime.Registry, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	reg := runtime.NewRegistry(runtime.WithOutput(out))
	reg.Initialize()
	return New(reg, opts...), reg, out
}

func mustEval(t *testing.T, in *Interpreter, source string) runtime.Value {
	t.Helper()
	v, err := in.EvalSource(context.Background(), source, "test.arc")
	require.NoError(t, err)
	return v
}

func cast(t *testing.T, reg *runtime.Registry, name string, args ...runtime.Value) (runtime.Value, error) {
	t.Helper()
	return reg.CastSpell(context.Background(), name, args)
}

func TestGreetEndToEnd(t *testing.T) {
	in, reg, out := newTestInterpreter(t)
	mustEval(t, in, `@spell greet(name) { print(name) }`)

	v, err := cast(t, reg, "greet", "Arcanea")
	require.NoError(t, err)
	assert.Equal(t, "Arcanea", v)
	assert.Equal(t, "Arcanea\n", out.String())
}

func TestProgramValueIsLastDeclaration(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)

	v := mustEval(t, in, "@spell first() { 1 }\n@archetype Last { x }")
	arch, ok := v.(*runtime.Archetype)
	require.True(t, ok)
	assert.Equal(t, "Last", arch.Name)

	_, ok = reg.GetSpell("first")
	assert.True(t, ok)

	assert.Nil(t, mustEval(t, in, ""))
}

func TestSpellRegistrationLastWriteWins(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)
	mustEval(t, in, `
@spell pick() { "first" }
@spell pick() { "second" }
`)

	v, err := cast(t, reg, "pick")
	require.NoError(t, err)
	assert.Equal(t, "second", v)
	assert.Len(t, reg.Catalog().Spells, 1)
}

func TestArgumentBinding(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)
	mustEval(t, in, `@spell pair(a, b) { [a, b] }`)

	tests := []struct {
		name string
		args []runtime.Value
		want []runtime.Value
	}{
		{"exact", []runtime.Value{"x", "y"}, []runtime.Value{"x", "y"}},
		{"missing bind nil", []runtime.Value{"x"}, []runtime.Value{"x", nil}},
		{"none", nil, []runtime.Value{nil, nil}},
		{"extras ignored", []runtime.Value{"x", "y", "z"}, []runtime.Value{"x", "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := cast(t, reg, "pair", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestArgumentsEvaluateLeftToRight(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)

	var order []string
	reg.RegisterFunction("a", func(context.Context, []runtime.Value) (runtime.Value, error) {
		order = append(order, "a")
		return nil, nil
	})
	reg.RegisterFunction("b", func(context.Context, []runtime.Value) (runtime.Value, error) {
		order = append(order, "b")
		return "B", nil
	})
	reg.RegisterFunction("collect", func(_ context.Context, args []runtime.Value) (runtime.Value, error) {
		order = append(order, "collect")
		return args, nil
	})

	mustEval(t, in, `@spell run() { collect(a(), b()) }`)
	v, err := cast(t, reg, "run")
	require.NoError(t, err)
	assert.Equal(t, []runtime.Value{nil, "B"}, v)
	assert.Equal(t, []string{"a", "b", "collect"}, order)
}

func TestLexicalShadowing(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)
	in.Globals().Define("x", 1.0)

	mustEval(t, in, `
@spell read() { x }
@spell shadow() { let x = 2; x }
`)

	v, err := cast(t, reg, "shadow")
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = cast(t, reg, "read")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestSpellsCloseOverDefiningScope(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)
	mustEval(t, in, `
@spell counter(start) {
  @spell current() { start }
  current
}
@spell caller(start) {
  let made = counter("inner")
  made()
}
`)

	v, err := cast(t, reg, "counter", 3.0)
	require.NoError(t, err)
	spell, ok := v.(*runtime.Spell)
	require.True(t, ok)

	got, err := spell.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	// The caller's own "start" is not visible to the nested spell.
	v, err = cast(t, reg, "caller", "outer")
	require.NoError(t, err)
	assert.Equal(t, "inner", v)

	_, registered := reg.GetSpell("current")
	assert.False(t, registered)
}

func TestAssignment(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)
	in.Globals().Define("count", 0.0)
	reg.SetVariable("realm", "Arcanea")

	mustEval(t, in, `
@spell bump(n) { count = n }
@spell rename() { realm = "Elsewhere" }
@spell create() { fresh = 1 }
`)

	_, err := cast(t, reg, "bump", 5.0)
	require.NoError(t, err)
	v, err := in.Globals().Get("count")
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	_, err = cast(t, reg, "rename")
	require.NoError(t, err)
	v, _ = reg.GetVariable("realm")
	assert.Equal(t, "Elsewhere", v)

	_, err = cast(t, reg, "create")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrUndefinedVariable))
	assert.False(t, in.Globals().Has("fresh"))
}

func TestRegistryVariablesResolve(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)
	reg.SetVariable("realm", "Arcanea")
	mustEval(t, in, `@spell where() { realm }`)

	v, err := cast(t, reg, "where")
	require.NoError(t, err)
	assert.Equal(t, "Arcanea", v)
}

func TestEvaluationErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		args     []runtime.Value
		sentinel error
		kind     errors.ErrorType
		message  string
	}{
		{
			name:     "undefined variable",
			source:   `@spell bad() { print(ghost) }`,
			sentinel: errors.ErrUndefinedVariable,
			kind:     errors.ReferenceError,
			message:  "Undefined variable: ghost",
		},
		{
			name:     "unknown spell",
			source:   `@spell bad() { nothing(1) }`,
			sentinel: errors.ErrUnknownSpell,
			kind:     errors.ReferenceError,
			message:  "Unknown spell: nothing",
		},
		{
			name:     "literal not callable",
			source:   `@spell bad() { "text"(1) }`,
			sentinel: errors.ErrNotCallable,
			kind:     errors.NotCallableError,
			message:  `Not callable: "text"`,
		},
		{
			name:     "variable not callable",
			source:   `@spell bad() { let x = 1; x() }`,
			sentinel: errors.ErrNotCallable,
			kind:     errors.NotCallableError,
			message:  "Not callable: x",
		},
		{
			name:     "length of number",
			source:   `@spell bad(v) { length(v) }`,
			args:     []runtime.Value{42.0},
			sentinel: errors.ErrNotIterable,
			kind:     errors.NotIterableError,
			message:  "non-iterable value: number",
		},
		{
			name:     "member of non-record",
			source:   `@spell bad() { "text".size }`,
			sentinel: errors.ErrUnknownMember,
			kind:     errors.RuntimeError,
			message:  "Cannot read member size of string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, reg, _ := newTestInterpreter(t)
			mustEval(t, in, tt.source)

			_, err := cast(t, reg, "bad", tt.args...)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, tt.sentinel), "got %v", err)
			assert.True(t, errors.IsType(err, tt.kind), "got %v", err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestErrorLocationAndCallStack(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)
	mustEval(t, in, "@spell inner() { ghost }\n@spell outer() { inner() }")

	_, err := cast(t, reg, "outer")
	require.Error(t, err)

	ae, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.SourceLocation{File: "test.arc", Line: 1, Column: 18}, ae.Location)
	require.Len(t, ae.CallStack, 2)
	assert.Equal(t, "inner", ae.CallStack[0].Function)
	assert.Equal(t, 1, ae.CallStack[0].Line)
	assert.Equal(t, "outer", ae.CallStack[1].Function)
	assert.Equal(t, 2, ae.CallStack[1].Line)
	assert.Contains(t, err.Error(), "at inner (test.arc:1:18)")
}

func TestMaxCallDepth(t *testing.T) {
	in, reg, _ := newTestInterpreter(t, WithMaxCallDepth(8))
	mustEval(t, in, `@spell forever() { forever() }`)

	_, err := cast(t, reg, "forever")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrCallDepth))
	assert.Contains(t, err.Error(), "Maximum call depth exceeded (8)")
}

func TestCancelledContext(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)
	mustEval(t, in, `@spell idle() { nil }`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := reg.CastSpell(ctx, "idle", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchetypes(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)
	mustEval(t, in, `
@archetype Hero {
  name: string
  level: number = 1
  title = "wanderer"
}
@archetype Party { leader: Hero, size: number }
@archetype Odd { x: Mystery }

@spell make(n, l) { Hero(n, l) }
@spell nameOf(h) { h.name }
@spell missing(h) { h.nope }
@spell party(l) { Party(l, 1) }
@spell odd() { Odd(1) }
`)

	v, err := cast(t, reg, "make", "Mira")
	require.NoError(t, err)
	hero, ok := v.(*runtime.Record)
	require.True(t, ok)
	assert.Equal(t, "Hero", hero.TypeName())
	assert.Equal(t, `Hero{name: "Mira", level: 1, title: "wanderer"}`, runtime.Stringify(hero))

	name, err := cast(t, reg, "nameOf", hero)
	require.NoError(t, err)
	assert.Equal(t, "Mira", name)

	_, err = cast(t, reg, "missing", hero)
	assert.True(t, stderrors.Is(err, errors.ErrUnknownMember))
	assert.Contains(t, err.Error(), "Unknown member nope on Hero")

	_, err = cast(t, reg, "make", 42.0)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "Hero.name (42) is not a valid string")

	_, err = cast(t, reg, "make", "Mira", "high")
	assert.True(t, stderrors.Is(err, errors.ErrTypeValidation))

	// nil skips validation.
	v, err = cast(t, reg, "make")
	require.NoError(t, err)
	assert.Equal(t, `Hero{name: nil, level: 1, title: "wanderer"}`, runtime.Stringify(v))

	_, err = cast(t, reg, "party", hero)
	require.NoError(t, err)
	_, err = cast(t, reg, "party", "not a hero")
	assert.True(t, stderrors.Is(err, errors.ErrTypeValidation))

	_, err = cast(t, reg, "odd")
	assert.True(t, stderrors.Is(err, errors.ErrUnknownArchetype))
}

func TestEvalStatements(t *testing.T) {
	in, _, out := newTestInterpreter(t)
	ctx := context.Background()

	v, err := in.EvalStatements(ctx, `let x = 2; print(x)`, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, "2\n", out.String())

	v, err = in.EvalStatements(ctx, `x`, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	_, err = in.EvalStatements(ctx, `print(ghost)`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 | print(ghost)")

	_, err = in.EvalStatements(ctx, `print(`, nil)
	assert.True(t, errors.IsType(err, errors.SyntaxError))
}

func TestEvalSourceSyntaxError(t *testing.T) {
	in, _, _ := newTestInterpreter(t)
	_, err := in.EvalSource(context.Background(), "@spell broken( {", "broken.arc")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.SyntaxError))
	assert.Contains(t, err.Error(), "broken.arc:1")
}

func TestEvaluateNilNode(t *testing.T) {
	in, _, _ := newTestInterpreter(t)
	_, err := in.Evaluate(context.Background(), nil, nil)
	assert.True(t, errors.IsType(err, errors.InternalError))
}

func TestEvaluateSingleNode(t *testing.T) {
	in, _, _ := newTestInterpreter(t)
	env := runtime.NewEnvironment(in.Globals())
	env.Define("word", "spell")

	v, err := in.Evaluate(context.Background(), &parser.CallExpr{
		Callee: &parser.Identifier{Name: "length"},
		Args:   []parser.Expr{&parser.Identifier{Name: "word"}},
	}, env)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestSpellActivationLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	reg := runtime.NewRegistry(runtime.WithOutput(&bytes.Buffer{}), runtime.WithLogger(zap.New(core)))
	reg.Initialize()
	in := New(reg)
	mustEval(t, in, `@spell greet(name) { print(name) }`)

	_, err := reg.CastSpell(context.Background(), "greet", []runtime.Value{"Arcanea"})
	require.NoError(t, err)

	entries := logs.FilterMessage("spell activation").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "greet", fields["spell"])
	assert.NotEmpty(t, fields["activation"])
	assert.Equal(t, int64(1), fields["depth"])
}
