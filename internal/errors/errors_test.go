package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRendering(t *testing.T) {
	err := NewSyntaxError("Expect '{' before spell body", "greet.arc", 2, 5).
		WithSource("@spell greet(name)")

	out := err.Error()
	assert.Contains(t, out, "SyntaxError: Expect '{' before spell body")
	assert.Contains(t, out, "at greet.arc:2:5")
	assert.Contains(t, out, "2 | @spell greet(name)")
	assert.Contains(t, out, "    ^")
}

func TestErrorRenderingWithoutFile(t *testing.T) {
	err := NewRuntimeError("boom", "", 3, 1)
	assert.Contains(t, err.Error(), "at <input>:3:1")
}

func TestCallStackRendering(t *testing.T) {
	err := UndefinedVariable("x").
		AddStackFrame("inner", "a.arc", 4, 3).
		AddStackFrame("outer", "a.arc", 9, 1)

	out := err.Error()
	assert.Contains(t, out, "Call Stack:")
	assert.Contains(t, out, "at inner (a.arc:4:3)")
	assert.Contains(t, out, "at outer (a.arc:9:1)")
}

func TestSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     ErrorType
	}{
		{"undefined variable", UndefinedVariable("y"), ErrUndefinedVariable, ReferenceError},
		{"unknown spell", UnknownSpell("missing"), ErrUnknownSpell, ReferenceError},
		{"unknown archetype", UnknownArchetype("Hero"), ErrUnknownArchetype, ReferenceError},
		{"not callable", NotCallable("x"), ErrNotCallable, NotCallableError},
		{"not iterable", NotIterable("number"), ErrNotIterable, NotIterableError},
		{"type validation", TypeValidation("number", "\"a\""), ErrTypeValidation, TypeValidationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, stderrors.Is(wrapped, tt.sentinel))
			assert.True(t, IsType(wrapped, tt.kind))
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, RuntimeError))

	plain := stderrors.New("disk on fire")
	wrapped := Wrap(plain, ModuleError)
	require.NotNil(t, wrapped)
	assert.Equal(t, ModuleError, wrapped.Type)
	assert.True(t, stderrors.Is(wrapped, plain))

	original := UnknownSpell("x")
	assert.Same(t, original, Wrap(original, RuntimeError))
}

func TestWithLocationKeepsFirst(t *testing.T) {
	err := New(RuntimeError, "x").WithLocation("a.arc", 1, 2).WithLocation("b.arc", 5, 6)
	assert.Equal(t, SourceLocation{File: "a.arc", Line: 1, Column: 2}, err.Location)
}
