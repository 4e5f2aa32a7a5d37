// internal/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of an error
type ErrorType string

const (
	LexicalError        ErrorType = "LexicalError"
	SyntaxError         ErrorType = "SyntaxError"
	ReferenceError      ErrorType = "ReferenceError"
	NotCallableError    ErrorType = "NotCallableError"
	NotIterableError    ErrorType = "NotIterableError"
	TypeValidationError ErrorType = "TypeValidationError"
	ModuleError         ErrorType = "ModuleError"
	RuntimeError        ErrorType = "RuntimeError"
	InternalError       ErrorType = "InternalError"
)

// Sentinels reachable through errors.Is on any *ArcaneaError carrying them.
var (
	ErrUndefinedVariable = stderrors.New("undefined variable")
	ErrUnknownSpell      = stderrors.New("unknown spell")
	ErrUnknownArchetype  = stderrors.New("unknown archetype")
	ErrUnknownMember     = stderrors.New("unknown member")
	ErrNotCallable       = stderrors.New("not callable")
	ErrNotIterable       = stderrors.New("not iterable")
	ErrTypeValidation    = stderrors.New("type validation failed")
	ErrModuleLoaded      = stderrors.New("module already loaded")
	ErrCallDepth         = stderrors.New("maximum call depth exceeded")
)

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

func (l SourceLocation) String() string {
	file := l.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d", file, l.Line, l.Column)
}

// ArcaneaError is the error value produced by every stage of the engine.
type ArcaneaError struct {
	Type      ErrorType
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string // The source line where error occurred
	Cause     error
}

// StackFrame represents a single spell activation in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// Error implements the error interface
func (e *ArcaneaError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s", e.Type, e.Message))

	if e.Location.Line > 0 {
		sb.WriteString(fmt.Sprintf("\n  at %s", e.Location))

		if e.Source != "" {
			gutter := fmt.Sprintf("  %d | ", e.Location.Line)
			sb.WriteString(fmt.Sprintf("\n\n%s%s\n", gutter, e.Source))
			sb.WriteString(strings.Repeat(" ", len(gutter)))
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^")
		}
	}

	if len(e.CallStack) > 0 {
		sb.WriteString("\n\nCall Stack:")
		for _, frame := range e.CallStack {
			loc := SourceLocation{File: frame.File, Line: frame.Line, Column: frame.Column}
			sb.WriteString(fmt.Sprintf("\n  at %s (%s)", frame.Function, loc))
		}
	}

	return sb.String()
}

// Unwrap exposes the sentinel or wrapped cause.
func (e *ArcaneaError) Unwrap() error {
	return e.Cause
}

// New creates an error of the given type without a location.
func New(t ErrorType, message string) *ArcaneaError {
	return &ArcaneaError{Type: t, Message: message}
}

// Newf is New with formatting.
func Newf(t ErrorType, format string, args ...interface{}) *ArcaneaError {
	return New(t, fmt.Sprintf(format, args...))
}

// NewSyntaxError creates a new syntax error
func NewSyntaxError(message string, file string, line, column int) *ArcaneaError {
	return &ArcaneaError{
		Type:    SyntaxError,
		Message: message,
		Location: SourceLocation{
			File:   file,
			Line:   line,
			Column: column,
		},
	}
}

// NewLexicalError creates an error for an unrecognized character
func NewLexicalError(message string, file string, line, column int) *ArcaneaError {
	err := NewSyntaxError(message, file, line, column)
	err.Type = LexicalError
	return err
}

// NewRuntimeError creates a new runtime error
func NewRuntimeError(message string, file string, line, column int) *ArcaneaError {
	return &ArcaneaError{
		Type:    RuntimeError,
		Message: message,
		Location: SourceLocation{
			File:   file,
			Line:   line,
			Column: column,
		},
	}
}

// UndefinedVariable reports a name that no frame or catalogue holds.
func UndefinedVariable(name string) *ArcaneaError {
	return Newf(ReferenceError, "Undefined variable: %s", name).WithCause(ErrUndefinedVariable)
}

// UnknownSpell reports a cast of a spell that was never registered.
func UnknownSpell(name string) *ArcaneaError {
	return Newf(ReferenceError, "Unknown spell: %s", name).WithCause(ErrUnknownSpell)
}

// UnknownArchetype reports a reference to an unregistered archetype.
func UnknownArchetype(name string) *ArcaneaError {
	return Newf(ReferenceError, "Unknown archetype: %s", name).WithCause(ErrUnknownArchetype)
}

// NotCallable reports a call whose callee is neither a native nor a spell.
func NotCallable(callee string) *ArcaneaError {
	return Newf(NotCallableError, "Not callable: %s", callee).WithCause(ErrNotCallable)
}

// NotIterable reports a value without a length.
func NotIterable(what string) *ArcaneaError {
	return Newf(NotIterableError, "Cannot get length of non-iterable value: %s", what).WithCause(ErrNotIterable)
}

// TypeValidation reports a value rejected by a registered type.
func TypeValidation(typeName, subject string) *ArcaneaError {
	return Newf(TypeValidationError, "%s is not a valid %s", subject, typeName).WithCause(ErrTypeValidation)
}

// WithSource adds source code context to the error
func (e *ArcaneaError) WithSource(source string) *ArcaneaError {
	e.Source = source
	return e
}

// WithLocation sets the location if none is recorded yet.
func (e *ArcaneaError) WithLocation(file string, line, column int) *ArcaneaError {
	if e.Location.Line == 0 {
		e.Location = SourceLocation{File: file, Line: line, Column: column}
	}
	return e
}

// WithCause attaches a sentinel or underlying error.
func (e *ArcaneaError) WithCause(cause error) *ArcaneaError {
	e.Cause = cause
	return e
}

// WithStack adds a call stack to the error
func (e *ArcaneaError) WithStack(stack []StackFrame) *ArcaneaError {
	e.CallStack = stack
	return e
}

// AddStackFrame adds a single stack frame
func (e *ArcaneaError) AddStackFrame(function, file string, line, column int) *ArcaneaError {
	e.CallStack = append(e.CallStack, StackFrame{
		Function: function,
		File:     file,
		Line:     line,
		Column:   column,
	})
	return e
}

// As returns the *ArcaneaError in err's chain, if any.
func As(err error) (*ArcaneaError, bool) {
	var ae *ArcaneaError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsType reports whether err is an *ArcaneaError of the given category.
func IsType(err error, t ErrorType) bool {
	ae, ok := As(err)
	return ok && ae.Type == t
}

// Wrap converts an arbitrary error into an *ArcaneaError, keeping it as the cause.
// Errors that already are *ArcaneaError pass through unchanged.
func Wrap(err error, t ErrorType) *ArcaneaError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return New(t, err.Error()).WithCause(err)
}
