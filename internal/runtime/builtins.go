package runtime

import (
	"context"
	"strings"
	"unicode/utf8"

	"arcanea/internal/errors"
)

// Initialize seeds the built-in types and functions.
func (r *Registry) Initialize() {
	r.RegisterType("string", &Type{Name: "string", Validate: func(v Value) bool {
		_, ok := v.(string)
		return ok
	}})
	r.RegisterType("number", &Type{Name: "number", Validate: IsNumber})
	r.RegisterType("boolean", &Type{Name: "boolean", Validate: func(v Value) bool {
		_, ok := v.(bool)
		return ok
	}})

	r.RegisterFunction("print", r.builtinPrint)
	r.RegisterFunction("length", builtinLength)
}

func (r *Registry) builtinPrint(_ context.Context, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Stringify(a)
	}
	if err := r.write(strings.Join(parts, " ")); err != nil {
		return nil, errors.Wrap(err, errors.RuntimeError)
	}
	if len(args) == 1 {
		return args[0], nil
	}
	list := make([]Value, len(args))
	copy(list, args)
	return list, nil
}

func builtinLength(_ context.Context, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, errors.NotIterable("nil")
	}
	switch v := args[0].(type) {
	case string:
		return float64(utf8.RuneCountInString(v)), nil
	case []Value:
		return float64(len(v)), nil
	default:
		return nil, errors.NotIterable(TypeOf(v))
	}
}
