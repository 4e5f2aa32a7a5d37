package runtime

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Value is any runtime value. nil is the unit value; numbers are float64,
// text is string, sequences are []Value and records are *Record.
type Value interface{}

// NativeFunc is the signature of a host function exposed to scripts.
type NativeFunc func(ctx context.Context, args []Value) (Value, error)

// NativeFunction is a named host function.
type NativeFunction struct {
	Name string
	Fn   NativeFunc
}

// Call invokes the host function.
func (n *NativeFunction) Call(ctx context.Context, args []Value) (Value, error) {
	return n.Fn(ctx, args)
}

// Callable is implemented by values that can be invoked from the host.
type Callable interface {
	Call(ctx context.Context, args []Value) (Value, error)
}

// Type is a named predicate over values.
type Type struct {
	Name     string
	Validate func(Value) bool
}

// Record is an instance of an archetype, or a plain row when Archetype is nil.
type Record struct {
	Archetype *Archetype
	Fields    map[string]Value
	Order     []string

	mu sync.RWMutex
}

// NewRecord builds a record whose fields keep the given order.
func NewRecord(archetype *Archetype, order []string, fields map[string]Value) *Record {
	if fields == nil {
		fields = make(map[string]Value, len(order))
	}
	return &Record{Archetype: archetype, Fields: fields, Order: order}
}

// Get reads a field.
func (r *Record) Get(name string) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.Fields[name]
	return v, ok
}

// TypeName is the archetype name, or "record" for anonymous rows.
func (r *Record) TypeName() string {
	if r.Archetype != nil {
		return r.Archetype.Name
	}
	return "record"
}

// ToNumber converts host numerics to float64.
func ToNumber(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// IsNumber reports whether v is a usable number (NaN is not).
func IsNumber(v Value) bool {
	n, ok := ToNumber(v)
	return ok && !math.IsNaN(n)
}

// TypeOf names the runtime kind of a value.
func TypeOf(v Value) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []Value:
		return "list"
	case *Record:
		return val.TypeName()
	case *Spell:
		return "spell"
	case *Archetype:
		return "archetype"
	case *NativeFunction:
		return "function"
	default:
		if IsNumber(v) {
			return "number"
		}
		return fmt.Sprintf("%T", v)
	}
}

// Stringify renders a value the way print shows it.
func Stringify(v Value) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case []Value:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = inspect(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Record:
		val.mu.RLock()
		defer val.mu.RUnlock()
		order := val.Order
		if len(order) == 0 {
			order = make([]string, 0, len(val.Fields))
			for k := range val.Fields {
				order = append(order, k)
			}
			sort.Strings(order)
		}
		parts := make([]string, len(order))
		for i, k := range order {
			parts[i] = k + ": " + inspect(val.Fields[k])
		}
		return val.TypeName() + "{" + strings.Join(parts, ", ") + "}"
	case *Spell:
		return "<spell " + val.Name + ">"
	case *Archetype:
		return "<archetype " + val.Name + ">"
	case *NativeFunction:
		return "<native " + val.Name + ">"
	case fmt.Stringer:
		return val.String()
	default:
		if n, ok := ToNumber(v); ok {
			return strconv.FormatFloat(n, 'g', -1, 64)
		}
		return fmt.Sprint(v)
	}
}

// inspect is Stringify with strings quoted, for nested positions.
func inspect(v Value) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return Stringify(v)
}
