package runtime

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"

	"arcanea/internal/errors"
)

// Module is an opaque unit of functionality. Modules that implement
// Initializer have their hook run once when loaded.
type Module interface{}

// Initializer is the optional module init hook.
type Initializer interface {
	Init(ctx context.Context, registry *Registry) error
}

// InitFunc adapts a function to Initializer.
type InitFunc func(ctx context.Context, registry *Registry) error

func (f InitFunc) Init(ctx context.Context, registry *Registry) error {
	return f(ctx, registry)
}

// Registry is the process-wide catalogue of spells, archetypes, modules,
// variables, native functions and native types. Registration is
// last-writer-wins; all methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	spells     map[string]*Spell
	archetypes map[string]*Archetype
	modules    map[string]Module
	variables  map[string]Value
	functions  map[string]*NativeFunction
	types      map[string]*Type

	out    io.Writer
	outMu  sync.Mutex
	logger *zap.Logger
}

type Option func(*Registry)

// WithOutput sets where print writes. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Registry) {
		r.out = w
	}
}

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		spells:     make(map[string]*Spell),
		archetypes: make(map[string]*Archetype),
		modules:    make(map[string]Module),
		variables:  make(map[string]Value),
		functions:  make(map[string]*NativeFunction),
		types:      make(map[string]*Type),
		out:        os.Stdout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Logger returns the registry's logger.
func (r *Registry) Logger() *zap.Logger {
	return r.logger
}

// RegisterSpell stores a spell under name, replacing any earlier one.
func (r *Registry) RegisterSpell(name string, spell *Spell) {
	r.mu.Lock()
	_, replaced := r.spells[name]
	r.spells[name] = spell
	r.mu.Unlock()
	r.logger.Debug("spell registered", zap.String("spell", name), zap.Bool("replaced", replaced))
}

func (r *Registry) GetSpell(name string) (*Spell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.spells[name]
	return s, ok
}

func (r *Registry) RegisterArchetype(name string, archetype *Archetype) {
	r.mu.Lock()
	r.archetypes[name] = archetype
	r.mu.Unlock()
	r.logger.Debug("archetype registered", zap.String("archetype", name))
}

func (r *Registry) GetArchetype(name string) (*Archetype, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.archetypes[name]
	return a, ok
}

// LoadModule stores module under name and runs its init hook exactly once.
// Loading a name twice fails without touching the loaded module; a module
// whose hook fails is not kept.
func (r *Registry) LoadModule(ctx context.Context, name string, module Module) error {
	r.mu.Lock()
	if _, exists := r.modules[name]; exists {
		r.mu.Unlock()
		return errors.Newf(errors.ModuleError, "module %s is already loaded", name).WithCause(errors.ErrModuleLoaded)
	}
	r.modules[name] = module
	r.mu.Unlock()

	if init, ok := module.(Initializer); ok {
		if err := init.Init(ctx, r); err != nil {
			r.mu.Lock()
			delete(r.modules, name)
			r.mu.Unlock()
			r.logger.Warn("module init failed", zap.String("module", name), zap.Error(err))
			if ae, ok := errors.As(err); ok {
				return ae
			}
			return errors.Newf(errors.ModuleError, "module %s: init failed: %v", name, err).WithCause(err)
		}
	}
	r.logger.Debug("module loaded", zap.String("module", name))
	return nil
}

func (r *Registry) GetModule(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

func (r *Registry) SetVariable(name string, value Value) {
	r.mu.Lock()
	r.variables[name] = value
	r.mu.Unlock()
}

func (r *Registry) GetVariable(name string) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

func (r *Registry) RegisterFunction(name string, fn NativeFunc) {
	r.mu.Lock()
	r.functions[name] = &NativeFunction{Name: name, Fn: fn}
	r.mu.Unlock()
	r.logger.Debug("function registered", zap.String("function", name))
}

func (r *Registry) GetFunction(name string) (*NativeFunction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.functions[name]
	return f, ok
}

func (r *Registry) RegisterType(name string, t *Type) {
	r.mu.Lock()
	r.types[name] = t
	r.mu.Unlock()
}

func (r *Registry) GetType(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Resolve finds a global name. User declarations shadow natives: spells,
// then archetypes, then functions, variables and modules.
func (r *Registry) Resolve(name string) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.spells[name]; ok {
		return s, true
	}
	if a, ok := r.archetypes[name]; ok {
		return a, true
	}
	if f, ok := r.functions[name]; ok {
		return f, true
	}
	if v, ok := r.variables[name]; ok {
		return v, true
	}
	if m, ok := r.modules[name]; ok {
		return m, true
	}
	return nil, false
}

// CastSpell invokes a registered spell by name.
func (r *Registry) CastSpell(ctx context.Context, name string, args []Value) (Value, error) {
	spell, ok := r.GetSpell(name)
	if !ok {
		return nil, errors.UnknownSpell(name)
	}
	return spell.Call(ctx, args)
}

// CastSpellAsync starts CastSpell in a goroutine and returns its future.
func (r *Registry) CastSpellAsync(ctx context.Context, name string, args []Value) *Future {
	f := newFuture()
	go func() {
		f.resolve(r.CastSpell(ctx, name, args))
	}()
	return f
}

// Catalog lists registered names per catalogue, sorted.
type Catalog struct {
	Spells     []string `json:"spells"`
	Archetypes []string `json:"archetypes"`
	Modules    []string `json:"modules"`
	Functions  []string `json:"functions"`
	Types      []string `json:"types"`
	Variables  []string `json:"variables"`
}

func (r *Registry) Catalog() Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Catalog{
		Spells:     sortedKeys(r.spells),
		Archetypes: sortedKeys(r.archetypes),
		Modules:    sortedKeys(r.modules),
		Functions:  sortedKeys(r.functions),
		Types:      sortedKeys(r.types),
		Variables:  sortedKeys(r.variables),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// write sends a line to the output writer, serialized across goroutines.
func (r *Registry) write(line string) error {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	_, err := io.WriteString(r.out, line+"\n")
	return err
}
