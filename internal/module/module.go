package module

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"arcanea/internal/errors"
	"arcanea/internal/interpreter"
	"arcanea/internal/parser"
	"arcanea/internal/runtime"
)

// Extension is the file suffix of script modules.
const Extension = ".arc"

// Script is a module backed by a source file. Its init hook interprets the
// file's declarations into the registry it is loaded into.
type Script struct {
	Name    string
	Path    string
	Program *parser.Program

	opts []interpreter.Option
}

// Init evaluates the script with a fresh global frame.
func (s *Script) Init(ctx context.Context, reg *runtime.Registry) error {
	in := interpreter.New(reg, s.opts...)
	if _, err := in.Interpret(ctx, s.Program); err != nil {
		return err
	}
	return nil
}

// Declarations lists the names the script declares, in source order.
func (s *Script) Declarations() []string {
	names := make([]string, len(s.Program.Decls))
	for i, d := range s.Program.Decls {
		names[i] = d.DeclName()
	}
	return names
}

// Loader handles finding, parsing and caching of modules
type Loader struct {
	cache      map[string]*Script
	searchPath []string
	natives    map[string]runtime.Module
	interpOpts []interpreter.Option
	logger     *zap.Logger
	mu         sync.RWMutex
}

type Option func(*Loader)

// WithSearchPath replaces the default search path.
func WithSearchPath(paths ...string) Option {
	return func(l *Loader) {
		l.searchPath = append([]string(nil), paths...)
	}
}

// WithNative makes a host module loadable by name. Natives take precedence
// over files of the same name.
func WithNative(name string, m runtime.Module) Option {
	return func(l *Loader) {
		l.natives[name] = m
	}
}

// WithInterpreterOptions configures the interpreter scripts are evaluated with.
func WithInterpreterOptions(opts ...interpreter.Option) Option {
	return func(l *Loader) {
		l.interpOpts = append(l.interpOpts, opts...)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a new module loader
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		cache:      make(map[string]*Script),
		searchPath: DefaultSearchPath(),
		natives:    make(map[string]runtime.Module),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DefaultSearchPath returns the default module search paths
func DefaultSearchPath() []string {
	return []string{
		".",
		"./lib",
		"./modules",
	}
}

// Load resolves name and loads it into reg under that name.
func (l *Loader) Load(ctx context.Context, reg *runtime.Registry, name string) error {
	m, err := l.Resolve(name)
	if err != nil {
		return err
	}
	if err := reg.LoadModule(ctx, name, m); err != nil {
		return err
	}
	l.logger.Debug("module loaded", zap.String("module", name))
	return nil
}

// Resolve returns the native module registered under name, or the parsed
// script found on the search path.
func (l *Loader) Resolve(name string) (runtime.Module, error) {
	l.mu.RLock()
	if native, ok := l.natives[name]; ok {
		l.mu.RUnlock()
		return native, nil
	}
	if cached, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	path, err := l.Find(name)
	if err != nil {
		return nil, err
	}
	script, err := l.parse(name, path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if cached, ok := l.cache[name]; ok {
		l.mu.Unlock()
		return cached, nil
	}
	l.cache[name] = script
	l.mu.Unlock()

	l.logger.Debug("module resolved", zap.String("module", name), zap.String("path", path))
	return script, nil
}

// Find locates a module file in the search path. Names ending in the
// extension are taken as file paths.
func (l *Loader) Find(name string) (string, error) {
	if strings.HasSuffix(name, Extension) {
		if fileExists(name) {
			return name, nil
		}
		return "", errors.Newf(errors.ModuleError, "module file not found: %s", name)
	}

	for _, dir := range l.SearchPath() {
		candidates := []string{
			filepath.Join(dir, name+Extension),
			filepath.Join(dir, name, "index"+Extension),
			filepath.Join(dir, filepath.FromSlash(name)+Extension),
		}
		for _, path := range candidates {
			if fileExists(path) {
				return path, nil
			}
		}
	}

	return "", errors.Newf(errors.ModuleError, "module not found: %s", name)
}

func (l *Loader) parse(name, path string) (*Script, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Newf(errors.ModuleError, "failed to read module %s", name).WithCause(err)
	}
	program, err := parser.ParseSource(string(source), path)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}
	return &Script{Name: name, Path: path, Program: program, opts: l.interpOpts}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// AddSearchPath adds a directory to the module search path
func (l *Loader) AddSearchPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searchPath = append(l.searchPath, path)
}

// SearchPath returns a copy of the current search path
func (l *Loader) SearchPath() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.searchPath...)
}

// ClearCache forgets parsed scripts so the next Resolve rereads them.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*Script)
}
