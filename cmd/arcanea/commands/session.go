// Package commands implements the arcanea subcommands on top of a Session.
package commands

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"arcanea/internal/config"
	"arcanea/internal/database"
	"arcanea/internal/interpreter"
	"arcanea/internal/module"
	"arcanea/internal/runtime"
	"arcanea/internal/stdlib"
)

// Session is one registry with its interpreter, module loader and the
// native modules exposed to scripts.
type Session struct {
	Registry    *runtime.Registry
	Interpreter *interpreter.Interpreter
	Loader      *module.Loader

	sql    *stdlib.SQLModule
	logger *zap.Logger
}

// NewSession builds a session from cfg. Native modules listed in the config
// are loaded right away; preloaded modules follow in order. print output
// goes to out.
func NewSession(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := runtime.NewRegistry(runtime.WithOutput(out), runtime.WithLogger(logger))
	reg.Initialize()

	interpOpts := []interpreter.Option{
		interpreter.WithLogger(logger),
		interpreter.WithMaxCallDepth(cfg.Runtime.MaxCallDepth),
	}
	s := &Session{
		Registry:    reg,
		Interpreter: interpreter.New(reg, interpOpts...),
		logger:      logger,
	}

	loaderOpts := []module.Option{
		module.WithSearchPath(cfg.Modules.SearchPaths...),
		module.WithInterpreterOptions(interpOpts...),
		module.WithLogger(logger),
	}
	for _, name := range cfg.Modules.Native {
		switch name {
		case stdlib.SQLModuleName:
			s.sql = stdlib.NewSQLModule(database.NewManager(database.PoolConfig{
				MaxOpenConns:    cfg.Database.MaxOpenConns,
				MaxIdleConns:    cfg.Database.MaxIdleConns,
				ConnMaxLifetime: cfg.GetConnMaxLifetime(),
			}, logger))
			loaderOpts = append(loaderOpts, module.WithNative(name, s.sql))
		default:
			return nil, fmt.Errorf("unknown native module: %s", name)
		}
	}
	s.Loader = module.NewLoader(loaderOpts...)

	if err := s.Load(ctx, cfg.Modules.Native...); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Load(ctx, cfg.Modules.Preload...); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Load loads each named module. Names already loaded are skipped.
func (s *Session) Load(ctx context.Context, names ...string) error {
	for _, name := range names {
		if _, ok := s.Registry.GetModule(name); ok {
			continue
		}
		if err := s.Loader.Load(ctx, s.Registry, name); err != nil {
			return err
		}
	}
	return nil
}

// Close releases database connections opened by scripts.
func (s *Session) Close() {
	if s.sql == nil {
		return
	}
	if err := s.sql.Close(); err != nil {
		s.logger.Warn("failed to close database connections", zap.Error(err))
	}
}
