package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arcanea/cmd/arcanea/commands"
	"arcanea/internal/config"
	"arcanea/internal/logging"
	"arcanea/internal/repl"
)

const VERSION = "0.1.0"

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger

	// run flags
	casts    []string
	loads    []string
	parallel bool
	watch    bool

	// fmt flags
	stdout bool
)

var rootCmd = &cobra.Command{
	Use:     "arcanea",
	Short:   "Arcanea spell and archetype interpreter",
	Version: VERSION,
	Long: `Arcanea evaluates @spell and @archetype declarations into a runtime
registry and casts spells by name.

Examples:
  arcanea run realm.arc --cast 'greet("Mira")'
  arcanea check realm.arc
  arcanea graph realm.arc > graph.json`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Evaluate files, then cast the given statements",
	Long: `Evaluates each file into one registry, then evaluates every --cast
statement list in order and prints its value.

With --watch the run repeats in a fresh registry whenever a file is saved.`,
	RunE: runFiles,
}

var checkCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Check files for syntax errors",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commands.Check(args, cmd.OutOrStdout())
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens [file]",
	Short: "Print the token stream of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commands.Tokens(args[0], cmd.OutOrStdout())
	},
}

var fmtCmd = &cobra.Command{
	Use:   "fmt [files...]",
	Short: "Format files in place",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commands.Format(args, !stdout, cmd.OutOrStdout())
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph [files...]",
	Short: "Print the registry as node/link JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), cmd, func(ctx context.Context, s *commands.Session) error {
			return commands.Graph(ctx, s, args, cmd.OutOrStdout())
		})
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), cmd, func(ctx context.Context, s *commands.Session) error {
			r := repl.New(s.Interpreter, os.Stdin, cmd.OutOrStdout()).WithPrompt(repl.IsTerminal(os.Stdin))
			return r.Run(ctx)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	runCmd.Flags().StringArrayVar(&casts, "cast", nil, "Statements to evaluate after the files (repeatable)")
	runCmd.Flags().StringSliceVar(&loads, "load", nil, "Modules to load before the files")
	runCmd.Flags().BoolVar(&parallel, "parallel", false, "Evaluate files concurrently")
	runCmd.Flags().BoolVar(&watch, "watch", false, "Re-run when a file changes")

	fmtCmd.Flags().BoolVar(&stdout, "stdout", false, "Print the result instead of rewriting files")

	rootCmd.AddCommand(runCmd, checkCmd, fmtCmd, tokensCmd, graphCmd, replCmd)
}

// withSession runs fn with a session built from the loaded config, under a
// context derived from parent and cancelled by SIGINT or SIGTERM.
func withSession(parent context.Context, cmd *cobra.Command, fn func(context.Context, *commands.Session) error) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := commands.NewSession(ctx, cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func runFiles(cmd *cobra.Command, args []string) error {
	opts := commands.RunOptions{
		Files:    args,
		Casts:    casts,
		Load:     loads,
		Parallel: parallel,
		Timeout:  cfg.GetCastTimeout(),
	}
	run := func(ctx context.Context) error {
		return withSession(ctx, cmd, func(ctx context.Context, s *commands.Session) error {
			return commands.Run(ctx, s, opts, cmd.OutOrStdout())
		})
	}

	if !watch {
		return run(cmd.Context())
	}
	if len(args) == 0 {
		return fmt.Errorf("--watch needs at least one file")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
	}
	w, err := commands.NewWatcher(args, func(ctx context.Context, _ string) error {
		return run(ctx)
	}, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "watching %d file(s), press Ctrl+C to stop\n", len(args))
	return w.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
