package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/aledsdavies/bloom/core/arena"
	"github.com/aledsdavies/bloom/core/config"
	"github.com/aledsdavies/bloom/runtime/diag"
	"github.com/aledsdavies/bloom/runtime/parser"
	"github.com/spf13/cobra"
)

// Build-time variables - can be set via ldflags
var (
	Version   string = "dev"
	BuildTime string = "unknown"
	GitCommit string = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app holds the resolved settings shared by every subcommand.
type app struct {
	configPath string
	arenaSize  int
	noColor    bool
	debug      bool

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "bloom [command]",
		Short: "Tokenize, parse, check and transpile bloom source files",
		Long: `bloom is the front end for the bloom language. Every file is processed
inside a single fixed-size arena; use --arena-size to set the budget or leave it
at 0 to size the arena from the input.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a bloom.toml or bloom.yaml config file")
	rootCmd.PersistentFlags().IntVar(&a.arenaSize, "arena-size", 0, "Arena size in bytes per file (0 sizes from the input)")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging and parser tracing")

	rootCmd.AddCommand(
		newTokensCmd(a),
		newParseCmd(a),
		newCheckCmd(a),
		newTranspileCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the config file and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.debug {
		level = slog.LevelDebug
	}
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	a.cfg = config.Default()
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
		a.log.Debug("loaded config", "path", a.configPath)
	}

	flags := cmd.Flags()
	if flags.Changed("arena-size") {
		a.cfg.Arena.Size = a.arenaSize
	}
	if flags.Changed("no-color") {
		a.cfg.Output.Color = !a.noColor
	}
	return a.cfg.Validate()
}

func (a *app) renderer(w io.Writer) *diag.Renderer {
	mode := diag.ColorAuto
	if !a.cfg.Output.Color {
		mode = diag.ColorNever
	}
	return diag.NewRenderer(w, diag.WithColor(mode))
}

func (a *app) parserOpts() []parser.ParserOpt {
	opts := []parser.ParserOpt{parser.WithErrorCapacity(a.cfg.Parser.ErrorCapacity)}
	if a.cfg.Parser.AbortOnError {
		opts = append(opts, parser.WithAbortOnError())
	}
	if a.debug {
		opts = append(opts, parser.WithDebugPaths(), parser.WithTelemetryTiming())
	}
	return opts
}

// newArena sizes an arena from the config, or from need when none is set.
func (a *app) newArena(need int) *arena.Arena {
	size := a.cfg.Arena.Size
	if size == 0 {
		size = need
	}
	return arena.New(size)
}
