package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aledsdavies/bloom/codegen"
	"github.com/aledsdavies/bloom/core/config"
	"github.com/aledsdavies/bloom/runtime/astdump"
	"github.com/aledsdavies/bloom/runtime/lexer"
	"github.com/aledsdavies/bloom/runtime/parser"
	"github.com/spf13/cobra"
)

func newTokensCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens FILE",
		Short: "List the tokens of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			name := args[0]
			source, err := readSource(name, cmd.InOrStdin())
			if err != nil {
				return err
			}

			opts := []lexer.LexerOpt{}
			if a.debug {
				opts = append(opts, lexer.WithTelemetryBasic(), lexer.WithDebugPaths())
			}
			ar := a.newArena(lexer.RequiredArenaSize(len(source)))
			defer recoverExhausted(name, &err)

			l := lexer.NewLexer(ar, opts...)
			tokens, err := l.Tokenize(source)
			if err != nil {
				a.renderer(cmd.ErrOrStderr()).TokenizeError(name, source, err)
				return fmt.Errorf("%s: tokenization failed", name)
			}

			for typ, tel := range l.GetTokenTelemetry() {
				a.log.Debug("token telemetry", "type", typ, "count", tel.Count)
			}
			for _, ev := range l.GetDebugEvents() {
				a.log.Debug(ev.Event, "file", name, "position", ev.Position, "context", ev.Context)
			}

			a.renderer(cmd.OutOrStdout()).Tokens(tokens, source)
			return nil
		},
	}
}

func newParseCmd(a *app) *cobra.Command {
	var (
		format    string
		dumpArena bool
	)

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a file and print its syntax tree",
		Long: `Parse a file and print its syntax tree as an outline (text) or as a
JSON, YAML or CBOR snapshot. Parse errors are written to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				format = a.cfg.Output.Format
			}

			var extra []parser.ParserOpt
			if dumpArena {
				extra = append(extra, parser.WithTelemetryTiming())
			}
			j, err := a.parseFile(args[0], cmd.InOrStdin(), extra...)
			if err != nil {
				return err
			}
			if err := a.report(cmd.ErrOrStderr(), j); err != nil && j.tree == nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case config.FormatText:
				a.renderer(out).Outline(j.tree)
			default:
				f, err := astdump.ParseFormat(format)
				if err != nil {
					return err
				}
				if err := astdump.Encode(out, astdump.Build(j.tree), f); err != nil {
					return fmt.Errorf("encode %s: %w", format, err)
				}
			}

			if dumpArena {
				highWater := j.arena.Offset()
				if t := j.tree.Telemetry; t != nil {
					highWater += t.ReclaimedBytes
				}
				a.renderer(out).DumpArena(j.arena, highWater)
			}

			if j.failed() {
				return fmt.Errorf("%s: parse failed", j.name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", config.FormatText, "Output format: text, json, yaml or cbor")
	cmd.Flags().BoolVar(&dumpArena, "dump-arena", false, "Dump the arena bytes after parsing")
	return cmd
}

func newTranspileCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "transpile FILE",
		Short: "Transpile a file to C",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			j, err := a.parseFile(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := a.report(cmd.ErrOrStderr(), j); err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, ferr := os.Create(output)
				if ferr != nil {
					return fmt.Errorf("error creating output file: %w", ferr)
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = fmt.Errorf("error closing output file: %w", cerr)
					}
				}()
				w = f
			}

			if err := codegen.TranspileC(w, j.tree, j.arena); err != nil {
				return fmt.Errorf("%s: %w", j.name, err)
			}
			a.log.Debug("transpiled", "file", j.name, "output", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output C file (default: stdout)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version, build time, and git commit information for bloom.",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bloom %s\n", Version)
			fmt.Fprintf(out, "Built: %s\n", BuildTime)
			fmt.Fprintf(out, "Commit: %s\n", GitCommit)
		},
	}
}

// report writes the diagnostics of j to w and returns an error when there
// were any.
func (a *app) report(w io.Writer, j *job) error {
	r := a.renderer(w)
	if j.tokenErr != nil {
		r.TokenizeError(j.name, j.source, j.tokenErr)
		return fmt.Errorf("%s: tokenization failed", j.name)
	}
	if n := r.ParseErrors(j.name, j.tree); n > 0 {
		return fmt.Errorf("%s: %d parse errors", j.name, n)
	}
	return nil
}
