package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Check files for errors",
		Long: `Check parses every file concurrently, each in its own arena, and reports
diagnostics in argument order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.check(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cmd.InOrStdin(), args)
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch FILE",
		Short: "Re-check a file whenever it changes",
		Args: cobra.MatchAll(cobra.ExactArgs(1), func(cmd *cobra.Command, args []string) error {
			if args[0] == "-" {
				return fmt.Errorf("cannot watch standard input")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}
}

func (a *app) check(ctx context.Context, stdout, stderr io.Writer, stdin io.Reader, names []string) error {
	jobs := make([]*job, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			j, err := a.parseFile(name, stdin)
			if err != nil {
				return err
			}
			jobs[i] = j
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, j := range jobs {
		if err := a.report(stderr, j); err != nil {
			failed++
			continue
		}
		fmt.Fprintf(stdout, "ok %s\n", j.name)
	}

	a.log.Debug("checked", "files", len(jobs), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d files have errors", failed, len(jobs))
	}
	return nil
}

// watch checks name once, then again on every write until ctx is done.
func (a *app) watch(ctx context.Context, stdout, stderr io.Writer, name string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Editors often replace the file rather than write it, so watch its directory.
	dir := filepath.Dir(name)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(name)

	recheck := func() {
		if err := a.check(ctx, stdout, stderr, nil, []string{name}); err != nil {
			a.log.Warn("check failed", "file", name, "err", err)
		}
	}

	recheck()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			a.log.Debug("changed", "file", name, "op", ev.Op.String())
			recheck()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watch error", "err", err)
		}
	}
}
