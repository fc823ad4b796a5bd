package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aledsdavies/bloom/core/arena"
	"github.com/aledsdavies/bloom/runtime/lexer"
	"github.com/aledsdavies/bloom/runtime/parser"
)

// job is one source file parsed into its own arena.
type job struct {
	name     string
	source   []byte
	arena    *arena.Arena
	tree     *parser.Tree
	tokenErr error // fatal tokenization error; tree is nil
}

// failed reports whether the file produced any diagnostic.
func (j *job) failed() bool {
	return j.tokenErr != nil || j.tree.HasErrors()
}

// readSource reads a file, or stdin when name is "-".
func readSource(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		source, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("error reading stdin: %w", err)
		}
		return source, nil
	}

	source, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", name, err)
	}
	return source, nil
}

// parseSource parses source in a fresh arena. Diagnostics end up in the job;
// the error is reserved for failures that leave no tree to report on.
func (a *app) parseSource(name string, source []byte, extra ...parser.ParserOpt) (j *job, err error) {
	opts := append(a.parserOpts(), extra...)
	j = &job{name: name, source: source, arena: a.newArena(parser.RequiredArenaSize(len(source), opts...))}

	defer recoverExhausted(name, &err)

	tree, err := parser.ParseSource(source, j.arena, opts...)
	if err != nil {
		var indentErr *lexer.IndentationError
		if !errors.As(err, &indentErr) {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		j.tokenErr = err
		return j, nil
	}
	j.tree = tree

	if tree.Telemetry != nil {
		t := tree.Telemetry
		a.log.Debug("parsed", "file", name,
			"tokens", t.TokenCount, "nodes", t.NodeCount, "errors", t.ErrorCount,
			"lex", t.LexTime, "parse", t.ParseTime, "compact", t.CompactTime,
			"final_bytes", t.FinalBytes, "reclaimed_bytes", t.ReclaimedBytes)
	}
	for _, ev := range tree.DebugEvents {
		a.log.Debug(ev.Event, "file", name, "token", ev.TokenPos, "context", ev.Context)
	}
	return j, nil
}

// parseFile reads and parses one file.
func (a *app) parseFile(name string, stdin io.Reader, extra ...parser.ParserOpt) (*job, error) {
	source, err := readSource(name, stdin)
	if err != nil {
		return nil, err
	}
	return a.parseSource(name, source, extra...)
}

// recoverExhausted turns an arena exhaustion panic into an error. Other
// panics are re-raised.
func recoverExhausted(name string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	exhausted, ok := r.(*arena.ExhaustedError)
	if !ok {
		panic(r)
	}
	*err = fmt.Errorf("%s: %w (raise --arena-size)", name, exhausted)
}
