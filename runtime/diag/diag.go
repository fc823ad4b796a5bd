// Package diag renders parse diagnostics, token listings and arena dumps for
// people. Nothing in the lexer or parser depends on it; they only record
// positions and kinds.
package diag

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aledsdavies/bloom/runtime/lexer"
	"github.com/aledsdavies/bloom/runtime/parser"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ColorMode selects when output is colored.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // color when the writer is a terminal (default)
	ColorNever                   // plain text
	ColorAlways                  // 256-color ANSI regardless of the writer
)

// RendererOpt represents a renderer configuration option
type RendererOpt func(*Renderer)

// WithColor sets the color mode.
func WithColor(mode ColorMode) RendererOpt {
	return func(r *Renderer) {
		r.mode = mode
	}
}

// Renderer writes diagnostics to one writer.
type Renderer struct {
	w    io.Writer
	mode ColorMode

	location  lipgloss.Style
	errLabel  lipgloss.Style
	caret     lipgloss.Style
	hint      lipgloss.Style
	muted     lipgloss.Style
	live      lipgloss.Style
	reclaimed lipgloss.Style
	free      lipgloss.Style
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer, opts ...RendererOpt) *Renderer {
	r := &Renderer{w: w}
	for _, opt := range opts {
		opt(r)
	}

	lr := lipgloss.NewRenderer(w)
	switch r.mode {
	case ColorNever:
		lr.SetColorProfile(termenv.Ascii)
	case ColorAlways:
		lr.SetColorProfile(termenv.ANSI256)
	}

	r.location = lr.NewStyle().Bold(true)
	r.errLabel = lr.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	r.caret = lr.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	r.hint = lr.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	r.muted = lr.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	r.live = lr.NewStyle().Foreground(lipgloss.Color("#10B981"))
	r.reclaimed = lr.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	r.free = lr.NewStyle().Foreground(lipgloss.Color("#374151"))
	return r
}

// ParseErrors writes every error recorded in tree, with the offending source
// line and a hint where one applies. It returns the number of errors,
// including those the log dropped.
func (r *Renderer) ParseErrors(name string, tree *parser.Tree) int {
	if !tree.HasErrors() {
		return 0
	}

	for _, e := range tree.Errors.All() {
		r.report(name, tree.Source, e.Position, e.Message(), Hint(tree, e))
	}
	if dropped := tree.Errors.Dropped(); dropped > 0 {
		fmt.Fprintf(r.w, "%s: %s\n", r.location.Render(name),
			r.muted.Render(fmt.Sprintf("%d more errors not shown (error log capacity %d)", dropped, tree.Errors.Cap())))
	}
	return tree.Errors.Len() + tree.Errors.Dropped()
}

// TokenizeError writes a fatal tokenization error. Errors other than
// *lexer.IndentationError are written without source context.
func (r *Renderer) TokenizeError(name string, source []byte, err error) {
	var indentErr *lexer.IndentationError
	if !errors.As(err, &indentErr) {
		fmt.Fprintf(r.w, "%s: %s %s\n", r.location.Render(name), r.errLabel.Render("error:"), err)
		return
	}

	msg := fmt.Sprintf("inconsistent indentation: %d spaces is not a multiple of the %d-space indent unit",
		indentErr.Width, indentErr.Unit)
	hint := fmt.Sprintf("indent with multiples of %d spaces", indentErr.Unit)
	r.report(name, source, indentErr.Position, msg, hint)
}

func (r *Renderer) report(name string, source []byte, pos lexer.Position, msg, hint string) {
	fmt.Fprintf(r.w, "%s %s %s\n", r.location.Render(name+":"+pos.String()+":"), r.errLabel.Render("error:"), msg)

	if source != nil {
		line := sourceLine(source, pos.Offset)
		fmt.Fprintf(r.w, "  %s\n", line)
		fmt.Fprintf(r.w, "  %s%s\n", strings.Repeat(" ", max(pos.Column-1, 0)), r.caret.Render("^"))
	}
	if hint != "" {
		fmt.Fprintf(r.w, "  %s\n", r.hint.Render("hint: "+hint))
	}
}

// Tokens writes one line per token: position, type and text.
func (r *Renderer) Tokens(tokens []lexer.Token, source []byte) {
	for _, tok := range tokens {
		fmt.Fprintf(r.w, "%-8s %-15s", tok.Position, tok.Type)
		switch tok.Type {
		case lexer.INTEGER:
			fmt.Fprintf(r.w, " %d", tok.Value)
		case lexer.INDENT:
			fmt.Fprintf(r.w, " %s", r.muted.Render(fmt.Sprintf("level %d", tok.Value)))
		case lexer.NEWLINE, lexer.END:
		default:
			fmt.Fprintf(r.w, " %q", tok.Text.String(source))
		}
		fmt.Fprintln(r.w)
	}
}

// sourceLine returns the line containing offset, without its terminator.
func sourceLine(src []byte, offset int) string {
	offset = min(max(offset, 0), len(src))
	start := offset
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	end := offset
	for end < len(src) && src[end] != '\n' {
		end++
	}
	return strings.TrimSuffix(string(src[start:end]), "\r")
}
