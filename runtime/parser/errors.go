package parser

import (
	"fmt"
	"strings"

	"github.com/aledsdavies/bloom/core/arena"
	"github.com/aledsdavies/bloom/core/invariant"
	"github.com/aledsdavies/bloom/runtime/lexer"
)

// DefaultErrorCapacity is the error log size when WithErrorCapacity is not given.
const DefaultErrorCapacity = 16

// ErrorKind classifies structural parse errors.
type ErrorKind uint8

const (
	UnexpectedToken  ErrorKind = iota + 1 // a required token was something else
	MissingDelimiter                      // a list ran into the end of the line before ')'
)

func (k ErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "UnexpectedToken"
	case MissingDelimiter:
		return "MissingDelimiter"
	default:
		return "UnknownError"
	}
}

// TokenSet is a set of token types, used for what the parser expected.
type TokenSet uint64

// Tokens builds a set from types.
func Tokens(types ...lexer.TokenType) TokenSet {
	var s TokenSet
	for _, t := range types {
		s |= 1 << uint(t)
	}
	return s
}

// Has reports whether t is in the set.
func (s TokenSet) Has(t lexer.TokenType) bool {
	return t >= 0 && t < 64 && s&(1<<uint(t)) != 0
}

// Types returns the members in declaration order.
func (s TokenSet) Types() []lexer.TokenType {
	var types []lexer.TokenType
	for t := lexer.TokenType(0); t < 64; t++ {
		if s.Has(t) {
			types = append(types, t)
		}
	}
	return types
}

func (s TokenSet) String() string {
	types := s.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	if len(names) == 1 {
		return names[0]
	}
	return "one of " + strings.Join(names, ", ")
}

// ParseError is one structural error. It holds no pointers so the log can
// live in the arena.
type ParseError struct {
	Kind     ErrorKind
	Position lexer.Position
	Found    lexer.TokenType
	Expected TokenSet
}

func (e ParseError) Error() string {
	return e.Position.String() + ": " + e.Message()
}

// Message describes the error without its position.
func (e ParseError) Message() string {
	switch e.Kind {
	case MissingDelimiter:
		return fmt.Sprintf("missing %s before %s", e.Expected, e.Found)
	default:
		return fmt.Sprintf("unexpected %s, expected %s", e.Found, e.Expected)
	}
}

// ErrorLog is a fixed-capacity, append-only error log. Errors past capacity
// are counted, not stored.
type ErrorLog struct {
	entries arena.Block[ParseError]
	count   int
	dropped int
}

func newErrorLog(a *arena.Arena, capacity int) *ErrorLog {
	invariant.Precondition(capacity >= 0, "error capacity must be non-negative, got %d", capacity)
	return &ErrorLog{entries: arena.Allocate[ParseError](a, capacity)}
}

func (l *ErrorLog) add(e ParseError) {
	if l.count == l.entries.Len() {
		l.dropped++
		return
	}
	l.entries.Items[l.count] = e
	l.count++
}

// Len returns the number of stored errors.
func (l *ErrorLog) Len() int {
	return l.count
}

// Cap returns the log capacity.
func (l *ErrorLog) Cap() int {
	return l.entries.Len()
}

// At returns the i-th stored error.
func (l *ErrorLog) At(i int) ParseError {
	invariant.Precondition(i >= 0 && i < l.count, "error index %d outside log of %d", i, l.count)
	return l.entries.Items[i]
}

// All returns the stored errors. The slice aliases the arena.
func (l *ErrorLog) All() []ParseError {
	return l.entries.Items[:l.count:l.count]
}

// Dropped returns how many errors arrived after the log was full.
func (l *ErrorLog) Dropped() int {
	return l.dropped
}

// Full reports whether the log has reached capacity.
func (l *ErrorLog) Full() bool {
	return l.count == l.entries.Len()
}

// ErrorList is the error form of a non-empty ErrorLog.
type ErrorList struct {
	Errors  []ParseError
	Dropped int
}

func (e *ErrorList) Error() string {
	total := len(e.Errors) + e.Dropped
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%d parse errors (error log capacity 0)", total)
	}
	if total == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), total-1)
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *ErrorList) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, pe := range e.Errors {
		errs[i] = pe
	}
	return errs
}
