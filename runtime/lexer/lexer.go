// Package lexer turns bloom source text into a dense token stream.
//
// Tokens are written into a caller-supplied arena: the token array is first
// sized for the worst case (one token per input byte plus END) and then shrunk
// to the exact count. Token text is never copied; each token carries a Span
// into the input buffer, which must outlive the tokens.
package lexer

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"
	"unsafe"

	"github.com/aledsdavies/bloom/core/arena"
	"github.com/aledsdavies/bloom/core/invariant"
)

// LexerOpt represents a lexer configuration option
type LexerOpt func(*LexerConfig)

// TelemetryMode controls telemetry collection (production-safe)
type TelemetryMode int

const (
	TelemetryOff    TelemetryMode = iota // Zero overhead (default)
	TelemetryBasic                       // Token counts only
	TelemetryTiming                      // Token counts + timing per type
)

// DebugLevel controls debug tracing (development only)
type DebugLevel int

const (
	DebugOff      DebugLevel = iota // No debug info (default)
	DebugPaths                      // Method call tracing
	DebugDetailed                   // Character-level tracing
)

// LexerConfig holds lexer configuration
type LexerConfig struct {
	telemetry TelemetryMode
	debug     DebugLevel
}

// WithTelemetryBasic enables basic telemetry (token counts only)
func WithTelemetryBasic() LexerOpt {
	return func(c *LexerConfig) {
		c.telemetry = TelemetryBasic
	}
}

// WithTelemetryTiming enables timing telemetry (counts + timing per type)
func WithTelemetryTiming() LexerOpt {
	return func(c *LexerConfig) {
		c.telemetry = TelemetryTiming
	}
}

// WithDebugPaths enables debug path tracing (development only)
func WithDebugPaths() LexerOpt {
	return func(c *LexerConfig) {
		c.debug = DebugPaths
	}
}

// WithDebugDetailed enables detailed debug tracing (development only)
func WithDebugDetailed() LexerOpt {
	return func(c *LexerConfig) {
		c.debug = DebugDetailed
	}
}

// TokenTelemetry holds per-token type telemetry (production-safe)
type TokenTelemetry struct {
	Type      TokenType
	Count     int
	TotalTime time.Duration
	AvgTime   time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// DebugEvent holds debug tracing information (development only)
type DebugEvent struct {
	Timestamp time.Time
	Event     string   // "enter_lexInteger", "found_indent", "exit_tokenize"
	Position  Position // Current lexer position
	Context   string   // Current character, token being built, etc.
}

// IndentationError reports a space run whose width is not a multiple of the
// indent unit established by the first run of two or more spaces. It is fatal
// for the whole tokenization.
type IndentationError struct {
	Position Position
	Width    int // spaces in the offending run
	Unit     int // spaces per level, fixed by the first run of two or more spaces
}

func (e *IndentationError) Error() string {
	return fmt.Sprintf("%s: inconsistent indentation: %d spaces is not a multiple of the %d-space indent unit",
		e.Position, e.Width, e.Unit)
}

// RequiredArenaSize returns the arena budget that always fits tokenizing an
// input of n bytes, including alignment padding of the token array.
func RequiredArenaSize(n int) int {
	return (n+1)*int(unsafe.Sizeof(Token{})) + int(unsafe.Alignof(Token{}))
}

// Lexer tokenizes bloom source into an arena.
type Lexer struct {
	arena *arena.Arena

	// Core lexing state
	input      []byte
	position   int
	line       int
	column     int
	indentUnit int // 0 until the first run of two or more spaces

	tokens arena.Block[Token]
	count  int

	// Telemetry (nil when disabled for zero allocation)
	telemetryMode  TelemetryMode
	tokenTelemetry map[TokenType]*TokenTelemetry

	// Debug (nil when disabled for zero allocation)
	debugLevel  DebugLevel
	debugEvents []DebugEvent
}

// NewLexer creates a lexer that allocates its token arrays from a.
func NewLexer(a *arena.Arena, opts ...LexerOpt) *Lexer {
	invariant.NotNil(a, "arena")

	config := &LexerConfig{}
	for _, opt := range opts {
		opt(config)
	}

	lexer := &Lexer{
		arena:         a,
		telemetryMode: config.telemetry,
		debugLevel:    config.debug,
	}

	if config.telemetry > TelemetryOff {
		lexer.tokenTelemetry = make(map[TokenType]*TokenTelemetry)
	}
	if config.debug > DebugOff {
		lexer.debugEvents = make([]DebugEvent, 0, 64)
	}

	return lexer
}

// Tokenize is a convenience wrapper that runs a fresh Lexer over input.
func Tokenize(input []byte, a *arena.Arena, opts ...LexerOpt) ([]Token, error) {
	return NewLexer(a, opts...).Tokenize(input)
}

// Tokenize lexes the whole input and returns the tokens, always terminated by
// END. The returned slice aliases the arena.
//
// On an *IndentationError no tokens are returned and the arena is rewound to
// where tokenization started. An arena too small for len(input)+1 tokens
// panics with *arena.ExhaustedError.
func (l *Lexer) Tokenize(input []byte) ([]Token, error) {
	l.init(input)
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("enter_tokenize", fmt.Sprintf("%d bytes", len(input)))
	}

	start := l.arena.Mark()
	l.tokens = arena.Allocate[Token](l.arena, len(input)+1)

	for {
		token, err := l.nextToken()
		if err != nil {
			if l.debugLevel > DebugOff {
				l.recordDebugEvent("abort_tokenize", err.Error())
			}
			l.arena.Rewind(start)
			l.tokens = arena.Block[Token]{}
			l.count = 0
			return nil, err
		}

		invariant.Invariant(l.count < l.tokens.Len(),
			"token count %d exceeds worst-case bound %d", l.count+1, l.tokens.Len())
		l.tokens.Items[l.count] = token
		l.count++

		if token.Type == END {
			break
		}
	}

	arena.Shrink(l.arena, &l.tokens, l.count)

	if l.debugLevel > DebugOff {
		l.recordDebugEvent("exit_tokenize", fmt.Sprintf("%d tokens", l.count))
	}
	return l.tokens.Items, nil
}

// init resets the lexer with new input (following Go scanner pattern)
func (l *Lexer) init(input []byte) {
	l.input = input
	l.position = 0
	l.line = 1
	l.column = 1
	l.indentUnit = 0
	l.tokens = arena.Block[Token]{}
	l.count = 0

	clear(l.tokenTelemetry)
	if l.debugEvents != nil {
		l.debugEvents = l.debugEvents[:0]
	}
}

// IndentUnit returns the spaces-per-level width detected in the last input,
// or 0 if it had no run of two or more spaces.
func (l *Lexer) IndentUnit() int {
	return l.indentUnit
}

// GetTokenTelemetry returns per-token type telemetry (production safe)
func (l *Lexer) GetTokenTelemetry() map[TokenType]*TokenTelemetry {
	if l.telemetryMode == TelemetryOff || l.tokenTelemetry == nil {
		return nil
	}

	result := make(map[TokenType]*TokenTelemetry, len(l.tokenTelemetry))
	for k, v := range l.tokenTelemetry {
		telemetryCopy := *v
		result[k] = &telemetryCopy
	}
	return result
}

// GetDebugEvents returns debug events (development only)
func (l *Lexer) GetDebugEvents() []DebugEvent {
	if l.debugLevel == DebugOff || l.debugEvents == nil {
		return nil
	}

	result := make([]DebugEvent, len(l.debugEvents))
	copy(result, l.debugEvents)
	return result
}

// nextToken lexes one token and records telemetry for it
func (l *Lexer) nextToken() (Token, error) {
	var start time.Time
	if l.telemetryMode >= TelemetryTiming {
		start = time.Now()
	}

	token, err := l.lexToken()
	if err != nil {
		return Token{}, err
	}

	if l.telemetryMode > TelemetryOff {
		var elapsed time.Duration
		if l.telemetryMode >= TelemetryTiming {
			elapsed = time.Since(start)
		}
		l.recordTokenTelemetry(token.Type, elapsed)
	}

	return token, nil
}

// recordTokenTelemetry records per-token type telemetry (production safe)
func (l *Lexer) recordTokenTelemetry(tokenType TokenType, elapsed time.Duration) {
	telemetry, exists := l.tokenTelemetry[tokenType]
	if !exists {
		telemetry = &TokenTelemetry{
			Type:    tokenType,
			MinTime: elapsed,
			MaxTime: elapsed,
		}
		l.tokenTelemetry[tokenType] = telemetry
	}

	telemetry.Count++

	if l.telemetryMode >= TelemetryTiming {
		telemetry.TotalTime += elapsed
		telemetry.AvgTime = telemetry.TotalTime / time.Duration(telemetry.Count)
		telemetry.MinTime = min(telemetry.MinTime, elapsed)
		telemetry.MaxTime = max(telemetry.MaxTime, elapsed)
	}
}

// recordDebugEvent records debug events when debug tracing is enabled
func (l *Lexer) recordDebugEvent(event, context string) {
	if l.debugLevel == DebugOff || l.debugEvents == nil {
		return
	}

	l.debugEvents = append(l.debugEvents, DebugEvent{
		Timestamp: time.Now(),
		Event:     event,
		Position:  l.here(),
		Context:   context,
	})
}

// lexToken performs the actual tokenization work
func (l *Lexer) lexToken() (Token, error) {
	if l.debugLevel >= DebugDetailed {
		l.recordDebugEvent("enter_lexToken", "starting tokenization")
	}

	l.skipWhitespace()
	if l.atSpaceRun() {
		return l.lexIndent()
	}

	if l.position >= len(l.input) {
		if l.debugLevel > DebugOff {
			l.recordDebugEvent("found_END", "end of input")
		}
		here := l.here()
		return Token{Type: END, Position: here, Text: Span{here.Offset, here.Offset}}, nil
	}

	start := l.here()
	ch := l.input[l.position]
	if l.debugLevel >= DebugDetailed {
		l.recordDebugEvent("current_char", fmt.Sprintf("%q", ch))
	}

	if isIdentStart[ch] {
		return l.lexIdentifier(start), nil
	}
	if isDigit[ch] {
		return l.lexInteger(start), nil
	}

	switch ch {
	case '"':
		return l.lexString(start), nil
	case ':':
		return l.lexColon(start), nil
	case '-':
		return l.lexMinus(start), nil
	case '\n':
		l.advanceChar()
		return l.fixed(NEWLINE, start), nil
	}

	if tokenType, ok := SingleCharTokens[ch]; ok {
		l.advanceChar()
		return l.fixed(tokenType, start), nil
	}

	// Unrecognized character - advance and mark as illegal
	l.advanceChar()
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("found_illegal", fmt.Sprintf("%q", l.input[start.Offset:l.position]))
	}
	return l.fixed(ILLEGAL, start), nil
}

// fixed builds a token whose text is everything consumed since start
func (l *Lexer) fixed(tokenType TokenType, start Position) Token {
	return Token{
		Type:     tokenType,
		Position: start,
		Text:     Span{Start: start.Offset, End: l.position},
	}
}

// lexIndent turns a run of two or more spaces into an INDENT token. The run
// is significant wherever it appears: leading, mid-line, trailing or on an
// otherwise blank line.
func (l *Lexer) lexIndent() (Token, error) {
	start := l.here()
	for l.position < len(l.input) && l.input[l.position] == ' ' {
		l.advanceChar()
	}
	width := l.position - start.Offset

	if l.indentUnit == 0 {
		l.indentUnit = width
		if l.debugLevel > DebugOff {
			l.recordDebugEvent("found_indent_unit", fmt.Sprintf("%d spaces", width))
		}
	}
	if width%l.indentUnit != 0 {
		return Token{}, &IndentationError{Position: start, Width: width, Unit: l.indentUnit}
	}

	token := l.fixed(INDENT, start)
	token.Value = int64(width / l.indentUnit)
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("found_indent", fmt.Sprintf("level %d", token.Value))
	}
	return token, nil
}

// atSpaceRun reports whether the next two bytes are spaces
func (l *Lexer) atSpaceRun() bool {
	return l.position+1 < len(l.input) && l.input[l.position] == ' ' && l.input[l.position+1] == ' '
}

// skipWhitespace skips blanks up to a newline or a significant space run
func (l *Lexer) skipWhitespace() {
	for l.position < len(l.input) && isWhitespace[l.input[l.position]] && !l.atSpaceRun() {
		l.advanceChar()
	}
}

// lexIdentifier reads an identifier or keyword starting at current position
func (l *Lexer) lexIdentifier(start Position) Token {
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("enter_lexIdentifier", "reading identifier/keyword")
	}

	for l.position < len(l.input) && isIdentPart[l.input[l.position]] {
		l.advanceChar()
	}

	token := l.fixed(IDENTIFIER, start)
	token.Type = lookupKeyword(token.Text.Bytes(l.input))
	return token
}

// lookupKeyword returns the keyword token type for text, or IDENTIFIER
func lookupKeyword(text []byte) TokenType {
	if len(text) != 4 {
		return IDENTIFIER
	}
	switch string(text) {
	case "pass":
		return KEYWORD_PASS
	case "proc":
		return KEYWORD_PROC
	default:
		return IDENTIFIER
	}
}

// lexInteger reads a maximal run of decimal digits. A run that does not fit
// in an int64 becomes ILLEGAL.
func (l *Lexer) lexInteger(start Position) Token {
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("enter_lexInteger", "reading integer literal")
	}

	var value int64
	overflow := false
	for l.position < len(l.input) && isDigit[l.input[l.position]] {
		digit := int64(l.input[l.position] - '0')
		if value > (math.MaxInt64-digit)/10 {
			overflow = true
		} else {
			value = value*10 + digit
		}
		l.advanceChar()
	}

	if overflow {
		if l.debugLevel > DebugOff {
			l.recordDebugEvent("integer_overflow", string(l.input[start.Offset:l.position]))
		}
		return l.fixed(ILLEGAL, start)
	}

	token := l.fixed(INTEGER, start)
	token.Value = value
	return token
}

// lexString reads a double-quoted string. There are no escapes and the string
// may span lines. An unterminated string becomes ILLEGAL up to end of input.
func (l *Lexer) lexString(start Position) Token {
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("enter_lexString", "reading string literal")
	}

	l.advanceChar() // Skip opening quote
	contentStart := l.position

	for l.position < len(l.input) && l.input[l.position] != '"' {
		l.advanceChar()
	}

	if l.position >= len(l.input) {
		if l.debugLevel > DebugOff {
			l.recordDebugEvent("unterminated_string", "reached end of input")
		}
		return l.fixed(ILLEGAL, start)
	}

	contentEnd := l.position
	l.advanceChar() // Skip closing quote

	return Token{
		Type:     STRING,
		Position: start,
		Text:     Span{Start: contentStart, End: contentEnd},
	}
}

// lexColon handles '::', ':=' and ':'
func (l *Lexer) lexColon(start Position) Token {
	l.advanceChar() // consume ':'

	switch l.currentChar() {
	case ':':
		l.advanceChar()
		return l.fixed(CONST_DEF, start)
	case '=':
		l.advanceChar()
		return l.fixed(VAR_DEF, start)
	default:
		return l.fixed(TYPE_SEPARATOR, start)
	}
}

// lexMinus handles '->'. A lone '-' has no meaning yet.
func (l *Lexer) lexMinus(start Position) Token {
	l.advanceChar() // consume '-'

	if l.currentChar() == '>' {
		l.advanceChar()
		return l.fixed(ARROW, start)
	}
	return l.fixed(ILLEGAL, start)
}

// here returns the current position
func (l *Lexer) here() Position {
	return Position{Line: l.line, Column: l.column, Offset: l.position}
}

// currentChar returns the current character being examined (ASCII fast path)
func (l *Lexer) currentChar() byte {
	if l.position >= len(l.input) {
		return 0 // END
	}
	return l.input[l.position]
}

// advanceChar moves to the next character. It is the only place that updates
// line and column.
func (l *Lexer) advanceChar() {
	if l.position >= len(l.input) {
		return
	}

	ch := l.input[l.position]

	// Fast path for ASCII (majority case)
	if ch < utf8.RuneSelf {
		if ch == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++ // tab and CR count as one column
		}
		l.position++
		return
	}

	// Multi-byte characters count as one column
	_, size := utf8.DecodeRune(l.input[l.position:])
	if size <= 0 {
		size = 1
	}
	l.position += size
	l.column++
}
