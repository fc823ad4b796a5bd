package lexer

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/aledsdavies/bloom/core/arena"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenExpectation represents an expected token for testing
type tokenExpectation struct {
	Type   TokenType
	Text   string
	Line   int
	Column int
	Value  int64
}

func tokenize(t *testing.T, input string, opts ...LexerOpt) ([]Token, *arena.Arena, error) {
	t.Helper()
	a := arena.New(RequiredArenaSize(len(input)))
	tokens, err := Tokenize([]byte(input), a, opts...)
	return tokens, a, err
}

// assertTokens compares actual tokens with expected, providing clear error messages
func assertTokens(t *testing.T, name string, input string, expected []tokenExpectation) {
	t.Helper()

	tokens, _, err := tokenize(t, input)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", name, err)
	}

	src := []byte(input)
	actual := make([]tokenExpectation, 0, len(tokens))
	for _, token := range tokens {
		actual = append(actual, tokenExpectation{
			Type:   token.Type,
			Text:   token.Text.String(src),
			Line:   token.Position.Line,
			Column: token.Position.Column,
			Value:  token.Value,
		})
	}

	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("%s: token mismatch (-expected +actual):\n%s", name, diff)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []tokenExpectation
	}{
		{
			name:  "empty input",
			input: "",
			expected: []tokenExpectation{
				{END, "", 1, 1, 0},
			},
		},
		{
			name:  "parenthesized identifiers",
			input: "(a, b)",
			expected: []tokenExpectation{
				{LPAREN, "(", 1, 1, 0},
				{IDENTIFIER, "a", 1, 2, 0},
				{COMMA, ",", 1, 3, 0},
				{IDENTIFIER, "b", 1, 5, 0},
				{RPAREN, ")", 1, 6, 0},
				{END, "", 1, 7, 0},
			},
		},
		{
			name:  "procedure with implicit return",
			input: "sum :: proc(a: Int, b: Int) -> Int\n  a + b",
			expected: []tokenExpectation{
				{IDENTIFIER, "sum", 1, 1, 0},
				{CONST_DEF, "::", 1, 5, 0},
				{KEYWORD_PROC, "proc", 1, 8, 0},
				{LPAREN, "(", 1, 12, 0},
				{IDENTIFIER, "a", 1, 13, 0},
				{TYPE_SEPARATOR, ":", 1, 14, 0},
				{IDENTIFIER, "Int", 1, 16, 0},
				{COMMA, ",", 1, 19, 0},
				{IDENTIFIER, "b", 1, 21, 0},
				{TYPE_SEPARATOR, ":", 1, 22, 0},
				{IDENTIFIER, "Int", 1, 24, 0},
				{RPAREN, ")", 1, 27, 0},
				{ARROW, "->", 1, 29, 0},
				{IDENTIFIER, "Int", 1, 32, 0},
				{NEWLINE, "\n", 1, 35, 0},
				{INDENT, "  ", 2, 1, 1},
				{IDENTIFIER, "a", 2, 3, 0},
				{ADD, "+", 2, 5, 0},
				{IDENTIFIER, "b", 2, 7, 0},
				{END, "", 2, 8, 0},
			},
		},
		{
			name:  "binders and separators",
			input: ":: := : -> -",
			expected: []tokenExpectation{
				{CONST_DEF, "::", 1, 1, 0},
				{VAR_DEF, ":=", 1, 4, 0},
				{TYPE_SEPARATOR, ":", 1, 7, 0},
				{ARROW, "->", 1, 9, 0},
				{ILLEGAL, "-", 1, 12, 0},
				{END, "", 1, 13, 0},
			},
		},
		{
			name:  "braces",
			input: "{}",
			expected: []tokenExpectation{
				{LBRACE, "{", 1, 1, 0},
				{RBRACE, "}", 1, 2, 0},
				{END, "", 1, 3, 0},
			},
		},
		{
			name:  "integers",
			input: "x := 42 9223372036854775807",
			expected: []tokenExpectation{
				{IDENTIFIER, "x", 1, 1, 0},
				{VAR_DEF, ":=", 1, 3, 0},
				{INTEGER, "42", 1, 6, 42},
				{INTEGER, "9223372036854775807", 1, 9, 9223372036854775807},
				{END, "", 1, 28, 0},
			},
		},
		{
			name:  "integer overflow is illegal",
			input: "9223372036854775808",
			expected: []tokenExpectation{
				{ILLEGAL, "9223372036854775808", 1, 1, 0},
				{END, "", 1, 20, 0},
			},
		},
		{
			name:  "string argument",
			input: `greet("hi there")`,
			expected: []tokenExpectation{
				{IDENTIFIER, "greet", 1, 1, 0},
				{LPAREN, "(", 1, 6, 0},
				{STRING, "hi there", 1, 7, 0},
				{RPAREN, ")", 1, 17, 0},
				{END, "", 1, 18, 0},
			},
		},
		{
			name:  "string spanning lines",
			input: "\"a\nb\" x",
			expected: []tokenExpectation{
				{STRING, "a\nb", 1, 1, 0},
				{IDENTIFIER, "x", 2, 4, 0},
				{END, "", 2, 5, 0},
			},
		},
		{
			name:  "empty string",
			input: `""`,
			expected: []tokenExpectation{
				{STRING, "", 1, 1, 0},
				{END, "", 1, 3, 0},
			},
		},
		{
			name:  "unterminated string",
			input: `"abc`,
			expected: []tokenExpectation{
				{ILLEGAL, `"abc`, 1, 1, 0},
				{END, "", 1, 5, 0},
			},
		},
		{
			name:  "tabs and carriage returns advance the column",
			input: "a\tb\r\nc",
			expected: []tokenExpectation{
				{IDENTIFIER, "a", 1, 1, 0},
				{IDENTIFIER, "b", 1, 3, 0},
				{NEWLINE, "\n", 1, 5, 0},
				{IDENTIFIER, "c", 2, 1, 0},
				{END, "", 2, 2, 0},
			},
		},
		{
			name:  "unknown characters",
			input: "a $ é+",
			expected: []tokenExpectation{
				{IDENTIFIER, "a", 1, 1, 0},
				{ILLEGAL, "$", 1, 3, 0},
				{ILLEGAL, "é", 1, 5, 0},
				{ADD, "+", 1, 6, 0},
				{END, "", 1, 7, 0},
			},
		},
		{
			name:  "single leading space is not indentation",
			input: "a\n b",
			expected: []tokenExpectation{
				{IDENTIFIER, "a", 1, 1, 0},
				{NEWLINE, "\n", 1, 2, 0},
				{IDENTIFIER, "b", 2, 2, 0},
				{END, "", 2, 3, 0},
			},
		},
		{
			name:  "mid-line space run is indentation",
			input: "a    b",
			expected: []tokenExpectation{
				{IDENTIFIER, "a", 1, 1, 0},
				{INDENT, "    ", 1, 2, 1},
				{IDENTIFIER, "b", 1, 6, 0},
				{END, "", 1, 7, 0},
			},
		},
		{
			name:  "trailing space run",
			input: "a  \nb",
			expected: []tokenExpectation{
				{IDENTIFIER, "a", 1, 1, 0},
				{INDENT, "  ", 1, 2, 1},
				{NEWLINE, "\n", 1, 4, 0},
				{IDENTIFIER, "b", 2, 1, 0},
				{END, "", 2, 2, 0},
			},
		},
		{
			name:  "blank line spaces set the unit",
			input: "a\n  \n    b",
			expected: []tokenExpectation{
				{IDENTIFIER, "a", 1, 1, 0},
				{NEWLINE, "\n", 1, 2, 0},
				{INDENT, "  ", 2, 1, 1},
				{NEWLINE, "\n", 2, 3, 0},
				{INDENT, "    ", 3, 1, 2},
				{IDENTIFIER, "b", 3, 5, 0},
				{END, "", 3, 6, 0},
			},
		},
		{
			name:  "space run after a tab",
			input: "a\t  b",
			expected: []tokenExpectation{
				{IDENTIFIER, "a", 1, 1, 0},
				{INDENT, "  ", 1, 3, 1},
				{IDENTIFIER, "b", 1, 5, 0},
				{END, "", 1, 6, 0},
			},
		},
		{
			name:  "identifiers with digits and underscores",
			input: "_x1 a_b2",
			expected: []tokenExpectation{
				{IDENTIFIER, "_x1", 1, 1, 0},
				{IDENTIFIER, "a_b2", 1, 5, 0},
				{END, "", 1, 9, 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertTokens(t, tt.name, tt.input, tt.expected)
		})
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	tests := []struct {
		word string
		want TokenType
	}{
		{"pass", KEYWORD_PASS},
		{"proc", KEYWORD_PROC},
		{"Pass", IDENTIFIER},
		{"PROC", IDENTIFIER},
		{"pasS", IDENTIFIER},
		{"abcd", IDENTIFIER},
		{"prod", IDENTIFIER},
		{"passs", IDENTIFIER},
		{"pro", IDENTIFIER},
		{"procs", IDENTIFIER},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			tokens, _, err := tokenize(t, tt.word)
			require.NoError(t, err)
			require.Len(t, tokens, 2)
			assert.Equal(t, tt.want, tokens[0].Type)
			assert.Equal(t, tt.word, tokens[0].Text.String([]byte(tt.word)))
		})
	}
}

func indentLevels(tokens []Token) []int64 {
	var levels []int64
	for _, token := range tokens {
		if token.Type == INDENT {
			levels = append(levels, token.Value)
		}
	}
	return levels
}

func TestIndentationLevels(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		unit   int
		levels []int64
	}{
		{
			name:   "two-space unit, two nested levels",
			input:  "main :: proc()\n  inner := proc()\n    pass\n  pass\n",
			unit:   2,
			levels: []int64{1, 2, 1},
		},
		{
			name:   "four-space run under a two-space unit",
			input:  "a\n  b\n    c\n",
			unit:   2,
			levels: []int64{1, 2},
		},
		{
			name:   "four-space unit",
			input:  "main :: proc()\n    inner := proc()\n        pass\n",
			unit:   4,
			levels: []int64{1, 2},
		},
		{
			name:   "three-space unit",
			input:  "a\n   b\n      c\n",
			unit:   3,
			levels: []int64{1, 2},
		},
		{
			name:  "no indentation",
			input: "a :: 1\nb :: 2\n",
			unit:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := arena.New(RequiredArenaSize(len(tt.input)))
			l := NewLexer(a)
			tokens, err := l.Tokenize([]byte(tt.input))
			require.NoError(t, err)

			if diff := cmp.Diff(tt.levels, indentLevels(tokens)); diff != "" {
				t.Errorf("indent levels mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.unit, l.IndentUnit())
		})
	}
}

func TestInconsistentIndentation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  IndentationError
	}{
		{
			name:  "four-space unit then two-space run",
			input: "a\n    b\n  c\n",
			want:  IndentationError{Position: Position{Line: 3, Column: 1, Offset: 8}, Width: 2, Unit: 4},
		},
		{
			name:  "two-space unit then three-space run",
			input: "a\n  b\n   c\n",
			want:  IndentationError{Position: Position{Line: 3, Column: 1, Offset: 6}, Width: 3, Unit: 2},
		},
		{
			name:  "mid-line run must be a multiple of the unit",
			input: "a\n  b    c   d\n",
			want:  IndentationError{Position: Position{Line: 2, Column: 9, Offset: 10}, Width: 3, Unit: 2},
		},
		{
			name:  "unit fixed by a mid-line run",
			input: "a   b\n  c\n",
			want:  IndentationError{Position: Position{Line: 2, Column: 1, Offset: 6}, Width: 2, Unit: 3},
		},
		{
			name:  "four-space unit then six-space run",
			input: "a\n    b\n      c\n",
			want:  IndentationError{Position: Position{Line: 3, Column: 1, Offset: 8}, Width: 6, Unit: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := arena.New(64 + RequiredArenaSize(len(tt.input)))
			arena.Allocate[byte](a, 3)
			before := a.Offset()

			tokens, err := Tokenize([]byte(tt.input), a)

			assert.Nil(t, tokens)
			var indentErr *IndentationError
			require.True(t, errors.As(err, &indentErr), "want *IndentationError, got %v", err)
			assert.Equal(t, tt.want, *indentErr)
			assert.Contains(t, err.Error(), "inconsistent indentation")
			assert.Equal(t, before, a.Offset(), "arena must be rewound")
		})
	}
}

func TestTokenArrayIsShrunk(t *testing.T) {
	input := "sum :: proc(a: Int, b: Int) -> Int\n  a + b\n"
	tokens, a, err := tokenize(t, input)
	require.NoError(t, err)

	assert.Equal(t, END, tokens[len(tokens)-1].Type)
	assert.Equal(t, len(tokens), cap(tokens))
	assert.Equal(t, len(tokens)*int(unsafe.Sizeof(Token{})), a.Offset())
}

func TestTokenizeTooSmallArenaPanics(t *testing.T) {
	a := arena.New(int(unsafe.Sizeof(Token{})))
	assert.Panics(t, func() {
		_, _ = Tokenize([]byte("a b"), a)
	})
}

func TestTokenTelemetry(t *testing.T) {
	input := "a b\nc"
	a := arena.New(RequiredArenaSize(len(input)))
	l := NewLexer(a, WithTelemetryBasic())
	_, err := l.Tokenize([]byte(input))
	require.NoError(t, err)

	telemetry := l.GetTokenTelemetry()
	require.NotNil(t, telemetry)
	assert.Equal(t, 3, telemetry[IDENTIFIER].Count)
	assert.Equal(t, 1, telemetry[NEWLINE].Count)
	assert.Equal(t, 1, telemetry[END].Count)

	telemetry[IDENTIFIER].Count = 100
	assert.Equal(t, 3, l.GetTokenTelemetry()[IDENTIFIER].Count, "telemetry must be returned as a copy")
}

func TestTokenTelemetryTiming(t *testing.T) {
	input := "x :: proc()\n  pass"
	a := arena.New(RequiredArenaSize(len(input)))
	l := NewLexer(a, WithTelemetryTiming())
	_, err := l.Tokenize([]byte(input))
	require.NoError(t, err)

	for typ, telemetry := range l.GetTokenTelemetry() {
		assert.Equal(t, typ, telemetry.Type)
		assert.LessOrEqual(t, telemetry.MinTime, telemetry.MaxTime)
		assert.GreaterOrEqual(t, telemetry.TotalTime, telemetry.MaxTime)
	}
}

func TestTelemetryOffByDefault(t *testing.T) {
	a := arena.New(RequiredArenaSize(1))
	l := NewLexer(a)
	_, err := l.Tokenize([]byte("a"))
	require.NoError(t, err)

	assert.Nil(t, l.GetTokenTelemetry())
	assert.Nil(t, l.GetDebugEvents())
}

func TestDebugEvents(t *testing.T) {
	input := "a :: 1"
	a := arena.New(RequiredArenaSize(len(input)))

	l := NewLexer(a, WithDebugPaths())
	_, err := l.Tokenize([]byte(input))
	require.NoError(t, err)
	paths := l.GetDebugEvents()
	require.NotEmpty(t, paths)
	assert.Equal(t, "enter_tokenize", paths[0].Event)
	assert.Equal(t, "exit_tokenize", paths[len(paths)-1].Event)

	detailed := NewLexer(arena.New(RequiredArenaSize(len(input))), WithDebugDetailed())
	_, err = detailed.Tokenize([]byte(input))
	require.NoError(t, err)
	assert.Greater(t, len(detailed.GetDebugEvents()), len(paths))
}

func TestLexerReuse(t *testing.T) {
	a := arena.New(RequiredArenaSize(16) * 2)
	l := NewLexer(a)

	first, err := l.Tokenize([]byte("a\n    b"))
	require.NoError(t, err)
	assert.Equal(t, 4, l.IndentUnit())

	second, err := l.Tokenize([]byte("c\n  d"))
	require.NoError(t, err)
	assert.Equal(t, 2, l.IndentUnit(), "indent unit is per input")
	assert.Equal(t, first[0].Type, second[0].Type)
}

func TestSpan(t *testing.T) {
	src := []byte("hello world")
	s := Span{Start: 6, End: 11}

	assert.Equal(t, 5, s.Len())
	assert.False(t, s.IsEmpty())
	assert.Equal(t, "world", s.String(src))
	assert.Equal(t, []byte("world"), s.Bytes(src))
	assert.True(t, Span{Start: 3, End: 3}.IsEmpty())
}

func TestTokenTypeString(t *testing.T) {
	assert.Equal(t, "KEYWORD_PROC", KEYWORD_PROC.String())
	assert.Equal(t, "UNKNOWN", TokenType(999).String())
	assert.Equal(t, "::", CONST_DEF.Symbol())
	assert.Equal(t, "", IDENTIFIER.Symbol())
	assert.Equal(t, "2:7", Position{Line: 2, Column: 7}.String())
}

func TestIdentifierAt(t *testing.T) {
	src := []byte("sum :: prc_2(a)")
	tests := []struct {
		offset int
		want   string
	}{
		{0, "sum"},
		{1, "um"},
		{7, "prc_2"},
		{3, ""},  // space
		{12, ""}, // '('
		{15, ""}, // end of input
		{-1, ""},
	}
	for _, tt := range tests {
		span := IdentifierAt(src, tt.offset)
		assert.Equal(t, tt.want, span.String(src), "offset %d", tt.offset)
	}
}
