package lexer

import "fmt"

// TokenType represents lexical tokens of the bloom language
type TokenType int

const (
	// Special tokens
	END TokenType = iota // end of stream, always the last token
	ILLEGAL

	// Layout
	NEWLINE // \n
	INDENT  // run of two or more spaces, Value holds the level

	// Literals and names
	IDENTIFIER // sum, a, Int
	INTEGER    // 42, Value holds the parsed number
	STRING     // "text", Text excludes the quotes

	// Keywords
	KEYWORD_PASS // pass
	KEYWORD_PROC // proc

	// Binders and separators
	CONST_DEF      // ::
	VAR_DEF        // :=
	TYPE_SEPARATOR // :
	ARROW          // ->
	COMMA          // ,

	// Brackets and braces
	LPAREN // (
	RPAREN // )
	LBRACE // {
	RBRACE // }

	// Operators
	ADD // +
)

// Token represents a lexical token. Tokens hold no pointers so they can live
// in an arena; Text addresses the token's bytes in the tokenized input.
type Token struct {
	Type     TokenType
	Position Position
	Text     Span
	Value    int64 // INDENT level or INTEGER value
}

// Position represents a position in the source code
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open byte range [Start, End) into the tokenized input.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// IsEmpty reports whether the span covers no bytes.
func (s Span) IsEmpty() bool {
	return s.End <= s.Start
}

// Bytes returns the spanned bytes of src without copying.
func (s Span) Bytes(src []byte) []byte {
	return src[s.Start:s.End:s.End]
}

// String returns a copy of the spanned bytes of src.
func (s Span) String(src []byte) string {
	return string(src[s.Start:s.End])
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	switch t {
	case END:
		return "END"
	case ILLEGAL:
		return "ILLEGAL"
	case NEWLINE:
		return "NEWLINE"
	case INDENT:
		return "INDENT"
	case IDENTIFIER:
		return "IDENTIFIER"
	case INTEGER:
		return "INTEGER"
	case STRING:
		return "STRING"
	case KEYWORD_PASS:
		return "KEYWORD_PASS"
	case KEYWORD_PROC:
		return "KEYWORD_PROC"
	case CONST_DEF:
		return "CONST_DEF"
	case VAR_DEF:
		return "VAR_DEF"
	case TYPE_SEPARATOR:
		return "TYPE_SEPARATOR"
	case ARROW:
		return "ARROW"
	case COMMA:
		return "COMMA"
	case LPAREN:
		return "LPAREN"
	case RPAREN:
		return "RPAREN"
	case LBRACE:
		return "LBRACE"
	case RBRACE:
		return "RBRACE"
	case ADD:
		return "ADD"
	default:
		return "UNKNOWN"
	}
}

// Symbol returns the source spelling of fixed tokens, or "" for tokens whose
// text varies.
func (t TokenType) Symbol() string {
	switch t {
	case NEWLINE:
		return "\\n"
	case KEYWORD_PASS:
		return "pass"
	case KEYWORD_PROC:
		return "proc"
	case CONST_DEF:
		return "::"
	case VAR_DEF:
		return ":="
	case TYPE_SEPARATOR:
		return ":"
	case ARROW:
		return "->"
	case COMMA:
		return ","
	case LPAREN:
		return "("
	case RPAREN:
		return ")"
	case LBRACE:
		return "{"
	case RBRACE:
		return "}"
	case ADD:
		return "+"
	default:
		return ""
	}
}

// Keywords maps reserved words to their token types
var Keywords = map[string]TokenType{
	"pass": KEYWORD_PASS,
	"proc": KEYWORD_PROC,
}

// SingleCharTokens maps single characters to their token types
var SingleCharTokens = map[byte]TokenType{
	',':  COMMA,
	'(':  LPAREN,
	')':  RPAREN,
	'{':  LBRACE,
	'}':  RBRACE,
	'+':  ADD,
	'\n': NEWLINE,
}
