package lexer

// ASCII lookup tables for the hot path
var (
	isLetter     [256]bool
	isDigit      [256]bool
	isIdentStart [256]bool
	isIdentPart  [256]bool
	isWhitespace [256]bool // insignificant blanks; newline is a token
)

func init() {
	for c := 0; c < 256; c++ {
		ch := byte(c)
		isLetter[c] = (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
		isDigit[c] = ch >= '0' && ch <= '9'
		isIdentStart[c] = isLetter[c]
		isIdentPart[c] = isLetter[c] || isDigit[c]
		isWhitespace[c] = ch == ' ' || ch == '\t' || ch == '\r'
	}
}

// IdentifierAt returns the identifier-shaped run of src starting at offset,
// or an empty span when none starts there.
func IdentifierAt(src []byte, offset int) Span {
	if offset < 0 || offset >= len(src) || !isIdentStart[src[offset]] {
		offset = min(max(offset, 0), len(src))
		return Span{Start: offset, End: offset}
	}
	end := offset + 1
	for end < len(src) && isIdentPart[src[end]] {
		end++
	}
	return Span{Start: offset, End: end}
}
