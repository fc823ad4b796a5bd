package diag

import (
	"sort"
	"strings"

	"github.com/aledsdavies/bloom/runtime/lexer"
	"github.com/aledsdavies/bloom/runtime/parser"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// maxEditDistance bounds keyword suggestions for words that are not a
// subsequence of the keyword.
const maxEditDistance = 2

var statementFollow = parser.Tokens(lexer.LPAREN, lexer.VAR_DEF, lexer.ADD)

// Hint returns a suggestion for e, or "" when there is none. Keyword
// suggestions need tree.Source.
func Hint(tree *parser.Tree, e parser.ParseError) string {
	if e.Kind == parser.MissingDelimiter {
		return "close the list with `)` on the same line"
	}
	if e.Found == lexer.INDENT && e.Position.Column > 1 {
		return "two or more spaces are an indent; separate tokens with a single space"
	}

	if tree.Source != nil {
		if word := misspelledWord(tree, e); word != "" {
			if kw, ok := closestKeyword(word, e.Expected); ok {
				return "did you mean `" + kw + "`?"
			}
		}
	}

	switch {
	case e.Expected.Has(lexer.TYPE_SEPARATOR) && e.Found == lexer.IDENTIFIER:
		return "parameters are written `name: Type`"
	case e.Expected.Has(lexer.CONST_DEF) && e.Found == lexer.VAR_DEF:
		return "top-level definitions bind with `::`"
	case e.Expected == parser.Tokens(lexer.INDENT):
		return "a procedure body needs at least one indented statement"
	case e.Expected == statementFollow:
		return "a statement is a call `f(x)`, a binding `x := 1`, an addition `a + b` or `pass`"
	}
	return ""
}

// misspelledWord returns the identifier that may be a misspelled keyword: the
// found identifier itself, or the identifier before the token that could not
// follow it as a statement.
func misspelledWord(tree *parser.Tree, e parser.ParseError) string {
	if e.Found == lexer.IDENTIFIER {
		return tree.Text(lexer.IdentifierAt(tree.Source, e.Position.Offset))
	}
	if e.Expected != statementFollow {
		return ""
	}
	i := sort.Search(len(tree.Tokens), func(i int) bool {
		return tree.Tokens[i].Position.Offset >= e.Position.Offset
	})
	if i == 0 || i >= len(tree.Tokens) || tree.Tokens[i-1].Type != lexer.IDENTIFIER {
		return ""
	}
	return tree.Text(tree.Tokens[i-1].Text)
}

// closestKeyword picks the keyword nearest to word. Inside a statement any
// keyword allowed to start one is a candidate; elsewhere only keywords in
// expected are.
func closestKeyword(word string, expected parser.TokenSet) (string, bool) {
	var candidates []string
	for kw, typ := range lexer.Keywords {
		if expected.Has(typ) || (expected == statementFollow && typ == lexer.KEYWORD_PASS) {
			candidates = append(candidates, kw)
		}
	}
	if len(candidates) == 0 || len(word) < 2 {
		return "", false
	}
	sort.Strings(candidates)

	ranks := fuzzy.RankFindFold(word, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target, true
	}

	best, bestDistance := "", maxEditDistance+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(word), c); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best, best != ""
}
