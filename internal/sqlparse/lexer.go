package sqlparse

import (
	"fmt"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokNumber
	tokString
	tokParam // :name or ?
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex tokenizes the input. Line comments ("-- ..." to end of line) are
// stripped here, before any reference matching can see them.
func lex(input string) ([]token, error) {
	src := []rune(input)
	var toks []token
	i := 0
	n := len(src)

	for i < n {
		c := src[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '-' && i+1 < n && src[i+1] == '-':
			for i < n && src[i] != '\n' {
				i++
			}
		case isWordStart(c):
			start := i
			for i < n && isWordRune(src[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, string(src[start:i]), start})
		case unicode.IsDigit(c):
			start := i
			for i < n && (unicode.IsDigit(src[i]) || src[i] == '.') {
				// A dot followed by a word character belongs to a dotted
				// reference (e.g. 2023.Sheet), not to this number.
				if src[i] == '.' && i+1 < n && !unicode.IsDigit(src[i+1]) {
					break
				}
				i++
			}
			toks = append(toks, token{tokNumber, string(src[start:i]), start})
		case c == '\'':
			text, next, err := scanQuoted(src, i, '\'')
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, text, i})
			i = next
		case c == '"':
			text, next, err := scanQuoted(src, i, '"')
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokQuotedIdent, text, i})
			i = next
		case c == ':' && i+1 < n && isWordStart(src[i+1]):
			start := i
			i++
			for i < n && isWordRune(src[i]) {
				i++
			}
			toks = append(toks, token{tokParam, string(src[start+1 : i]), start})
		case c == '?':
			toks = append(toks, token{tokParam, "", i})
			i++
		default:
			sym, width := scanSymbol(src, i)
			if sym == "" {
				return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
			}
			toks = append(toks, token{tokSymbol, sym, i})
			i += width
		}
	}
	toks = append(toks, token{tokEOF, "", n})
	return toks, nil
}

// scanQuoted reads a quoted run starting at src[start] == quote. A doubled
// quote is an escaped quote. Returns the unquoted text and the index after
// the closing quote.
func scanQuoted(src []rune, start int, quote rune) (string, int, error) {
	var out []rune
	i := start + 1
	for i < len(src) {
		if src[i] == quote {
			if i+1 < len(src) && src[i+1] == quote {
				out = append(out, quote)
				i += 2
				continue
			}
			return string(out), i + 1, nil
		}
		out = append(out, src[i])
		i++
	}
	return "", 0, fmt.Errorf("unterminated %c-quoted token at offset %d", quote, start)
}

var twoCharSymbols = []string{"<=", ">=", "<>", "!=", "||", "=="}

func scanSymbol(src []rune, i int) (string, int) {
	if i+1 < len(src) {
		pair := string(src[i : i+2])
		for _, s := range twoCharSymbols {
			if pair == s {
				return s, 2
			}
		}
	}
	switch src[i] {
	case '(', ')', ',', '.', '=', '<', '>', '+', '-', '*', '/', '%', ';':
		return string(src[i]), 1
	}
	return "", 0
}

// isWordStart reports whether c can begin an identifier. Non-ASCII letters
// are allowed so non-English file and sheet names work unquoted.
func isWordStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isWordRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}
