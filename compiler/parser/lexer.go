package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	// tokWord is a digit-led run of letters and digits such as 10d or 1w2d.
	tokWord
	tokOp
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokIdent:
		return "identifier"
	case tokInt, tokFloat:
		return "number"
	case tokString:
		return "string"
	case tokWord:
		return "word"
	}
	return "operator"
}

type token struct {
	kind tokenKind
	// text is the raw source text except for strings, where it holds
	// the unescaped contents, and backquoted identifiers, where it holds
	// the name.
	text string
	pos  int
	end  int
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return t.kind.String()
	case tokString:
		return strconv.Quote(t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

// is reports whether t is the keyword or operator s (keywords match
// case-insensitively).
func (t token) is(s string) bool {
	switch t.kind {
	case tokIdent:
		return strings.EqualFold(t.text, s)
	case tokOp:
		return t.text == s
	}
	return false
}

var operators = []string{
	"!=~", "=~", "==", "!=", "<>", "<=", ">=",
	"(", ")", "[", "]", ",", ".", "+", "-", "*", "/", "%", "=", "<", ">", "!",
}

// lexer produces tokens on demand so that the parser can switch to raw
// scanning for time ranges and bare regular expressions, whose lexical
// shapes depend on where they appear.
type lexer struct {
	src      string
	off      int
	buf      []token
	warnings []warning
}

type warning struct {
	msg string
	pos int
}

// newLexer returns a lexer that begins scanning src at offset off so that
// token positions are offsets into all of src.
func newLexer(src string, off int) *lexer {
	return &lexer{src: src, off: off}
}

func (l *lexer) peekN(n int) (token, error) {
	for len(l.buf) <= n {
		tok, err := l.scan()
		if err != nil {
			return token{}, err
		}
		l.buf = append(l.buf, tok)
	}
	return l.buf[n], nil
}

func (l *lexer) next() (token, error) {
	tok, err := l.peekN(0)
	if err != nil {
		return tok, err
	}
	l.buf = l.buf[1:]
	return tok, nil
}

// raw returns the next whitespace-delimited run of text, stopping also at
// a comma or closing parenthesis.  Buffered lookahead is discarded and
// rescanned.
func (l *lexer) raw() token {
	if len(l.buf) > 0 {
		l.off = l.buf[0].pos
		l.buf = nil
	}
	l.skipSpace()
	start := l.off
	for l.off < len(l.src) {
		c := l.src[l.off]
		if isSpace(c) || c == ',' || c == ')' {
			break
		}
		l.off++
	}
	if start == l.off {
		return token{kind: tokEOF, pos: start, end: start}
	}
	return token{kind: tokWord, text: l.src[start:l.off], pos: start, end: l.off}
}

func (l *lexer) skipSpace() {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case isSpace(c):
			l.off++
		case c == '-' && strings.HasPrefix(l.src[l.off:], "--"):
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.off++
			}
		default:
			return
		}
	}
}

func (l *lexer) scan() (token, error) {
	l.skipSpace()
	start := l.off
	if start >= len(l.src) {
		return token{kind: tokEOF, pos: start, end: start}, nil
	}
	c := l.src[start]
	switch {
	case isLetter(c):
		for l.off < len(l.src) && (isLetter(l.src[l.off]) || isDigit(l.src[l.off])) {
			l.off++
		}
		return token{kind: tokIdent, text: l.src[start:l.off], pos: start, end: l.off}, nil
	case isDigit(c):
		return l.scanNumber(), nil
	case c == '"' || c == '\'':
		return l.scanString(c)
	case c == '`':
		end := strings.IndexByte(l.src[start+1:], '`')
		if end < 0 {
			return token{}, &lexError{"unterminated quoted identifier", start}
		}
		l.off = start + end + 2
		return token{kind: tokIdent, text: l.src[start+1 : start+1+end], pos: start, end: l.off}, nil
	}
	for _, op := range operators {
		if strings.HasPrefix(l.src[start:], op) {
			l.off += len(op)
			return token{kind: tokOp, text: op, pos: start, end: l.off}, nil
		}
	}
	r, _ := utf8.DecodeRuneInString(l.src[start:])
	return token{}, &lexError{fmt.Sprintf("unexpected character %q", r), start}
}

func (l *lexer) scanNumber() token {
	start := l.off
	for l.off < len(l.src) && isDigit(l.src[l.off]) {
		l.off++
	}
	if l.off < len(l.src) && isLetter(l.src[l.off]) {
		for l.off < len(l.src) && (isLetter(l.src[l.off]) || isDigit(l.src[l.off])) {
			l.off++
		}
		return token{kind: tokWord, text: l.src[start:l.off], pos: start, end: l.off}
	}
	kind := tokInt
	if l.off+1 < len(l.src) && l.src[l.off] == '.' && isDigit(l.src[l.off+1]) {
		kind = tokFloat
		l.off++
		for l.off < len(l.src) && isDigit(l.src[l.off]) {
			l.off++
		}
	}
	return token{kind: kind, text: l.src[start:l.off], pos: start, end: l.off}
}

func (l *lexer) scanString(quote byte) (token, error) {
	start := l.off
	l.off++
	var b strings.Builder
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == quote:
			l.off++
			return token{kind: tokString, text: b.String(), pos: start, end: l.off}, nil
		case c == '\\' && l.off+1 < len(l.src):
			e := l.src[l.off+1]
			switch e {
			case '\\', quote:
				b.WriteByte(e)
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\'':
				b.WriteByte(e)
				l.warnings = append(l.warnings, warning{
					msg: fmt.Sprintf("Unnecessary escape of %c in string literal", e),
					pos: l.off,
				})
			default:
				// Regular expressions rely on the backslash surviving.
				b.WriteByte(c)
				b.WriteByte(e)
			}
			l.off += 2
		default:
			b.WriteByte(c)
			l.off++
		}
	}
	return token{}, &lexError{"unterminated string", start}
}

type lexError struct {
	msg string
	pos int
}

func (e *lexError) Error() string {
	return e.msg
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
