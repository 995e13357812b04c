package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brimdata/sift/compiler/ast"
)

// parser is a recursive-descent parser over the lexer's token stream.
// Errors unwind the descent by panicking with a *parseError, which run
// recovers.
type parser struct {
	lex      *lexer
	dialect  Dialect
	warnings []warning
}

type parseError struct {
	msg string
	pos int
	end int
}

func (e *parseError) Error() string {
	return e.msg
}

func newParser(src string, off int, dialect Dialect) *parser {
	return &parser{lex: newLexer(src, off), dialect: dialect}
}

func (p *parser) run(f func() any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*parseError)
			if !ok {
				panic(r)
			}
			err = pe
		}
	}()
	return f(), nil
}

func (p *parser) failAt(pos, end int, format string, args ...any) {
	panic(&parseError{fmt.Sprintf(format, args...), pos, end})
}

func (p *parser) unexpected(tok token, expected string) {
	msg := "unexpected " + tok.describe()
	if expected != "" {
		msg += ", expected " + expected
	}
	p.failAt(tok.pos, tok.end, "%s", msg)
}

func (p *parser) check(tok token, err error) token {
	if err != nil {
		var le *lexError
		if errors.As(err, &le) {
			p.failAt(le.pos, -1, "%s", le.msg)
		}
		panic(err)
	}
	return tok
}

func (p *parser) peek() token {
	return p.check(p.lex.peekN(0))
}

func (p *parser) peekN(n int) token {
	return p.check(p.lex.peekN(n))
}

func (p *parser) next() token {
	return p.check(p.lex.next())
}

// accept consumes the next token if it is the keyword or operator s.
func (p *parser) accept(s string) bool {
	if p.peek().is(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(s string) token {
	tok := p.peek()
	if !tok.is(s) {
		p.unexpected(tok, fmt.Sprintf("%q", s))
	}
	return p.next()
}

func (p *parser) expectEOF() {
	if tok := p.peek(); tok.kind != tokEOF {
		p.unexpected(tok, "end of query")
	}
}

func (p *parser) warn(pos int, format string, args ...any) {
	p.warnings = append(p.warnings, warning{fmt.Sprintf(format, args...), pos})
}

func (p *parser) warningText() []string {
	all := append(p.lex.warnings, p.warnings...)
	var out []string
	seen := make(map[string]bool)
	for _, w := range all {
		if !seen[w.msg] {
			seen[w.msg] = true
			out = append(out, w.msg)
		}
	}
	return out
}

var reserved = map[string]bool{
	"from": true, "where": true, "group": true, "by": true, "select": true,
	"having": true, "limit": true, "rounding": true, "timezone": true,
	"as": true, "and": true, "or": true, "not": true, "in": true,
	"between": true, "if": true, "then": true, "else": true, "with": true,
	"true": true, "false": true,
}

func isReserved(tok token) bool {
	return tok.kind == tokIdent && reserved[strings.ToLower(tok.text)]
}

func isClause(tok token) bool {
	if tok.kind != tokIdent {
		return false
	}
	switch strings.ToLower(tok.text) {
	case "where", "group", "select", "having", "limit", "rounding", "timezone":
		return true
	}
	return false
}

func (p *parser) parseQuery() *ast.Query {
	from := p.expect("from")
	q := &ast.Query{
		Kind:    "Query",
		Dialect: p.dialect.String(),
	}
	q.Datasets = p.parseDatasets()
	if p.accept("where") {
		q.Where = p.parseExpr()
	}
	if p.peek().is("group") {
		p.next()
		p.expect("by")
		q.GroupBy = p.parseGroupBy()
	}
	if p.accept("select") {
		q.Select = p.parseSelect()
	}
	if p.accept("having") {
		q.Having = p.parseExpr()
	}
	if p.accept("limit") {
		q.Limit = p.parseIntLiteral()
	}
	if p.accept("rounding") {
		q.Rounding = p.parseIntLiteral()
	}
	if p.accept("timezone") {
		q.Timezone = p.parseTimezone()
	}
	p.expectEOF()
	q.Loc = ast.NewLoc(from.pos, p.peek().pos)
	return q
}

func (p *parser) parseDatasets() []*ast.Dataset {
	var datasets []*ast.Dataset
	for {
		name := p.parseIdent("dataset name")
		d := &ast.Dataset{
			Kind: "Dataset",
			Name: name,
		}
		if !p.atDatasetEnd() {
			d.From = p.parseTime()
			d.To = p.parseTime()
		}
		end := p.peek().pos
		if p.accept("as") {
			d.Alias = p.parseIdent("alias")
			end = d.Alias.End()
		}
		d.Loc = ast.NewLoc(name.Pos(), end)
		datasets = append(datasets, d)
		if !p.accept(",") {
			return datasets
		}
	}
}

func (p *parser) atDatasetEnd() bool {
	tok := p.peek()
	return tok.kind == tokEOF || tok.is(",") || tok.is("as") || isClause(tok)
}

func (p *parser) parseSelect() []*ast.SelectItem {
	var items []*ast.SelectItem
	for {
		e := p.parseExpr()
		item := &ast.SelectItem{
			Kind: "SelectItem",
			Expr: e,
			Loc:  ast.NewLoc(e.Pos(), e.End()),
		}
		if p.accept("as") {
			item.As = p.parseIdent("alias")
			item.Loc.Last = item.As.End()
		}
		items = append(items, item)
		if !p.accept(",") {
			return items
		}
	}
}

func (p *parser) parseIdent(what string) *ast.ID {
	tok := p.peek()
	if tok.kind != tokIdent || isReserved(tok) {
		p.unexpected(tok, what)
	}
	p.next()
	return &ast.ID{
		Kind: "ID",
		Name: tok.text,
		Loc:  ast.NewLoc(tok.pos, tok.end),
	}
}

func (p *parser) parseIntLiteral() *ast.Primitive {
	tok := p.peek()
	neg := tok.is("-")
	if neg {
		p.next()
	}
	num := p.peek()
	if num.kind != tokInt {
		p.unexpected(num, "integer")
	}
	p.next()
	text := num.text
	if neg {
		text = "-" + text
	}
	return newPrimitive("int", text, tok.pos, num.end)
}

func (p *parser) parseTimezone() *ast.Primitive {
	tok := p.peek()
	if tok.kind == tokString {
		p.next()
		return newPrimitive("string", tok.text, tok.pos, tok.end)
	}
	raw := p.lex.raw()
	if raw.kind == tokEOF {
		p.unexpected(raw, "time zone")
	}
	return newPrimitive("string", raw.text, raw.pos, raw.end)
}
