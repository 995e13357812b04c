package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brimdata/sift/compiler/ast"
	"github.com/brimdata/sift/compiler/srcfiles"
)

// Dialect selects between the two query languages.  They share a grammar
// and differ in filter semantics: Legacy has no unary NOT, treats the upper
// bound of BETWEEN as inclusive, accepts bare regular expression operands,
// and reads the time unit M as minutes rather than months.
type Dialect int

const (
	IQL2 Dialect = iota
	Legacy
)

func (d Dialect) String() string {
	if d == Legacy {
		return "legacy"
	}
	return "iql2"
}

func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "", "iql2", "2":
		return IQL2, nil
	case "legacy", "iql1", "1":
		return Legacy, nil
	}
	return 0, fmt.Errorf("unknown dialect %q", s)
}

type AST struct {
	query    *ast.Query
	files    *srcfiles.List
	warnings []string
}

func (a *AST) Parsed() *ast.Query {
	return a.query
}

func (a *AST) Files() *srcfiles.List {
	return a.files
}

// Warnings returns the advisory messages produced while parsing in the
// order they were encountered.
func (a *AST) Warnings() []string {
	return a.warnings
}

// ParseQuery parses query text in the given dialect and tracks
// line numbers for error reporting.
func ParseQuery(query string, dialect Dialect) (*AST, error) {
	files := srcfiles.NewList(query)
	p := newParser(files.Text, 0, dialect)
	q, err := p.run(func() any { return p.parseQuery() })
	if err != nil {
		return nil, convertParseErr(err, files)
	}
	return &AST{q.(*ast.Query), files, p.warningText()}, nil
}

// ParseExpr parses a standalone expression that begins at offset off in
// the text of files.  It is used for dimension metric definitions, which
// are appended to the query's source list so errors point at them.
func ParseExpr(files *srcfiles.List, off int, dialect Dialect) (ast.Expr, error) {
	p := newParser(files.Text, off, dialect)
	e, err := p.run(func() any {
		e := p.parseExpr()
		p.expectEOF()
		return e
	})
	if err != nil {
		return nil, convertParseErr(err, files)
	}
	return e.(ast.Expr), nil
}

func convertParseErr(err error, files *srcfiles.List) error {
	var pe *parseError
	if !errors.As(err, &pe) {
		return err
	}
	files.AddError(srcfiles.ParseError, pe.msg, pe.pos, pe.end)
	return files.Error()
}
