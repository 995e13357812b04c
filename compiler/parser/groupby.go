package parser

import (
	"strings"

	"github.com/brimdata/sift/compiler/ast"
)

func (p *parser) parseGroupBy() []*ast.GroupByItem {
	var items []*ast.GroupByItem
	for {
		items = append(items, p.parseGroupByItem())
		if !p.accept(",") {
			return items
		}
	}
}

func (p *parser) parseGroupByItem() *ast.GroupByItem {
	spec := p.parseGroupBySpec()
	item := &ast.GroupByItem{
		Kind: "GroupByItem",
		Spec: spec,
		Loc:  ast.NewLoc(spec.Pos(), spec.End()),
	}
	if p.peek().is("with") {
		p.next()
		tok := p.expect("default")
		item.WithDefault = true
		item.Loc.Last = tok.end
	}
	if p.accept("having") {
		item.Having = p.parseExpr()
		item.Loc.Last = item.Having.End()
	}
	return item
}

func (p *parser) parseGroupBySpec() ast.GroupBy {
	tok := p.peek()
	if tok.kind != tokIdent || isReserved(tok) {
		return p.parsePredicateGroup()
	}
	next := p.peekN(1)
	if next.is("(") {
		switch strings.ToLower(tok.text) {
		case "time":
			return p.parseTimeGroup()
		case "bucket", "buckets":
			return p.parseBucketGroup()
		case "random":
			return p.parseRandomGroup()
		case "quantiles":
			return p.parseQuantileGroup()
		case "dataset":
			p.next()
			p.expect("(")
			rparen := p.expect(")")
			return &ast.DatasetGroup{
				Kind: "DatasetGroup",
				Loc:  ast.NewLoc(tok.pos, rparen.end),
			}
		}
		return p.parsePredicateGroup()
	}
	switch {
	case next.is("["):
		return p.parseTopK()
	case next.is("in"), next.is("not") && p.peekN(2).is("in"):
		field := p.parseIdent("field")
		not := p.accept("not")
		p.expect("in")
		in := p.parseIn(field, not).(*ast.InExpr)
		return &ast.FieldGroup{
			Kind:  "FieldGroup",
			Field: field,
			In:    in.Elems,
			NotIn: not,
			Loc:   in.Loc,
		}
	case p.atGroupEnd(next):
		field := p.parseIdent("field")
		return &ast.FieldGroup{
			Kind:  "FieldGroup",
			Field: field,
			Loc:   field.Loc,
		}
	}
	return p.parsePredicateGroup()
}

func (p *parser) atGroupEnd(tok token) bool {
	if tok.kind == tokEOF || tok.is(",") || tok.is("with") {
		return true
	}
	return isClause(tok)
}

func (p *parser) parsePredicateGroup() ast.GroupBy {
	e := p.parseExpr()
	return &ast.PredicateGroup{
		Kind: "PredicateGroup",
		Expr: e,
		Loc:  ast.NewLoc(e.Pos(), e.End()),
	}
}

// parseTopK parses field[k], field[k BY m], field[BOTTOM k BY m], and
// the TOP spelling of the default order.
func (p *parser) parseTopK() ast.GroupBy {
	field := p.parseIdent("field")
	p.expect("[")
	g := &ast.FieldGroup{
		Kind:  "FieldGroup",
		Field: field,
	}
	if p.accept("bottom") {
		g.Bottom = true
	} else {
		p.accept("top")
	}
	if tok := p.peek(); tok.kind == tokInt || tok.is("-") {
		g.Limit = p.parseIntLiteral()
	}
	if p.accept("by") {
		g.By = p.parseExpr()
	}
	rbrack := p.expect("]")
	g.Loc = ast.NewLoc(field.Pos(), rbrack.end)
	return g
}

func (p *parser) parseTimeGroup() ast.GroupBy {
	start := p.next()
	p.expect("(")
	g := &ast.TimeGroup{Kind: "TimeGroup"}
	if !p.peek().is(")") {
		if !p.peek().is("relative") {
			g.Period = p.parsePeriodArg()
		} else {
			p.next()
			g.Relative = true
		}
		for p.accept(",") {
			tok := p.peek()
			switch {
			case tok.kind == tokString:
				p.next()
				g.Format = newPrimitive("string", tok.text, tok.pos, tok.end)
			case tok.is("relative"):
				p.next()
				g.Relative = true
			default:
				g.Field = p.parseIdent("format, field, or relative")
			}
		}
	}
	rparen := p.expect(")")
	g.Loc = ast.NewLoc(start.pos, rparen.end)
	return g
}

func (p *parser) parsePeriodArg() *ast.Period {
	tok := p.peek()
	if tok.kind == tokString {
		p.next()
	} else {
		tok = p.lex.raw()
	}
	period, err := parsePeriod(tok.text, p.dialect)
	if err != nil {
		p.failAt(tok.pos, tok.end, "%s", err)
	}
	period.Loc = ast.NewLoc(tok.pos, tok.end)
	return period
}

func (p *parser) parseBucketGroup() ast.GroupBy {
	start := p.next()
	p.expect("(")
	args := p.parseExprList()
	rparen := p.expect(")")
	if len(args) != 4 && len(args) != 5 {
		p.failAt(start.pos, rparen.end, "bucket() takes 4 or 5 arguments: bucket(metric, min, max, interval[, withDefault])")
	}
	g := &ast.BucketGroup{
		Kind:     "BucketGroup",
		Metric:   args[0],
		Min:      args[1],
		Max:      args[2],
		Interval: args[3],
		Loc:      ast.NewLoc(start.pos, rparen.end),
	}
	if len(args) == 5 {
		g.WithDefault = args[4]
	}
	return g
}

func (p *parser) parseRandomGroup() ast.GroupBy {
	start := p.next()
	p.expect("(")
	g := &ast.RandomGroup{
		Kind: "RandomGroup",
		Arg:  p.parseExpr(),
	}
	p.expect(",")
	g.Buckets = p.parseIntLiteral()
	if p.accept(",") {
		tok := p.peek()
		if tok.kind != tokString {
			p.unexpected(tok, "salt string")
		}
		p.next()
		g.Salt = newPrimitive("string", tok.text, tok.pos, tok.end)
	}
	rparen := p.expect(")")
	g.Loc = ast.NewLoc(start.pos, rparen.end)
	return g
}

func (p *parser) parseQuantileGroup() ast.GroupBy {
	start := p.next()
	p.expect("(")
	g := &ast.QuantileGroup{
		Kind:   "QuantileGroup",
		Metric: p.parseExpr(),
	}
	p.expect(",")
	g.N = p.parseIntLiteral()
	rparen := p.expect(")")
	g.Loc = ast.NewLoc(start.pos, rparen.end)
	return g
}
