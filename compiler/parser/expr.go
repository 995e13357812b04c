package parser

import (
	"strings"

	"github.com/brimdata/sift/compiler/ast"
)

func (p *parser) parseExpr() ast.Expr {
	return p.parseOr()
}

func (p *parser) parseOr() ast.Expr {
	lhs := p.parseAnd()
	for p.accept("or") {
		lhs = newBinaryExpr("or", lhs, p.parseAnd())
	}
	return lhs
}

func (p *parser) parseAnd() ast.Expr {
	lhs := p.parseNot()
	for p.accept("and") {
		lhs = newBinaryExpr("and", lhs, p.parseNot())
	}
	return lhs
}

func (p *parser) parseNot() ast.Expr {
	tok := p.peek()
	if !tok.is("not") && !tok.is("!") {
		return p.parseComparison()
	}
	if p.dialect == Legacy {
		p.failAt(tok.pos, tok.end, "unary NOT is not supported in the legacy dialect (use != or !=~)")
	}
	p.next()
	operand := p.parseNot()
	return &ast.UnaryExpr{
		Kind:    "UnaryExpr",
		Op:      "!",
		Operand: operand,
		Loc:     ast.NewLoc(tok.pos, operand.End()),
	}
}

var comparisons = map[string]string{
	"=":  "=",
	"==": "=",
	"!=": "!=",
	"<>": "!=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

func (p *parser) parseComparison() ast.Expr {
	lhs := p.parseAdditive()
	tok := p.peek()
	if tok.kind == tokOp {
		if op, ok := comparisons[tok.text]; ok {
			p.next()
			return newBinaryExpr(op, lhs, p.parseAdditive())
		}
		if tok.text == "=~" || tok.text == "!=~" {
			p.next()
			return p.parseRegexp(lhs, tok.text == "!=~")
		}
		return lhs
	}
	switch {
	case tok.is("in"):
		p.next()
		return p.parseIn(lhs, false)
	case tok.is("not") && p.peekN(1).is("in"):
		p.next()
		p.next()
		return p.parseIn(lhs, true)
	case tok.is("between"):
		p.next()
		lower := p.parseAdditive()
		p.expect("and")
		upper := p.parseAdditive()
		return p.newBetween(lhs, lower, upper, tok.pos)
	}
	return lhs
}

func (p *parser) parseRegexp(lhs ast.Expr, not bool) ast.Expr {
	tok := p.peek()
	if tok.kind == tokString {
		p.next()
	} else {
		if p.dialect != Legacy {
			p.unexpected(tok, "quoted regular expression")
		}
		tok = p.lex.raw()
		if tok.kind == tokEOF {
			p.unexpected(tok, "regular expression")
		}
	}
	return &ast.RegexpMatch{
		Kind:    "RegexpMatch",
		Expr:    lhs,
		Not:     not,
		Pattern: tok.text,
		Loc:     ast.NewLoc(lhs.Pos(), tok.end),
	}
}

func (p *parser) parseIn(lhs ast.Expr, not bool) ast.Expr {
	p.expect("(")
	var elems []ast.Expr
	if !p.peek().is(")") {
		elems = p.parseExprList()
	}
	rparen := p.expect(")")
	return &ast.InExpr{
		Kind:  "InExpr",
		Expr:  lhs,
		Not:   not,
		Elems: elems,
		Loc:   ast.NewLoc(lhs.Pos(), rparen.end),
	}
}

func (p *parser) newBetween(e, lower, upper ast.Expr, pos int) ast.Expr {
	inclusive := p.dialect == Legacy
	if inclusive {
		p.warn(pos, "BETWEEN includes its upper bound in the legacy dialect")
	}
	return &ast.BetweenExpr{
		Kind:      "BetweenExpr",
		Expr:      e,
		Lower:     lower,
		Upper:     upper,
		Inclusive: inclusive,
		Loc:       ast.NewLoc(e.Pos(), upper.End()),
	}
}

func (p *parser) parseExprList() []ast.Expr {
	list := []ast.Expr{p.parseExpr()}
	for p.accept(",") {
		list = append(list, p.parseExpr())
	}
	return list
}

func (p *parser) parseAdditive() ast.Expr {
	lhs := p.parseMultiplicative()
	for {
		tok := p.peek()
		if !tok.is("+") && !tok.is("-") {
			return lhs
		}
		p.next()
		lhs = newBinaryExpr(tok.text, lhs, p.parseMultiplicative())
	}
}

func (p *parser) parseMultiplicative() ast.Expr {
	lhs := p.parseUnary()
	for {
		tok := p.peek()
		if !tok.is("*") && !tok.is("/") && !tok.is("%") {
			return lhs
		}
		p.next()
		lhs = newBinaryExpr(tok.text, lhs, p.parseUnary())
	}
}

func (p *parser) parseUnary() ast.Expr {
	tok := p.peek()
	if !tok.is("-") {
		return p.parsePrimary()
	}
	p.next()
	operand := p.parseUnary()
	return &ast.UnaryExpr{
		Kind:    "UnaryExpr",
		Op:      "-",
		Operand: operand,
		Loc:     ast.NewLoc(tok.pos, operand.End()),
	}
}

func (p *parser) parsePrimary() ast.Expr {
	tok := p.peek()
	switch tok.kind {
	case tokInt:
		p.next()
		return newPrimitive("int", tok.text, tok.pos, tok.end)
	case tokFloat:
		p.next()
		return newPrimitive("float", tok.text, tok.pos, tok.end)
	case tokString:
		p.next()
		return newPrimitive("string", tok.text, tok.pos, tok.end)
	case tokOp:
		if tok.text == "(" {
			p.next()
			e := p.parseExpr()
			p.expect(")")
			return e
		}
	case tokIdent:
		switch strings.ToLower(tok.text) {
		case "true", "false":
			p.next()
			return newPrimitive("bool", strings.ToLower(tok.text), tok.pos, tok.end)
		case "if":
			return p.parseCond()
		}
		call := p.peekN(1).is("(")
		if call && tok.is("between") {
			return p.parseCall()
		}
		if isReserved(tok) {
			break
		}
		if call {
			return p.parseCall()
		}
		id := p.parseIdent("identifier")
		if p.peek().is(".") {
			p.next()
			name := p.parseIdent("field name")
			id.Qualifier = id.Name
			id.Name = name.Name
			id.Loc.Last = name.End()
		}
		return id
	}
	p.unexpected(tok, "expression")
	return nil
}

func (p *parser) parseCond() ast.Expr {
	start := p.expect("if")
	cond := p.parseExpr()
	p.expect("then")
	then := p.parseExpr()
	p.expect("else")
	els := p.parseExpr()
	return &ast.CondExpr{
		Kind: "CondExpr",
		Cond: cond,
		Then: then,
		Else: els,
		Loc:  ast.NewLoc(start.pos, els.End()),
	}
}

func (p *parser) parseCall() ast.Expr {
	name := p.next()
	p.expect("(")
	call := &ast.CallExpr{
		Kind: "CallExpr",
		Name: strings.ToLower(name.text),
	}
	if !p.peek().is(")") {
		call.Args = append(call.Args, p.parseExpr())
		if p.accept("having") {
			call.Having = p.parseExpr()
		}
		for p.accept(",") {
			call.Args = append(call.Args, p.parseExpr())
		}
	}
	rparen := p.expect(")")
	call.Loc = ast.NewLoc(name.pos, rparen.end)
	if call.Name == "between" && len(call.Args) == 3 && call.Having == nil {
		between := p.newBetween(call.Args[0], call.Args[1], call.Args[2], name.pos)
		between.(*ast.BetweenExpr).Loc = call.Loc
		return between
	}
	return call
}
