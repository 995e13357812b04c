package parser

import (
	"github.com/brimdata/sift/compiler/ast"
)

func newPrimitive(typ, text string, pos, end int) *ast.Primitive {
	return &ast.Primitive{
		Kind: "Primitive",
		Type: typ,
		Text: text,
		Loc:  ast.NewLoc(pos, end),
	}
}

func newBinaryExpr(op string, lhs, rhs ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{
		Kind: "BinaryExpr",
		Op:   op,
		LHS:  lhs,
		RHS:  rhs,
		Loc:  ast.NewLoc(lhs.Pos(), rhs.End()),
	}
}
