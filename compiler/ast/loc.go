// Package ast declares the types used to represent syntax trees for
// queries in both dialects.  The tree is untyped: whether an expression is
// a document filter, a document metric, or an aggregate is decided by the
// semantic pass from the context in which it appears.
package ast

type Node interface {
	Pos() int // Position of first character belonging to the node.
	End() int // Position of first character immediately after the node.
}

type Loc struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

func NewLoc(pos, end int) Loc {
	return Loc{pos, end}
}

func (l Loc) Pos() int { return l.First }
func (l Loc) End() int { return l.Last }
