package ast

type Expr interface {
	Node
	exprNode()
}

type (
	// ID is an identifier, optionally qualified by a dataset alias
	// as in A.oji.
	ID struct {
		Kind      string `json:"kind"`
		Qualifier string `json:"qualifier,omitempty"`
		Name      string `json:"name"`
		Loc       `json:"loc"`
	}
	// Primitive is a literal.  Type is one of "int", "float", "string",
	// or "bool" and Text holds the literal with quotes and escapes removed.
	Primitive struct {
		Kind string `json:"kind"`
		Type string `json:"type"`
		Text string `json:"text"`
		Loc  `json:"loc"`
	}
	UnaryExpr struct {
		Kind    string `json:"kind"`
		Op      string `json:"op"`
		Operand Expr   `json:"operand"`
		Loc     `json:"loc"`
	}
	// A BinaryExpr is any expression of the form "lhs op rhs" including
	// arithmetic (+, -, *, /, %), logical operators (and, or), and
	// comparisons (=, !=, <, <=, >, >=).
	BinaryExpr struct {
		Kind string `json:"kind"`
		Op   string `json:"op"`
		LHS  Expr   `json:"lhs"`
		RHS  Expr   `json:"rhs"`
		Loc  `json:"loc"`
	}
	// CallExpr is a function or aggregate call.  Having holds the inline
	// filter of distinct(f HAVING ...) and sum_over(f HAVING ..., m).
	CallExpr struct {
		Kind   string `json:"kind"`
		Name   string `json:"name"`
		Args   []Expr `json:"args"`
		Having Expr   `json:"having"`
		Loc    `json:"loc"`
	}
	// BetweenExpr tests Lower <= Expr < Upper, or Lower <= Expr <= Upper
	// when Inclusive is set.
	BetweenExpr struct {
		Kind      string `json:"kind"`
		Expr      Expr   `json:"expr"`
		Lower     Expr   `json:"lower"`
		Upper     Expr   `json:"upper"`
		Inclusive bool   `json:"inclusive"`
		Loc       `json:"loc"`
	}
	InExpr struct {
		Kind  string `json:"kind"`
		Expr  Expr   `json:"expr"`
		Not   bool   `json:"not"`
		Elems []Expr `json:"elems"`
		Loc   `json:"loc"`
	}
	CondExpr struct {
		Kind string `json:"kind"`
		Cond Expr   `json:"cond"`
		Then Expr   `json:"then"`
		Else Expr   `json:"else"`
		Loc  `json:"loc"`
	}
	RegexpMatch struct {
		Kind    string `json:"kind"`
		Expr    Expr   `json:"expr"`
		Not     bool   `json:"not"`
		Pattern string `json:"pattern"`
		Loc     `json:"loc"`
	}
)

func (*ID) exprNode()          {}
func (*Primitive) exprNode()   {}
func (*UnaryExpr) exprNode()   {}
func (*BinaryExpr) exprNode()  {}
func (*CallExpr) exprNode()    {}
func (*BetweenExpr) exprNode() {}
func (*InExpr) exprNode()      {}
func (*CondExpr) exprNode()    {}
func (*RegexpMatch) exprNode() {}

func (id *ID) String() string {
	if id.Qualifier != "" {
		return id.Qualifier + "." + id.Name
	}
	return id.Name
}
