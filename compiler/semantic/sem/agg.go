package sem

import "github.com/brimdata/sift/compiler/ast"

// AggMetric is a float-valued expression evaluated per group.
type AggMetric interface {
	aggMetric()
}

// AggFilter is a boolean expression evaluated per group.
type AggFilter interface {
	aggFilter()
}

type (
	Number struct {
		AST   ast.Node
		Value float64
	}
	// DocStats sums Metric over the documents of a group.
	DocStats struct {
		AST    ast.Node
		Metric DocMetric
	}
	AggBinary struct {
		AST ast.Node
		Op  string
		LHS AggMetric
		RHS AggMetric
	}
	// AggUnary is one of "-", "abs", "log", "floor", "ceil", or "sqrt".
	AggUnary struct {
		AST     ast.Node
		Op      string
		Operand AggMetric
	}
	// AggFunc is min or max over two or more arguments.
	AggFunc struct {
		AST  ast.Node
		Name string
		Args []AggMetric
	}
	AggCond struct {
		AST  ast.Node
		Cond AggFilter
		Then AggMetric
		Else AggMetric
	}
	// Parent evaluates Metric for the parent of the current group.
	Parent struct {
		AST    ast.Node
		Metric AggMetric
	}
	// Distinct counts the terms of Field present in a group, keeping only
	// terms whose per-term stats satisfy Having when it is non-nil.
	Distinct struct {
		AST    ast.Node
		Field  *Field
		Having AggFilter
	}
	// Window sums Metric over the current group and the N-1 siblings
	// preceding it.
	Window struct {
		AST    ast.Node
		N      int
		Metric AggMetric
	}
	// Lag is Metric of the sibling N groups before the current one.
	Lag struct {
		AST    ast.Node
		N      int
		Metric AggMetric
	}
	Running struct {
		AST    ast.Node
		Metric AggMetric
	}
	// SumOver explodes each group by Field, evaluates Metric per term,
	// and sums the terms satisfying Having back into the group.
	SumOver struct {
		AST    ast.Node
		Field  *Field
		Having AggFilter
		Metric AggMetric
	}
	Percentile struct {
		AST   ast.Node
		Field *Field
		P     float64
	}
	FieldMin struct {
		AST   ast.Node
		Field *Field
	}
	FieldMax struct {
		AST   ast.Node
		Field *Field
	}
	// Named refers to the SELECT item at Index by its alias.
	Named struct {
		AST   ast.Node
		Name  string
		Index int
	}
	BadAgg struct{}
)

func (*Number) aggMetric()     {}
func (*DocStats) aggMetric()   {}
func (*AggBinary) aggMetric()  {}
func (*AggUnary) aggMetric()   {}
func (*AggFunc) aggMetric()    {}
func (*AggCond) aggMetric()    {}
func (*Parent) aggMetric()     {}
func (*Distinct) aggMetric()   {}
func (*Window) aggMetric()     {}
func (*Lag) aggMetric()        {}
func (*Running) aggMetric()    {}
func (*SumOver) aggMetric()    {}
func (*Percentile) aggMetric() {}
func (*FieldMin) aggMetric()   {}
func (*FieldMax) aggMetric()   {}
func (*Named) aggMetric()      {}
func (*BadAgg) aggMetric()     {}

type (
	AggCompare struct {
		AST ast.Node
		Op  string
		LHS AggMetric
		RHS AggMetric
	}
	AggNot struct {
		AST    ast.Node
		Filter AggFilter
	}
	AggAnd struct {
		AST ast.Node
		LHS AggFilter
		RHS AggFilter
	}
	AggOr struct {
		AST ast.Node
		LHS AggFilter
		RHS AggFilter
	}
	AggLiteral struct {
		AST   ast.Node
		Value bool
	}
)

func (*AggCompare) aggFilter() {}
func (*AggNot) aggFilter()     {}
func (*AggAnd) aggFilter()     {}
func (*AggOr) aggFilter()      {}
func (*AggLiteral) aggFilter() {}
