// Package sem holds the typed tree produced by semantic analysis.  Every
// name has been resolved against the catalog, every expression has been
// classified as a document filter, a document metric, or an aggregate, and
// each node keeps a pointer to the AST it came from for error reporting.
package sem

import (
	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/compiler/ast"
)

// DocMetric is an integer-valued expression evaluated per document.
type DocMetric interface {
	docMetric()
}

// DocFilter is a boolean expression evaluated per document.
type DocFilter interface {
	docFilter()
}

type (
	// Field is a resolved field reference.  Names maps each dataset alias
	// in scope to the actual field name in that dataset.  Qualifier is set
	// when the reference was written as alias.field.
	Field struct {
		AST       ast.Node
		Name      string
		Type      catalog.FieldType
		Names     map[string]string
		Qualifier string
	}
	Constant struct {
		AST   ast.Node
		Value int64
	}
	// DocBinary is an arithmetic operator (+, -, *, /, %) or one of the
	// two-argument functions min and max.
	DocBinary struct {
		AST ast.Node
		Op  string
		LHS DocMetric
		RHS DocMetric
	}
	// DocUnary is negation ("-") or absolute value ("abs").
	DocUnary struct {
		AST     ast.Node
		Op      string
		Operand DocMetric
	}
	DocCond struct {
		AST  ast.Node
		Cond DocFilter
		Then DocMetric
		Else DocMetric
	}
	// FilterMetric is 1 for documents matching Filter and 0 otherwise.
	FilterMetric struct {
		AST    ast.Node
		Filter DocFilter
	}
	// QualifiedMetric contributes Metric for documents of Dataset and
	// zero for documents of every other dataset.
	QualifiedMetric struct {
		AST     ast.Node
		Dataset string
		Metric  DocMetric
	}
	// PerDataset is a dimension expanded separately in each dataset.
	PerDataset struct {
		AST     ast.Node
		Name    string
		Metrics map[string]DocMetric
	}
	BadMetric struct{}
)

func (*Field) docMetric()           {}
func (*Constant) docMetric()        {}
func (*DocBinary) docMetric()       {}
func (*DocUnary) docMetric()        {}
func (*DocCond) docMetric()         {}
func (*FilterMetric) docMetric()    {}
func (*QualifiedMetric) docMetric() {}
func (*PerDataset) docMetric()      {}
func (*BadMetric) docMetric()       {}

// Term is a field value: an integer for int fields, a string otherwise.
type Term struct {
	Int   int64
	Str   string
	IsInt bool
}

type (
	Literal struct {
		AST   ast.Node
		Value bool
	}
	TermEquals struct {
		AST   ast.Node
		Field *Field
		Term  Term
	}
	TermIn struct {
		AST   ast.Node
		Field *Field
		Terms []Term
	}
	Regexp struct {
		AST     ast.Node
		Field   *Field
		Pattern string
	}
	// Compare applies one of =, !=, <, <=, >, >= to two document metrics.
	Compare struct {
		AST ast.Node
		Op  string
		LHS DocMetric
		RHS DocMetric
	}
	// Between matches Lower <= Metric < Upper.
	Between struct {
		AST    ast.Node
		Metric DocMetric
		Lower  int64
		Upper  int64
	}
	Not struct {
		AST    ast.Node
		Filter DocFilter
	}
	And struct {
		AST ast.Node
		LHS DocFilter
		RHS DocFilter
	}
	Or struct {
		AST ast.Node
		LHS DocFilter
		RHS DocFilter
	}
	// Sample keeps Numerator out of every Denominator documents by hashing
	// the value of Field (or Metric when Field is nil) with Salt.
	Sample struct {
		AST         ast.Node
		Field       *Field
		Metric      DocMetric
		Numerator   int64
		Denominator int64
		Salt        string
	}
	// QualifiedFilter applies Filter to the documents of Dataset and
	// accepts every document of the other datasets.
	QualifiedFilter struct {
		AST     ast.Node
		Dataset string
		Filter  DocFilter
	}
	BadFilter struct{}
)

func (*Literal) docFilter()         {}
func (*TermEquals) docFilter()      {}
func (*TermIn) docFilter()          {}
func (*Regexp) docFilter()          {}
func (*Compare) docFilter()         {}
func (*Between) docFilter()         {}
func (*Not) docFilter()             {}
func (*And) docFilter()             {}
func (*Or) docFilter()              {}
func (*Sample) docFilter()          {}
func (*QualifiedFilter) docFilter() {}
func (*BadFilter) docFilter()       {}
