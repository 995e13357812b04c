package sem

import (
	"time"

	"github.com/brimdata/sift/compiler/ast"
)

type Query struct {
	AST      *ast.Query
	Datasets []*Dataset
	Filter   DocFilter
	GroupBys []*GroupByItem
	Selects  []*Select
	Having   AggFilter
	Limit    int
	// Rounding is the number of decimals printed or -1 for
	// shortest representation.
	Rounding int
	Location *time.Location
	Warnings []string
}

// Dataset is one resolved FROM entry.  Name is the catalog name and Alias
// is how the query refers to it (the name itself when no AS was given).
type Dataset struct {
	AST        *ast.Dataset
	Name       string
	Alias      string
	Start      time.Time
	End        time.Time
	TimeField  string
	Deprecated bool
}

type Select struct {
	AST    ast.Node
	Name   string
	Metric AggMetric
}

type GroupByItem struct {
	AST         *ast.GroupByItem
	Group       GroupBy
	WithDefault bool
	Having      AggFilter
}

type GroupBy interface {
	groupBy()
}

type (
	// FieldGroup explodes by the terms of Field.  Limit is nil when
	// every term is kept.  Terms restricts the explosion to the listed
	// terms, or to every other term when Exclude is set.
	FieldGroup struct {
		AST     ast.Node
		Field   *Field
		Limit   *int
		By      AggMetric
		Bottom  bool
		Terms   []Term
		Exclude bool
	}
	TimeGroup struct {
		AST      ast.Node
		Field    *Field
		Period   Period
		Format   string
		Relative bool
	}
	BucketGroup struct {
		AST      ast.Node
		Metric   DocMetric
		Min      int64
		Max      int64
		Interval int64
	}
	RandomGroup struct {
		AST     ast.Node
		Field   *Field
		Metric  DocMetric
		Buckets int
		Salt    string
	}
	QuantileGroup struct {
		AST   ast.Node
		Field *Field
		N     int
	}
	PredicateGroup struct {
		AST    ast.Node
		Filter DocFilter
	}
	DatasetGroup struct {
		AST ast.Node
	}
)

func (*FieldGroup) groupBy()     {}
func (*TimeGroup) groupBy()      {}
func (*BucketGroup) groupBy()    {}
func (*RandomGroup) groupBy()    {}
func (*QuantileGroup) groupBy()  {}
func (*PredicateGroup) groupBy() {}
func (*DatasetGroup) groupBy()   {}

// Period is a time bucket size: a fixed number of seconds or a number of
// calendar months.  Exactly one of the two is non-zero after analysis.
type Period struct {
	Seconds int64
	Months  int
}
