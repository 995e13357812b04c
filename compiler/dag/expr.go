package dag

// Document expressions are lowered for one dataset: fields carry the
// dataset's own field names and cross-dataset qualification is gone.
// Commands that touch documents hold one expression per dataset alias.

type (
	DocMetric interface {
		docMetricNode()
	}
	DocFilter interface {
		docFilterNode()
	}
	AggExpr interface {
		aggExprNode()
	}
	AggFilter interface {
		aggFilterNode()
	}
)

// Term is a field value.  Exactly one of Int and Str is meaningful.
type Term struct {
	Int   int64  `json:"int,omitempty"`
	Str   string `json:"str,omitempty"`
	IsInt bool   `json:"is_int,omitempty"`
}

// Document metrics yield one int64 per document.

type (
	Field struct {
		Kind string `json:"kind"`
		Name string `json:"name"`
	}
	Const struct {
		Kind  string `json:"kind"`
		Value int64  `json:"value"`
	}
	// DocBinary ops are + - * / % min max.  Division and modulus by
	// zero yield zero.
	DocBinary struct {
		Kind string    `json:"kind"`
		Op   string    `json:"op"`
		LHS  DocMetric `json:"lhs"`
		RHS  DocMetric `json:"rhs"`
	}
	DocUnary struct {
		Kind    string    `json:"kind"`
		Op      string    `json:"op"`
		Operand DocMetric `json:"operand"`
	}
	DocCond struct {
		Kind string    `json:"kind"`
		Cond DocFilter `json:"cond"`
		Then DocMetric `json:"then"`
		Else DocMetric `json:"else"`
	}
	// FilterMetric is 1 for documents matching Filter and 0 otherwise.
	FilterMetric struct {
		Kind   string    `json:"kind"`
		Filter DocFilter `json:"filter"`
	}
)

func (*Field) docMetricNode()        {}
func (*Const) docMetricNode()        {}
func (*DocBinary) docMetricNode()    {}
func (*DocUnary) docMetricNode()     {}
func (*DocCond) docMetricNode()      {}
func (*FilterMetric) docMetricNode() {}

// Document filters select documents.

type (
	Bool struct {
		Kind  string `json:"kind"`
		Value bool   `json:"value"`
	}
	TermIs struct {
		Kind  string `json:"kind"`
		Field string `json:"field"`
		Term  Term   `json:"term"`
	}
	TermIn struct {
		Kind  string `json:"kind"`
		Field string `json:"field"`
		Terms []Term `json:"terms"`
	}
	// Regexp matches the whole term text of a field.
	Regexp struct {
		Kind    string `json:"kind"`
		Field   string `json:"field"`
		Pattern string `json:"pattern"`
	}
	Compare struct {
		Kind string    `json:"kind"`
		Op   string    `json:"op"`
		LHS  DocMetric `json:"lhs"`
		RHS  DocMetric `json:"rhs"`
	}
	// Between matches Lower <= Metric < Upper.
	Between struct {
		Kind   string    `json:"kind"`
		Metric DocMetric `json:"metric"`
		Lower  int64     `json:"lower"`
		Upper  int64     `json:"upper"`
	}
	Not struct {
		Kind   string    `json:"kind"`
		Filter DocFilter `json:"filter"`
	}
	And struct {
		Kind  string      `json:"kind"`
		Exprs []DocFilter `json:"exprs"`
	}
	Or struct {
		Kind  string      `json:"kind"`
		Exprs []DocFilter `json:"exprs"`
	}
	// Sample keeps Numerator out of every Denominator documents by a keyed
	// hash of the value of Field or of Metric.
	Sample struct {
		Kind        string    `json:"kind"`
		Field       string    `json:"field,omitempty"`
		Metric      DocMetric `json:"metric,omitempty"`
		Numerator   int64     `json:"numerator"`
		Denominator int64     `json:"denominator"`
		Salt        string    `json:"salt"`
	}
)

func (*Bool) docFilterNode()    {}
func (*TermIs) docFilterNode()  {}
func (*TermIn) docFilterNode()  {}
func (*Regexp) docFilterNode()  {}
func (*Compare) docFilterNode() {}
func (*Between) docFilterNode() {}
func (*Not) docFilterNode()     {}
func (*And) docFilterNode()     {}
func (*Or) docFilterNode()      {}
func (*Sample) docFilterNode()  {}

// Aggregate expressions yield one float64 per group.

type (
	Number struct {
		Kind  string  `json:"kind"`
		Value float64 `json:"value"`
	}
	// DocStats sums a document metric over the documents of a group.
	// Datasets with no entry contribute nothing.  It appears only where
	// statistics are gathered per term; elsewhere the planner replaces it
	// with a Lookup of a GetGroupStats result.
	DocStats struct {
		Kind    string               `json:"kind"`
		Metrics map[string]DocMetric `json:"metrics"`
	}
	// Lookup reads the value Name computed at group depth Depth for the
	// ancestor of the current group at that depth.
	Lookup struct {
		Kind  string `json:"kind"`
		Name  string `json:"name"`
		Depth int    `json:"depth"`
	}
	// Column reads an output column already computed for the group.
	Column struct {
		Kind  string `json:"kind"`
		Index int    `json:"index"`
	}
	AggBinary struct {
		Kind string  `json:"kind"`
		Op   string  `json:"op"`
		LHS  AggExpr `json:"lhs"`
		RHS  AggExpr `json:"rhs"`
	}
	AggUnary struct {
		Kind    string  `json:"kind"`
		Op      string  `json:"op"`
		Operand AggExpr `json:"operand"`
	}
	// AggFunc is min or max over its arguments.
	AggFunc struct {
		Kind string    `json:"kind"`
		Name string    `json:"name"`
		Args []AggExpr `json:"args"`
	}
	AggCond struct {
		Kind string    `json:"kind"`
		Cond AggFilter `json:"cond"`
		Then AggExpr   `json:"then"`
		Else AggExpr   `json:"else"`
	}
	// Window sums Expr over the current group and the N-1 groups before
	// it among its siblings.
	Window struct {
		Kind string  `json:"kind"`
		N    int     `json:"n"`
		Expr AggExpr `json:"expr"`
	}
	// Lag reads Expr for the sibling N groups back or 0 if there is none.
	Lag struct {
		Kind string  `json:"kind"`
		N    int     `json:"n"`
		Expr AggExpr `json:"expr"`
	}
	// Running sums Expr over the current group and every sibling before it.
	Running struct {
		Kind string  `json:"kind"`
		Expr AggExpr `json:"expr"`
	}
)

func (*Number) aggExprNode()    {}
func (*DocStats) aggExprNode()  {}
func (*Lookup) aggExprNode()    {}
func (*Column) aggExprNode()    {}
func (*AggBinary) aggExprNode() {}
func (*AggUnary) aggExprNode()  {}
func (*AggFunc) aggExprNode()   {}
func (*AggCond) aggExprNode()   {}
func (*Window) aggExprNode()    {}
func (*Lag) aggExprNode()       {}
func (*Running) aggExprNode()   {}

type (
	AggCompare struct {
		Kind string  `json:"kind"`
		Op   string  `json:"op"`
		LHS  AggExpr `json:"lhs"`
		RHS  AggExpr `json:"rhs"`
	}
	AggNot struct {
		Kind   string    `json:"kind"`
		Filter AggFilter `json:"filter"`
	}
	AggAnd struct {
		Kind string    `json:"kind"`
		LHS  AggFilter `json:"lhs"`
		RHS  AggFilter `json:"rhs"`
	}
	AggOr struct {
		Kind string    `json:"kind"`
		LHS  AggFilter `json:"lhs"`
		RHS  AggFilter `json:"rhs"`
	}
	AggBool struct {
		Kind  string `json:"kind"`
		Value bool   `json:"value"`
	}
)

func (*AggCompare) aggFilterNode() {}
func (*AggNot) aggFilterNode()     {}
func (*AggAnd) aggFilterNode()     {}
func (*AggOr) aggFilterNode()      {}
func (*AggBool) aggFilterNode()    {}

func NewConst(v int64) *Const {
	return &Const{Kind: "Const", Value: v}
}

func NewNumber(v float64) *Number {
	return &Number{Kind: "Number", Value: v}
}

func NewBool(b bool) *Bool {
	return &Bool{Kind: "Bool", Value: b}
}

var (
	True  = NewBool(true)
	False = NewBool(false)
)

// IsTrue reports whether f is the constant filter true.
func IsTrue(f DocFilter) bool {
	b, ok := f.(*Bool)
	return ok && b.Value
}

// IsFalse reports whether f is the constant filter false.
func IsFalse(f DocFilter) bool {
	b, ok := f.(*Bool)
	return ok && !b.Value
}
