package ast

// Query is the root of a parsed query.
type Query struct {
	Kind     string         `json:"kind"`
	Dialect  string         `json:"dialect"`
	Datasets []*Dataset     `json:"datasets"`
	Where    Expr           `json:"where"`
	GroupBy  []*GroupByItem `json:"group_by"`
	Select   []*SelectItem  `json:"select"`
	Having   Expr           `json:"having"`
	Limit    *Primitive     `json:"limit"`
	Rounding *Primitive     `json:"rounding"`
	Timezone *Primitive     `json:"timezone"`
	Loc      `json:"loc"`
}

// Dataset is one entry of the FROM clause.  From and To are nil when
// the range is inherited from the preceding entry.
type Dataset struct {
	Kind  string   `json:"kind"`
	Name  *ID      `json:"name"`
	From  TimeExpr `json:"from"`
	To    TimeExpr `json:"to"`
	Alias *ID      `json:"alias"`
	Loc   `json:"loc"`
}

type SelectItem struct {
	Kind string `json:"kind"`
	Expr Expr   `json:"expr"`
	As   *ID    `json:"as"`
	Loc  `json:"loc"`
}

// GroupByItem wraps one GROUP BY element with the modifiers that may
// follow any element.
type GroupByItem struct {
	Kind        string  `json:"kind"`
	Spec        GroupBy `json:"spec"`
	WithDefault bool    `json:"with_default"`
	Having      Expr    `json:"having"`
	Loc         `json:"loc"`
}

type GroupBy interface {
	Node
	groupByNode()
}

type (
	// FieldGroup is field, field[k], field[k BY m], field[BOTTOM k ...],
	// field IN (...), or field NOT IN (...).
	FieldGroup struct {
		Kind   string     `json:"kind"`
		Field  *ID        `json:"field"`
		Limit  *Primitive `json:"limit"`
		By     Expr       `json:"by"`
		Bottom bool       `json:"bottom"`
		In     []Expr     `json:"in"`
		NotIn  bool       `json:"not_in"`
		Loc    `json:"loc"`
	}
	// TimeGroup is time([period][, format][, field][, relative]).  A nil
	// Period means the bucket size is inferred from the time range.
	TimeGroup struct {
		Kind     string     `json:"kind"`
		Period   *Period    `json:"period"`
		Format   *Primitive `json:"format"`
		Field    *ID        `json:"field"`
		Relative bool       `json:"relative"`
		Loc      `json:"loc"`
	}
	BucketGroup struct {
		Kind        string `json:"kind"`
		Metric      Expr   `json:"metric"`
		Min         Expr   `json:"min"`
		Max         Expr   `json:"max"`
		Interval    Expr   `json:"interval"`
		WithDefault Expr   `json:"with_default"`
		Loc         `json:"loc"`
	}
	RandomGroup struct {
		Kind    string     `json:"kind"`
		Arg     Expr       `json:"arg"`
		Buckets *Primitive `json:"buckets"`
		Salt    *Primitive `json:"salt"`
		Loc     `json:"loc"`
	}
	QuantileGroup struct {
		Kind   string     `json:"kind"`
		Metric Expr       `json:"metric"`
		N      *Primitive `json:"n"`
		Loc    `json:"loc"`
	}
	PredicateGroup struct {
		Kind string `json:"kind"`
		Expr Expr   `json:"expr"`
		Loc  `json:"loc"`
	}
	DatasetGroup struct {
		Kind string `json:"kind"`
		Loc  `json:"loc"`
	}
)

func (*FieldGroup) groupByNode()     {}
func (*TimeGroup) groupByNode()      {}
func (*BucketGroup) groupByNode()    {}
func (*RandomGroup) groupByNode()    {}
func (*QuantileGroup) groupByNode()  {}
func (*PredicateGroup) groupByNode() {}
func (*DatasetGroup) groupByNode()   {}
