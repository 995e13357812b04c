package dag

import (
	"encoding/json"
	"slices"
)

// Plan is a compiled query.  Commands run in order against one session
// per dataset.  Each regroup command explodes the current group space into
// a new level; Output then turns the final level into rows.
type Plan struct {
	Datasets []*Dataset `json:"datasets"`
	Commands Seq        `json:"commands"`
	Output   *Output    `json:"output"`
}

// Dataset is a dataset scope.  Start and End are Unix seconds of the
// half-open time range.
type Dataset struct {
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	TimeField string `json:"time_field"`
}

func (p *Plan) Dataset(alias string) *Dataset {
	for _, d := range p.Datasets {
		if d.Alias == alias {
			return d
		}
	}
	return nil
}

// Aliases returns the dataset aliases in FROM order.
func (p *Plan) Aliases() []string {
	var aliases []string
	for _, d := range p.Datasets {
		aliases = append(aliases, d.Alias)
	}
	return aliases
}

// Canonical returns the serialization of p that cache keys are computed
// from.  Map keys are sorted so equal plans serialize identically.  Output
// column names are left out: plans that differ only in select aliases
// produce the same rows and share a key.
func (p *Plan) Canonical() ([]byte, error) {
	keyed := *p
	if p.Output != nil {
		out := *p.Output
		out.Names = nil
		keyed.Output = &out
	}
	return json.Marshal(&keyed)
}

type Command interface {
	commandNode()
}

type Seq []Command

func (seq *Seq) Append(cmd Command) {
	*seq = append(*seq, cmd)
}

func (seq *Seq) Delete(from, to int) {
	*seq = slices.Delete(*seq, from, to)
}

// Document expressions in commands are keyed by dataset alias.

type (
	// Filter discards documents that do not match.  A dataset with no
	// entry is not filtered.
	Filter struct {
		Kind    string               `json:"kind"`
		Filters map[string]DocFilter `json:"filters"`
	}
	// FieldRegroup explodes each group by the terms of a field.  With a
	// Limit, only the top (or Bottom) Limit terms per group ranked by By,
	// or by document count when By is nil, are kept.  Terms restricts the
	// terms kept, or with Exclude, removes them.  WithDefault collects the
	// documents of terms not kept into one extra group per parent.
	FieldRegroup struct {
		Kind        string            `json:"kind"`
		Fields      map[string]string `json:"fields"`
		Limit       *int              `json:"limit,omitempty"`
		By          AggExpr           `json:"by,omitempty"`
		Bottom      bool              `json:"bottom,omitempty"`
		Terms       []Term            `json:"terms,omitempty"`
		Exclude     bool              `json:"exclude,omitempty"`
		WithDefault bool              `json:"with_default,omitempty"`
	}
	// TimeRegroup explodes each group into Buckets contiguous time
	// buckets.  Bucket k of a dataset starts at its origin plus k periods,
	// where a period is Seconds or, when Seconds is zero, Months calendar
	// months in Location.  Labels are computed from LabelOrigin.
	TimeRegroup struct {
		Kind        string            `json:"kind"`
		Fields      map[string]string `json:"fields"`
		Origins     map[string]int64  `json:"origins"`
		LabelOrigin int64             `json:"label_origin"`
		Seconds     int64             `json:"seconds,omitempty"`
		Months      int               `json:"months,omitempty"`
		Buckets     int               `json:"buckets"`
		Location    string            `json:"location"`
		Format      string            `json:"format,omitempty"`
	}
	// MetricRegroup explodes each group into (Max-Min)/Interval buckets
	// followed by buckets for values below Min and at or above Max, or by
	// one DEFAULT bucket when WithDefault is set.
	MetricRegroup struct {
		Kind        string               `json:"kind"`
		Metrics     map[string]DocMetric `json:"metrics"`
		Min         int64                `json:"min"`
		Max         int64                `json:"max"`
		Interval    int64                `json:"interval"`
		WithDefault bool                 `json:"with_default,omitempty"`
	}
	// RandomRegroup explodes each group into Buckets buckets by a keyed
	// hash of Salt and the value of a field or a metric.
	RandomRegroup struct {
		Kind    string               `json:"kind"`
		Fields  map[string]string    `json:"fields,omitempty"`
		Metrics map[string]DocMetric `json:"metrics,omitempty"`
		Buckets int                  `json:"buckets"`
		Salt    string               `json:"salt"`
	}
	// QuantileRegroup explodes each group into N buckets holding equal
	// shares of its documents ordered by the value of an int field.  The
	// cut points come from a first pass over the field's terms.
	QuantileRegroup struct {
		Kind   string            `json:"kind"`
		Fields map[string]string `json:"fields"`
		N      int               `json:"n"`
	}
	// ExplodeGroups explodes each group into one group per bucket.  A
	// document goes to the first bucket whose filter for its dataset
	// matches.  A dataset with no entry in a bucket never matches it.
	ExplodeGroups struct {
		Kind    string    `json:"kind"`
		Buckets []*Bucket `json:"buckets"`
	}
	// GetGroupStats sums document metrics over the groups of the current
	// level and retains the results under their names.
	GetGroupStats struct {
		Kind  string  `json:"kind"`
		Stats []*Stat `json:"stats"`
	}
	// FtgsIterate walks the terms of a field per group and retains one
	// value per group: the number of distinct terms, a percentile, or the
	// smallest or largest term.
	FtgsIterate struct {
		Kind       string            `json:"kind"`
		Name       string            `json:"name"`
		Op         string            `json:"op"`
		Fields     map[string]string `json:"fields"`
		Percentile float64           `json:"percentile,omitempty"`
	}
	// RegroupIntoParent evaluates Expr for each group of the current
	// level, sums the results of the groups passing Having into their
	// parents under Name, and returns the documents to the parent level.
	RegroupIntoParent struct {
		Kind   string    `json:"kind"`
		Name   string    `json:"name"`
		Expr   AggExpr   `json:"expr"`
		Having AggFilter `json:"having,omitempty"`
	}
	// ComputeGroups evaluates Expr for each group of the current level
	// and retains the results under Name.
	ComputeGroups struct {
		Kind string  `json:"kind"`
		Name string  `json:"name"`
		Expr AggExpr `json:"expr"`
	}
	// FilterGroups discards the groups of the current level that do not
	// satisfy Filter.
	FilterGroups struct {
		Kind   string    `json:"kind"`
		Filter AggFilter `json:"filter"`
	}
)

func (*Filter) commandNode()            {}
func (*FieldRegroup) commandNode()      {}
func (*TimeRegroup) commandNode()       {}
func (*MetricRegroup) commandNode()     {}
func (*RandomRegroup) commandNode()     {}
func (*QuantileRegroup) commandNode()   {}
func (*ExplodeGroups) commandNode()     {}
func (*GetGroupStats) commandNode()     {}
func (*FtgsIterate) commandNode()       {}
func (*RegroupIntoParent) commandNode() {}
func (*ComputeGroups) commandNode()     {}
func (*FilterGroups) commandNode()      {}

type Bucket struct {
	Label   string               `json:"label"`
	Filters map[string]DocFilter `json:"filters"`
}

type Stat struct {
	Name    string               `json:"name"`
	Metrics map[string]DocMetric `json:"metrics"`
}

// Output computes one row per group of the final level.  Column reads
// refer to earlier entries of Selects.  Rows failing Having are dropped
// and at most Limit rows are kept when Limit is positive.  Rounding is
// the number of decimals printed or -1 for up to seven decimals without
// trailing zeros.
type Output struct {
	Names    []string  `json:"names"`
	Selects  []AggExpr `json:"selects"`
	Having   AggFilter `json:"having,omitempty"`
	Limit    int       `json:"limit,omitempty"`
	Rounding int       `json:"rounding"`
}

// IsRegroup reports whether cmd creates a new level of groups.
func IsRegroup(cmd Command) bool {
	switch cmd.(type) {
	case *FieldRegroup, *TimeRegroup, *MetricRegroup, *RandomRegroup, *QuantileRegroup, *ExplodeGroups:
		return true
	}
	return false
}
