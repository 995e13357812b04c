package ast

// TimeExpr is a FROM clause range endpoint.
type TimeExpr interface {
	Node
	timeNode()
}

type (
	// TimeWord is one of today, yesterday, tomorrow, or now.
	TimeWord struct {
		Kind string `json:"kind"`
		Word string `json:"word"`
		Loc  `json:"loc"`
	}
	// TimeAgo is a period before now such as 10d or "3 days ago".
	TimeAgo struct {
		Kind   string  `json:"kind"`
		Period *Period `json:"period"`
		Loc    `json:"loc"`
	}
	// TimeLiteral is an explicit timestamp such as 2015-01-01 or
	// "2015-01-01 12:00:00", interpreted in the query time zone.
	TimeLiteral struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
		Loc  `json:"loc"`
	}
	TimeEpoch struct {
		Kind    string `json:"kind"`
		Seconds int64  `json:"seconds"`
		Loc     `json:"loc"`
	}
)

func (*TimeWord) timeNode()    {}
func (*TimeAgo) timeNode()     {}
func (*TimeLiteral) timeNode() {}
func (*TimeEpoch) timeNode()   {}

// Period is a sum of unit counts, e.g., 1w2d.  Units are normalized by the
// parser to second, minute, hour, day, week, month, quarter, year, or
// bucket so that dialect spelling differences do not survive parsing.
type Period struct {
	Kind  string       `json:"kind"`
	Terms []PeriodTerm `json:"terms"`
	Loc   `json:"loc"`
}

type PeriodTerm struct {
	Count int64  `json:"count"`
	Unit  string `json:"unit"`
}
