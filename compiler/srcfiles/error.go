package srcfiles

import (
	"errors"
	"fmt"
	"strings"
)

// Exception identifiers carried by compile errors.  Clients match on these
// names so they must never change.
const (
	ParseError         = "ParseErrorException"
	UnknownDataset     = "UnknownDatasetException"
	UnknownField       = "UnknownFieldException"
	AmbiguousName      = "AmbiguousNameException"
	MetricAliasAsField = "MetricAliasAsFieldException"
	ValidationError    = "ValidationException"
	UnsupportedFeature = "UnsupportedFeatureException"
	GroupLimit         = "GroupLimitExceededException"
)

// ErrorList is a list of Errors.
type ErrorList []*Error

// Append appends an Error to e.
func (e *ErrorList) Append(list *List, kind, msg string, pos, end int) {
	*e = append(*e, &Error{kind, msg, pos, end, list})
}

// Bind takes errors that were created elsewhere (e.g., by the catalog) using
// the list's offsets and points the errors back at this list.
func (e ErrorList) Bind(list *List) {
	for i := range e {
		e[i].list = list
	}
}

// Error concatenates the errors in e with a newline between each.
func (e ErrorList) Error() string {
	var b strings.Builder
	for i, err := range e {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// Error is a compile error located in the query text.  Pos and End are
// offsets into the List text; End is -1 for a point error and Pos is -1
// when the error has no location.
type Error struct {
	Kind string
	Msg  string
	Pos  int
	End  int
	list *List
}

func NewError(kind, msg string, pos, end int) *Error {
	return &Error{Kind: kind, Msg: msg, Pos: pos, End: end}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != "" {
		b.WriteString(e.Kind)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.list == nil || e.Pos < 0 {
		return b.String()
	}
	file := e.list.FileOf(e.Pos)
	start := file.Position(e.Pos)
	end := file.Position(e.End)
	if file.Name != "" {
		fmt.Fprintf(&b, " in %s", file.Name)
	}
	line := file.LineOfPos(e.list.Text, e.Pos)
	fmt.Fprintf(&b, " at line %d, column %d:\n%s\n", start.Line, start.Column, line)
	if end.IsValid() && end.Pos > start.Pos {
		formatSpanError(&b, line, start, end)
	} else {
		formatPointError(&b, start)
	}
	return b.String()
}

// KindOf returns the exception identifier of the first positioned error
// in err or "" if there is none.
func KindOf(err error) string {
	var list ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return list[0].Kind
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func formatSpanError(b *strings.Builder, line string, start, end Position) {
	b.WriteString(strings.Repeat(" ", start.Column-1))
	n := end.Column - start.Column
	if start.Line != end.Line {
		n = len(line) - start.Column + 1
	}
	b.WriteString(strings.Repeat("~", max(n, 1)))
}

func formatPointError(b *strings.Builder, start Position) {
	col := start.Column - 1
	for k := range col {
		if k >= col-4 && k != col-1 {
			b.WriteByte('=')
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteString("^ ===")
}
