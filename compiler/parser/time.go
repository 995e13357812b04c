package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brimdata/sift/compiler/ast"
)

// parseTime parses one endpoint of a FROM clause range.  Unquoted
// endpoints are read as raw words so that 2015-01-01 and 2015-01-01T00:00:00
// need no quoting.
func (p *parser) parseTime() ast.TimeExpr {
	tok := p.peek()
	if tok.kind == tokString {
		p.next()
	} else {
		tok = p.lex.raw()
		if tok.kind == tokEOF {
			p.unexpected(tok, "time range")
		}
	}
	t, err := parseTimeText(tok.text, p.dialect)
	if err != nil {
		p.failAt(tok.pos, tok.end, "%s", err)
	}
	loc := ast.NewLoc(tok.pos, tok.end)
	switch t := t.(type) {
	case *ast.TimeWord:
		t.Loc = loc
	case *ast.TimeAgo:
		t.Loc = loc
		t.Period.Loc = loc
	case *ast.TimeLiteral:
		t.Loc = loc
	case *ast.TimeEpoch:
		t.Loc = loc
	}
	return t
}

func parseTimeText(text string, dialect Dialect) (ast.TimeExpr, error) {
	s := strings.TrimSpace(text)
	lower := strings.ToLower(s)
	switch lower {
	case "today", "yesterday", "tomorrow", "now":
		return &ast.TimeWord{Kind: "TimeWord", Word: lower}, nil
	case "":
		return nil, fmt.Errorf("empty time value")
	}
	if isDigits(s) {
		if len(s) >= 9 {
			secs, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad epoch time %q", s)
			}
			return &ast.TimeEpoch{Kind: "TimeEpoch", Seconds: secs}, nil
		}
		return &ast.TimeLiteral{Kind: "TimeLiteral", Text: s}, nil
	}
	rel := strings.TrimSpace(strings.TrimSuffix(lower, "ago"))
	if rel != lower || startsWithPeriod(s) {
		// Relative times keep their case so M can mean month.
		src := strings.TrimSpace(s[:len(rel)])
		if period, err := parsePeriod(src, dialect); err == nil {
			return &ast.TimeAgo{Kind: "TimeAgo", Period: period}, nil
		} else if rel != lower {
			return nil, err
		}
	}
	return &ast.TimeLiteral{Kind: "TimeLiteral", Text: s}, nil
}

// startsWithPeriod distinguishes 10d or 1w2d from timestamps, which
// begin with digits followed by a separator.
func startsWithPeriod(s string) bool {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return i < len(s) && (isLetter(s[i]) || s[i] == ' ')
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

var unitWords = []struct {
	word string
	unit string
}{
	{"seconds", "second"},
	{"minutes", "minute"},
	{"hours", "hour"},
	{"days", "day"},
	{"weeks", "week"},
	{"months", "month"},
	{"quarters", "quarter"},
	{"years", "year"},
	{"buckets", "bucket"},
}

var unitAbbrevs = map[string]string{
	"s":    "second",
	"m":    "minute",
	"h":    "hour",
	"d":    "day",
	"w":    "week",
	"q":    "quarter",
	"y":    "year",
	"b":    "bucket",
	"hr":   "hour",
	"hrs":  "hour",
	"yr":   "year",
	"yrs":  "year",
	"sec":  "second",
	"secs": "second",
}

func normalizeUnit(word string, dialect Dialect) (string, bool) {
	if word == "M" {
		if dialect == Legacy {
			return "minute", true
		}
		return "month", true
	}
	lower := strings.ToLower(word)
	if unit, ok := unitAbbrevs[lower]; ok {
		return unit, true
	}
	if len(lower) < 2 {
		return "", false
	}
	for _, u := range unitWords {
		if strings.HasPrefix(u.word, lower) {
			return u.unit, true
		}
	}
	return "", false
}

// parsePeriod parses a sequence of optionally counted units such as 1h,
// 1w2d, "3 days", or "hour".
func parsePeriod(text string, dialect Dialect) (*ast.Period, error) {
	period := &ast.Period{Kind: "Period"}
	s := strings.TrimSpace(text)
	for len(s) > 0 {
		i := 0
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		count := int64(1)
		if i > 0 {
			n, err := strconv.ParseInt(s[:i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad count in time period %q", text)
			}
			count = n
		}
		s = strings.TrimLeft(s[i:], " ")
		j := 0
		for j < len(s) && isLetter(s[j]) {
			j++
		}
		if j == 0 {
			return nil, fmt.Errorf("bad time period %q", text)
		}
		unit, ok := normalizeUnit(s[:j], dialect)
		if !ok {
			return nil, fmt.Errorf("unknown time unit %q in %q", s[:j], text)
		}
		period.Terms = append(period.Terms, ast.PeriodTerm{Count: count, Unit: unit})
		s = strings.TrimLeft(s[j:], " ,")
	}
	if len(period.Terms) == 0 {
		return nil, fmt.Errorf("empty time period")
	}
	return period, nil
}
