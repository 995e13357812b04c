package semantic

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/brimdata/sift/compiler/ast"
	"github.com/brimdata/sift/compiler/semantic/sem"
	"github.com/brimdata/sift/compiler/srcfiles"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
	secondsPerWeek   = 7 * secondsPerDay
)

var offsetRE = regexp.MustCompile(`^(?:UTC|GMT)?([+-])(\d{1,2})(?::?(\d{2}))?$`)

// ParseLocation accepts an IANA zone name, UTC, or a fixed offset
// such as -06:00.
func ParseLocation(s string) (*time.Location, error) {
	switch strings.ToUpper(s) {
	case "", "UTC", "Z", "GMT":
		return time.UTC, nil
	}
	if m := offsetRE.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[2])
		var minutes int
		if m[3] != "" {
			minutes, _ = strconv.Atoi(m[3])
		}
		if hours > 14 || minutes > 59 {
			return nil, fmt.Errorf("time zone offset %q out of range", s)
		}
		secs := hours*secondsPerHour + minutes*secondsPerMinute
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(s, secs), nil
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q", s)
	}
	return loc, nil
}

func (t *translator) location(tz *ast.Primitive) *time.Location {
	loc := t.opts.Location
	if loc == nil {
		loc = time.UTC
	}
	if tz == nil {
		return loc
	}
	l, err := ParseLocation(tz.Text)
	if err != nil {
		t.error(tz, srcfiles.ValidationError, err)
		return loc
	}
	return l
}

func (t *translator) today() time.Time {
	y, m, d := t.now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.loc)
}

func (t *translator) timeOf(e ast.TimeExpr) time.Time {
	switch e := e.(type) {
	case *ast.TimeWord:
		switch e.Word {
		case "today":
			return t.today()
		case "yesterday":
			return t.today().AddDate(0, 0, -1)
		case "tomorrow":
			return t.today().AddDate(0, 0, 1)
		default:
			return t.now.Truncate(time.Second)
		}
	case *ast.TimeAgo:
		ts := t.today()
		for _, term := range e.Period.Terms {
			n := int(term.Count)
			switch term.Unit {
			case "second":
				ts = ts.Add(-time.Duration(n) * time.Second)
			case "minute":
				ts = ts.Add(-time.Duration(n) * time.Minute)
			case "hour":
				ts = ts.Add(-time.Duration(n) * time.Hour)
			case "day":
				ts = ts.AddDate(0, 0, -n)
			case "week":
				ts = ts.AddDate(0, 0, -7*n)
			case "month":
				ts = ts.AddDate(0, -n, 0)
			case "quarter":
				ts = ts.AddDate(0, -3*n, 0)
			case "year":
				ts = ts.AddDate(-n, 0, 0)
			default:
				t.errorf(e, srcfiles.ValidationError, "%s is not a unit of time", term.Unit)
			}
		}
		return ts
	case *ast.TimeLiteral:
		ts, err := dateparse.ParseIn(e.Text, t.loc)
		if err != nil {
			t.errorf(e, srcfiles.ParseError, "Error parsing date/time: %s", e.Text)
			return t.today()
		}
		return ts.In(t.loc)
	case *ast.TimeEpoch:
		secs := e.Seconds
		if secs > math.MaxInt32 {
			return time.UnixMilli(secs).In(t.loc)
		}
		return time.Unix(secs, 0).In(t.loc)
	}
	panic(fmt.Sprintf("unknown time expression %T", e))
}

// maxInferredBuckets bounds the bucket count of time() with no period.
const maxInferredBuckets = 1000

func inferPeriod(start, end time.Time) int64 {
	secs := int64(end.Sub(start) / time.Second)
	for _, unit := range []int64{1, secondsPerMinute, secondsPerHour, secondsPerDay} {
		if secs/unit < maxInferredBuckets {
			return unit
		}
	}
	return secondsPerWeek
}

// semPeriod converts a time() period to seconds or calendar months.
// Bucket counts (Nb) divide the range rangeSecs into N equal buckets.
func (t *translator) semPeriod(p *ast.Period, rangeSecs int64) sem.Period {
	var period sem.Period
	var fixed bool
	for _, term := range p.Terms {
		switch term.Unit {
		case "second":
			period.Seconds += term.Count
		case "minute":
			period.Seconds += term.Count * secondsPerMinute
		case "hour":
			period.Seconds += term.Count * secondsPerHour
		case "day":
			period.Seconds += term.Count * secondsPerDay
		case "week":
			period.Seconds += term.Count * secondsPerWeek
		case "month":
			period.Months += int(term.Count)
		case "quarter":
			period.Months += 3 * int(term.Count)
		case "year":
			period.Months += 12 * int(term.Count)
		case "bucket":
			if len(p.Terms) != 1 {
				t.errorf(p, srcfiles.ValidationError, "A bucket count cannot be combined with other time units")
				return sem.Period{Seconds: 1}
			}
			if term.Count < 1 || term.Count > rangeSecs {
				t.errorf(p, srcfiles.ValidationError, "Bucket count must be between 1 and the number of seconds in the time range")
				return sem.Period{Seconds: 1}
			}
			period.Seconds = rangeSecs / term.Count
		}
		if term.Unit != "month" && term.Unit != "quarter" && term.Unit != "year" {
			fixed = true
		}
	}
	if fixed && period.Months != 0 {
		t.errorf(p, srcfiles.ValidationError, "Calendar units (months, quarters, years) cannot be combined with fixed units")
		return sem.Period{Seconds: 1}
	}
	if period.Seconds <= 0 && period.Months <= 0 {
		t.errorf(p, srcfiles.ValidationError, "Time period must be positive")
		return sem.Period{Seconds: 1}
	}
	return period
}

// FormatSeconds spells out a duration as, e.g., "1 days 2 hours".
func FormatSeconds(secs int64) string {
	var parts []string
	for _, u := range []struct {
		n    int64
		name string
	}{
		{secondsPerDay, "days"},
		{secondsPerHour, "hours"},
		{secondsPerMinute, "minutes"},
		{1, "seconds"},
	} {
		if secs >= u.n {
			parts = append(parts, fmt.Sprintf("%d %s", secs/u.n, u.name))
			secs %= u.n
		}
	}
	if len(parts) == 0 {
		return "0 seconds"
	}
	return strings.Join(parts, " ")
}

func (t *translator) checkTimeRange(n ast.Node, d *sem.Dataset, period int64) {
	secs := int64(d.End.Sub(d.Start) / time.Second)
	if rem := secs % period; rem != 0 {
		t.errorf(n, srcfiles.ValidationError,
			"You requested a time period (%s) for dataset %s not evenly divisible by the bucket size (%s). To correct, increase the time range by %s or reduce the time range by %s",
			FormatSeconds(secs), d.Alias, FormatSeconds(period), FormatSeconds(period-rem), FormatSeconds(rem))
	}
}
