package exec

import (
	"math"
	"strconv"
	"strings"
)

// FormatValue prints v with rounding decimals, or with at most seven
// decimals and no trailing zeros when rounding is negative.
func FormatValue(v float64, rounding int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	var s string
	switch {
	case rounding >= 0:
		s = strconv.FormatFloat(v, 'f', rounding, 64)
	case v == math.Trunc(v):
		s = strconv.FormatFloat(v, 'f', 0, 64)
	default:
		s = strconv.FormatFloat(v, 'f', 7, 64)
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if strings.HasPrefix(s, "-") && strings.Trim(s, "-0.") == "" {
		s = s[1:]
	}
	return s
}

// Strings renders each row as its keys followed by its formatted values.
func (r *Result) Strings() [][]string {
	out := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		line := make([]string, 0, len(row.Keys)+len(row.Values))
		line = append(line, row.Keys...)
		for _, v := range row.Values {
			line = append(line, FormatValue(v, r.Rounding))
		}
		out = append(out, line)
	}
	return out
}
