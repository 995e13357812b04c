package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// index resolves names with the two-tier rule: an exact match wins,
// otherwise a unique case-insensitive match, otherwise the name is
// unknown or ambiguous.
type index struct {
	names  []string
	exact  map[string]int
	folded map[string][]int
}

func newIndex(names []string) index {
	ix := index{
		names:  names,
		exact:  make(map[string]int, len(names)),
		folded: make(map[string][]int, len(names)),
	}
	for i, name := range names {
		ix.exact[name] = i
		key := fold(name)
		ix.folded[key] = append(ix.folded[key], i)
	}
	return ix
}

// fold returns the case-folded, NFC-normalized form of s.  A Caser
// is stateful so one is made per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// lookup returns the position of name, or -1 along with the candidates
// when the case-insensitive match is ambiguous.
func (ix index) lookup(name string) (int, []string) {
	if i, ok := ix.exact[name]; ok {
		return i, nil
	}
	hits := ix.folded[fold(name)]
	switch len(hits) {
	case 0:
		return -1, nil
	case 1:
		return hits[0], nil
	}
	var candidates []string
	for _, i := range hits {
		candidates = append(candidates, ix.names[i])
	}
	sort.Strings(candidates)
	return -1, candidates
}

// suggest returns the closest known name to name or "" if none is close.
func (ix index) suggest(name string) string {
	target := fold(name)
	best, bestDist := "", -1
	for _, candidate := range ix.names {
		d := levenshtein.ComputeDistance(target, fold(candidate))
		if bestDist < 0 || d < bestDist || d == bestDist && candidate < best {
			best, bestDist = candidate, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(target)/3) {
		return ""
	}
	return best
}

// UnknownError reports a dataset or field name that matched nothing.
type UnknownError struct {
	What       string
	Name       string
	Dataset    string
	Suggestion string
}

func (e *UnknownError) Kind() string {
	if e.What == "dataset" {
		return "UnknownDatasetException"
	}
	return "UnknownFieldException"
}

func (e *UnknownError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unknown %s %q", e.What, e.Name)
	if e.Dataset != "" {
		fmt.Fprintf(&b, " in dataset %s", e.Dataset)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", e.Suggestion)
	}
	return b.String()
}

// AmbiguousError reports a name with no exact match and more than one
// case-insensitive match.
type AmbiguousError struct {
	What       string
	Name       string
	Candidates []string
}

func (e *AmbiguousError) Kind() string {
	return "AmbiguousNameException"
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("Ambiguous %s %q matches %s", e.What, e.Name, strings.Join(e.Candidates, ", "))
}
