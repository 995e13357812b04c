package srcfiles

import (
	"sort"
	"strings"
)

// List is the source text of a query together with any named fragments
// (e.g., dimension metric definitions) that were compiled along with it.
// Positions in AST nodes are offsets into Text.
type List struct {
	Text   string
	Files  []File
	errors ErrorList
}

// NewList returns a List holding the unnamed query text.
func NewList(query string) *List {
	return &List{Text: query, Files: []File{newFile("", 0, query)}}
}

// Add appends a named fragment to l and returns the offset at which
// the fragment's text begins.
func (l *List) Add(name, text string) int {
	var b strings.Builder
	b.WriteString(l.Text)
	b.WriteByte('\n')
	start := b.Len()
	b.WriteString(text)
	l.Text = b.String()
	l.Files = append(l.Files, newFile(name, start, text))
	return start
}

func (l *List) AddError(kind, msg string, pos, end int) {
	l.errors.Append(l, kind, msg, pos, end)
}

// Error returns the errors accumulated in l or nil if there are none.
func (l *List) Error() error {
	if len(l.errors) == 0 {
		return nil
	}
	return l.errors
}

func (l *List) FileOf(pos int) File {
	i := sort.Search(len(l.Files), func(i int) bool { return l.Files[i].start > pos }) - 1
	return l.Files[max(i, 0)]
}
