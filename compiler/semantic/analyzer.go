package semantic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/compiler/ast"
	"github.com/brimdata/sift/compiler/parser"
	"github.com/brimdata/sift/compiler/semantic/sem"
	"github.com/brimdata/sift/compiler/srcfiles"
)

// MaxLimit bounds LIMIT and top-K limits.
const MaxLimit = math.MaxInt32 - 1

type Options struct {
	// Now is the wall clock used for relative times such as today and 10d.
	Now time.Time
	// Location is the time zone used when the query has no TIMEZONE clause.
	Location *time.Location
	// Lenient turns string/int field mismatches into warnings.
	Lenient bool
	// RowLimit is the LIMIT applied when the query has none.  Zero means
	// no limit.
	RowLimit int
	// GroupLimit bounds the buckets of a bucket or time grouping.  Zero
	// means no limit.
	GroupLimit int
}

// Analyze resolves every name in the parsed query against cat, classifies
// each expression by the context it appears in, and validates the result.
// All errors found are returned together as a srcfiles.ErrorList.
func Analyze(ctx context.Context, p *parser.AST, cat *catalog.Catalog, opts Options) (*sem.Query, error) {
	t := newTranslator(ctx, p, cat, opts)
	q := t.semQuery(p.Parsed())
	if err := t.files.Error(); err != nil {
		return nil, err
	}
	newChecker(t).check(q)
	if err := t.files.Error(); err != nil {
		return nil, err
	}
	q.Warnings = t.warnings
	return q, nil
}

// Translate the AST into the typed tree.  A translator lives for one
// query and is never shared.
type translator struct {
	ctx      context.Context
	files    *srcfiles.List
	dialect  parser.Dialect
	catalog  *catalog.Catalog
	opts     Options
	now      time.Time
	loc      *time.Location
	datasets []*sem.Dataset
	// scope is the set of datasets unqualified names resolve in.  It is
	// narrowed to one dataset while expanding a dimension.
	scope []*sem.Dataset
	// aliases maps SELECT aliases to their position.
	aliases map[string]int
	// expanding holds the dimensions being expanded, for cycle detection.
	expanding []string
	dims      map[string]ast.Expr
	warnings  []string
	seen      map[string]bool
}

func newTranslator(ctx context.Context, p *parser.AST, cat *catalog.Catalog, opts Options) *translator {
	dialect, _ := parser.ParseDialect(p.Parsed().Dialect)
	t := &translator{
		ctx:     ctx,
		files:   p.Files(),
		dialect: dialect,
		catalog: cat,
		opts:    opts,
		aliases: make(map[string]int),
		dims:    make(map[string]ast.Expr),
		seen:    make(map[string]bool),
	}
	for _, w := range p.Warnings() {
		t.warn("%s", w)
	}
	return t
}

func (t *translator) error(n ast.Node, kind string, err error) {
	t.files.AddError(kind, err.Error(), n.Pos(), n.End())
}

func (t *translator) errorf(n ast.Node, kind, format string, args ...any) {
	t.files.AddError(kind, fmt.Sprintf(format, args...), n.Pos(), n.End())
}

// lookupError reports an error returned by the catalog under the
// exception identifier it carries.
func (t *translator) lookupError(n ast.Node, err error) {
	kind := srcfiles.ValidationError
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		kind = k.Kind()
	}
	t.error(n, kind, err)
}

func (t *translator) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if !t.seen[msg] {
		t.seen[msg] = true
		t.warnings = append(t.warnings, msg)
	}
}

func (t *translator) semQuery(q *ast.Query) *sem.Query {
	out := &sem.Query{
		AST:      q,
		Rounding: -1,
	}
	if t.dialect == parser.Legacy {
		t.warn("Query uses the legacy dialect: BETWEEN includes its upper bound and M means minutes")
	}
	t.loc = t.location(q.Timezone)
	out.Location = t.loc
	t.now = t.opts.Now
	if t.now.IsZero() {
		t.now = time.Now()
	}
	t.now = t.now.In(t.loc)
	out.Datasets = t.semDatasets(q.Datasets)
	t.datasets = out.Datasets
	t.scope = out.Datasets
	if len(out.Datasets) == 0 {
		return out
	}
	for i, item := range q.Select {
		if item.As == nil {
			continue
		}
		if _, ok := t.aliases[item.As.Name]; ok {
			t.errorf(item.As, srcfiles.ValidationError, "Duplicate metric alias %s", item.As.Name)
			continue
		}
		t.aliases[item.As.Name] = i
	}
	if q.Where != nil {
		out.Filter = t.rootFilter(q.Where, t.docFilter(q.Where))
	}
	for _, item := range q.GroupBy {
		out.GroupBys = append(out.GroupBys, t.semGroupByItem(item))
	}
	out.Selects = t.semSelects(q)
	if q.Having != nil {
		out.Having = t.aggFilter(q.Having)
	}
	out.Limit = t.opts.RowLimit
	if q.Limit != nil {
		if n, ok := t.intLiteral(q.Limit); ok {
			if n < 1 || n > MaxLimit {
				t.errorf(q.Limit, srcfiles.ValidationError, "Query Limit should be a positive, not exceeding %d", MaxLimit)
			}
			out.Limit = int(n)
		}
	}
	if q.Rounding != nil {
		if n, ok := t.intLiteral(q.Rounding); ok {
			if n < 0 || n > 15 {
				t.errorf(q.Rounding, srcfiles.ValidationError, "ROUNDING should be between 0 and 15")
			}
			out.Rounding = int(n)
		}
	}
	return out
}

func (t *translator) semSelects(q *ast.Query) []*sem.Select {
	if len(q.Select) == 0 {
		return []*sem.Select{{
			AST:    q,
			Metric: countAll(q),
		}}
	}
	var selects []*sem.Select
	for _, item := range q.Select {
		s := &sem.Select{
			AST:    item,
			Metric: t.aggMetric(item.Expr),
		}
		if item.As != nil {
			s.Name = item.As.Name
		}
		selects = append(selects, s)
	}
	return selects
}

func countAll(n ast.Node) sem.AggMetric {
	return &sem.DocStats{AST: n, Metric: &sem.Constant{AST: n, Value: 1}}
}

func (t *translator) semDatasets(entries []*ast.Dataset) []*sem.Dataset {
	var datasets []*sem.Dataset
	var start, end time.Time
	for k, entry := range entries {
		d, err := t.catalog.Dataset(entry.Name.Name)
		if err != nil {
			t.lookupError(entry.Name, err)
			continue
		}
		if entry.From != nil {
			start = t.timeOf(entry.From)
			end = t.timeOf(entry.To)
			if !start.Before(end) {
				t.errorf(entry, srcfiles.ValidationError, "Start time %s must be before end time %s", start.Format(time.DateTime), end.Format(time.DateTime))
			}
		} else if k == 0 {
			t.errorf(entry, srcfiles.ValidationError, "Dataset %s has no time range", entry.Name.Name)
		}
		alias := d.Name
		if entry.Alias != nil {
			alias = entry.Alias.Name
		}
		if slices.ContainsFunc(datasets, func(d *sem.Dataset) bool { return d.Alias == alias }) {
			t.errorf(entry, srcfiles.ValidationError, "Duplicate dataset alias %s (use AS to name each occurrence)", alias)
			continue
		}
		if d.Deprecated {
			t.warn("Dataset %s is deprecated", d.Name)
		}
		datasets = append(datasets, &sem.Dataset{
			AST:        entry,
			Name:       d.Name,
			Alias:      alias,
			Start:      start,
			End:        end,
			TimeField:  d.TimeField,
			Deprecated: d.Deprecated,
		})
	}
	return datasets
}

// span returns the earliest start and the latest end over datasets.
func span(datasets []*sem.Dataset) (time.Time, time.Time) {
	start, end := datasets[0].Start, datasets[0].End
	for _, d := range datasets[1:] {
		if d.Start.Before(start) {
			start = d.Start
		}
		if d.End.After(end) {
			end = d.End
		}
	}
	return start, end
}
