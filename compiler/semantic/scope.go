package semantic

import (
	"fmt"
	"slices"
	"strings"

	"github.com/brimdata/sift/catalog"
	"github.com/brimdata/sift/compiler/ast"
	"github.com/brimdata/sift/compiler/parser"
	"github.com/brimdata/sift/compiler/semantic/sem"
	"github.com/brimdata/sift/compiler/srcfiles"
)

// resolveAlias finds the dataset named by a qualifier using the same
// two-tier rule as field names: an exact match wins, otherwise a unique
// case-insensitive match.
func (t *translator) resolveAlias(id *ast.ID) (*sem.Dataset, bool) {
	var folded []*sem.Dataset
	for _, d := range t.datasets {
		if d.Alias == id.Qualifier {
			return d, true
		}
		if strings.EqualFold(d.Alias, id.Qualifier) {
			folded = append(folded, d)
		}
	}
	switch len(folded) {
	case 1:
		return folded[0], true
	case 0:
		t.errorf(id, srcfiles.UnknownDataset, "Unknown dataset alias %q", id.Qualifier)
	default:
		var names []string
		for _, d := range folded {
			names = append(names, d.Alias)
		}
		t.errorf(id, srcfiles.AmbiguousName, "Ambiguous dataset alias %q matches %s", id.Qualifier, strings.Join(names, ", "))
	}
	return nil, false
}

// scopeOf returns the datasets id resolves in and the alias it was
// qualified with, if any.
func (t *translator) scopeOf(id *ast.ID) ([]*sem.Dataset, string, bool) {
	if id.Qualifier == "" {
		return t.scope, "", true
	}
	d, ok := t.resolveAlias(id)
	if !ok {
		return nil, "", false
	}
	if !slices.Contains(t.scope, d) {
		t.errorf(id, srcfiles.ValidationError, "Dataset %s is not in scope here", d.Alias)
		return nil, "", false
	}
	return []*sem.Dataset{d}, d.Alias, true
}

func (t *translator) isMetricAlias(id *ast.ID) bool {
	if id.Qualifier != "" || len(t.expanding) > 0 {
		return false
	}
	_, ok := t.aliases[id.Name]
	return ok
}

// fieldRef resolves id where an actual field is required, e.g., in
// GROUP BY or distinct().  Dimensions and metric aliases are rejected.
func (t *translator) fieldRef(id *ast.ID) *sem.Field {
	scope, qual, ok := t.scopeOf(id)
	if !ok {
		return nil
	}
	f := &sem.Field{
		AST:       id,
		Name:      id.Name,
		Names:     make(map[string]string),
		Qualifier: qual,
	}
	for _, d := range scope {
		field, dim, err := t.entry(d).Lookup(id.Name)
		if err != nil {
			if t.isMetricAlias(id) {
				t.errorf(id, srcfiles.MetricAliasAsField, "Metric alias cannot be used as a field: %s", id.Name)
			} else {
				t.lookupError(id, err)
			}
			return nil
		}
		if dim != nil {
			t.errorf(id, srcfiles.ValidationError, "Dimension %s of dataset %s is a metric and cannot be used as a field", dim.Name, d.Alias)
			return nil
		}
		if f.Type != "" && f.Type != field.Type {
			t.errorf(id, srcfiles.ValidationError, "Field %s is %s in one dataset and %s in dataset %s", id.Name, f.Type, field.Type, d.Alias)
			return nil
		}
		f.Type = field.Type
		f.Names[d.Alias] = field.Name
	}
	return f
}

// termField is fieldRef without error reporting.  It returns nil when id
// is not a plain field in every dataset in scope.
func (t *translator) termField(id *ast.ID) *sem.Field {
	if t.isMetricAlias(id) {
		return nil
	}
	scope := t.scope
	qual := ""
	if id.Qualifier != "" {
		d := t.quietAlias(id.Qualifier)
		if d == nil {
			return nil
		}
		scope, qual = []*sem.Dataset{d}, d.Alias
	}
	f := &sem.Field{
		AST:       id,
		Name:      id.Name,
		Names:     make(map[string]string),
		Qualifier: qual,
	}
	for _, d := range scope {
		field, _, err := t.entry(d).Lookup(id.Name)
		if err != nil || field == nil || (f.Type != "" && f.Type != field.Type) {
			return nil
		}
		f.Type = field.Type
		f.Names[d.Alias] = field.Name
	}
	return f
}

func (t *translator) quietAlias(name string) *sem.Dataset {
	var match *sem.Dataset
	for _, d := range t.scope {
		if d.Alias == name {
			return d
		}
		if strings.EqualFold(d.Alias, name) {
			if match != nil {
				return nil
			}
			match = d
		}
	}
	return match
}

// metricRef resolves id as a document metric.  A dimension expands into
// its defining expression in each dataset where it is one.
func (t *translator) metricRef(id *ast.ID) sem.DocMetric {
	if t.isMetricAlias(id) && t.termField(id) == nil {
		t.errorf(id, srcfiles.MetricAliasAsField, "Metric alias cannot be used as a field: %s", id.Name)
		return &sem.BadMetric{}
	}
	scope, qual, ok := t.scopeOf(id)
	if !ok {
		return &sem.BadMetric{}
	}
	type resolved struct {
		field *catalog.Field
		dim   *catalog.Dimension
	}
	entries := make(map[string]resolved)
	var hasDim bool
	for _, d := range scope {
		field, dim, err := t.entry(d).Lookup(id.Name)
		if err != nil {
			t.lookupError(id, err)
			return &sem.BadMetric{}
		}
		entries[d.Alias] = resolved{field, dim}
		hasDim = hasDim || dim != nil
	}
	if !hasDim {
		f := &sem.Field{
			AST:       id,
			Name:      id.Name,
			Type:      catalog.Int,
			Names:     make(map[string]string),
			Qualifier: qual,
		}
		for alias, r := range entries {
			f.Names[alias] = r.field.Name
			if r.field.Type == catalog.String {
				f.Type = catalog.String
			}
		}
		if f.Type == catalog.String {
			t.mismatch(id, "String field %s used as a metric", id.Name)
		}
		return f
	}
	per := &sem.PerDataset{
		AST:     id,
		Name:    id.Name,
		Metrics: make(map[string]sem.DocMetric),
	}
	for _, d := range scope {
		r := entries[d.Alias]
		if r.field != nil {
			per.Metrics[d.Alias] = &sem.Field{
				AST:       id,
				Name:      id.Name,
				Type:      r.field.Type,
				Names:     map[string]string{d.Alias: r.field.Name},
				Qualifier: qual,
			}
			continue
		}
		m := t.expand(id, d, r.dim)
		if qual != "" {
			m = &sem.QualifiedMetric{AST: id, Dataset: qual, Metric: m}
		}
		per.Metrics[d.Alias] = m
	}
	return per
}

// expand translates the expression behind a dimension within the
// scope of the one dataset it belongs to.
func (t *translator) expand(id *ast.ID, d *sem.Dataset, dim *catalog.Dimension) sem.DocMetric {
	key := d.Name + "." + dim.Name
	if slices.Contains(t.expanding, key) {
		cycle := append(slices.Clone(t.expanding), key)
		t.errorf(id, srcfiles.ValidationError, "Dimension cycle: %s", strings.Join(cycle, " -> "))
		return &sem.BadMetric{}
	}
	e, ok := t.dims[key]
	if !ok {
		off := t.files.Add(fmt.Sprintf("dimension %s", key), dim.Expr)
		// A syntax error is recorded in t.files and leaves e nil.
		e, _ = parser.ParseExpr(t.files, off, parser.IQL2)
		t.dims[key] = e
	}
	if e == nil {
		return &sem.BadMetric{}
	}
	saved := t.scope
	t.scope = []*sem.Dataset{d}
	t.expanding = append(t.expanding, key)
	m := t.docMetric(e)
	t.expanding = t.expanding[:len(t.expanding)-1]
	t.scope = saved
	return m
}

func (t *translator) entry(d *sem.Dataset) *catalog.Dataset {
	ds, err := t.catalog.Dataset(d.Name)
	if err != nil {
		panic(err)
	}
	return ds
}
