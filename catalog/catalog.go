// Package catalog holds the read-only field metadata that queries are
// resolved against: datasets, their typed fields, and the dimension
// metrics that expand into expressions over those fields.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type FieldType string

const (
	Int    FieldType = "int"
	String FieldType = "string"
)

type Field struct {
	Name        string    `yaml:"name"`
	Type        FieldType `yaml:"type"`
	Description string    `yaml:"description,omitempty"`
}

// Dimension is a named metric defined by an expression over the
// dataset's fields.  It expands into that expression wherever it is used.
type Dimension struct {
	Name        string `yaml:"name"`
	Expr        string `yaml:"expr"`
	Description string `yaml:"description,omitempty"`
}

type Dataset struct {
	Name        string       `yaml:"name"`
	TimeField   string       `yaml:"time_field,omitempty"`
	Deprecated  bool         `yaml:"deprecated,omitempty"`
	Description string       `yaml:"description,omitempty"`
	Fields      []*Field     `yaml:"fields"`
	Dimensions  []*Dimension `yaml:"dimensions,omitempty"`

	// entries holds fields followed by dimensions so one index
	// serves both namespaces.
	entries []string
	index   index
}

const DefaultTimeField = "unixtime"

func (d *Dataset) init() error {
	if d.Name == "" {
		return errors.New("dataset with no name")
	}
	if d.TimeField == "" {
		d.TimeField = DefaultTimeField
	}
	seen := make(map[string]bool)
	d.entries = d.entries[:0]
	for _, f := range d.Fields {
		switch f.Type {
		case Int, String:
		case "":
			f.Type = Int
		default:
			return fmt.Errorf("dataset %s: field %s: unknown type %q", d.Name, f.Name, f.Type)
		}
		if seen[f.Name] {
			return fmt.Errorf("dataset %s: duplicate field %s", d.Name, f.Name)
		}
		seen[f.Name] = true
		d.entries = append(d.entries, f.Name)
	}
	if !seen["dayofweek"] && !d.hasDimension("dayofweek") {
		d.Dimensions = append(d.Dimensions, &Dimension{
			Name:        "dayofweek",
			Expr:        fmt.Sprintf("(((%s-280800)%%604800)/86400)", d.TimeField),
			Description: "day of week (days since Sunday)",
		})
	}
	for _, dim := range d.Dimensions {
		if seen[dim.Name] {
			return fmt.Errorf("dataset %s: dimension %s shadows a field or dimension", d.Name, dim.Name)
		}
		if dim.Expr == "" {
			return fmt.Errorf("dataset %s: dimension %s has no expression", d.Name, dim.Name)
		}
		seen[dim.Name] = true
		d.entries = append(d.entries, dim.Name)
	}
	d.index = newIndex(d.entries)
	return nil
}

func (d *Dataset) hasDimension(name string) bool {
	for _, dim := range d.Dimensions {
		if dim.Name == name {
			return true
		}
	}
	return false
}

// Lookup resolves name to a field or a dimension of d.  Exactly one of
// the returned pointers is non-nil when err is nil.
func (d *Dataset) Lookup(name string) (*Field, *Dimension, error) {
	i, candidates := d.index.lookup(name)
	if candidates != nil {
		return nil, nil, &AmbiguousError{What: "field", Name: name, Candidates: candidates}
	}
	if i < 0 {
		return nil, nil, &UnknownError{
			What:       "field",
			Name:       name,
			Dataset:    d.Name,
			Suggestion: d.index.suggest(name),
		}
	}
	if i < len(d.Fields) {
		return d.Fields[i], nil, nil
	}
	return nil, d.Dimensions[i-len(d.Fields)], nil
}

// Field returns the field named name or nil.  Dimensions are not fields.
func (d *Dataset) Field(name string) *Field {
	f, _, _ := d.Lookup(name)
	return f
}

// Catalog is an immutable snapshot of dataset metadata.
type Catalog struct {
	datasets []*Dataset
	index    index
}

func New(datasets ...*Dataset) (*Catalog, error) {
	names := make([]string, 0, len(datasets))
	seen := make(map[string]bool)
	for _, d := range datasets {
		if err := d.init(); err != nil {
			return nil, err
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate dataset %s", d.Name)
		}
		seen[d.Name] = true
		names = append(names, d.Name)
	}
	return &Catalog{datasets: datasets, index: newIndex(names)}, nil
}

func (c *Catalog) Datasets() []*Dataset {
	return c.datasets
}

func (c *Catalog) Dataset(name string) (*Dataset, error) {
	i, candidates := c.index.lookup(name)
	if candidates != nil {
		return nil, &AmbiguousError{What: "dataset", Name: name, Candidates: candidates}
	}
	if i < 0 {
		return nil, &UnknownError{What: "dataset", Name: name, Suggestion: c.index.suggest(name)}
	}
	return c.datasets[i], nil
}

type file struct {
	Datasets []*Dataset `yaml:"datasets"`
}

// Load reads a YAML catalog of the form
//
//	datasets:
//	  - name: organic
//	    fields:
//	      - {name: unixtime, type: int}
//	      - {name: tk, type: string}
//	    dimensions:
//	      - {name: ctr, expr: "clicks * 100 / impressions"}
func Load(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return New(f.Datasets...)
}

func LoadFile(path string) (*Catalog, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	c, err := Load(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
