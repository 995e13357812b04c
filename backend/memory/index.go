// Package memory is an index engine that keeps its documents in memory.
// Each session builds roaring postings for the terms of every field of
// the documents it opens and answers regroups and FTGS walks from them.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/compiler/dag"
	"gopkg.in/yaml.v3"
)

// Doc is one document.  Values are int64 or string.
type Doc map[string]any

type Shard struct {
	backend.Shard
	Docs []Doc
}

type Dataset struct {
	Name      string
	TimeField string
	Shards    []*Shard
}

// Index is a backend.Client over in-memory datasets.  It is safe for
// concurrent use.
type Index struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

var _ backend.Client = (*Index)(nil)

func New() *Index {
	return &Index{datasets: make(map[string]*Dataset)}
}

// Add registers d, replacing any dataset of the same name.  Shards are
// kept in start order.
func (x *Index) Add(d *Dataset) {
	slices.SortFunc(d.Shards, func(a, b *Shard) int {
		return int(sign(a.Start - b.Start))
	})
	x.mu.Lock()
	x.datasets[d.Name] = d
	x.mu.Unlock()
}

func (x *Index) lookup(name string) (*Dataset, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	d, ok := x.datasets[name]
	if !ok {
		return nil, fmt.Errorf("dataset %q not found in index", name)
	}
	return d, nil
}

func (x *Index) Shards(ctx context.Context, dataset string, start, end int64) ([]backend.Shard, error) {
	d, err := x.lookup(dataset)
	if err != nil {
		return nil, err
	}
	var shards []backend.Shard
	for _, s := range d.Shards {
		if s.Start < end && start < s.End {
			shards = append(shards, s.Shard)
		}
	}
	return shards, nil
}

func (x *Index) Open(ctx context.Context, d *dag.Dataset, shards []backend.Shard) (backend.Session, error) {
	ds, err := x.lookup(d.Name)
	if err != nil {
		return nil, err
	}
	timeField := d.TimeField
	if timeField == "" {
		timeField = ds.TimeField
	}
	ids := make(map[string]bool)
	for _, s := range shards {
		ids[s.ID] = true
	}
	var docs []Doc
	for _, s := range ds.Shards {
		if !ids[s.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, doc := range s.Docs {
			t, ok := doc[timeField].(int64)
			if ok && d.Start <= t && t < d.End {
				docs = append(docs, doc)
			}
		}
	}
	return newSession(docs), nil
}

func sign(v int64) int64 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

type file struct {
	Datasets []struct {
		Name      string `yaml:"name"`
		TimeField string `yaml:"time_field"`
		ShardBy   string `yaml:"shard_by"`
		Docs      []Doc  `yaml:"docs"`
	} `yaml:"datasets"`
}

// Load reads datasets of the form
//
//	datasets:
//	  - name: organic
//	    time_field: unixtime
//	    shard_by: 1h
//	    docs:
//	      - {unixtime: 1420092000, tk: a, oji: 10}
//
// and shards their documents by shard_by (one day by default).
func Load(r io.Reader) (*Index, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("memory index: %w", err)
	}
	x := New()
	for _, d := range f.Datasets {
		if d.Name == "" {
			return nil, errors.New("memory index: dataset with no name")
		}
		timeField := d.TimeField
		if timeField == "" {
			timeField = "unixtime"
		}
		period := 24 * time.Hour
		if d.ShardBy != "" {
			var err error
			if period, err = time.ParseDuration(d.ShardBy); err != nil || period < time.Second {
				return nil, fmt.Errorf("memory index: dataset %q: bad shard_by %q", d.Name, d.ShardBy)
			}
		}
		docs, err := normalize(d.Docs)
		if err != nil {
			return nil, fmt.Errorf("memory index: dataset %q: %w", d.Name, err)
		}
		shards, err := Partition(docs, timeField, int64(period/time.Second))
		if err != nil {
			return nil, fmt.Errorf("memory index: dataset %q: %w", d.Name, err)
		}
		x.Add(&Dataset{Name: d.Name, TimeField: timeField, Shards: shards})
	}
	return x, nil
}

func LoadFile(path string) (*Index, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	x, err := Load(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return x, nil
}

// normalize turns the ints decoded from YAML into int64.
func normalize(docs []Doc) ([]Doc, error) {
	for i, doc := range docs {
		for k, v := range doc {
			switch v := v.(type) {
			case int:
				doc[k] = int64(v)
			case int64, string:
			case bool:
				if v {
					doc[k] = int64(1)
				} else {
					doc[k] = int64(0)
				}
			default:
				return nil, fmt.Errorf("document %d: field %q: unsupported value %v", i, k, v)
			}
		}
	}
	return docs, nil
}

// Partition splits docs into shards of period seconds aligned to the Unix
// epoch.  Shard IDs name the shard's UTC start.
func Partition(docs []Doc, timeField string, period int64) ([]*Shard, error) {
	byStart := make(map[int64]*Shard)
	for i, doc := range docs {
		t, ok := doc[timeField].(int64)
		if !ok {
			return nil, fmt.Errorf("document %d has no int %q field", i, timeField)
		}
		start := t - mod(t, period)
		s, ok := byStart[start]
		if !ok {
			s = &Shard{Shard: backend.Shard{ID: shardID(start, period), Start: start, End: start + period}}
			byStart[start] = s
		}
		s.Docs = append(s.Docs, doc)
		s.Shard.Docs++
	}
	var shards []*Shard
	for _, s := range byStart {
		shards = append(shards, s)
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i].Start < shards[j].Start })
	return shards, nil
}

func shardID(start, period int64) string {
	layout := "20060102"
	if period%86400 != 0 {
		layout = "20060102.150405"
		if period%60 == 0 {
			layout = strings.TrimSuffix(layout, "05")
		}
		if period%3600 == 0 {
			layout = strings.TrimSuffix(layout, "04")
		}
	}
	return "index" + time.Unix(start, 0).UTC().Format(layout)
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
