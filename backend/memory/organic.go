package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/brimdata/sift/backend"
	"github.com/brimdata/sift/catalog"
)

// OrganicZone is the time zone the organic fixture is laid out in.
var OrganicZone = time.FixedZone("-06:00", -6*60*60)

// OrganicDay is the local midnight starting the fixture's busy day.
var OrganicDay = time.Date(2015, 1, 1, 0, 0, 0, 0, OrganicZone)

const organicCatalog = `
datasets:
  - name: organic
    time_field: unixtime
    fields:
      - {name: unixtime, type: int}
      - {name: oji, type: int}
      - {name: ojc, type: int}
      - {name: allbit, type: int}
      - {name: fakeField, type: int}
      - {name: tk, type: string}
`

// OrganicCatalog returns the catalog describing the organic fixture.
func OrganicCatalog() *catalog.Catalog {
	c, err := catalog.Load(strings.NewReader(organicCatalog))
	if err != nil {
		panic(err)
	}
	return c
}

// Organic returns an index holding the organic fixture.  On OrganicDay it
// has 151 documents: ten in hour 0 with tk a, b, and c, sixty each in
// hours 1 and 2, and one in each remaining hour, all sharded by hour.
// The 31 days of the preceding December hold one document each.
func Organic() *Index {
	var shards []*Shard
	add := func(id string, start, end time.Time, docs []Doc) {
		shards = append(shards, &Shard{
			Shard: backend.Shard{
				ID:    id,
				Start: start.Unix(),
				End:   end.Unix(),
				Docs:  int64(len(docs)),
			},
			Docs: docs,
		})
	}
	doc := func(t time.Time, oji, ojc int64, tk string) Doc {
		return Doc{
			"unixtime":  t.Unix(),
			"oji":       oji,
			"ojc":       ojc,
			"allbit":    int64(1),
			"fakeField": int64(0),
			"tk":        tk,
		}
	}
	at := func(h, m, s int) time.Time {
		return OrganicDay.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
	}
	for day := 1; day <= 31; day++ {
		start := time.Date(2014, 12, day, 0, 0, 0, 0, OrganicZone)
		add(fmt.Sprintf("index201412%02d", day), start, start.AddDate(0, 0, 1), []Doc{doc(start, 1, 1, "d")})
	}
	first := []Doc{
		doc(at(0, 0, 0), 10, 0, "a"),
		doc(at(0, 0, 30), 10, 1, "a"),
		doc(at(0, 1, 15), 10, 5, "a"),
		doc(at(0, 10, 0), 10, 2, "b"),
		doc(at(0, 15, 0), 10, 1, "a"),
		doc(at(0, 20, 0), 100, 15, "b"),
		doc(at(0, 25, 0), 1000, 1, "c"),
		doc(at(0, 30, 30), 10, 10, "c"),
		doc(at(0, 45, 30), 10, 10, "c"),
		doc(at(0, 59, 59), 10, 0, "c"),
	}
	for h := range 24 {
		var docs []Doc
		switch h {
		case 0:
			docs = first
		case 1, 2:
			ojc := int64(1)
			if h == 2 {
				ojc = 3
			}
			for m := range 60 {
				docs = append(docs, doc(at(h, m, 0), 10, ojc, "d"))
			}
		default:
			docs = []Doc{doc(at(h, 0, 0), int64(h), 1, "d")}
		}
		add(fmt.Sprintf("index20150101.%02d", h), at(h, 0, 0), at(h+1, 0, 0), docs)
	}
	x := New()
	x.Add(&Dataset{Name: "organic", TimeField: "unixtime", Shards: shards})
	return x
}
