package service

import (
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/paulbellamy/ratecounter"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	queries  *prometheus.CounterVec
	elapsed  prometheus.Histogram
	groups   prometheus.Histogram
	inflight prometheus.Gauge
	rate     *ratecounter.RateCounter

	keysMu sync.Mutex
	keys   *hyperloglog.Sketch
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_queries_total",
			Help: "Number of queries by outcome: hit, miss, or error.",
		}, []string{"result"}),
		elapsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_query_seconds",
			Help:    "Time to answer a query.",
			Buckets: prometheus.DefBuckets,
		}),
		groups: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_query_max_groups",
			Help:    "Largest group count reached by an executed query.",
			Buckets: prometheus.ExponentialBuckets(1, 10, 7),
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sift_queries_executing",
			Help: "Number of queries executing against the backend.",
		}),
		rate: ratecounter.NewRateCounter(time.Minute),
		keys: hyperloglog.New(),
	}
	if reg == nil {
		return m, nil
	}
	collectors := []prometheus.Collector{
		m.queries,
		m.elapsed,
		m.groups,
		m.inflight,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sift_queries_per_minute",
			Help: "Queries answered over the last minute.",
		}, func() float64 { return float64(m.rate.Rate()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sift_distinct_cache_keys",
			Help: "Estimated number of distinct cache keys seen.",
		}, func() float64 { return float64(m.distinctKeys()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observe(result string, elapsed time.Duration) {
	m.queries.WithLabelValues(result).Inc()
	m.elapsed.Observe(elapsed.Seconds())
	m.rate.Incr(1)
}

func (m *metrics) sawKey(key []byte) {
	m.keysMu.Lock()
	m.keys.Insert(key)
	m.keysMu.Unlock()
}

func (m *metrics) distinctKeys() uint64 {
	m.keysMu.Lock()
	defer m.keysMu.Unlock()
	return m.keys.Estimate()
}
