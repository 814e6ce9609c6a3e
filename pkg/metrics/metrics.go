// Package metrics exports quotacache statistics to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/codeGROOVE-dev/quotacache"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quotacache"

// scrapeTimeout bounds the full-namespace scan behind each collection.
const scrapeTimeout = 10 * time.Second

// StatsSource is the part of *quotacache.Manager the collector reads.
type StatsSource interface {
	Stats(ctx context.Context) quotacache.Stats
	MaxSize() int64
}

// Collector is a prometheus.Collector over one cache.
// Each scrape takes a fresh Stats snapshot.
type Collector struct {
	src StatsSource

	entries     *prometheus.Desc
	size        *prometheus.Desc
	maxSize     *prometheus.Desc
	utilization *prometheus.Desc
	hits        *prometheus.Desc
	misses      *prometheus.Desc
	expirations *prometheus.Desc
	evictions   *prometheus.Desc
}

// NewCollector creates a collector labelled cache=name.
func NewCollector(name string, src StatsSource) *Collector {
	labels := prometheus.Labels{"cache": name}
	desc := func(metric, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", metric), help, variable, labels)
	}

	return &Collector{
		src:         src,
		entries:     desc("entries", "Cache entries by freshness.", "state"),
		size:        desc("size_bytes", "Approximate bytes used by the cache store namespace."),
		maxSize:     desc("max_size_bytes", "Configured cache size ceiling in bytes."),
		utilization: desc("utilization_ratio", "Used bytes as a fraction of the size ceiling."),
		hits:        desc("hits_total", "Reads that returned a fresh entry."),
		misses:      desc("misses_total", "Reads that found no fresh entry."),
		expirations: desc("expirations_total", "Entries removed because their TTL passed."),
		evictions:   desc("evictions_total", "Entries removed under storage pressure."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.size
	ch <- c.maxSize
	ch <- c.utilization
	ch <- c.hits
	ch <- c.misses
	ch <- c.expirations
	ch <- c.evictions
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	st := c.src.Stats(ctx)

	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.ValidEntries), "valid")
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.ExpiredEntries), "expired")
	ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(st.TotalSize))
	ch <- prometheus.MustNewConstMetric(c.maxSize, prometheus.GaugeValue, float64(c.src.MaxSize()))
	ch <- prometheus.MustNewConstMetric(c.utilization, prometheus.GaugeValue, st.UtilizationPercent/100)
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(c.expirations, prometheus.CounterValue, float64(st.Expirations))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Evictions))
}

// Register creates a collector for src and registers it with reg.
func Register(reg prometheus.Registerer, name string, src StatsSource) (*Collector, error) {
	c := NewCollector(name, src)
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}
