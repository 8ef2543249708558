// Package statsprom exposes cache Stats as Prometheus metrics. The collector
// snapshots the cache on every scrape, so it carries no state of its own and
// several caches can share one registry under different names.
package statsprom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/nearcache"
)

// StatsSource is the slice of the cache the collector reads.
type StatsSource interface {
	Stats() nearcache.Stats
}

type Collector struct {
	src StatsSource

	localHits      *prometheus.Desc
	remoteHits     *prometheus.Desc
	misses         *prometheus.Desc
	loaderCalls    *prometheus.Desc
	loaderFailures *prometheus.Desc
	remoteErrors   *prometheus.Desc
	writeFailures  *prometheus.Desc
	invalidations  *prometheus.Desc
	evictions      *prometheus.Desc
	flushes        *prometheus.Desc
	localEntries   *prometheus.Desc
	tracking       *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// New builds a collector for one cache. name becomes the "cache" label on
// every series.
func New(src StatsSource, name string) *Collector {
	labels := prometheus.Labels{"cache": name}
	desc := func(suffix, help string) *prometheus.Desc {
		return prometheus.NewDesc("nearcache_"+suffix, help, nil, labels)
	}
	return &Collector{
		src:            src,
		localHits:      desc("local_hits_total", "Reads served by the in-process tier."),
		remoteHits:     desc("remote_hits_total", "Reads served by the shared tier."),
		misses:         desc("misses_total", "Reads that fell through to the loader."),
		loaderCalls:    desc("loader_calls_total", "Loader invocations."),
		loaderFailures: desc("loader_failures_total", "Loader invocations that returned an error."),
		remoteErrors:   desc("remote_errors_total", "Remote operations that kept failing after retries."),
		writeFailures:  desc("write_failures_total", "Cache writes dropped after a value was produced."),
		invalidations:  desc("invalidations_total", "Explicit Invalidate calls."),
		evictions:      desc("notice_evictions_total", "Local entries evicted by invalidation notices."),
		flushes:        desc("flushes_total", "Full local flushes, manual and fail-safe."),
		localEntries:   desc("local_entries", "Current local tier size."),
		tracking:       desc("tracking", "1 when the invalidation subscription is live."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.localHits
	ch <- c.remoteHits
	ch <- c.misses
	ch <- c.loaderCalls
	ch <- c.loaderFailures
	ch <- c.remoteErrors
	ch <- c.writeFailures
	ch <- c.invalidations
	ch <- c.evictions
	ch <- c.flushes
	ch <- c.localEntries
	ch <- c.tracking
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.localHits, s.LocalHits)
	counter(c.remoteHits, s.RemoteHits)
	counter(c.misses, s.Misses)
	counter(c.loaderCalls, s.LoaderCalls)
	counter(c.loaderFailures, s.LoaderFailures)
	counter(c.remoteErrors, s.RemoteErrors)
	counter(c.writeFailures, s.WriteFailures)
	counter(c.invalidations, s.Invalidations)
	counter(c.evictions, s.Evictions)
	counter(c.flushes, s.Flushes)

	// stores without a cheap count report -1; skip the gauge then
	if s.LocalEntries >= 0 {
		ch <- prometheus.MustNewConstMetric(c.localEntries, prometheus.GaugeValue, float64(s.LocalEntries))
	}

	tracking := 0.0
	if s.Tracking {
		tracking = 1
	}
	ch <- prometheus.MustNewConstMetric(c.tracking, prometheus.GaugeValue, tracking)
}
