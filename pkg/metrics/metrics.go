// Package metrics exposes build counters on a private Prometheus registry.
// A nil *Collector is valid and records nothing, so callers that do not serve
// metrics can pass nil.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sfcbuild"

// Build results
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector groups the build metrics
type Collector struct {
	registry *prometheus.Registry

	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	modules       *prometheus.CounterVec
	assetsCopied  prometheus.Counter
	bytesEmitted  prometheus.Counter
	cacheHits     prometheus.Counter
}

// New creates a collector on its own registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Builds by result and error category.",
			},
			[]string{"result", "category"},
		),
		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Wall time of a build.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		modules: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "modules_transformed_total",
				Help:      "Modules run through a transform tool.",
			},
			[]string{"tool"},
		),
		assetsCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_copied_total",
			Help:      "Files mirrored verbatim into the output.",
		}),
		bytesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_emitted_total",
			Help:      "Bytes written to output directories.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_cache_hits_total",
			Help:      "Transform results served from the cache.",
		}),
	}
	c.registry.MustRegister(c.builds, c.buildDuration, c.modules, c.assetsCopied, c.bytesEmitted, c.cacheHits)
	return c
}

// Registry returns the private registry, for tests and custom handlers
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collected metrics in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveBuild records the outcome of one build. category is empty on success.
func (c *Collector) ObserveBuild(result, category string, d time.Duration) {
	if c == nil {
		return
	}
	c.builds.WithLabelValues(result, category).Inc()
	c.buildDuration.Observe(d.Seconds())
}

// ModuleTransformed counts one module run through tool
func (c *Collector) ModuleTransformed(tool string) {
	if c == nil {
		return
	}
	c.modules.WithLabelValues(tool).Inc()
}

// AssetsCopied counts mirrored files
func (c *Collector) AssetsCopied(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.assetsCopied.Add(float64(n))
}

// BytesEmitted counts written bytes
func (c *Collector) BytesEmitted(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesEmitted.Add(float64(n))
}

// CacheHits counts transform cache hits
func (c *Collector) CacheHits(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.cacheHits.Add(float64(n))
}
