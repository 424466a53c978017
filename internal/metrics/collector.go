// Package metrics exposes filesystem and cache counters over a Prometheus
// endpoint. The collector is optional: a nil *Collector is valid and every
// method on it is a no-op, so callers never branch on whether metrics are
// enabled.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bucketfs"

// Config represents metrics configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Collector aggregates operation, cache, and transfer metrics in a private
// Prometheus registry and serves them over HTTP.
type Collector struct {
	config   Config
	registry *prometheus.Registry
	logger   *slog.Logger

	operations       *prometheus.CounterVec
	durations        *prometheus.HistogramVec
	cacheEvents      *prometheus.CounterVec
	bytesTransferred *prometheus.CounterVec
	inflightReads    prometheus.Gauge

	server *http.Server
}

// NewCollector builds a collector for the given configuration. It returns
// nil when metrics are disabled; a nil collector is safe to use.
func NewCollector(config Config, logger *slog.Logger) *Collector {
	if !config.Enabled {
		return nil
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	c := &Collector{
		config:   config,
		registry: registry,
		logger:   logger.With("component", "metrics"),

		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Filesystem operations by name and outcome",
			},
			[]string{"operation", "status"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Filesystem operation latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"operation"},
		),
		cacheEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Cache lookups by cache name and result",
			},
			[]string{"cache", "result"},
		),
		bytesTransferred: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_transferred_total",
				Help:      "Bytes moved between the mount and the store",
			},
			[]string{"direction"},
		),
		inflightReads: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inflight_reads",
				Help:      "Reads currently being served",
			},
		),
	}

	registry.MustRegister(
		c.operations,
		c.durations,
		c.cacheEvents,
		c.bytesTransferred,
		c.inflightReads,
	)

	return c
}

// RecordOperation records one filesystem operation. A negative result is
// counted as an error, matching the errno convention of the façade.
func (c *Collector) RecordOperation(operation string, result int, duration time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if result < 0 {
		status = "error"
	}
	c.operations.WithLabelValues(operation, status).Inc()
	c.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheEvent records a hit or miss against the named cache.
func (c *Collector) RecordCacheEvent(cache string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheEvents.WithLabelValues(cache, result).Inc()
}

// AddBytesRead accounts for bytes served to readers.
func (c *Collector) AddBytesRead(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesTransferred.WithLabelValues("read").Add(float64(n))
}

// AddBytesWritten accounts for bytes uploaded to the store.
func (c *Collector) AddBytesWritten(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesTransferred.WithLabelValues("write").Add(float64(n))
}

// IncInflightReads marks a read as started.
func (c *Collector) IncInflightReads() {
	if c == nil {
		return
	}
	c.inflightReads.Inc()
}

// DecInflightReads marks a read as finished.
func (c *Collector) DecInflightReads() {
	if c == nil {
		return
	}
	c.inflightReads.Dec()
}

// RegisterGaugeFunc registers a gauge whose value is sampled at scrape time,
// used to surface sizes owned by other components.
func (c *Collector) RegisterGaugeFunc(name, help string, fn func() float64) {
	if c == nil {
		return
	}
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		fn,
	))
}

// Start serves the metrics endpoint in the background.
func (c *Collector) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"bucketfs"}`))
	})

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		c.logger.Info("metrics endpoint listening", "addr", c.server.Addr, "path", c.config.Path)
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts the metrics endpoint down.
func (c *Collector) Stop(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
