package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"
)

// Collector exposes engine outcomes to Prometheus
type Collector struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	volume     *prometheus.CounterVec
	log        *logrus.Logger
}

// NewCollector creates a collector backed by its own registry
func NewCollector(log *logrus.Logger) *Collector {
	registry := prometheus.NewRegistry()
	return &Collector{
		registry: registry,
		operations: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Engine calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		duration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Time spent in an engine call, lock waits included",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		volume: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_moved_value_total",
			Help: "Sum of values moved by committed ledger entries",
		}, []string{"type"}),
		log: log,
	}
}

// ObserveOperation records one engine call
func (c *Collector) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	c.operations.WithLabelValues(operation, outcome).Inc()
	c.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// AddVolume adds a committed ledger value
func (c *Collector) AddVolume(txType string, value float64) {
	c.volume.WithLabelValues(txType).Add(value)
}

// OperationCount returns the current counter value; used by tests
func (c *Collector) OperationCount(operation, outcome string) float64 {
	var m dto.Metric
	if err := c.operations.WithLabelValues(operation, outcome).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr in the background
func (c *Collector) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		c.log.Infof("Starting metrics server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Errorf("Metrics server failed: %v", err)
		}
	}()
	return server
}

// Shutdown stops a server started by StartServer
func (c *Collector) Shutdown(ctx context.Context, server *http.Server) error {
	return server.Shutdown(ctx)
}
