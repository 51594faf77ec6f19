package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics for hwlock.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// RPC transport
	RPCRequests *prometheus.CounterVec
	RPCLatency  *prometheus.HistogramVec

	// Program invocations
	Invocations *prometheus.CounterVec

	// Confirmation latency histogram (buckets: 100ms .. 60s)
	ConfirmLatency prometheus.Histogram

	// Harness stage duration histogram
	StageDuration *prometheus.HistogramVec

	// HTTP server
	server *http.Server
	logger *zap.Logger
	mu     sync.Mutex
}

// NewMetrics creates a new Metrics instance on its own registry
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Total number of JSON-RPC requests by method and outcome",
		}, []string{"method", "outcome"}),
		RPCLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "JSON-RPC request latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method"}),
		Invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of program invocations by instruction and final status",
		}, []string{"instruction", "status"}),
		ConfirmLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_seconds",
			Help:      "Time from send to reaching the requested commitment",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each harness stage in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"stage"}),
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger used by the HTTP server
func (m *Metrics) WithLogger(logger *zap.Logger) *Metrics {
	if m != nil && logger != nil {
		m.logger = logger
	}
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Start starts the HTTP server for Prometheus metrics
func (m *Metrics) Start(_ context.Context, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return fmt.Errorf("metrics server already running")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", zap.Error(err))
		}
	}(m.server)

	m.logger.Info("metrics endpoint started", zap.Int("port", port))
	return nil
}

// Stop stops the HTTP server gracefully
func (m *Metrics) Stop(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server == nil {
		return nil
	}

	err := m.server.Shutdown(ctx)
	m.server = nil
	return err
}

// RecordRPC records one JSON-RPC round trip
func (m *Metrics) RecordRPC(method string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RPCRequests.WithLabelValues(method, outcome).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordInvocation counts a finished program invocation
func (m *Metrics) RecordInvocation(instruction, status string) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(instruction, status).Inc()
}

// RecordConfirmation records confirmation latency
func (m *Metrics) RecordConfirmation(latency time.Duration) {
	if m == nil {
		return
	}
	m.ConfirmLatency.Observe(latency.Seconds())
}

// RecordStageDuration records the duration of a harness stage
func (m *Metrics) RecordStageDuration(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// IsRunning returns true if the metrics server is running
func (m *Metrics) IsRunning() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.server != nil
}
