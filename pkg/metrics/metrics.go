// Package metrics exposes Prometheus counters for the decision cycle and,
// in daemon mode, serves them over HTTP.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hwaldner/autowifi/pkg"
	"github.com/hwaldner/autowifi/pkg/logx"
)

// Metrics implements decision.Observer over a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal   *prometheus.CounterVec
	switchesTotal prometheus.Counter
	apActivations prometheus.Counter
	cycleFailures prometheus.Counter
	connectTries  prometheus.Counter
	cycleDuration prometheus.Histogram
}

// New creates and registers the metric set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autowifi_cycles_total",
			Help: "Decision cycles by outcome decision.",
		}, []string{"decision"}),
		switchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autowifi_client_switches_total",
			Help: "Successful switches to a client network.",
		}),
		apActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autowifi_ap_activations_total",
			Help: "Successful access point activations.",
		}),
		cycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autowifi_cycle_failures_total",
			Help: "Cycles that ended with a terminal error.",
		}),
		connectTries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autowifi_connect_attempts_total",
			Help: "Client connection attempts, successful or not.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autowifi_cycle_duration_seconds",
			Help:    "Wall time of one decision cycle.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
	m.registry.MustRegister(
		m.cyclesTotal, m.switchesTotal, m.apActivations,
		m.cycleFailures, m.connectTries, m.cycleDuration,
	)
	return m
}

// ObserveCycle accounts one completed cycle.
func (m *Metrics) ObserveCycle(rec *pkg.CycleRecord) {
	m.cyclesTotal.WithLabelValues(string(rec.Decision)).Inc()
	m.connectTries.Add(float64(len(rec.Tried)))
	m.cycleDuration.Observe(float64(rec.DurationMs) / 1000)

	if !rec.Success {
		m.cycleFailures.Inc()
		return
	}
	switch rec.Decision {
	case pkg.DecisionSwitchClient:
		m.switchesTotal.Inc()
	case pkg.DecisionActivateAP, pkg.DecisionForcedAP:
		m.apActivations.Inc()
	}
}

// Server serves the registry over HTTP. Only used in daemon mode; a
// one-shot invocation has nothing to scrape.
type Server struct {
	metrics *Metrics
	logger  *logx.Logger
	srv     *http.Server
}

// NewServer creates a metrics HTTP server.
func NewServer(m *Metrics, logger *logx.Logger) *Server {
	return &Server{metrics: m, logger: logger}
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()
	s.logger.Info("Metrics server listening", "port", port)
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("Metrics server shutdown", "error", err)
	}
}
