package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

const namespace = "npcbrain"

// BrainMetrics exports brain activity as Prometheus series. One instance is
// shared by every brain in the process.
type BrainMetrics struct {
	thinks   *prometheus.CounterVec
	batch    prometheus.Histogram
	skipped  *prometheus.CounterVec
	executed *prometheus.CounterVec
	broken   *prometheus.CounterVec
	faults   *prometheus.CounterVec
	evicted  prometheus.Counter
	brains   prometheus.Gauge
}

// NewBrainMetrics creates the collectors and registers them with reg.
//
// Precondition: reg must be non-nil; registering twice on one registry panics.
func NewBrainMetrics(reg prometheus.Registerer) *BrainMetrics {
	m := &BrainMetrics{
		thinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "think_cycles_total",
			Help:      "Completed think cycles by behavior state.",
		}, []string{"state"}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "think_batch_size",
			Help:      "Actions scheduled per think cycle.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "think_skipped_total",
			Help:      "Ticks that did not run a think cycle, by reason.",
		}, []string{"reason"}),
		executed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_executed_total",
			Help:      "Action executions by action name.",
		}, []string{"action"}),
		broken: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_broken_total",
			Help:      "Scheduled actions cancelled before running, by action name.",
		}, []string{"action"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_faults_total",
			Help:      "Failed or panicking action calls, by action and phase.",
		}, []string{"action", "phase"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggro_evictions_total",
			Help:      "Aggro entries removed by table cleanup.",
		}),
		brains: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "brains_active",
			Help:      "Brains currently spawned.",
		}),
	}
	reg.MustRegister(m.thinks, m.batch, m.skipped, m.executed, m.broken, m.faults, m.evicted, m.brains)
	return m
}

var _ ai.Metrics = (*BrainMetrics)(nil)

// ThinkCompleted implements ai.Metrics.
func (m *BrainMetrics) ThinkCompleted(state ai.BehaviorState, scheduled int) {
	m.thinks.WithLabelValues(state.String()).Inc()
	m.batch.Observe(float64(scheduled))
}

// ThinkSkipped implements ai.Metrics.
func (m *BrainMetrics) ThinkSkipped(reason string) { m.skipped.WithLabelValues(reason).Inc() }

// ActionExecuted implements ai.Metrics.
func (m *BrainMetrics) ActionExecuted(action string) { m.executed.WithLabelValues(action).Inc() }

// ActionBroken implements ai.Metrics.
func (m *BrainMetrics) ActionBroken(action string) { m.broken.WithLabelValues(action).Inc() }

// ActionFault implements ai.Metrics.
func (m *BrainMetrics) ActionFault(action, phase string) {
	m.faults.WithLabelValues(action, phase).Inc()
}

// AggroEvicted implements ai.Metrics.
func (m *BrainMetrics) AggroEvicted(n int) {
	if n > 0 {
		m.evicted.Add(float64(n))
	}
}

// BrainSpawned increments the active brain gauge.
func (m *BrainMetrics) BrainSpawned() { m.brains.Inc() }

// BrainDespawned decrements the active brain gauge.
func (m *BrainMetrics) BrainDespawned() { m.brains.Dec() }

// MetricsServer serves /metrics for one gatherer.
type MetricsServer struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewMetricsServer builds an HTTP server exposing g on addr.
//
// Precondition: g and logger must be non-nil.
func NewMetricsServer(addr string, g prometheus.Gatherer, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &MetricsServer{
		srv:    &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Handler returns the server's HTTP handler.
func (s *MetricsServer) Handler() http.Handler { return s.srv.Handler }

// Start listens until ctx is cancelled or Stop is called.
func (s *MetricsServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	s.logger.Info("metrics endpoint listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down, waiting up to five seconds for scrapes in flight.
func (s *MetricsServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics shutdown", zap.Error(err))
	}
}
