package eval

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goutils "go.viam.com/utils"

	"github.com/makolon/og-vlm/logging"
	"github.com/makolon/og-vlm/plan"
)

const metricsNamespace = "og_eval"

// Step outcomes as recorded in metrics.
const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
)

// Metrics holds the run's Prometheus collectors. Each Metrics has its own registry so that
// several runs in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	episodes       *prometheus.CounterVec
	steps          *prometheus.CounterVec
	planFailures   prometheus.Counter
	goalFraction   prometheus.Histogram
	episodeSeconds prometheus.Histogram
}

// NewMetrics creates and registers the run's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "episodes_total",
			Help:      "Episodes evaluated, by whether the goal was reached.",
		}, []string{"success"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "steps_total",
			Help:      "Plan steps dispatched, by op and outcome.",
		}, []string{"op", "outcome"}),
		planFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "plan_failures_total",
			Help:      "Episodes for which no plan could be obtained.",
		}),
		goalFraction: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "goal_fraction",
			Help:      "Fraction of goal predicates satisfied at the end of an episode.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		episodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "episode_duration_seconds",
			Help:      "Wall time of an episode, from reset to scoring.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	m.registry.MustRegister(m.episodes, m.steps, m.planFailures, m.goalFraction, m.episodeSeconds)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// unknownOpLabel is the op label of every step whose op is not one of plan.Ops.
const unknownOpLabel = "UNKNOWN"

func (m *Metrics) observeStep(step plan.Step, outcome string) {
	label := step.Op().String()
	if _, unknown := step.(plan.Unknown); unknown {
		label = unknownOpLabel
	}
	m.steps.WithLabelValues(label, outcome).Inc()
}

func (m *Metrics) observeEpisode(ep Episode) {
	if ep.Success {
		m.episodes.WithLabelValues("true").Inc()
	} else {
		m.episodes.WithLabelValues("false").Inc()
	}
	if ep.PlanFailed {
		m.planFailures.Inc()
	}
	m.goalFraction.Observe(ep.Fraction)
	m.episodeSeconds.Observe(ep.Duration.Seconds())
}

// Serve exposes the collectors at /metrics on addr until the returned stop function is called.
// The bound address is returned, which matters when addr asks for port 0.
func (m *Metrics) Serve(addr string, logger logging.Logger) (string, func(ctx context.Context) error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listening for metrics on %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	goutils.PanicCapturingGo(func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server stopped", "error", err)
		}
	})
	logger.Infow("serving metrics", "address", listener.Addr().String())
	return listener.Addr().String(), server.Shutdown, nil
}
