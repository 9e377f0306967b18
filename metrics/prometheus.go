package metrics

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Prometheus implements Recorder and TransitionRecorder on top of
// client_golang collectors.
type Prometheus struct {
	calls       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
}

// PrometheusOption customizes the collectors.
type PrometheusOption func(*prometheusConfig)

type prometheusConfig struct {
	namespace string
	buckets   []float64
}

// WithNamespace prefixes every metric name.
func WithNamespace(ns string) PrometheusOption {
	return func(c *prometheusConfig) { c.namespace = ns }
}

// WithBuckets sets the duration histogram buckets, in seconds.
func WithBuckets(buckets ...float64) PrometheusOption {
	return func(c *prometheusConfig) {
		if len(buckets) > 0 {
			c.buckets = buckets
		}
	}
}

// NewPrometheus builds the collectors and registers them on reg
// (prometheus.DefaultRegisterer when nil).
func NewPrometheus(reg prometheus.Registerer, opts ...PrometheusOption) (*Prometheus, error) {
	cfg := prometheusConfig{namespace: "dispatch", buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "handler_calls_total",
			Help:      "Number of handler calls by pipeline and outcome",
		}, []string{"pipeline", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "handler_duration_seconds",
			Help:      "Handler latency by pipeline",
			Buckets:   cfg.buckets,
		}, []string{"pipeline"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "workflow_transitions_total",
			Help:      "Applied workflow transitions",
		}, []string{"workflow", "action", "origin", "target"}),
	}

	for _, c := range []prometheus.Collector{p.calls, p.duration, p.transitions} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "metrics registration failed").
				WithTextCode("METRICS_REGISTRATION_FAILED").
				WithMetadata(map[string]any{"namespace": cfg.namespace})
		}
	}
	return p, nil
}

func (p *Prometheus) RecordDuration(name string, d time.Duration) {
	p.duration.WithLabelValues(name).Observe(d.Seconds())
}

func (p *Prometheus) RecordError(name string) {
	p.calls.WithLabelValues(name, OutcomeError).Inc()
}

func (p *Prometheus) RecordSuccess(name string) {
	p.calls.WithLabelValues(name, OutcomeSuccess).Inc()
}

func (p *Prometheus) RecordTransition(workflow, action, origin, target string) {
	p.transitions.WithLabelValues(workflow, action, origin, target).Inc()
}
