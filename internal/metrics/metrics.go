// Package metrics exposes Prometheus instrumentation for the delivery engine.
// A nil *Delivery is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// Delivery records provider requests, token outcomes and evictions.
type Delivery struct {
	requests  *prometheus.CounterVec
	tokens    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	dispatch  *prometheus.CounterVec
}

// NewDelivery registers the delivery metrics on the provided registerer.
func NewDelivery(reg prometheus.Registerer) *Delivery {
	if reg == nil {
		return &Delivery{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_provider_requests_total",
		Help: "Outbound push provider requests by channel and outcome.",
	}, []string{"channel", "outcome"})
	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_tokens_total",
		Help: "Device tokens addressed by channel and outcome.",
	}, []string{"channel", "outcome"})
	evictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_token_evictions_total",
		Help: "Device tokens removed after a provider reported them unregistered.",
	}, []string{"channel"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "push_dispatch_duration_seconds",
		Help:    "Duration of a full dispatch by path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"path"})
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_dispatches_total",
		Help: "Dispatches by path and outcome.",
	}, []string{"path", "outcome"})
	reg.MustRegister(requests, tokens, evictions, duration, dispatches)
	return &Delivery{
		requests:  requests,
		tokens:    tokens,
		evictions: evictions,
		duration:  duration,
		dispatch:  dispatches,
	}
}

// ObserveRequest records one provider request covering n tokens.
func (d *Delivery) ObserveRequest(channel dispatch.Channel, n int, err error) {
	if d == nil || d.requests == nil {
		return
	}
	outcome := outcomeFor(err)
	d.requests.WithLabelValues(string(channel), outcome).Inc()
	d.tokens.WithLabelValues(string(channel), outcome).Add(float64(n))
}

// IncEviction counts one evicted token.
func (d *Delivery) IncEviction(channel dispatch.Channel) {
	if d == nil || d.evictions == nil {
		return
	}
	d.evictions.WithLabelValues(string(channel)).Inc()
}

// ObserveDispatch records a whole single or bulk dispatch.
func (d *Delivery) ObserveDispatch(path string, took time.Duration, err error) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.WithLabelValues(normalizeLabel(path)).Observe(took.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	d.dispatch.WithLabelValues(normalizeLabel(path), outcome).Inc()
}

func outcomeFor(err error) string {
	if err == nil {
		return "ok"
	}
	if dispatch.IsConfiguration(err) {
		return dispatch.ErrorConfiguration.String()
	}
	if _, ok := dispatch.InvalidToken(err); ok {
		return dispatch.ErrorInvalid.String()
	}
	var kind = dispatch.ErrorUnknown
	if de, ok := asDelivery(err); ok {
		kind = de.Kind
	}
	return kind.String()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
