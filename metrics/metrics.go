// Package metrics exports broker activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fxsml/reactive/broker"
)

const namespace = "reactive"

// Metrics implements broker.Observer with per-topic Prometheus series.
type Metrics struct {
	published   *prometheus.CounterVec
	evicted     *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	delivered   *prometheus.CounterVec
	failed      *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	subscribers *prometheus.GaugeVec
}

var _ broker.Observer = (*Metrics)(nil)

// New creates the metric vectors. Call Register to expose them.
func New() *Metrics {
	return &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "published_total",
			Help:      "Messages accepted by Publish",
		}, []string{"topic"}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "evicted_total",
			Help:      "Retained messages dropped to make room for newer ones",
		}, []string{"topic"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "rejected_total",
			Help:      "Publishes refused because a subscriber mailbox was full",
		}, []string{"topic"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deliveries",
			Name:      "dropped_total",
			Help:      "Messages skipped for a subscriber whose mailbox was full",
		}, []string{"topic"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deliveries",
			Name:      "succeeded_total",
			Help:      "OnNext calls that returned without error",
		}, []string{"topic"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deliveries",
			Name:      "failed_total",
			Help:      "OnNext calls that returned an error or panicked",
		}, []string{"topic"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "deliveries",
			Name:      "duration_seconds",
			Help:      "Time spent in successful OnNext calls",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"topic"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "topics",
			Name:      "subscribers",
			Help:      "Active subscriptions per topic",
		}, []string{"topic"}),
	}
}

// Register adds the per-topic series to reg. If stats is not nil, broker
// wide gauges read from it on every scrape are registered too.
func (m *Metrics) Register(reg prometheus.Registerer, stats func() broker.Stats) {
	reg.MustRegister(
		m.published,
		m.evicted,
		m.rejected,
		m.dropped,
		m.delivered,
		m.failed,
		m.latency,
		m.subscribers,
	)
	if stats != nil {
		reg.MustRegister(newStatsCollector(stats))
	}
}

// Published counts an accepted message and, if evicted, a retention
// eviction.
func (m *Metrics) Published(topic string, evicted bool) {
	m.published.WithLabelValues(topic).Inc()
	if evicted {
		m.evicted.WithLabelValues(topic).Inc()
	}
}

// Rejected counts a publish refused with broker.ErrBackpressure.
func (m *Metrics) Rejected(topic string) {
	m.rejected.WithLabelValues(topic).Inc()
}

// Dropped counts a message skipped for one full subscriber.
func (m *Metrics) Dropped(topic string) {
	m.dropped.WithLabelValues(topic).Inc()
}

// Delivered counts a successful OnNext and records its duration.
func (m *Metrics) Delivered(topic string, d time.Duration) {
	m.delivered.WithLabelValues(topic).Inc()
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}

// Failed counts an OnNext that returned an error or panicked.
func (m *Metrics) Failed(topic string) {
	m.failed.WithLabelValues(topic).Inc()
}

// Subscribed increments the subscriber gauge of topic.
func (m *Metrics) Subscribed(topic string) {
	m.subscribers.WithLabelValues(topic).Inc()
}

// Unsubscribed decrements the subscriber gauge of topic.
func (m *Metrics) Unsubscribed(topic string) {
	m.subscribers.WithLabelValues(topic).Dec()
}
