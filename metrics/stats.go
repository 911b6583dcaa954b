package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fxsml/reactive/broker"
)

// statsCollector reports a broker.Stats snapshot taken once per scrape.
type statsCollector struct {
	stats func() broker.Stats

	topics        *prometheus.Desc
	subscribers   *prometheus.Desc
	workers       *prometheus.Desc
	activeWorkers *prometheus.Desc
	queued        *prometheus.Desc
}

func newStatsCollector(stats func() broker.Stats) *statsCollector {
	desc := func(subsystem, name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return &statsCollector{
		stats:         stats,
		topics:        desc("broker", "topics", "Topics in use"),
		subscribers:   desc("broker", "subscribers", "Active subscriptions across all topics"),
		workers:       desc("pool", "workers", "Delivery workers running"),
		activeWorkers: desc("pool", "active_workers", "Delivery workers running a callback"),
		queued:        desc("pool", "queued_deliveries", "Mailboxes waiting for a worker"),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.topics
	ch <- c.subscribers
	ch <- c.workers
	ch <- c.activeWorkers
	ch <- c.queued
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.topics, prometheus.GaugeValue, float64(s.Topics))
	ch <- prometheus.MustNewConstMetric(c.subscribers, prometheus.GaugeValue, float64(s.Subscribers))
	ch <- prometheus.MustNewConstMetric(c.workers, prometheus.GaugeValue, float64(s.Workers))
	ch <- prometheus.MustNewConstMetric(c.activeWorkers, prometheus.GaugeValue, float64(s.ActiveWorkers))
	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(s.QueuedDeliveries))
}
