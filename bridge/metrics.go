package bridge

import "github.com/prometheus/client_golang/prometheus"

var streams = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "reactive",
	Subsystem: "bridge",
	Name:      "streams",
	Help:      "Open websocket streams",
})

// RegisterMetrics adds the bridge gauges to reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(streams)
}
