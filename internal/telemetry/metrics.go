package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the daemon's Prometheus registry. It is purely additive: no
// control-plane decision reads these counters back, they only observe.
type Metrics struct {
	Registry *prometheus.Registry

	ProbeTotal           *prometheus.CounterVec
	TripwireFiredTotal   *prometheus.CounterVec
	SwitchTotal          *prometheus.CounterVec
	DupEnableLatencySecs prometheus.Histogram
	GlobalRisk           prometheus.Gauge
}

// NewMetrics builds and registers the daemon's metric set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		ProbeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathsteerd",
			Name:      "probe_total",
			Help:      "Count of uplink probes by uplink and result.",
		}, []string{"uplink", "result"}),
		TripwireFiredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathsteerd",
			Name:      "tripwire_fired_total",
			Help:      "Count of tripwire firings by reason.",
		}, []string{"reason"}),
		SwitchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathsteerd",
			Name:      "switch_total",
			Help:      "Count of switch actuations by result.",
		}, []string{"result"}),
		DupEnableLatencySecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pathsteerd",
			Name:      "duplication_enable_latency_seconds",
			Help:      "Latency of installing the duplication rule.",
			Buckets:   prometheus.DefBuckets,
		}),
		GlobalRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pathsteerd",
			Name:      "global_risk",
			Help:      "Most recent global_risk value from the prediction engine.",
		}),
	}

	reg.MustRegister(m.ProbeTotal, m.TripwireFiredTotal, m.SwitchTotal, m.DupEnableLatencySecs, m.GlobalRisk)
	return m
}
