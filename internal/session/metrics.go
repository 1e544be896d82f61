package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records worker activity. A nil *Metrics records nothing.
type Metrics struct {
	commands   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	wait       prometheus.Histogram
	queueDepth prometheus.Gauge
}

// NewMetrics creates worker metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taotie",
			Subsystem: "session",
			Name:      "commands_total",
			Help:      "Commands executed by the session worker.",
		}, []string{"command", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taotie",
			Subsystem: "session",
			Name:      "command_duration_seconds",
			Help:      "Command execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"command"}),
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taotie",
			Subsystem: "session",
			Name:      "queue_wait_seconds",
			Help:      "Time a command waited in the queue.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "taotie",
			Subsystem: "session",
			Name:      "queue_depth",
			Help:      "Commands waiting for the worker.",
		}),
	}
	reg.MustRegister(m.commands, m.duration, m.wait, m.queueDepth)
	return m
}

func (m *Metrics) queued(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) observe(command string, err error, took, waited time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.commands.WithLabelValues(command, status).Inc()
	m.duration.WithLabelValues(command).Observe(took.Seconds())
	m.wait.Observe(waited.Seconds())
}
