// Package metrics holds the bridge's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Frame relay directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Metrics is the collector set one bridge instance registers and shares.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	FramesRelayed  *prometheus.CounterVec
	DroppedMedia   prometheus.Counter
	ToolDuration   *prometheus.HistogramVec
	CallsFinalized *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voxbridge_active_sessions",
			Help: "Number of live call sessions",
		}),
		FramesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxbridge_frames_relayed_total",
			Help: "Audio frames relayed between the caller and the AI session",
		}, []string{"direction"}),
		DroppedMedia: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voxbridge_dropped_media_total",
			Help: "Outbound audio frames dropped because the write queue was full",
		}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "voxbridge_tool_duration_seconds",
			Help: "Duration of tool invocations",
		}, []string{"tool"}),
		CallsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voxbridge_calls_finalized_total",
			Help: "Finished calls by end reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.ActiveSessions, m.FramesRelayed, m.DroppedMedia, m.ToolDuration, m.CallsFinalized)
	return m
}

// ObserveTool records one tool invocation.
func (m *Metrics) ObserveTool(tool string, d time.Duration) {
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}
