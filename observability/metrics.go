// Package observability exposes the process metrics served on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LiveSessions tracks the number of registered real-time sessions.
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dm_live_sessions",
		Help: "Number of currently registered real-time sessions.",
	})

	// MessagesPersisted counts messages durably stored by the pipeline.
	MessagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_messages_persisted_total",
		Help: "Messages persisted by the delivery pipeline.",
	})

	// SessionPushes counts addressed pushes by server event name.
	SessionPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_session_pushes_total",
		Help: "Pushes delivered to live sessions, by event.",
	}, []string{"event"})

	// SessionPushesDropped counts pushes lost to full session buffers.
	SessionPushesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_session_pushes_dropped_total",
		Help: "Pushes dropped because a session buffer was full.",
	})

	// BusEventsDropped counts publications lost to a full bus buffer.
	BusEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_bus_events_dropped_total",
		Help: "Domain events dropped on publish because the bus was full.",
	})
)
