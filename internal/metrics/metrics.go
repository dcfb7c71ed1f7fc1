// Package metrics exposes the hub's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesReceived counts parsed messages per decoder source.
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acarshub_messages_received_total",
			Help: "Messages received and parsed, by decoder source",
		},
		[]string{"source"},
	)

	// MessageErrors counts messages that arrived with decode errors.
	MessageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acarshub_message_errors_total",
			Help: "Messages carrying a non-zero decoder error count, by source",
		},
		[]string{"source"},
	)

	// ParseFailures counts frames that could not be parsed as JSON.
	ParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acarshub_parse_failures_total",
			Help: "Received frames that failed JSON parsing, by source",
		},
		[]string{"source"},
	)

	// Reconnects counts listener reconnection attempts.
	Reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acarshub_listener_reconnects_total",
			Help: "Listener reconnect attempts, by source",
		},
		[]string{"source"},
	)

	// QueueDrops counts oldest-item evictions from the bounded queues.
	QueueDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acarshub_queue_drops_total",
			Help: "Messages evicted from a full bounded queue, by queue name",
		},
		[]string{"queue"},
	)

	// MessagesSaved counts full message rows written to the primary store.
	MessagesSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "acarshub_messages_saved_total",
			Help: "Full message rows committed to the primary store",
		},
	)

	// WriteFailures counts rolled-back message writes.
	WriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "acarshub_write_failures_total",
			Help: "Message writes rolled back due to a storage error",
		},
	)

	// BackupWriteFailures counts failed writes to the backup store.
	BackupWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "acarshub_backup_write_failures_total",
			Help: "Message writes to the backup store that failed",
		},
	)

	// AlertMatches counts persisted alert term matches.
	AlertMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acarshub_alert_matches_total",
			Help: "Alert term matches persisted, by term",
		},
		[]string{"term"},
	)

	// LiveClients tracks currently connected live-view clients.
	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "acarshub_live_clients",
			Help: "Currently connected live-view websocket clients",
		},
	)

	// SearchRequests counts full-text search requests served.
	SearchRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "acarshub_search_requests_total",
			Help: "Full-text search requests served",
		},
	)
)
