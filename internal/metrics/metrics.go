package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whiteboard_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whiteboard_ws_connections_active",
			Help: "Open real-time connections",
		},
	)

	RoomsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whiteboard_rooms_live",
			Help: "Rooms held in memory",
		},
	)

	RelayEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_relay_events_total",
			Help: "Inbound real-time events by type",
		},
		[]string{"event"},
	)

	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_relay_frames_sent_total",
			Help: "Outbound frames queued to connections",
		},
		[]string{"event"},
	)

	InvalidFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whiteboard_relay_invalid_frames_total",
			Help: "Inbound frames dropped as malformed",
		},
	)

	SlowConsumersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whiteboard_relay_slow_consumers_dropped_total",
			Help: "Connections closed because their send queue was full",
		},
	)

	RoomsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_rooms_evicted_total",
			Help: "Room logs flattened out of memory",
		},
		[]string{"reason"}, // "idle" or "compacted"
	)

	ArchiveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whiteboard_archive_failures_total",
			Help: "Room logs that could not be persisted as snapshots",
		},
	)

	// Business metrics
	SessionsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_sessions_saved_total",
			Help: "Snapshots persisted",
		},
		[]string{"source"}, // "client" or "archive"
	)

	UsersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whiteboard_users_created_total",
			Help: "Total users created",
		},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whiteboard_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whiteboard_store_latency_seconds",
			Help:    "Relational store query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .5},
		},
		[]string{"op"},
	)
)
