package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainingdesk_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trainingdesk_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Room resolution
	RoomResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainingdesk_room_resolutions_total",
			Help: "Room resolution attempts",
		},
		[]string{"outcome"}, // "ok" or "error"
	)

	// Stream metrics
	StreamConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainingdesk_stream_connections_total",
			Help: "Stream subscription transitions",
		},
		[]string{"event"}, // "opened", "closed", "failed"
	)

	StreamEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainingdesk_stream_events_total",
			Help: "Inbound stream events delivered",
		},
	)

	// Transcript metrics
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainingdesk_messages_appended_total",
			Help: "Messages appended to the transcript",
		},
		[]string{"sender"},
	)

	NormalizeRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainingdesk_normalize_rejected_total",
			Help: "Inbound payloads dropped by the reconciler",
		},
	)

	// Guard metrics
	GuardOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainingdesk_guard_outcomes_total",
			Help: "Guarded side effect outcomes",
		},
		[]string{"outcome"}, // "executed", "skipped", "failed"
	)

	// Upload metrics
	UploadSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainingdesk_upload_submissions_total",
			Help: "Bulk upload submissions",
		},
		[]string{"outcome"},
	)

	UploadQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trainingdesk_upload_queue_depth",
			Help: "Files currently staged for upload",
		},
	)

	// Infrastructure metrics
	GuardStoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trainingdesk_guard_store_latency_seconds",
			Help:    "Guard marker store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"backend"},
	)
)
