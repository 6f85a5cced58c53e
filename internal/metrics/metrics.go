package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhall_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyhall_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	ProfilesRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyhall_profiles_registered_total",
			Help: "Total profiles registered",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhall_messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"room_kind"}, // "class", "direct" or "group"
	)

	SendsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhall_sends_rejected_total",
			Help: "Total message sends rejected by gating",
		},
		[]string{"reason"},
	)

	LessonTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhall_lesson_transitions_total",
			Help: "Total lesson lifecycle transitions",
		},
		[]string{"to"},
	)

	GroupsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studyhall_study_groups_created_total",
			Help: "Total study groups created",
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhall_ws_connections",
			Help: "Currently connected WebSocket clients",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhall_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studyhall_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	PostgresLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studyhall_postgres_latency_seconds",
			Help:    "PostgreSQL query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
