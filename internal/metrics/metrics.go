package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_sessions_started_total",
			Help: "Exam sessions that entered the exam state, including resumes",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exam_sessions_active",
			Help: "Live session machines hosted by this process",
		},
	)

	SessionsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_finalized_total",
			Help: "Terminal transitions by resulting status and trigger",
		},
		[]string{"status", "trigger"},
	)

	ViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_violations_total",
			Help: "Integrity violations counted by the monitor",
		},
		[]string{"type"},
	)

	CheckpointFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_checkpoint_failures_total",
			Help: "Best-effort answer checkpoints that failed to persist",
		},
	)

	FinalWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_final_write_duration_seconds",
			Help:    "Duration of terminal writes including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ScoreRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_score_ratio",
			Help:    "Submitted score divided by total questions",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

var WSConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "ws_connections_open",
		Help: "Open examinee WebSocket connections",
	},
)
