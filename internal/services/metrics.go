package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	videoTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tv_video_transitions_total",
			Help: "Video generation units that reached a terminal state",
		},
		[]string{"status"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tv_generation_duration_seconds",
			Help:    "Time spent in the video generation driver",
			Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode", "status"},
	)

	pollTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tv_poll_timeouts_total",
		Help: "Poll loops that ran out of checks before the job finished",
	})

	archiveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tv_archive_failures_total",
		Help: "Archive uploads that failed after all attempts",
	})

	guardRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tv_guard_rejections_total",
		Help: "Processing runs rejected because the order was already claimed or done",
	})

	webhookUnmatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tv_webhook_unmatched_total",
		Help: "Status callbacks for job ids with no matching video",
	})
)
