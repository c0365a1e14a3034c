package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lifecycle metrics - Track campaign state changes
var (
	CampaignsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "influnest_campaigns_created_total",
		Help: "Total number of campaigns created",
	})

	CampaignTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influnest_campaign_transitions_total",
			Help: "Total number of campaign status transitions by target status",
		},
		[]string{"status"},
	)

	PostsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "influnest_posts_added_total",
		Help: "Total number of evidence posts attached to campaigns",
	})

	MetricReports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "influnest_metric_reports_total",
		Help: "Total number of accepted oracle metric reports",
	})

	OracleRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "influnest_oracle_rotations_total",
		Help: "Total number of oracle rotations",
	})
)

// Value metrics - Track escrowed funds
var (
	AmountDeposited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "influnest_amount_deposited_total",
		Help: "Total value deposited into campaign escrows",
	})

	PayoutsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "influnest_payouts_released_total",
		Help: "Total number of milestone payouts released to influencers",
	})

	AmountReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "influnest_amount_released_total",
		Help: "Total value released from escrows to influencers",
	})

	AmountReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "influnest_amount_reclaimed_total",
		Help: "Total value returned from escrows to brands",
	})
)

// Performance metrics - Track operation latency
var (
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "influnest_operation_duration_seconds",
			Help:    "Time taken by lifecycle operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	BatchReportSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "influnest_batch_report_size",
		Help:    "Number of reports in each batch submission",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
	})
)

// Error metrics - Track failures
var (
	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influnest_operation_errors_total",
			Help: "Total number of rejected operations by operation and error kind",
		},
		[]string{"operation", "kind"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influnest_errors_total",
			Help: "Total number of errors by service",
		},
		[]string{"service"},
	)
)

// Pipeline metrics - Track batch report processing
var (
	PipelineWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "influnest_pipeline_worker_count",
		Help: "Number of batch report workers",
	})

	PipelineQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "influnest_pipeline_queue_depth",
		Help: "Number of batch results waiting to be emitted in order",
	})
)

// Cache metrics
var (
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influnest_cache_requests_total",
			Help: "Campaign cache lookups by result",
		},
		[]string{"result"},
	)
)
