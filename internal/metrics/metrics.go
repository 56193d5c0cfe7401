package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analysis metrics
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dutylens_analyses_total",
			Help: "Total number of pillar analyses run",
		},
		[]string{"pillar", "mode"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dutylens_analysis_duration_seconds",
			Help:    "Duration of pillar analyses in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pillar"},
	)

	FindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dutylens_findings_total",
			Help: "Total number of findings produced",
		},
		[]string{"pillar", "severity"},
	)

	// Dataset ingestion metrics
	DatasetRowsLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dutylens_dataset_rows_loaded",
			Help: "Number of rows loaded per dataset",
		},
		[]string{"dataset"},
	)

	DatasetLoadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dutylens_dataset_load_errors_total",
			Help: "Total number of dataset load failures",
		},
		[]string{"dataset"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dutylens_cache_hits_total",
			Help: "Total number of dataset cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dutylens_cache_misses_total",
			Help: "Total number of dataset cache misses",
		},
	)

	// Rule set change notifications
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dutylens_notifications_published_total",
			Help: "Total number of rule change notifications published",
		},
		[]string{"subject"},
	)

	NotificationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dutylens_notification_errors_total",
			Help: "Total number of failed notification publishes",
		},
	)
)
