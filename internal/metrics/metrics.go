package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_db_queries_total",
			Help: "Total number of catalog queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_db_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_db_transaction_duration_seconds",
			Help:    "Catalog transaction duration in seconds by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_db_rows_affected",
			Help:    "Rows affected by bulk catalog statements",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_db_connections_open",
			Help: "Number of open catalog connections",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds by volume and operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_filesystem_operation_errors_total",
			Help: "Failed filesystem operations by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_filesystem_retry_attempts_total",
			Help: "Retries after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_filesystem_retry_failures_total",
			Help: "Operations that exhausted their retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_filesystem_retry_duration_seconds",
			Help:    "Total time spent in operations that exhausted their retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_filesystem_stale_errors_total",
			Help: "ESTALE errors seen by operation and volume",
		},
		[]string{"operation", "volume"},
	)
)

// Asset pipeline metrics
var (
	AssetOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_asset_operations_total",
			Help: "Asset store operations by operation and status",
		},
		[]string{"operation", "status"}, // ingest, apply_edit, purge, regenerate
	)

	AssetOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_asset_operation_duration_seconds",
			Help:    "Asset store operation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	AssetLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "folio_asset_lock_wait_seconds",
			Help:    "Time spent waiting for another operation on the same asset",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)

	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_thumbnail_generations_total",
			Help: "Thumbnail generations by reason and status",
		},
		[]string{"reason", "status"}, // reason: ingest, edit, regenerate
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"reason"},
	)
)

// Trash metrics
var (
	TrashPurgedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_trash_purged_total",
			Help: "Items permanently removed from the trash",
		},
		[]string{"type"}, // "image", "folder"
	)

	TrashPurgeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_trash_purge_failures_total",
			Help: "Items that could not be removed from the trash",
		},
		[]string{"type"},
	)

	RetentionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_retention_runs_total",
			Help: "Trash retention job runs by status",
		},
		[]string{"status"},
	)

	RetentionLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_retention_last_run_timestamp",
			Help: "Unix time of the last trash retention run",
		},
	)
)

// Inbox and editor metrics
var (
	InboxEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_inbox_events_total",
			Help: "Inbox watcher events by result",
		},
		[]string{"result"}, // ingested, skipped, failed
	)

	EditorSessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_editor_sessions_open",
			Help: "Number of open editor sessions",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_memory_usage_ratio",
			Help: "Heap usage as a fraction of the soft memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_memory_paused",
			Help: "1 while batch image work is paused for memory",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "folio_memory_pauses_total",
			Help: "Times batch image work was paused for memory",
		},
	)
)

// Library metrics
var (
	LibraryAssetsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "folio_library_assets",
			Help: "Assets in the catalog by state",
		},
		[]string{"state"}, // "live", "trashed"
	)

	LibraryFoldersTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "folio_library_folders",
			Help: "Folders in the catalog by state",
		},
		[]string{"state"},
	)

	LibraryTagsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_library_tags",
			Help: "Tags in the catalog",
		},
	)
)

// AppInfo exposes build information as labels.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "folio_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)

// Status returns the status label for err.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
