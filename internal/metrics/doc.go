// Package metrics provides Prometheus instrumentation for folio.
//
// All metrics are prefixed with "folio_" and registered on the default
// registry through promauto. They fall into these groups:
//
//   - HTTP: request counts, durations and in-flight requests of the local API.
//   - Database: catalog query counts and durations, transaction outcomes,
//     rows touched by bulk statements, open connections.
//   - Filesystem: per-volume operation latency and errors, plus retry
//     counters for stale file handles. Recorded through the
//     filesystem.Observer returned by NewFilesystemObserver.
//   - Asset pipeline: ingest/apply_edit/purge/regenerate outcomes, time spent
//     waiting on the per-asset lock, thumbnail generations by reason.
//   - Trash: purged items, purge failures, retention job runs.
//   - Library: live and trashed asset/folder counts and tag count, refreshed
//     by a Collector.
//
// InitializeMetrics pre-creates label combinations so dashboards see zero
// values before the first event.
package metrics
