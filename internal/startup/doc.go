// Package startup handles configuration loading and the startup and
// shutdown log output.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - FOLIO_DATA_DIR: catalog and image store root (default: <user config dir>/folio)
//   - FOLIO_ADDR: listen address of the local API (default: 127.0.0.1:7420)
//   - FOLIO_INBOX_DIR: directory watched for new images (default: disabled)
//   - TRASH_RETENTION: age after which trashed items are purged, 0 disables (default: 720h)
//   - RETENTION_INTERVAL: how often the retention job runs (default: 1h)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: enable or disable the metrics server (default: true)
//   - FOLIO_WORKERS: parallelism of batch operations (default: from CPU count)
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_HEALTH_CHECKS: log health check requests (default: false)
//
// The data directory must be writable. Below it the catalog lives in
// folio.db and images under images/original and images/thumbnails.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
package startup
