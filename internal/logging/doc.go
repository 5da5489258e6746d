// Package logging provides the leveled logger used across folio.
//
// Levels, lowest first:
//   - DEBUG: verbose diagnostics (decode fallbacks, lock waits, per-file steps)
//   - INFO: lifecycle messages (ingest, purge, startup)
//   - WARN: recoverable problems (missing files during purge, wallpaper failures)
//   - ERROR: failed operations
//
// The level comes from DEBUG (any truthy value forces debug) or LOG_LEVEL and
// can be changed at runtime with SetLevel.
package logging
