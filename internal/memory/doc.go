// Package memory controls how much memory image processing may use.
//
// Decoding full-size originals is the dominant allocation in Folio: a
// 40-megapixel photo needs well over 100 MiB before it is scaled down.
// Batch operations such as importing a folder or regenerating every
// thumbnail decode several of those at once, so this package offers two
// tools:
//
//   - [ConfigureFromEnv] sets the runtime soft memory limit from
//     GOMEMLIMIT or FOLIO_MEMORY_LIMIT (bytes, scaled by MEMORY_RATIO,
//     default 0.85).
//   - [Guard] samples heap usage against that limit and blocks batch
//     workers between items while usage is above the pause threshold,
//     resuming once it drops below the resume threshold.
//
// Without a limit the guard never blocks.
//
// # Metrics
//
//   - folio_memory_usage_ratio: heap usage as a fraction of the limit
//   - folio_memory_paused: 1 while batch work is paused
//   - folio_memory_pauses_total: number of pauses
package memory
