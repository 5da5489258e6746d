// Package workers sizes the bounded worker pools used by batch operations
// (multi-file ingest, thumbnail regeneration, emptying the trash).
//
// Sizes are derived from GOMAXPROCS, which respects container CPU limits, and
// scaled by the character of the work. FOLIO_WORKERS overrides the computed
// value for every pool.
package workers
