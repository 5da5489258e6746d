// Package main is the entry point of the Folio server.
//
// Folio is a local-first image library. It copies imported images into
// its own storage, keeps a JPEG thumbnail per image in sync with
// non-destructive edits (rotate, flip, crop), organizes images into
// folders with tags and notes, and moves deleted items to a trash that can
// be restored or emptied.
//
// # Application Lifecycle
//
//  1. Memory: sets the runtime soft limit from GOMEMLIMIT or FOLIO_MEMORY_LIMIT
//  2. Configuration: reads environment variables and validates the data directory
//  3. Imaging: initializes libvips when available (pure Go decoders otherwise)
//  4. Catalog: opens the SQLite database and runs migrations
//  5. Services: asset store, trash coordinator, editor session registry
//  6. Background jobs: trash retention and idle editor pruning (gocron),
//     inbox watcher (fsnotify, optional), metrics collector
//  7. HTTP: the local JSON API on FOLIO_ADDR and Prometheus metrics on METRICS_PORT
//  8. Shutdown: on SIGINT/SIGTERM stops the inbox, jobs and collector, then
//     drains both HTTP servers and closes the catalog
//
// # Data Directory
//
// Everything lives under FOLIO_DATA_DIR:
//
//	folio.db              catalog
//	images/original/      canonical copies, named <id><ext>
//	images/thumbnails/    derived thumbnails, named <id>_thumb.jpg
//
// Thumbnails are a cache. The folio-regen command rebuilds them from the
// originals and the edits stored in the catalog.
//
// # Build Requirements
//
// CGO is required for SQLite. libvips is optional and only used to decode
// formats the Go decoders cannot read.
package main
