// Package database is the folio catalog: the SQLite record layer for
// images, folders, tags, notes and settings.
//
// Rows carry a nullable deleted_at column; a non-null value means the row is
// in the trash. Soft-deleting a folder does not touch its children or the
// images inside it. Listings exclude trashed rows and flag images whose
// folder is trashed as orphaned.
//
// Timestamps are stored as Unix nanoseconds. The database runs in WAL mode
// with foreign keys enforced; multi-statement mutations go through WithTx.
package database
