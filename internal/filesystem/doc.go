/*
Package filesystem wraps the file operations folio performs on its data
directory and on ingest sources.

# Retries

Library folders and inbox directories may live on network shares. Stat and
Open retry ESTALE (stale file handle) errors with exponential backoff; every
other error is returned immediately. Defaults: 3 retries, 50ms initial
backoff, 500ms cap.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

# Writes

CopyFile, WriteAtomic and WriteAtomicFunc write through a temporary file in
the destination directory and rename it into place. A failed write leaves
the previous content (or nothing) at the destination, never a partial file.
Remove treats an already-missing file as success.

# Metrics

Operations are reported to an Observer registered with SetObserver, labelled
by the volume a VolumeResolver assigns to the path ("originals",
"thumbnails", "database", "source").
*/
package filesystem
