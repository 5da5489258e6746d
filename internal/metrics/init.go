package metrics

import "folio/internal/filesystem"

// InitializeMetrics pre-populates the expected label combinations so every
// series is exported from the first scrape. Call once at startup.
func InitializeMetrics() {
	volumes := []string{
		filesystem.VolumeOriginals, filesystem.VolumeThumbnails,
		filesystem.VolumeDatabase, filesystem.VolumeSource, filesystem.VolumeUnknown,
	}

	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "copy", "write", "remove"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
		for _, op := range []string{"stat", "open"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"ingest", "apply_edit", "purge", "regenerate"} {
		AssetOperationsTotal.WithLabelValues(op, "success")
		AssetOperationsTotal.WithLabelValues(op, "error")
		AssetOperationDuration.WithLabelValues(op)
	}

	for _, reason := range []string{"ingest", "edit", "regenerate"} {
		ThumbnailGenerationsTotal.WithLabelValues(reason, "success")
		ThumbnailGenerationsTotal.WithLabelValues(reason, "error")
		ThumbnailGenerationDuration.WithLabelValues(reason)
	}

	for _, typ := range []string{"image", "folder"} {
		TrashPurgedTotal.WithLabelValues(typ)
		TrashPurgeFailuresTotal.WithLabelValues(typ)
	}

	for _, result := range []string{"ingested", "skipped", "failed"} {
		InboxEventsTotal.WithLabelValues(result)
	}

	for _, state := range []string{"live", "trashed"} {
		LibraryAssetsTotal.WithLabelValues(state)
		LibraryFoldersTotal.WithLabelValues(state)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}
}
