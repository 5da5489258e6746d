// Package trash joins the catalog's soft-delete state with file removal in
// the asset store.
//
// Restoring clears a delete timestamp and nothing else. Permanent deletion
// removes an image's files before its row, so a failed purge leaves the
// item in the trash to be retried. Restoring and purging an image share the
// asset store's per-image lock, so an image is never live without its files. EmptyTrash and PurgeOlderThan treat each
// item independently and report how many of the selected items were removed.
package trash
