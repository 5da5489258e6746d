// Package assets owns the canonical original and the derived thumbnail of
// every image.
//
// The Store ingests user files by copying them byte for byte into the
// originals directory, renders thumbnails through the media package and
// records rows in the catalog. Edits never touch the original: ApplyEdit
// folds new operations into the persisted edit state, regenerates the
// thumbnail from the original, and only then commits the new state.
//
// Operations on the same asset id are serialized through a per-id lock.
// Different assets proceed in parallel, bounded by the worker count for
// batch operations such as IngestMany and RegenerateAll.
package assets
