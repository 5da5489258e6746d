// Package media decodes canonical originals and renders their thumbnails.
//
// A thumbnail is always derived from the original plus the persisted edit
// state (crop, mirror, rotation), then fit into a 400×400 box without
// upscaling and encoded as JPEG at quality 80. Thumbnails are written
// atomically to <dir>/<id>_thumb.jpg. libvips is used only as a fallback
// decoder for formats the Go image packages cannot read.
package media
