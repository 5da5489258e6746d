// Package transform is the pure edit pipeline: an ordered list of rotate,
// mirror and crop operations applied to a pixel buffer.
//
// Operations are a closed set ({Rotate, FlipH, FlipV, Crop}); every
// consumer switches over the concrete types. A crop rectangle is always
// expressed in the coordinate space of the image produced by the operations
// before it, so the order of a list is significant.
//
// Edits is the persisted form of an edit history: an optional crop in
// original-pixel coordinates, a horizontal mirror and a clockwise rotation,
// rendered in that order. Fold reduces any operation list applied on top of
// an Edits value back into a single Edits value, which is what lets the
// thumbnail always be rebuilt from the untouched original.
package transform
