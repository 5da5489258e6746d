// Package editor holds the edit session state machine behind the image
// editor.
//
// A Session keeps snapshots of the live edit parameters (rotation, flips,
// zoom, pan and crop) in a history stack with a matching redo stack. It has
// no rendering dependency: the UI draws whatever Current returns and feeds
// pointer input back through the transition methods. On save the session
// turns its state into the operation list consumed by the asset store.
//
// Sessions are single-threaded. The Registry owns sessions opened through the
// local API and serializes access to each of them.
package editor
