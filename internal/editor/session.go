package editor

import (
	"context"
	"math"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/transform"
)

// Zoom bounds and the step used by ZoomIn and ZoomOut.
const (
	MinZoom  = 0.5
	MaxZoom  = 3.0
	ZoomStep = 0.1
)

// Default canvas size in pixels.
const (
	DefaultCanvasWidth  = 1000
	DefaultCanvasHeight = 700
)

// Snapshot is one state of a session.
type Snapshot struct {
	// Rotation is the absolute rotation in degrees, starting from the
	// asset's persisted rotation.
	Rotation int `json:"rotation"`
	// FlipH and FlipV mirror the image shown when the session opened, before
	// rotation is applied.
	FlipH bool    `json:"flipH"`
	FlipV bool    `json:"flipV"`
	Zoom  float64 `json:"zoom"`
	PanX  float64 `json:"panX"`
	PanY  float64 `json:"panY"`
	// Crop is in pixels of the image shown when the session opened.
	Crop *transform.Rect `json:"crop,omitempty"`
}

func (s Snapshot) equal(o Snapshot) bool {
	if (s.Crop == nil) != (o.Crop == nil) || (s.Crop != nil && *s.Crop != *o.Crop) {
		return false
	}
	s.Crop, o.Crop = nil, nil
	return s == o
}

// Applier persists edit operations for an asset. ops were computed against
// base; an applier whose persisted state differs must reject them with
// Conflict.
type Applier interface {
	ApplyEditFrom(ctx context.Context, id string, base transform.Edits, ops []transform.Op) (*database.Asset, error)
}

// Session is the edit state of one open editor.
type Session struct {
	assetID       string
	base          transform.Edits
	baseRotation  int
	width, height int
	canvasW       float64
	canvasH       float64

	history []Snapshot
	redo    []Snapshot
	draft   *CanvasRect
}

// NewSession opens a session on an asset. The session edits the image as
// currently rendered from its persisted edits.
func NewSession(asset *database.Asset) *Session {
	w, h := asset.Edits.Size(asset.Width, asset.Height)
	rotation := transform.NormalizeRotation(asset.Edits.Rotation)
	base := asset.Edits
	if base.Crop != nil {
		c := *base.Crop
		base.Crop = &c
	}
	return &Session{
		assetID:      asset.ID,
		base:         base,
		baseRotation: rotation,
		width:        w,
		height:       h,
		canvasW:      DefaultCanvasWidth,
		canvasH:      DefaultCanvasHeight,
		history:      []Snapshot{{Rotation: rotation, Zoom: 1}},
	}
}

// SetCanvasSize changes the canvas dimensions used to convert crop
// rectangles.
func (s *Session) SetCanvasSize(w, h float64) error {
	if w <= 0 || h <= 0 {
		return apperr.New(apperr.InvalidOperation, "canvas size", "invalid canvas size %gx%g", w, h)
	}
	s.canvasW, s.canvasH = w, h
	return nil
}

// AssetID returns the asset being edited.
func (s *Session) AssetID() string {
	return s.assetID
}

// Current returns the latest snapshot.
func (s *Session) Current() Snapshot {
	cur := s.history[len(s.history)-1]
	if cur.Crop != nil {
		c := *cur.Crop
		cur.Crop = &c
	}
	return cur
}

// Initial returns the snapshot the session opened with.
func (s *Session) Initial() Snapshot {
	return s.history[0]
}

// CanUndo reports whether Undo would change the state.
func (s *Session) CanUndo() bool { return len(s.history) > 1 }

// CanRedo reports whether Redo would change the state.
func (s *Session) CanRedo() bool { return len(s.redo) > 0 }

// Draft returns the crop being dragged, in canvas pixels, or nil.
func (s *Session) Draft() *CanvasRect {
	if s.draft == nil {
		return nil
	}
	d := *s.draft
	return &d
}

// push records next unless it equals the current state.
func (s *Session) push(next Snapshot) {
	if next.equal(s.history[len(s.history)-1]) {
		return
	}
	s.history = append(s.history, next)
	s.redo = nil
}

// Rotate turns the image by ±90 degrees.
func (s *Session) Rotate(degrees int) error {
	if degrees != 90 && degrees != -90 {
		return apperr.New(apperr.InvalidOperation, "rotate", "rotation step must be 90 or -90, got %d", degrees)
	}
	next := s.Current()
	next.Rotation = transform.NormalizeRotation(next.Rotation + degrees)
	s.push(next)
	return nil
}

// ToggleFlipH mirrors the image left to right.
func (s *Session) ToggleFlipH() {
	next := s.Current()
	next.FlipH = !next.FlipH
	s.push(next)
}

// ToggleFlipV mirrors the image top to bottom.
func (s *Session) ToggleFlipV() {
	next := s.Current()
	next.FlipV = !next.FlipV
	s.push(next)
}

// SetZoom sets the zoom factor, clamped to [MinZoom, MaxZoom].
func (s *Session) SetZoom(v float64) {
	if math.IsNaN(v) {
		return
	}
	next := s.Current()
	next.Zoom = math.Round(clamp(v, MinZoom, MaxZoom)*100) / 100
	s.push(next)
}

// ZoomIn increases the zoom by one step.
func (s *Session) ZoomIn() { s.SetZoom(s.Current().Zoom + ZoomStep) }

// ZoomOut decreases the zoom by one step.
func (s *Session) ZoomOut() { s.SetZoom(s.Current().Zoom - ZoomStep) }

// Pan moves the image by dx, dy canvas pixels.
func (s *Session) Pan(dx, dy float64) {
	next := s.Current()
	next.PanX += dx
	next.PanY += dy
	s.push(next)
}

// BeginCrop starts dragging a crop rectangle at a canvas point. The draft is
// not part of the history until committed.
func (s *Session) BeginCrop(x, y float64) {
	s.draft = &CanvasRect{X: x, Y: y}
}

// UpdateCrop moves the dragged corner of the draft.
func (s *Session) UpdateCrop(x, y float64) error {
	if s.draft == nil {
		return apperr.New(apperr.InvalidOperation, "update crop", "no crop in progress")
	}
	s.draft.Width = x - s.draft.X
	s.draft.Height = y - s.draft.Y
	return nil
}

// CancelCrop drops the draft.
func (s *Session) CancelCrop() {
	s.draft = nil
}

// CommitCrop converts the draft into image pixels using the current zoom and
// pan and records it. The draft is dropped either way; a draft covering no
// part of the image is rejected.
func (s *Session) CommitCrop() error {
	const op = "commit crop"
	if s.draft == nil {
		return apperr.New(apperr.InvalidOperation, op, "no crop in progress")
	}
	draft := *s.draft
	s.draft = nil

	cur := s.Current()
	rect, ok := s.viewOf(cur).toImage(draft)
	if !ok {
		return apperr.New(apperr.InvalidOperation, op, "crop does not cover the image")
	}

	next := cur
	c := unorient(rect, s.width, s.height, cur.FlipH, cur.FlipV, s.quarters(cur))
	next.Crop = &c
	s.push(next)
	return nil
}

// ClearCrop removes the committed crop.
func (s *Session) ClearCrop() {
	next := s.Current()
	next.Crop = nil
	s.push(next)
}

// CropOnCanvas returns the committed crop in canvas pixels for drawing, or
// nil.
func (s *Session) CropOnCanvas() *CanvasRect {
	cur := s.Current()
	if cur.Crop == nil {
		return nil
	}
	r := orient(*cur.Crop, s.width, s.height, cur.FlipH, cur.FlipV, s.quarters(cur))
	c := s.viewOf(cur).fromImage(r)
	return &c
}

// Undo steps back one snapshot. The initial snapshot is never popped.
func (s *Session) Undo() bool {
	if len(s.history) <= 1 {
		return false
	}
	last := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.redo = append([]Snapshot{last}, s.redo...)
	return true
}

// Redo re-applies the most recently undone snapshot.
func (s *Session) Redo() bool {
	if len(s.redo) == 0 {
		return false
	}
	s.history = append(s.history, s.redo[0])
	s.redo = s.redo[1:]
	return true
}

// Reset returns to the initial snapshot and clears both stacks.
func (s *Session) Reset() {
	s.history = s.history[:1]
	s.redo = nil
	s.draft = nil
}

// Ops returns the operations that turn the image the session opened on
// into the current state: crop, then mirrors, then the rotation delta.
// Zoom and pan are view-only and produce nothing.
func (s *Session) Ops() []transform.Op {
	cur := s.Current()
	var ops []transform.Op
	if cur.Crop != nil {
		ops = append(ops, transform.Crop{Rect: *cur.Crop})
	}
	if cur.FlipH {
		ops = append(ops, transform.FlipH{})
	}
	if cur.FlipV {
		ops = append(ops, transform.FlipV{})
	}
	if delta := transform.NormalizeRotation(cur.Rotation - s.baseRotation); delta != 0 {
		ops = append(ops, transform.Rotate{Degrees: delta})
	}
	return ops
}

// Dirty reports whether saving would change the asset.
func (s *Session) Dirty() bool {
	return len(s.Ops()) > 0
}

// Save applies Ops through applier against the edit state the session
// opened on. If the asset was edited elsewhere in the meantime the save
// fails with Conflict. A failed save leaves the session as it was so the
// user can retry or reopen.
func (s *Session) Save(ctx context.Context, applier Applier) (*database.Asset, error) {
	return applier.ApplyEditFrom(ctx, s.assetID, s.base, s.Ops())
}

// quarters is the number of clockwise turns made in this session.
func (s *Session) quarters(snap Snapshot) int {
	return transform.NormalizeRotation(snap.Rotation-s.baseRotation) / 90
}

// viewOf describes how snap draws the oriented image on the canvas. The
// whole image stays visible; a committed crop is only an overlay.
func (s *Session) viewOf(snap Snapshot) view {
	w, h := s.width, s.height
	if s.quarters(snap)%2 == 1 {
		w, h = h, w
	}
	return view{
		canvasW: s.canvasW, canvasH: s.canvasH,
		imageW: w, imageH: h,
		zoom: snap.Zoom,
		panX: snap.PanX, panY: snap.PanY,
	}
}
