package editor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"reflect"
	"testing"

	"folio/internal/apperr"
	"folio/internal/database"
	"folio/internal/transform"
)

func testAsset(w, h int) *database.Asset {
	return &database.Asset{ID: "a1", Width: w, Height: h}
}

func TestNewSession(t *testing.T) {
	a := testAsset(200, 100)
	a.Edits = transform.Edits{Rotation: 90}
	s := NewSession(a)

	init := s.Current()
	if init.Rotation != 90 || init.Zoom != 1 || init.Crop != nil || init.FlipH || init.FlipV {
		t.Errorf("initial snapshot = %+v", init)
	}
	if s.width != 100 || s.height != 200 {
		t.Errorf("base view = %dx%d, want 100x200", s.width, s.height)
	}
	if s.CanUndo() || s.CanRedo() || s.Dirty() {
		t.Error("fresh session should have nothing to undo, redo or save")
	}
}

func TestRotateWrapsAndEmitsDelta(t *testing.T) {
	a := testAsset(10, 10)
	a.Edits = transform.Edits{Rotation: 270}
	s := NewSession(a)

	for i := 0; i < 4; i++ {
		if err := s.Rotate(90); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Current().Rotation; got != 270 {
		t.Errorf("rotation after four turns = %d, want 270", got)
	}
	if s.Dirty() {
		t.Error("four turns should produce no operations")
	}

	_ = s.Rotate(90)
	if got := s.Current().Rotation; got != 0 {
		t.Errorf("rotation = %d, want 0", got)
	}
	if ops := s.Ops(); !reflect.DeepEqual(ops, []transform.Op{transform.Rotate{Degrees: 90}}) {
		t.Errorf("Ops() = %v, want [rotate(90)]", ops)
	}

	_ = s.Rotate(-90)
	_ = s.Rotate(-90)
	if ops := s.Ops(); !reflect.DeepEqual(ops, []transform.Op{transform.Rotate{Degrees: 270}}) {
		t.Errorf("Ops() = %v, want [rotate(270)]", ops)
	}

	if err := s.Rotate(45); !apperr.Is(err, apperr.InvalidOperation) {
		t.Errorf("Rotate(45) = %v, want InvalidOperation", err)
	}
}

func TestZoomIsClamped(t *testing.T) {
	s := NewSession(testAsset(10, 10))

	tests := []struct {
		set  float64
		want float64
	}{
		{2, 2},
		{10, MaxZoom},
		{0.1, MinZoom},
		{-4, MinZoom},
		{1.25, 1.25},
	}
	for _, tt := range tests {
		s.SetZoom(tt.set)
		if got := s.Current().Zoom; got != tt.want {
			t.Errorf("SetZoom(%v) -> %v, want %v", tt.set, got, tt.want)
		}
	}

	s.SetZoom(1)
	s.ZoomIn()
	if got := s.Current().Zoom; got != 1.1 {
		t.Errorf("ZoomIn() -> %v, want 1.1", got)
	}
	s.SetZoom(MaxZoom)
	s.ZoomIn()
	if got := s.Current().Zoom; got != MaxZoom {
		t.Errorf("ZoomIn() at max -> %v", got)
	}
}

func TestUndoRedo(t *testing.T) {
	s := NewSession(testAsset(10, 10))

	if s.Undo() {
		t.Fatal("Undo() on a fresh session should refuse")
	}

	s.ToggleFlipH()
	_ = s.Rotate(90)
	afterRotate := s.Current()

	if !s.Undo() {
		t.Fatal("Undo() refused")
	}
	if s.Current().Rotation != 0 || !s.Current().FlipH {
		t.Errorf("after undo = %+v", s.Current())
	}
	if !s.Redo() || !reflect.DeepEqual(s.Current(), afterRotate) {
		t.Errorf("redo did not restore %+v, got %+v", afterRotate, s.Current())
	}
	if s.Redo() {
		t.Error("Redo() with an empty stack should refuse")
	}

	// A new transition clears the redo stack.
	s.Undo()
	s.Pan(5, 5)
	if s.CanRedo() {
		t.Error("push should clear redo")
	}

	// Undo never pops the initial snapshot.
	for s.Undo() {
	}
	if !reflect.DeepEqual(s.Current(), s.Initial()) {
		t.Errorf("fully undone = %+v, want initial", s.Current())
	}
	if len(s.history) != 1 {
		t.Errorf("history length = %d, want 1", len(s.history))
	}
}

func TestNoOpTransitionsAreNotRecorded(t *testing.T) {
	s := NewSession(testAsset(10, 10))
	s.SetZoom(1)
	s.Pan(0, 0)
	s.ClearCrop()
	if s.CanUndo() {
		t.Error("transitions that change nothing should not be recorded")
	}

	// A no-op after an undo keeps the redo stack.
	s.ToggleFlipH()
	s.Undo()
	s.SetZoom(1)
	s.ClearCrop()
	if !s.CanRedo() {
		t.Error("no-op transition cleared redo")
	}
	if !s.Redo() || !s.Current().FlipH {
		t.Errorf("redo after no-ops = %+v", s.Current())
	}
}

func TestUndoRedoRoundTripProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		s := NewSession(testAsset(64, 48))
		initial := s.Current()

		n := 1 + rng.Intn(12)
		for i := 0; i < n; i++ {
			randomTransition(rng, s)
		}
		before := s.Current()

		undone := 0
		for i := 0; i < n; i++ {
			if s.Undo() {
				undone++
			}
		}
		if !reflect.DeepEqual(s.Current(), initial) {
			t.Fatalf("trial %d: after %d undos state = %+v, want %+v", trial, n, s.Current(), initial)
		}

		for i := 0; i < undone; i++ {
			if !s.Redo() {
				t.Fatalf("trial %d: redo %d refused", trial, i)
			}
		}
		if !reflect.DeepEqual(s.Current(), before) {
			t.Fatalf("trial %d: after redo state = %+v, want %+v", trial, s.Current(), before)
		}
	}
}

func randomTransition(rng *rand.Rand, s *Session) {
	switch rng.Intn(7) {
	case 0:
		_ = s.Rotate([]int{90, -90}[rng.Intn(2)])
	case 1:
		s.ToggleFlipH()
	case 2:
		s.ToggleFlipV()
	case 3:
		s.SetZoom(0.5 + rng.Float64()*2.5)
	case 4:
		s.Pan(float64(rng.Intn(41)-20), float64(rng.Intn(41)-20))
	case 5:
		s.BeginCrop(500, 350)
		_ = s.UpdateCrop(float64(500+rng.Intn(20)+1), float64(350+rng.Intn(20)+1))
		_ = s.CommitCrop()
	case 6:
		s.ClearCrop()
	}
}

func TestReset(t *testing.T) {
	s := NewSession(testAsset(10, 10))
	_ = s.Rotate(90)
	s.ToggleFlipV()
	s.Undo()
	s.BeginCrop(1, 1)

	s.Reset()
	if !reflect.DeepEqual(s.Current(), s.Initial()) || s.CanUndo() || s.CanRedo() || s.Draft() != nil {
		t.Errorf("Reset() left state %+v undo=%v redo=%v", s.Current(), s.CanUndo(), s.CanRedo())
	}
}

func TestCommitCropConvertsCanvasCoordinates(t *testing.T) {
	// A 200x100 image on the default 1000x700 canvas sits at (400,300) at
	// zoom 1.
	tests := []struct {
		name  string
		zoom  float64
		panX  float64
		panY  float64
		from  [2]float64
		to    [2]float64
		want  transform.Rect
		clear bool
	}{
		{name: "zoom 1", zoom: 1, from: [2]float64{410, 320}, to: [2]float64{460, 370},
			want: transform.Rect{X: 10, Y: 20, Width: 50, Height: 50}},
		{name: "dragged up-left", zoom: 1, from: [2]float64{460, 370}, to: [2]float64{410, 320},
			want: transform.Rect{X: 10, Y: 20, Width: 50, Height: 50}},
		{name: "zoom 2", zoom: 2, from: [2]float64{320, 270}, to: [2]float64{420, 370},
			want: transform.Rect{X: 10, Y: 10, Width: 50, Height: 50}},
		{name: "panned", zoom: 1, panX: 30, panY: -20, from: [2]float64{440, 290}, to: [2]float64{450, 300},
			want: transform.Rect{X: 10, Y: 10, Width: 10, Height: 10}},
		{name: "clipped to image", zoom: 1, from: [2]float64{350, 250}, to: [2]float64{420, 330},
			want: transform.Rect{X: 0, Y: 0, Width: 20, Height: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(testAsset(200, 100))
			s.SetZoom(tt.zoom)
			s.Pan(tt.panX, tt.panY)

			s.BeginCrop(tt.from[0], tt.from[1])
			if err := s.UpdateCrop(tt.to[0], tt.to[1]); err != nil {
				t.Fatal(err)
			}
			if err := s.CommitCrop(); err != nil {
				t.Fatalf("CommitCrop() error = %v", err)
			}

			got := s.Current().Crop
			if got == nil || *got != tt.want {
				t.Errorf("crop = %v, want %v", got, tt.want)
			}
			if s.Draft() != nil {
				t.Error("draft should be cleared after commit")
			}
			if ops := s.Ops(); len(ops) != 1 || ops[0] != (transform.Crop{Rect: tt.want}) {
				t.Errorf("Ops() = %v", ops)
			}
		})
	}
}

func TestCommitCropRejectsEmptyDraft(t *testing.T) {
	s := NewSession(testAsset(200, 100))

	if err := s.CommitCrop(); !apperr.Is(err, apperr.InvalidOperation) {
		t.Errorf("CommitCrop() without draft = %v", err)
	}
	if err := s.UpdateCrop(1, 1); !apperr.Is(err, apperr.InvalidOperation) {
		t.Errorf("UpdateCrop() without draft = %v", err)
	}

	// Entirely outside the image.
	s.BeginCrop(10, 10)
	_ = s.UpdateCrop(50, 50)
	if err := s.CommitCrop(); !apperr.Is(err, apperr.InvalidOperation) {
		t.Errorf("CommitCrop() outside = %v", err)
	}
	// Zero area.
	s.BeginCrop(450, 320)
	if err := s.CommitCrop(); !apperr.Is(err, apperr.InvalidOperation) {
		t.Errorf("CommitCrop() zero area = %v", err)
	}
	if s.CanUndo() {
		t.Error("rejected crops should not be recorded")
	}

	s.BeginCrop(450, 320)
	s.CancelCrop()
	if s.Draft() != nil {
		t.Error("CancelCrop() kept the draft")
	}
}

func TestCropOnCanvasRoundTrip(t *testing.T) {
	s := NewSession(testAsset(200, 100))
	_ = s.Rotate(90)
	s.ToggleFlipH()
	s.SetZoom(2)

	s.BeginCrop(400, 200)
	_ = s.UpdateCrop(440, 260)
	if err := s.CommitCrop(); err != nil {
		t.Fatal(err)
	}

	got := s.CropOnCanvas()
	want := CanvasRect{X: 400, Y: 200, Width: 40, Height: 60}
	if got == nil || *got != want {
		t.Errorf("CropOnCanvas() = %v, want %v", got, want)
	}
}

func gridImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: uint8(x + y), A: 255})
		}
	}
	return img
}

// Cropping after orienting must select the same pixels the user saw.
func TestOpsMatchWhatWasDrawn(t *testing.T) {
	const w, h = 30, 20
	src := gridImage(w, h)

	orientations := []struct {
		name    string
		flipH   bool
		flipV   bool
		turns   int
		drawnAs []transform.Op
	}{
		{"none", false, false, 0, nil},
		{"rotate 90", false, false, 1, []transform.Op{transform.Rotate{Degrees: 90}}},
		{"rotate 180", false, false, 2, []transform.Op{transform.Rotate{Degrees: 180}}},
		{"rotate 270", false, false, 3, []transform.Op{transform.Rotate{Degrees: 270}}},
		{"flipH rotate 90", true, false, 1, []transform.Op{transform.FlipH{}, transform.Rotate{Degrees: 90}}},
		{"flipV rotate 270", false, true, 3, []transform.Op{transform.FlipV{}, transform.Rotate{Degrees: 270}}},
		{"both flips", true, true, 0, []transform.Op{transform.FlipH{}, transform.FlipV{}}},
	}

	for _, o := range orientations {
		t.Run(o.name, func(t *testing.T) {
			s := NewSession(testAsset(w, h))
			for i := 0; i < o.turns; i++ {
				_ = s.Rotate(90)
			}
			if o.flipH {
				s.ToggleFlipH()
			}
			if o.flipV {
				s.ToggleFlipV()
			}

			// The oriented image is centred on the canvas at zoom 1.
			ow, oh := w, h
			if o.turns%2 == 1 {
				ow, oh = h, w
			}
			originX := float64(DefaultCanvasWidth-ow) / 2
			originY := float64(DefaultCanvasHeight-oh) / 2
			drawn := transform.Rect{X: 3, Y: 2, Width: 7, Height: 5}

			s.BeginCrop(originX+3, originY+2)
			_ = s.UpdateCrop(originX+10, originY+7)
			if err := s.CommitCrop(); err != nil {
				t.Fatal(err)
			}

			want, err := transform.Apply(src, append(o.drawnAs, transform.Crop{Rect: drawn}))
			if err != nil {
				t.Fatal(err)
			}
			got, err := transform.Apply(src, s.Ops())
			if err != nil {
				t.Fatalf("Apply(%v) error = %v", s.Ops(), err)
			}
			if !reflect.DeepEqual(got.Pix, want.Pix) || got.Rect.Dx() != want.Rect.Dx() {
				t.Errorf("Ops() %v render differently from what was drawn", s.Ops())
			}
		})
	}
}

type fakeApplier struct {
	err   error
	calls int
	base  transform.Edits
	ops   []transform.Op
}

func (f *fakeApplier) ApplyEditFrom(_ context.Context, id string, base transform.Edits, ops []transform.Op) (*database.Asset, error) {
	f.calls++
	f.base = base
	f.ops = ops
	if f.err != nil {
		return nil, f.err
	}
	return &database.Asset{ID: id}, nil
}

func TestSaveSendsOpeningState(t *testing.T) {
	a := testAsset(40, 20)
	a.Edits = transform.Edits{Rotation: 90, Crop: &transform.Rect{X: 0, Y: 0, Width: 20, Height: 20}}
	s := NewSession(a)
	a.Edits.Crop.Width = 10 // later changes to the asset do not leak in
	_ = s.Rotate(90)

	f := &fakeApplier{}
	if _, err := s.Save(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	want := transform.Edits{Rotation: 90, Crop: &transform.Rect{X: 0, Y: 0, Width: 20, Height: 20}}
	if !f.base.Equal(want) {
		t.Errorf("base = %+v, want %+v", f.base, want)
	}
	if !reflect.DeepEqual(f.ops, []transform.Op{transform.Rotate{Degrees: 90}}) {
		t.Errorf("ops = %v", f.ops)
	}
}

func TestSaveFailurePreservesState(t *testing.T) {
	s := NewSession(testAsset(10, 10))
	_ = s.Rotate(90)
	s.ToggleFlipH()
	before := s.Current()

	failing := &fakeApplier{err: apperr.New(apperr.StorageFailure, "apply edit", "disk full")}
	if _, err := s.Save(context.Background(), failing); !errors.Is(err, failing.err) {
		t.Fatalf("Save() error = %v", err)
	}
	if !reflect.DeepEqual(s.Current(), before) || !s.CanUndo() {
		t.Error("failed save changed the session")
	}

	ok := &fakeApplier{}
	a, err := s.Save(context.Background(), ok)
	if err != nil || a.ID != "a1" {
		t.Fatalf("Save() = %v, %v", a, err)
	}
	want := []transform.Op{transform.FlipH{}, transform.Rotate{Degrees: 90}}
	if !reflect.DeepEqual(ok.ops, want) {
		t.Errorf("saved ops = %v, want %v", ok.ops, want)
	}
}
