package transform

import (
	"image"

	"folio/internal/apperr"
)

// Edits is the persisted edit state of an asset. Rendering order is crop,
// then mirror, then rotation.
type Edits struct {
	Rotation int   `json:"rotation"`
	FlipH    bool  `json:"flipH"`
	Crop     *Rect `json:"crop,omitempty"`
}

// Ops returns the canonical operation list that renders e from the original.
func (e Edits) Ops() []Op {
	var ops []Op
	if e.Crop != nil {
		ops = append(ops, Crop{Rect: *e.Crop})
	}
	if e.FlipH {
		ops = append(ops, FlipH{})
	}
	if r := NormalizeRotation(e.Rotation); r != 0 {
		ops = append(ops, Rotate{Degrees: r})
	}
	return ops
}

// IsIdentity reports whether rendering e leaves the original unchanged.
func (e Edits) IsIdentity() bool {
	return e.Crop == nil && !e.FlipH && NormalizeRotation(e.Rotation) == 0
}

// Equal reports whether e and o render the same image.
func (e Edits) Equal(o Edits) bool {
	if (e.Crop == nil) != (o.Crop == nil) || (e.Crop != nil && *e.Crop != *o.Crop) {
		return false
	}
	return e.FlipH == o.FlipH && NormalizeRotation(e.Rotation) == NormalizeRotation(o.Rotation)
}

// Size returns the dimensions of the image rendered from a width×height
// original.
func (e Edits) Size(width, height int) (int, int) {
	if e.Crop != nil {
		width, height = e.Crop.Width, e.Crop.Height
	}
	return orientationOf(e).size(width, height)
}

// Fold applies ops on top of current and returns the equivalent persisted
// state. width and height are the dimensions of the original. Crop
// rectangles in ops are interpreted against the image rendered so far and
// are mapped back into original-pixel coordinates.
func Fold(current Edits, width, height int, ops []Op) (Edits, error) {
	if width <= 0 || height <= 0 {
		return Edits{}, apperr.New(apperr.InvalidOperation, "fold", "invalid original size %dx%d", width, height)
	}
	if err := Validate(ops); err != nil {
		return Edits{}, err
	}

	full := image.Rect(0, 0, width, height)
	region := full
	if current.Crop != nil {
		region = current.Crop.rectangle()
		if region.Empty() || !region.In(full) {
			return Edits{}, apperr.New(apperr.InvalidOperation, "fold",
				"stored crop %s outside %dx%d original", *current.Crop, width, height)
		}
	}

	o := orientationOf(current)
	for i, op := range ops {
		switch v := op.(type) {
		case Rotate:
			o = o.rotate(v.Degrees / 90)
		case FlipH:
			o = o.flipH()
		case FlipV:
			o = o.flipV()
		case Crop:
			w, h := region.Dx(), region.Dy()
			dw, dh := o.size(w, h)
			if !v.Rect.within(dw, dh) {
				return Edits{}, apperr.New(apperr.InvalidOperation, "fold",
					"operation %d: crop %s outside %dx%d image", i, v.Rect, dw, dh)
			}
			region = o.unmapRect(v.Rect.rectangle(), w, h).Add(region.Min)
		}
	}

	out := Edits{Rotation: o.quarter * 90, FlipH: o.mirror}
	if region != full {
		r := rectFrom(region)
		out.Crop = &r
	}
	return out, nil
}

// orientation is a mirror (applied first) followed by quarter clockwise
// turns. Every combination of rotations and flips reduces to one of the
// eight values.
type orientation struct {
	mirror  bool
	quarter int
}

func orientationOf(e Edits) orientation {
	return orientation{mirror: e.FlipH, quarter: NormalizeRotation(e.Rotation) / 90}
}

func mod4(n int) int {
	n %= 4
	if n < 0 {
		n += 4
	}
	return n
}

func (o orientation) rotate(quarters int) orientation {
	return orientation{mirror: o.mirror, quarter: mod4(o.quarter + quarters)}
}

// flipH after rotating by q equals rotating by -q after the mirror.
func (o orientation) flipH() orientation {
	return orientation{mirror: !o.mirror, quarter: mod4(-o.quarter)}
}

// flipV is a horizontal mirror followed by a half turn.
func (o orientation) flipV() orientation {
	return orientation{mirror: !o.mirror, quarter: mod4(2 - o.quarter)}
}

func (o orientation) size(w, h int) (int, int) {
	if o.quarter%2 == 1 {
		return h, w
	}
	return w, h
}

// unmapPoint takes a point of the oriented image back to the w×h source.
// Points are continuous, so pixel edges map onto pixel edges.
func (o orientation) unmapPoint(p image.Point, w, h int) image.Point {
	dw, dh := o.size(w, h)
	x, y := p.X, p.Y
	for i := 0; i < o.quarter; i++ {
		// one counter-clockwise turn of a dw×dh image
		x, y = y, dw-x
		dw, dh = dh, dw
	}
	if o.mirror {
		x = w - x
	}
	return image.Pt(x, y)
}

func (o orientation) unmapRect(r image.Rectangle, w, h int) image.Rectangle {
	a := o.unmapPoint(r.Min, w, h)
	b := o.unmapPoint(r.Max, w, h)
	return image.Rect(a.X, a.Y, b.X, b.Y) // image.Rect canonicalizes
}
