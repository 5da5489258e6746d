package transform

import (
	"fmt"
	"image"

	"folio/internal/apperr"
)

// Rect is an axis-aligned rectangle in pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func rectFrom(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// within reports whether r lies entirely inside a w×h image.
func (r Rect) within(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.Width <= w && r.Y+r.Height <= h
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Op is one edit operation. The set of implementations is closed.
type Op interface {
	isOp()
	String() string
}

// Rotate turns the image clockwise by Degrees, a multiple of 90 (negative
// values turn counter-clockwise).
type Rotate struct {
	Degrees int
}

// FlipH mirrors the image left to right.
type FlipH struct{}

// FlipV mirrors the image top to bottom.
type FlipV struct{}

// Crop keeps only Rect, given in the coordinates of the image as produced by
// the preceding operations.
type Crop struct {
	Rect Rect
}

func (Rotate) isOp() {}
func (FlipH) isOp()  {}
func (FlipV) isOp()  {}
func (Crop) isOp()   {}

func (o Rotate) String() string { return fmt.Sprintf("rotate(%d)", o.Degrees) }
func (FlipH) String() string    { return "flip-horizontal" }
func (FlipV) String() string    { return "flip-vertical" }
func (o Crop) String() string   { return fmt.Sprintf("crop(%s)", o.Rect) }

// NormalizeRotation maps any angle onto [0, 360).
func NormalizeRotation(degrees int) int {
	d := degrees % 360
	if d < 0 {
		d += 360
	}
	return d
}

// Validate checks each operation on its own. Bounds of crop rectangles are
// checked later, against the image they apply to.
func Validate(ops []Op) error {
	for i, op := range ops {
		if err := validateOp(op); err != nil {
			return apperr.New(apperr.InvalidOperation, "transform", "operation %d: %s", i, err)
		}
	}
	return nil
}

func validateOp(op Op) error {
	switch v := op.(type) {
	case Rotate:
		if v.Degrees%90 != 0 {
			return fmt.Errorf("rotation %d is not a multiple of 90", v.Degrees)
		}
	case FlipH, FlipV:
	case Crop:
		if v.Rect.Width <= 0 || v.Rect.Height <= 0 {
			return fmt.Errorf("crop %s must have a positive width and height", v.Rect)
		}
		if v.Rect.X < 0 || v.Rect.Y < 0 {
			return fmt.Errorf("crop %s has a negative origin", v.Rect)
		}
	case nil:
		return fmt.Errorf("missing operation")
	default:
		return fmt.Errorf("unsupported operation %T", op)
	}
	return nil
}
