package transform

import (
	"folio/internal/apperr"
)

// Wire names of the operations.
const (
	TypeRotate = "rotate"
	TypeFlipH  = "flip-horizontal"
	TypeFlipV  = "flip-vertical"
	TypeCrop   = "crop"
)

// OpSpec is the JSON form of an operation.
type OpSpec struct {
	Type    string `json:"type"`
	Degrees int    `json:"degrees,omitempty"`
	X       int    `json:"x,omitempty"`
	Y       int    `json:"y,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// ParseOps converts wire specs into operations. Unknown types are rejected.
func ParseOps(specs []OpSpec) ([]Op, error) {
	ops := make([]Op, 0, len(specs))
	for i, s := range specs {
		switch s.Type {
		case TypeRotate:
			ops = append(ops, Rotate{Degrees: s.Degrees})
		case TypeFlipH:
			ops = append(ops, FlipH{})
		case TypeFlipV:
			ops = append(ops, FlipV{})
		case TypeCrop:
			ops = append(ops, Crop{Rect: Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}})
		default:
			return nil, apperr.New(apperr.InvalidOperation, "parse operations",
				"operation %d: unknown type %q", i, s.Type)
		}
	}
	if err := Validate(ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// Specs converts operations into their wire form.
func Specs(ops []Op) []OpSpec {
	specs := make([]OpSpec, 0, len(ops))
	for _, op := range ops {
		switch v := op.(type) {
		case Rotate:
			specs = append(specs, OpSpec{Type: TypeRotate, Degrees: v.Degrees})
		case FlipH:
			specs = append(specs, OpSpec{Type: TypeFlipH})
		case FlipV:
			specs = append(specs, OpSpec{Type: TypeFlipV})
		case Crop:
			specs = append(specs, OpSpec{Type: TypeCrop, X: v.Rect.X, Y: v.Rect.Y, Width: v.Rect.Width, Height: v.Rect.Height})
		}
	}
	return specs
}
