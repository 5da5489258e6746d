package transform

import (
	"image"

	"folio/internal/apperr"

	"github.com/disintegration/imaging"
)

// Apply runs ops over src in order and returns a new buffer. src is never
// modified. The output depends only on src and ops.
func Apply(src image.Image, ops []Op) (*image.NRGBA, error) {
	if err := Validate(ops); err != nil {
		return nil, err
	}

	img := imaging.Clone(src)
	for i, op := range ops {
		switch v := op.(type) {
		case Rotate:
			img = rotate(img, v.Degrees)
		case FlipH:
			img = imaging.FlipH(img)
		case FlipV:
			img = imaging.FlipV(img)
		case Crop:
			b := img.Bounds()
			if !v.Rect.within(b.Dx(), b.Dy()) {
				return nil, apperr.New(apperr.InvalidOperation, "transform",
					"operation %d: crop %s outside %dx%d image", i, v.Rect, b.Dx(), b.Dy())
			}
			img = imaging.Crop(img, v.Rect.rectangle())
		}
	}
	return img, nil
}

// rotate turns img clockwise. imaging rotates counter-clockwise.
func rotate(img *image.NRGBA, degrees int) *image.NRGBA {
	switch NormalizeRotation(degrees) {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
