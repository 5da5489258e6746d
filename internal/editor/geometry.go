package editor

import (
	"math"

	"folio/internal/transform"
)

// CanvasRect is a rectangle in canvas pixels. Width and height are negative
// while a crop is dragged up or to the left.
type CanvasRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r CanvasRect) normalized() CanvasRect {
	if r.Width < 0 {
		r.X, r.Width = r.X+r.Width, -r.Width
	}
	if r.Height < 0 {
		r.Y, r.Height = r.Y+r.Height, -r.Height
	}
	return r
}

// view describes how the oriented image is drawn: centred on the canvas,
// shifted by the pan offset and scaled by zoom.
type view struct {
	canvasW, canvasH float64
	imageW, imageH   int
	zoom             float64
	panX, panY       float64
}

// toImage converts a canvas rectangle into pixel coordinates of the oriented
// image, clipped to its bounds. ok is false when nothing of the image is
// covered.
func (v view) toImage(r CanvasRect) (transform.Rect, bool) {
	r = r.normalized()
	originX := v.canvasW/2 + v.panX - float64(v.imageW)*v.zoom/2
	originY := v.canvasH/2 + v.panY - float64(v.imageH)*v.zoom/2

	x0 := clamp(math.Floor((r.X-originX)/v.zoom), 0, float64(v.imageW))
	y0 := clamp(math.Floor((r.Y-originY)/v.zoom), 0, float64(v.imageH))
	x1 := clamp(math.Ceil((r.X+r.Width-originX)/v.zoom), 0, float64(v.imageW))
	y1 := clamp(math.Ceil((r.Y+r.Height-originY)/v.zoom), 0, float64(v.imageH))

	if x1 <= x0 || y1 <= y0 {
		return transform.Rect{}, false
	}
	return transform.Rect{X: int(x0), Y: int(y0), Width: int(x1 - x0), Height: int(y1 - y0)}, true
}

// fromImage converts an image rectangle back to canvas pixels.
func (v view) fromImage(r transform.Rect) CanvasRect {
	originX := v.canvasW/2 + v.panX - float64(v.imageW)*v.zoom/2
	originY := v.canvasH/2 + v.panY - float64(v.imageH)*v.zoom/2
	return CanvasRect{
		X:      originX + float64(r.X)*v.zoom,
		Y:      originY + float64(r.Y)*v.zoom,
		Width:  float64(r.Width) * v.zoom,
		Height: float64(r.Height) * v.zoom,
	}
}

// unorient maps a rectangle of the oriented image back onto the w×h image
// the session started from. The oriented image is that image mirrored as
// flipH/flipV say and then turned clockwise by quarters.
func unorient(r transform.Rect, w, h int, flipH, flipV bool, quarters int) transform.Rect {
	// Undo the turns one counter-clockwise quarter at a time, tracking the
	// size of the image the rectangle lives in.
	cw, ch := w, h
	if quarters%2 == 1 {
		cw, ch = h, w
	}
	for i := 0; i < quarters; i++ {
		r = transform.Rect{X: r.Y, Y: cw - r.X - r.Width, Width: r.Height, Height: r.Width}
		cw, ch = ch, cw
	}
	if flipH {
		r.X = w - r.X - r.Width
	}
	if flipV {
		r.Y = h - r.Y - r.Height
	}
	return r
}

// orient is the inverse of unorient.
func orient(r transform.Rect, w, h int, flipH, flipV bool, quarters int) transform.Rect {
	if flipH {
		r.X = w - r.X - r.Width
	}
	if flipV {
		r.Y = h - r.Y - r.Height
	}
	cw, ch := w, h
	for i := 0; i < quarters; i++ {
		r = transform.Rect{X: ch - r.Y - r.Height, Y: r.X, Width: r.Height, Height: r.Width}
		cw, ch = ch, cw
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
