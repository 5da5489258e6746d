package media

import (
	"image"
	"io"
	"path/filepath"
	"time"

	"folio/internal/apperr"
	"folio/internal/filesystem"
	"folio/internal/logging"
	"folio/internal/transform"

	"github.com/disintegration/imaging"
)

const (
	// ThumbnailSize bounds both thumbnail dimensions.
	ThumbnailSize = 400
	// ThumbnailQuality is the JPEG quality of every thumbnail.
	ThumbnailQuality = 80
)

// Thumbnail describes a written thumbnail.
type Thumbnail struct {
	Path   string
	Width  int
	Height int
	// Dimensions of the decoded original.
	SourceWidth  int
	SourceHeight int
	Duration     time.Duration
}

// ThumbnailGenerator renders thumbnails from canonical originals into a
// single directory, one file per asset id.
type ThumbnailGenerator struct {
	dir string
}

// NewThumbnailGenerator creates a generator writing into dir.
func NewThumbnailGenerator(dir string) *ThumbnailGenerator {
	logging.Debug("ThumbnailGenerator: output dir %s", dir)
	return &ThumbnailGenerator{dir: dir}
}

// Dir returns the thumbnail directory.
func (g *ThumbnailGenerator) Dir() string {
	return g.dir
}

// PathFor returns the stable thumbnail path for an asset id.
func (g *ThumbnailGenerator) PathFor(id string) string {
	return filepath.Join(g.dir, id+"_thumb.jpg")
}

// Generate decodes the original at originalPath and writes the thumbnail for
// the given edit state.
func (g *ThumbnailGenerator) Generate(id, originalPath string, edits transform.Edits) (Thumbnail, error) {
	src, err := LoadOriginal(originalPath)
	if err != nil {
		return Thumbnail{}, err
	}
	return g.GenerateFrom(id, src, edits)
}

// GenerateFrom writes the thumbnail for an already decoded original. The
// previous thumbnail, if any, stays in place unless the new one is fully
// written.
func (g *ThumbnailGenerator) GenerateFrom(id string, src image.Image, edits transform.Edits) (Thumbnail, error) {
	start := time.Now()

	thumb, err := Render(src, edits)
	if err != nil {
		return Thumbnail{}, err
	}

	path := g.PathFor(id)
	if err := filesystem.WriteAtomicFunc(path, func(w io.Writer) error {
		return Encode(w, thumb)
	}); err != nil {
		return Thumbnail{}, apperr.Wrap(apperr.StorageFailure, "write thumbnail", err, filepath.Base(path))
	}

	b := src.Bounds()
	result := Thumbnail{
		Path:         path,
		Width:        thumb.Bounds().Dx(),
		Height:       thumb.Bounds().Dy(),
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		Duration:     time.Since(start),
	}
	logging.Debug("Thumbnail written: %s (%dx%d, %v)", path, result.Width, result.Height, result.Duration)
	return result, nil
}

// Render applies edits to src and scales the result to fit the thumbnail
// box. Images already inside the box are not enlarged.
func Render(src image.Image, edits transform.Edits) (*image.NRGBA, error) {
	edited, err := transform.Apply(src, edits.Ops())
	if err != nil {
		return nil, err
	}
	return imaging.Fit(edited, ThumbnailSize, ThumbnailSize, imaging.Lanczos), nil
}

// Encode writes img as a JPEG with the fixed thumbnail quality.
func Encode(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(ThumbnailQuality))
}
