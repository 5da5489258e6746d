package media

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"path/filepath"
	"strings"

	"folio/internal/apperr"
	"folio/internal/filesystem"
	"folio/internal/logging"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageExtensions lists the file extensions accepted for ingest.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
	".heic": true, ".heif": true, ".avif": true,
}

// IsImagePath reports whether path has a supported image extension.
func IsImagePath(path string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(path))]
}

// LoadOriginal decodes a canonical original with EXIF orientation applied.
// The decoded bounds define the original-pixel coordinate space used by
// stored crops. Formats the Go decoders reject are retried through libvips.
func LoadOriginal(path string) (image.Image, error) {
	const op = "load original"

	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Wrap(apperr.SourceUnavailable, op, err, "canonical file missing")
		}
		return nil, apperr.Wrap(apperr.SourceUnavailable, op, err, "canonical file unreadable")
	}
	defer func() { _ = f.Close() }()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	logging.Debug("imaging decode failed for %s: %v, trying libvips", path, err)

	img, vipsErr := decodeWithVips(path)
	if vipsErr != nil {
		return nil, apperr.Wrap(apperr.SourceUnavailable, op,
			fmt.Errorf("%w; %v", err, vipsErr), "cannot decode "+filepath.Base(path))
	}
	return img, nil
}
