// Package vision acquires workspace frames and binarises them for the grid
// classifier.
//
// Camera and stream capture use OpenCV through gocv and are only compiled
// with -tags=opencv. Still images can always be loaded from PNG, JPEG or GIF
// files.
package vision

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/banshee-data/coverage.planner/internal/grid"
)

// Source yields binarised frames, one per call.
type Source interface {
	Next(ctx context.Context) (*image.Gray, error)
	Close() error
}

// DecodeFile reads an image file and returns it binarised at threshold.
func DecodeFile(path string, threshold uint8) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	gray := toGray(img)
	grid.Binarize(gray, threshold)
	return gray, nil
}

// toGray converts img to an 8-bit grey image whose bounds start at the
// origin.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Still is a Source that returns the same frame forever.
type Still struct {
	Frame *image.Gray
}

// Next returns a copy of the frame so callers may rewrite it.
func (s *Still) Next(ctx context.Context) (*image.Gray, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Frame == nil {
		return nil, fmt.Errorf("%w: no frame", grid.ErrBadImage)
	}
	out := image.NewGray(s.Frame.Rect)
	copy(out.Pix, s.Frame.Pix)
	return out, nil
}

// Close is a no-op.
func (s *Still) Close() error { return nil }
