package grid

import (
	"fmt"
	"image"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Pixel values of a binarised frame.
const (
	Black uint8 = 0
	White uint8 = 255
)

// Binarize thresholds img in place: pixels brighter than threshold become
// White, the rest Black.
func Binarize(img *image.Gray, threshold uint8) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i, v := range row {
			if v > threshold {
				row[i] = White
			} else {
				row[i] = Black
			}
		}
	}
}

// Classifier turns a binarised frame into an occupancy grid.
type Classifier struct {
	CellWidth  int // pixels per cell along x
	CellHeight int // pixels per cell along y
	// ObstacleRatio defaults to DefaultObstacleRatio when zero.
	ObstacleRatio float64
	ExcludeBorder bool
}

// NewClassifier returns a classifier for square cells of size pixels.
func NewClassifier(size int) *Classifier {
	return &Classifier{CellWidth: size, CellHeight: size, ObstacleRatio: DefaultObstacleRatio}
}

type marker struct {
	ring  orb.Ring
	bound orb.Bound
}

// Classify tallies every pixel of img into its owning cell. Pixels inside
// any marker ring (robot, goal and reference tags, in pixel coordinates) are
// counted as free and rewritten to White in img. Coordinates are relative to
// img.Bounds().Min.
func (c *Classifier) Classify(img *image.Gray, markers []orb.Ring) (*Grid, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil frame", ErrBadImage)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty frame %dx%d", ErrBadImage, w, h)
	}
	if c.CellWidth <= 0 || c.CellHeight <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrBadCellSize, c.CellWidth, c.CellHeight)
	}

	rows := (h + c.CellHeight - 1) / c.CellHeight
	cols := (w + c.CellWidth - 1) / c.CellWidth
	g, err := New(rows, cols, c.CellWidth, c.CellHeight)
	if err != nil {
		return nil, err
	}
	if c.ObstacleRatio > 0 {
		g.ObstacleRatio = c.ObstacleRatio
	}
	g.ExcludeBorder = c.ExcludeBorder

	ms := make([]marker, 0, len(markers))
	for _, r := range markers {
		if len(r) < 3 {
			opsf("ignoring marker with %d vertices", len(r))
			continue
		}
		ms = append(ms, marker{ring: r, bound: r.Bound()})
	}

	forced := 0
	for y := 0; y < h; y++ {
		gr := y / c.CellHeight
		for x := 0; x < w; x++ {
			cell := &g.cells[gr*cols+x/c.CellWidth]
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			if img.Pix[off] != White && insideMarker(ms, x, y) {
				img.Pix[off] = White
				forced++
			}
			if img.Pix[off] == White {
				cell.Whites++
			} else {
				cell.Blacks++
			}
			cell.SumX += x
			cell.SumY += y
			cell.Pixels++
		}
	}

	diagf("classified %dx%d frame into %dx%d cells (%d marker pixels forced free, %d open cells)",
		w, h, rows, cols, forced, len(g.OpenCells()))
	return g, nil
}

func insideMarker(ms []marker, x, y int) bool {
	pt := orb.Point{float64(x) + 0.5, float64(y) + 0.5}
	for _, m := range ms {
		if m.bound.Contains(pt) && planar.RingContains(m.ring, pt) {
			return true
		}
	}
	return false
}
