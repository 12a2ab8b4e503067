package grid

import (
	"image"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame returns a w x h white image with the listed pixels painted black.
func frame(w, h int, black ...image.Point) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = White
	}
	for _, p := range black {
		img.Pix[img.PixOffset(p.X, p.Y)] = Black
	}
	return img
}

func fillRect(img *image.Gray, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Pix[img.PixOffset(x, y)] = v
		}
	}
}

func TestBinarize(t *testing.T) {
	t.Parallel()

	img := image.NewGray(image.Rect(0, 0, 4, 1))
	copy(img.Pix, []uint8{10, 100, 101, 250})
	Binarize(img, 100)
	assert.Equal(t, []uint8{Black, Black, White, White}, img.Pix)
}

func TestBinarize_SubImage(t *testing.T) {
	t.Parallel()

	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.Gray)
	Binarize(sub, 100)

	assert.Equal(t, uint8(200), img.GrayAt(0, 0).Y, "outside the sub image is untouched")
	assert.Equal(t, White, img.GrayAt(1, 1).Y)
	assert.Equal(t, White, img.GrayAt(2, 2).Y)
	assert.Equal(t, uint8(200), img.GrayAt(3, 3).Y)
}

func TestClassify_Dimensions(t *testing.T) {
	t.Parallel()

	c := NewClassifier(10)
	g, err := c.Classify(frame(25, 31), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Rows, "ceil(31/10)")
	assert.Equal(t, 3, g.Cols, "ceil(25/10)")
	assert.Equal(t, 10, g.CellWidth)

	// Partial trailing cells only count the pixels that exist.
	assert.Equal(t, 5*10, g.At(Point{0, 2}).Pixels)
	assert.Equal(t, 10*1, g.At(Point{3, 0}).Pixels)
}

func TestClassify_Tallies(t *testing.T) {
	t.Parallel()

	img := frame(20, 10)
	// Left cell: 25 black pixels out of 100 (ratio 25/75 > 0.2).
	fillRect(img, image.Rect(0, 0, 5, 5), Black)
	// Right cell: 10 black pixels out of 100 (ratio 10/90 <= 0.2).
	fillRect(img, image.Rect(10, 0, 20, 1), Black)

	g, err := NewClassifier(10).Classify(img, nil)
	require.NoError(t, err)

	left, right := g.At(Point{0, 0}), g.At(Point{0, 1})
	assert.Equal(t, 25, left.Blacks)
	assert.Equal(t, 75, left.Whites)
	assert.Equal(t, 10, right.Blacks)
	assert.Equal(t, 90, right.Whites)
	assert.False(t, g.Open(Point{0, 0}))
	assert.True(t, g.Open(Point{0, 1}))

	x, y := g.Centroid(Point{0, 1})
	assert.Equal(t, 14, x)
	assert.Equal(t, 4, y)
}

func TestClassify_MarkersReadFree(t *testing.T) {
	t.Parallel()

	img := frame(20, 20)
	// A black tag printed in the top-left cell.
	fillRect(img, image.Rect(2, 2, 8, 8), Black)
	tag := orb.Ring{{2, 2}, {8, 2}, {8, 8}, {2, 8}, {2, 2}}

	bare := frame(20, 20)
	fillRect(bare, image.Rect(2, 2, 8, 8), Black)
	without, err := NewClassifier(10).Classify(bare, nil)
	require.NoError(t, err)
	assert.False(t, without.Open(Point{0, 0}), "tag pixels count as obstacle without a marker")

	g, err := NewClassifier(10).Classify(img, []orb.Ring{tag})
	require.NoError(t, err)
	assert.Zero(t, g.At(Point{0, 0}).Blacks)
	assert.True(t, g.Open(Point{0, 0}))
	assert.Equal(t, White, img.GrayAt(4, 4).Y, "frame is rewritten in place")
}

func TestClassify_Idempotent(t *testing.T) {
	t.Parallel()

	img := frame(30, 30)
	fillRect(img, image.Rect(12, 3, 19, 27), Black)
	fillRect(img, image.Rect(0, 20, 4, 30), Black)
	markers := []orb.Ring{{{0, 20}, {4, 20}, {4, 25}, {0, 25}, {0, 20}}}

	c := &Classifier{CellWidth: 10, CellHeight: 10, ObstacleRatio: 0.2}
	first, err := c.Classify(img, markers)
	require.NoError(t, err)
	second, err := c.Classify(img, markers)
	require.NoError(t, err)

	for r := 0; r < first.Rows; r++ {
		for col := 0; col < first.Cols; col++ {
			p := Point{r, col}
			a, b := first.At(p), second.At(p)
			assert.Equal(t, a.Blacks, b.Blacks, "blacks at %v", p)
			assert.Equal(t, a.Whites, b.Whites, "whites at %v", p)
			ax, ay := first.Centroid(p)
			bx, by := second.Centroid(p)
			assert.Equal(t, [2]int{ax, ay}, [2]int{bx, by}, "centroid at %v", p)
		}
	}
}

func TestClassify_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewClassifier(10).Classify(nil, nil)
	assert.ErrorIs(t, err, ErrBadImage)

	_, err = NewClassifier(10).Classify(image.NewGray(image.Rect(0, 0, 0, 5)), nil)
	assert.ErrorIs(t, err, ErrBadImage)

	_, err = (&Classifier{CellWidth: 0, CellHeight: 4}).Classify(frame(4, 4), nil)
	assert.ErrorIs(t, err, ErrBadCellSize)
}

func TestClassify_ExcludeBorder(t *testing.T) {
	t.Parallel()

	c := &Classifier{CellWidth: 5, CellHeight: 5, ExcludeBorder: true}
	g, err := c.Classify(frame(15, 15), nil)
	require.NoError(t, err)
	assert.Equal(t, []Point{{1, 1}}, g.OpenCells())
	assert.Equal(t, DefaultObstacleRatio, g.ObstacleRatio)
}

func TestClassify_DegenerateMarkerIgnored(t *testing.T) {
	t.Parallel()

	img := frame(10, 10, image.Pt(0, 0))
	fillRect(img, image.Rect(0, 0, 10, 10), Black)
	g, err := NewClassifier(10).Classify(img, []orb.Ring{{{0, 0}, {10, 10}}})
	require.NoError(t, err)
	assert.Equal(t, 100, g.At(Point{0, 0}).Blacks)
}
