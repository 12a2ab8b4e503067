package transform

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/coverage.planner/internal/planner"
)

var (
	_ planner.Projector = Scale{}
	_ planner.Projector = (*Homography)(nil)
)

func TestScale(t *testing.T) {
	t.Parallel()

	s := Scale{MetersPerPixel: 0.01, Origin: orb.Point{100, 50}}
	x, y := s.PixelToWorld(150, 70)
	assert.InDelta(t, 0.5, x, 1e-12)
	assert.InDelta(t, 0.2, y, 1e-12)

	s.FlipY = true
	_, y = s.PixelToWorld(150, 70)
	assert.InDelta(t, -0.2, y, 1e-12)
}

func TestScale_WorldToPixel(t *testing.T) {
	t.Parallel()

	for _, flip := range []bool{false, true} {
		s := Scale{MetersPerPixel: 0.005, Origin: orb.Point{12, 34}, FlipY: flip}
		px, py := s.WorldToPixel(s.PixelToWorld(210, 95))
		assert.InDelta(t, 210, px, 1e-9)
		assert.InDelta(t, 95, py, 1e-9)
	}

	px, py := Scale{Origin: orb.Point{3, 4}}.WorldToPixel(9, 9)
	assert.Equal(t, 3.0, px)
	assert.Equal(t, 4.0, py)
}

func TestEstimateHomography_Affine(t *testing.T) {
	t.Parallel()

	// 2 cm per pixel, origin at pixel (10, 20), y up.
	src := []orb.Point{{10, 20}, {110, 20}, {110, 220}, {10, 220}}
	dst := []orb.Point{{0, 0}, {2, 0}, {2, -4}, {0, -4}}
	h, err := EstimateHomography(src, dst)
	require.NoError(t, err)

	x, y := h.PixelToWorld(60, 120)
	assert.InDelta(t, 1.0, x, 1e-9)
	assert.InDelta(t, -2.0, y, 1e-9)

	px, py := h.WorldToPixel(1, -2)
	assert.InDelta(t, 60, px, 1e-6)
	assert.InDelta(t, 120, py, 1e-6)

	m := h.Matrix()
	assert.InDelta(t, 0.02, m[0], 1e-9)
	assert.InDelta(t, 1, m[8], 1e-12)
}

func TestEstimateHomography_Perspective(t *testing.T) {
	t.Parallel()

	want, err := NewHomography([9]float64{
		0.9, 0.1, 5,
		-0.05, 1.1, -3,
		0.0004, 0.0002, 1,
	})
	require.NoError(t, err)

	var src, dst []orb.Point
	for _, p := range []orb.Point{{0, 0}, {640, 0}, {640, 480}, {0, 480}, {320, 240}, {100, 400}} {
		x, y := want.PixelToWorld(p.X(), p.Y())
		src = append(src, p)
		dst = append(dst, orb.Point{x, y})
	}

	got, err := EstimateHomography(src, dst)
	require.NoError(t, err)
	for _, p := range []orb.Point{{37, 91}, {500, 300}, {600, 20}} {
		wx, wy := want.PixelToWorld(p.X(), p.Y())
		gx, gy := got.PixelToWorld(p.X(), p.Y())
		assert.InDelta(t, wx, gx, 1e-6)
		assert.InDelta(t, wy, gy, 1e-6)
	}
}

func TestEstimateHomography_Errors(t *testing.T) {
	t.Parallel()

	three := []orb.Point{{0, 0}, {1, 0}, {0, 1}}
	_, err := EstimateHomography(three, three)
	assert.Error(t, err)

	_, err = EstimateHomography([]orb.Point{{0, 0}, {1, 0}, {0, 1}, {1, 1}}, three)
	assert.Error(t, err)

	line := []orb.Point{{0, 0}, {1, 0}, {2, 0}, {3, 0}}
	_, err = EstimateHomography(line, line)
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = NewHomography([9]float64{})
	assert.ErrorIs(t, err, ErrDegenerate)
}
