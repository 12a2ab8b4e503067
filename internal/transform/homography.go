package transform

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned when the correspondences do not pin down a
// projective map, for example when three of them are collinear.
var ErrDegenerate = errors.New("degenerate correspondences")

// Homography is a planar projective map from pixels to world coordinates.
type Homography struct {
	h   *mat.Dense
	inv *mat.Dense
}

// NewHomography wraps a row-major 3x3 matrix.
func NewHomography(m [9]float64) (*Homography, error) {
	h := mat.NewDense(3, 3, m[:])
	var inv mat.Dense
	if err := inv.Inverse(h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	return &Homography{h: h, inv: &inv}, nil
}

// EstimateHomography fits the homography taking each src pixel to the dst
// world point of the same index. At least four pairs are needed; more are
// solved in the least squares sense with the bottom-right entry fixed to 1.
func EstimateHomography(src, dst []orb.Point) (*Homography, error) {
	n := len(src)
	if n != len(dst) {
		return nil, fmt.Errorf("have %d pixels but %d world points", n, len(dst))
	}
	if n < 4 {
		return nil, fmt.Errorf("need at least 4 point pairs, got %d", n)
	}

	A := mat.NewDense(n*2, 8, nil)
	B := mat.NewVecDense(n*2, nil)
	for i := 0; i < n; i++ {
		x, y := src[i].X(), src[i].Y()
		xp, yp := dst[i].X(), dst[i].Y()

		// x' (h6 x + h7 y + 1) = h0 x + h1 y + h2
		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		A.Set(i*2, 6, -x*xp)
		A.Set(i*2, 7, -y*xp)
		B.SetVec(i*2, xp)

		// y' (h6 x + h7 y + 1) = h3 x + h4 y + h5
		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		A.Set(i*2+1, 6, -x*yp)
		A.Set(i*2+1, 7, -y*yp)
		B.SetVec(i*2+1, yp)
	}

	var qr mat.QR
	qr.Factorize(A)
	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	var m [9]float64
	for i := 0; i < 8; i++ {
		m[i] = params.AtVec(i)
	}
	m[8] = 1
	return NewHomography(m)
}

// PixelToWorld implements planner.Projector.
func (h *Homography) PixelToWorld(px, py float64) (x, y float64) {
	return apply(h.h, px, py)
}

// WorldToPixel is the inverse of PixelToWorld.
func (h *Homography) WorldToPixel(x, y float64) (px, py float64) {
	return apply(h.inv, x, y)
}

// Matrix returns the row-major coefficients.
func (h *Homography) Matrix() [9]float64 {
	var m [9]float64
	copy(m[:], h.h.RawMatrix().Data)
	return m
}

func apply(m *mat.Dense, x, y float64) (float64, float64) {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{x, y, 1}))
	w := out.AtVec(2)
	return out.AtVec(0) / w, out.AtVec(1) / w
}
