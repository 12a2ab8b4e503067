package vision

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/coverage.planner/internal/grid"
)

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestDecodeFile(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	src.Set(0, 0, color.RGBA{R: 250, G: 250, B: 250, A: 255})
	src.Set(1, 0, color.RGBA{R: 40, G: 40, B: 40, A: 255})
	src.Set(2, 1, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	path := writePNG(t, src)

	img, err := DecodeFile(path, 128)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
	assert.Equal(t, grid.White, img.GrayAt(0, 0).Y)
	assert.Equal(t, grid.Black, img.GrayAt(1, 0).Y)
	assert.Equal(t, grid.White, img.GrayAt(2, 1).Y)
	assert.Equal(t, grid.Black, img.GrayAt(3, 1).Y, "transparent black")
}

func TestDecodeFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := DecodeFile(filepath.Join(t.TempDir(), "missing.png"), 128)
	assert.Error(t, err)

	junk := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(junk, []byte("not an image"), 0o644))
	_, err = DecodeFile(junk, 128)
	assert.Error(t, err)
}

func TestToGray_ShiftsOrigin(t *testing.T) {
	t.Parallel()

	src := image.NewGray(image.Rect(5, 5, 8, 7))
	src.SetGray(5, 5, color.Gray{Y: 9})
	out := toGray(src)
	assert.Equal(t, image.Rect(0, 0, 3, 2), out.Bounds())
	assert.Equal(t, uint8(9), out.GrayAt(0, 0).Y)
}

func TestStill(t *testing.T) {
	t.Parallel()

	frame := image.NewGray(image.Rect(0, 0, 2, 2))
	frame.Pix[0] = grid.White
	s := &Still{Frame: frame}

	a, err := s.Next(context.Background())
	require.NoError(t, err)
	a.Pix[0] = grid.Black
	b, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, grid.White, b.Pix[0], "frames are copies")
	assert.NoError(t, s.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = (&Still{}).Next(context.Background())
	assert.ErrorIs(t, err, grid.ErrBadImage)
}
