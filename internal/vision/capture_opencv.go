//go:build opencv
// +build opencv

package vision

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/banshee-data/coverage.planner/internal/grid"
)

// Capture reads frames from a camera or video stream.
type Capture struct {
	cap       *gocv.VideoCapture
	threshold float32
	frame     gocv.Mat
}

// OpenCamera opens the local camera with the given device index.
func OpenCamera(device int, threshold uint8) (Source, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, err)
	}
	return newCapture(vc, threshold), nil
}

// OpenStream opens a video file or network stream URL.
func OpenStream(url string, threshold uint8) (Source, error) {
	vc, err := gocv.VideoCaptureFile(url)
	if err != nil {
		return nil, fmt.Errorf("open stream %s: %w", url, err)
	}
	// Keep only the newest frame so the plan tracks the robot, not a backlog.
	vc.Set(gocv.VideoCaptureBufferSize, 1)
	return newCapture(vc, threshold), nil
}

func newCapture(vc *gocv.VideoCapture, threshold uint8) *Capture {
	return &Capture{cap: vc, threshold: float32(threshold), frame: gocv.NewMat()}
}

// Next reads one frame and binarises it.
func (c *Capture) Next(ctx context.Context) (*image.Gray, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := c.cap.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, fmt.Errorf("%w: failed to read frame", grid.ErrBadImage)
	}
	return binarize(c.frame, c.threshold)
}

// Close releases the capture device.
func (c *Capture) Close() error {
	c.frame.Close()
	return c.cap.Close()
}

// LoadBinary reads an image file through OpenCV and binarises it.
func LoadBinary(path string, threshold uint8) (*image.Gray, error) {
	m := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer m.Close()
	if m.Empty() {
		return nil, fmt.Errorf("%w: cannot read %s", grid.ErrBadImage, path)
	}
	return binarize(m, float32(threshold))
}

// binarize converts src to grey if needed and thresholds it: pixels above
// threshold become 255, the rest 0.
func binarize(src gocv.Mat, threshold float32) (*image.Gray, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	switch src.Channels() {
	case 1:
		src.CopyTo(&gray)
	case 3:
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, &gray, gocv.ColorBGRAToGray)
	default:
		return nil, fmt.Errorf("%w: %d channels", grid.ErrBadImage, src.Channels())
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, threshold, 255, gocv.ThresholdBinary)

	img, err := binary.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		return toGray(img), nil
	}
	return g, nil
}
