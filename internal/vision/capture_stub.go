//go:build !opencv
// +build !opencv

package vision

import (
	"errors"
	"image"
)

// ErrNoOpenCV is returned by the capture functions of builds without OpenCV.
var ErrNoOpenCV = errors.New("OpenCV support not enabled: rebuild with -tags=opencv to enable camera capture")

// OpenCamera is a stub implementation when OpenCV support is disabled.
func OpenCamera(device int, threshold uint8) (Source, error) {
	return nil, ErrNoOpenCV
}

// OpenStream is a stub implementation when OpenCV support is disabled.
func OpenStream(url string, threshold uint8) (Source, error) {
	return nil, ErrNoOpenCV
}

// LoadBinary decodes path with the standard image codecs when OpenCV support
// is disabled.
func LoadBinary(path string, threshold uint8) (*image.Gray, error) {
	return DecodeFile(path, threshold)
}
