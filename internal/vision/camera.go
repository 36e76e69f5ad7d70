// Package vision adapts OpenCV (via gocv) to the recognition pipeline:
// camera capture, Haar cascade face detection, LBPH classification and
// the annotated preview window.
package vision

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrNoFrame is returned when the device delivers no image.
var ErrNoFrame = errors.New("camera returned no frame")

// Frame is one captured image plus its grayscale conversion.
type Frame struct {
	Color gocv.Mat
	Gray  gocv.Mat
}

// Close releases both matrices.
func (f *Frame) Close() error {
	errColor := f.Color.Close()
	errGray := f.Gray.Close()
	return errors.Join(errColor, errGray)
}

// Camera is a live capture device.
type Camera struct {
	device int
	vc     *gocv.VideoCapture
}

// OpenCamera opens a capture device and requests the given frame size.
// A zero width or height keeps the device default.
func OpenCamera(device, width, height int) (*Camera, error) {
	vc, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %d is not available", device)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &Camera{device: device, vc: vc}, nil
}

// Next reads one frame. The read is bounded by the device frame rate; a
// device that cannot deliver a frame fails instead of blocking.
func (c *Camera) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := gocv.NewMat()
	if ok := c.vc.Read(&img); !ok || img.Empty() {
		img.Close()
		return nil, fmt.Errorf("camera %d: %w", c.device, ErrNoFrame)
	}

	gray := gocv.NewMat()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return &Frame{Color: img, Gray: gray}, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	return c.vc.Close()
}
