package vision

import (
	"fmt"
	"image"
	"os"

	"github.com/andresmejia3/gatekeeper/internal/types"
	"gocv.io/x/gocv"
)

// DetectorParams tunes the cascade's multi-scale search.
type DetectorParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int // smallest face edge in pixels, 0 for no limit
}

// CascadeDetector finds frontal faces with a Haar cascade.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	params     DetectorParams
}

// NewCascadeDetector loads the cascade XML at path.
func NewCascadeDetector(path string, params DetectorParams) (*CascadeDetector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cascade file: %w", err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade classifier from %s", path)
	}
	return &CascadeDetector{classifier: classifier, params: params}, nil
}

// Detect returns the face regions of the frame's grayscale image in
// detector order. Boxes may overlap.
func (d *CascadeDetector) Detect(f *Frame) ([]types.Region, error) {
	if f.Gray.Empty() {
		return nil, fmt.Errorf("cannot detect faces: %w", ErrNoFrame)
	}

	minSize := image.Pt(d.params.MinSize, d.params.MinSize)
	rects := d.classifier.DetectMultiScaleWithParams(f.Gray,
		d.params.ScaleFactor, d.params.MinNeighbors, 0, minSize, image.Pt(0, 0))

	regions := make([]types.Region, 0, len(rects))
	for _, r := range rects {
		region := types.RegionFromRect(r)
		if region.Valid() {
			regions = append(regions, region)
		}
	}
	return regions, nil
}

// Close releases the cascade.
func (d *CascadeDetector) Close() error {
	return d.classifier.Close()
}
