package types

import (
	"image"
	"math"
	"time"
)

// UnknownName is reported for faces that do not resolve to an enrolled identity.
const UnknownName = "Unknown"

// Identity is an enrolled person as stored in the identities table.
type Identity struct {
	ID          int
	Name        string
	AccessLevel int
	CreatedAt   time.Time
}

// Region is a face bounding box within one frame.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// RegionFromRect converts a detector rectangle into a Region.
func RegionFromRect(r image.Rectangle) Region {
	r = r.Canon()
	return Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Valid reports whether the region has non-negative origin and positive size.
func (r Region) Valid() bool {
	return r.X >= 0 && r.Y >= 0 && r.Width > 0 && r.Height > 0
}

// Classification is the classifier's answer for one face crop.
// Distance is an inverse confidence: lower means more similar.
type Classification struct {
	IdentityID int
	Distance   float64
}

// ConfidencePercent is round(100 - Distance). It goes negative once the
// distance exceeds 100 and is never clamped.
func (c Classification) ConfidencePercent() int {
	return int(math.RoundToEven(100 - c.Distance))
}
