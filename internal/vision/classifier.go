package vision

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/andresmejia3/gatekeeper/internal/dataset"
	"github.com/andresmejia3/gatekeeper/internal/types"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// ErrModelNotFound means no trained classifier exists yet.
var ErrModelNotFound = errors.New("classifier model not found, run 'gatekeeper train' first")

// DefaultFaceSize is the edge length faces are normalized to before
// training and prediction.
const DefaultFaceSize = 150

// Normalize crops region out of a grayscale image and scales it to a
// size x size square. The caller owns the returned Mat.
func Normalize(gray gocv.Mat, region types.Region, size int) (gocv.Mat, error) {
	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	rect := region.Rect().Intersect(bounds)
	if rect.Empty() {
		return gocv.NewMat(), fmt.Errorf("region %v lies outside the %dx%d frame", region.Rect(), gray.Cols(), gray.Rows())
	}

	roi := gray.Region(rect)
	defer roi.Close()

	face := gocv.NewMat()
	gocv.Resize(roi, &face, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	return face, nil
}

// LBPHClassifier predicts identities with a trained LBPH model.
type LBPHClassifier struct {
	recognizer *contrib.LBPHFaceRecognizer
	faceSize   int
}

// LoadClassifier reads the model at path.
func LoadClassifier(path string, faceSize int) (*LBPHClassifier, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("cannot read model: %w", err)
	}
	if faceSize <= 0 {
		faceSize = DefaultFaceSize
	}

	recognizer := contrib.NewLBPHFaceRecognizer()
	if err := recognizer.LoadFile(path); err != nil {
		recognizer.Close()
		return nil, fmt.Errorf("failed to load classifier model %s: %w", path, err)
	}
	return &LBPHClassifier{recognizer: recognizer, faceSize: faceSize}, nil
}

// Close releases the model.
func (c *LBPHClassifier) Close() error {
	return c.recognizer.Close()
}

// Classify predicts the identity for one face region. Distance is the
// raw LBPH confidence, lower is closer.
func (c *LBPHClassifier) Classify(f *Frame, region types.Region) (types.Classification, error) {
	face, err := Normalize(f.Gray, region, c.faceSize)
	defer face.Close()
	if err != nil {
		return types.Classification{}, err
	}

	resp := c.recognizer.PredictExtendedResponse(face)
	return types.Classification{
		IdentityID: int(resp.Label),
		Distance:   float64(resp.Confidence),
	}, nil
}

// Train fits a new LBPH model on the given samples and writes it to
// modelPath, replacing any previous model. progress, when non-nil, is
// called once per sample read.
func Train(samples []dataset.Sample, modelPath string, faceSize int, progress func()) error {
	if len(samples) == 0 {
		return dataset.ErrEmpty
	}
	if faceSize <= 0 {
		faceSize = DefaultFaceSize
	}

	images := make([]gocv.Mat, 0, len(samples))
	labels := make([]int, 0, len(samples))
	defer func() {
		for _, img := range images {
			img.Close()
		}
	}()

	for _, s := range samples {
		img := gocv.IMRead(s.Path, gocv.IMReadGrayScale)
		if img.Empty() {
			img.Close()
			return fmt.Errorf("failed to read sample %s", s.Path)
		}
		if img.Cols() != faceSize || img.Rows() != faceSize {
			resized := gocv.NewMat()
			gocv.Resize(img, &resized, image.Pt(faceSize, faceSize), 0, 0, gocv.InterpolationLinear)
			img.Close()
			img = resized
		}
		images = append(images, img)
		labels = append(labels, s.IdentityID)
		if progress != nil {
			progress()
		}
	}

	if err := os.MkdirAll(filepath.Dir(modelPath), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	recognizer := contrib.NewLBPHFaceRecognizer()
	defer recognizer.Close()
	if err := recognizer.Train(images, labels); err != nil {
		return fmt.Errorf("failed to train model: %w", err)
	}

	// Saved beside the target, then renamed into place.
	tmp := modelPath + ".tmp"
	if err := recognizer.SaveFile(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save model: %w", err)
	}
	if err := os.Rename(tmp, modelPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}
