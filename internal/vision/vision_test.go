package vision

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/andresmejia3/gatekeeper/internal/dataset"
	"github.com/andresmejia3/gatekeeper/internal/types"
	"gocv.io/x/gocv"
)

func TestNormalize(t *testing.T) {
	gray := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8U)
	defer gray.Close()

	tests := []struct {
		name    string
		region  types.Region
		wantErr bool
	}{
		{"Inside frame", types.Region{X: 10, Y: 10, Width: 80, Height: 80}, false},
		{"Clipped at edge", types.Region{X: 300, Y: 200, Width: 80, Height: 80}, false},
		{"Outside frame", types.Region{X: 400, Y: 300, Width: 50, Height: 50}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			face, err := Normalize(gray, tt.region, DefaultFaceSize)
			defer face.Close()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if face.Cols() != DefaultFaceSize || face.Rows() != DefaultFaceSize {
				t.Errorf("face is %dx%d, want %dx%d", face.Cols(), face.Rows(), DefaultFaceSize, DefaultFaceSize)
			}
		})
	}
}

func TestLoadClassifierMissingModel(t *testing.T) {
	_, err := LoadClassifier(filepath.Join(t.TempDir(), "classifier.xml"), DefaultFaceSize)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestLoadClassifierRejectsMalformedModel(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"Not XML", "this is not a model"},
		{"Truncated XML", "<?xml version=\"1.0\"?>\n<opencv_storage>\n<opencv_lbphfaces>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "classifier.xml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			c, err := LoadClassifier(path, DefaultFaceSize)
			if err == nil {
				c.Close()
				t.Fatal("expected an error for a malformed model")
			}
			if errors.Is(err, ErrModelNotFound) {
				t.Errorf("a malformed model is not a missing one: %v", err)
			}
		})
	}
}

func TestTrainRoundTrip(t *testing.T) {
	dir := t.TempDir()
	var samples []dataset.Sample
	for id := 1; id <= 2; id++ {
		for n := 1; n <= 2; n++ {
			img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(id*80), 0, 0, 0), DefaultFaceSize, DefaultFaceSize, gocv.MatTypeCV8U)
			path := dataset.Path(dir, id, n)
			ok := gocv.IMWrite(path, img)
			img.Close()
			if !ok {
				t.Fatalf("failed to write %s", path)
			}
			samples = append(samples, dataset.Sample{Path: path, IdentityID: id, Index: n})
		}
	}

	modelPath := filepath.Join(dir, "model", "classifier.xml")
	if err := Train(samples, modelPath, DefaultFaceSize, nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if _, err := os.Stat(modelPath + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary model file left behind: %v", err)
	}

	c, err := LoadClassifier(modelPath, DefaultFaceSize)
	if err != nil {
		t.Fatalf("LoadClassifier failed on a freshly trained model: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestTrainWithoutSamples(t *testing.T) {
	err := Train(nil, filepath.Join(t.TempDir(), "classifier.xml"), DefaultFaceSize, nil)
	if !errors.Is(err, dataset.ErrEmpty) {
		t.Errorf("expected dataset.ErrEmpty, got %v", err)
	}
}

func TestNewCascadeDetectorMissingFile(t *testing.T) {
	if _, err := NewCascadeDetector(filepath.Join(t.TempDir(), "missing.xml"), DetectorParams{ScaleFactor: 1.2}); err == nil {
		t.Error("expected an error for a missing cascade file")
	}
}
