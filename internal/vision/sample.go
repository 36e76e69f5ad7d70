package vision

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/gatekeeper/internal/types"
	"gocv.io/x/gocv"
)

// SaveSample normalizes one detected face and writes it to path as a
// grayscale training image.
func SaveSample(f *Frame, region types.Region, size int, path string) error {
	face, err := Normalize(f.Gray, region, size)
	defer face.Close()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	if !gocv.IMWrite(path, face) {
		return fmt.Errorf("failed to write sample %s", path)
	}
	return nil
}
