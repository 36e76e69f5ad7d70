// Package dataset manages the on-disk training set. Every face crop is
// stored as <dir>/user.<identity id>.<sample number>.jpg so the owning
// identity can be recovered from the file name alone.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	prefix = "user"
	ext    = ".jpg"
)

// ErrEmpty is returned when a directory holds no labeled samples.
var ErrEmpty = errors.New("dataset contains no labeled face images")

// Sample is one labeled training image.
type Sample struct {
	Path       string
	IdentityID int
	Index      int
}

// FileName returns the canonical file name of sample n for an identity.
func FileName(identityID, n int) string {
	return fmt.Sprintf("%s.%d.%d%s", prefix, identityID, n, ext)
}

// Path joins dir and FileName.
func Path(dir string, identityID, n int) string {
	return filepath.Join(dir, FileName(identityID, n))
}

// ParseName extracts the identity id and sample number from a file name.
func ParseName(name string) (identityID, n int, err error) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ext) {
		return 0, 0, fmt.Errorf("%q: not a %s file", base, ext)
	}
	parts := strings.Split(strings.TrimSuffix(base, ext), ".")
	if len(parts) != 3 || parts[0] != prefix {
		return 0, 0, fmt.Errorf("%q: expected %s.<id>.<n>%s", base, prefix, ext)
	}
	identityID, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%q: invalid identity id: %w", base, err)
	}
	n, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("%q: invalid sample number: %w", base, err)
	}
	return identityID, n, nil
}

// Scan lists the labeled samples in dir, sorted by identity then sample
// number. Files that do not follow the naming scheme are returned in
// skipped rather than failing the scan.
func Scan(dir string) (samples []Sample, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		id, n, err := ParseName(e.Name())
		if err != nil {
			skipped = append(skipped, e.Name())
			continue
		}
		samples = append(samples, Sample{Path: filepath.Join(dir, e.Name()), IdentityID: id, Index: n})
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].IdentityID != samples[j].IdentityID {
			return samples[i].IdentityID < samples[j].IdentityID
		}
		return samples[i].Index < samples[j].Index
	})

	if len(samples) == 0 {
		return nil, skipped, ErrEmpty
	}
	return samples, skipped, nil
}

// Identities returns the distinct identity ids present in samples.
func Identities(samples []Sample) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, s := range samples {
		if !seen[s.IdentityID] {
			seen[s.IdentityID] = true
			ids = append(ids, s.IdentityID)
		}
	}
	sort.Ints(ids)
	return ids
}

// NextIndex returns the first unused sample number for an identity in dir,
// so a repeated enrollment appends instead of overwriting.
func NextIndex(dir string, identityID int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, err
	}
	next := 1
	for _, e := range entries {
		id, n, err := ParseName(e.Name())
		if err != nil || id != identityID {
			continue
		}
		if n >= next {
			next = n + 1
		}
	}
	return next, nil
}
