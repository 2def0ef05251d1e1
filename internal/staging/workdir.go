package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// WorkDirSuffix marks the per-image scratch directory.
	WorkDirSuffix = ".VOBS"
	// ListSuffix marks the per-image concat list.
	ListSuffix = ".mylist.txt"
)

// Paths names the scratch locations for one image.
type Paths struct {
	WorkDir  string
	ListPath string
}

// For returns the scratch paths for imagePath under outputDir.
func For(outputDir, imagePath string) Paths {
	name := filepath.Base(filepath.Clean(imagePath))
	return Paths{
		WorkDir:  filepath.Join(outputDir, name+WorkDirSuffix),
		ListPath: filepath.Join(outputDir, name+ListSuffix),
	}
}

// Prepare creates the work directory, leaving existing content in place.
func (p Paths) Prepare() error {
	if strings.TrimSpace(p.WorkDir) == "" {
		return errors.New("work directory not set")
	}
	if err := os.MkdirAll(p.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	return nil
}

// Remove deletes the work directory and concat list. Missing entries are
// not errors; every other failure is returned.
func (p Paths) Remove() []CleanupError {
	var failures []CleanupError
	if p.WorkDir != "" {
		if err := os.RemoveAll(p.WorkDir); err != nil {
			failures = append(failures, CleanupError{Path: p.WorkDir, Error: err})
		}
	}
	if p.ListPath != "" {
		if err := os.Remove(p.ListPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			failures = append(failures, CleanupError{Path: p.ListPath, Error: err})
		}
	}
	return failures
}
