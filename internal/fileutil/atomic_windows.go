package fileutil

import (
	"fmt"
	"os"
)

// WriteFileAtomic writes data to path. renameio does not support Windows, so
// the file is written in place.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
