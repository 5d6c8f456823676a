package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateDirMode is the mode for directories holding lock files and the
// ledger. Other users have no business reading them.
const StateDirMode os.FileMode = 0o750

// EnsureDir creates path and any missing parents with StateDirMode.
// Existing directories are left untouched.
func EnsureDir(path string) error {
	if path == "" {
		return fmt.Errorf("create directory: empty path")
	}
	if err := os.MkdirAll(path, StateDirMode); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// EnsureDirForFile creates the parent directory of filePath.
func EnsureDirForFile(filePath string) error {
	if err := EnsureDir(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", filePath, err)
	}
	return nil
}
