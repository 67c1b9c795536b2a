package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempPattern is the name pattern of the scratch files created by WriteFileAtomic.
const TempPattern = ".thesamo.tmp.*"

// WriteFileAtomic replaces the file at path with data. The content is written
// to a temporary file in the same directory, synced, and renamed over path, so
// a crash leaves either the old or the new content on disk. The permissions of
// an existing file are preserved; perm is used for new files.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+TempPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tempFile.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	// durability before the rename makes the new content visible
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}

	success = true
	return nil
}
