// Package atomicfile implements the write-file-atomic collaborator:
// durable replacement of a file's contents via a temp file in the same
// directory followed by a rename.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Write calls fn with a writer for a temporary file created alongside
// path, then renames the temp file onto path. If fn returns an error, or
// the rename fails, the temp file is removed and the original path is
// left untouched.
func Write(path string, fn func(f *os.File) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("atomicfile: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := fn(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: rename temp file: %w", err)
	}
	return nil
}
