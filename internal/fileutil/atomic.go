// Package fileutil writes files so that readers never observe a partial
// write, even when the process dies midway.
package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes to a temporary file in the same directory and
// renames it over filename. Readers see either the old file or the new
// one.
func WriteFileAtomic(filename string, perm os.FileMode, write func(io.Writer) error) error {
	// same directory, since a rename across filesystems is not atomic
	tmpFile, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmpFile); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filename); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// AppendAtomic appends what write produces to filename as a single synced
// write. If the append fails the file is truncated back to its previous
// length, so a retried batch is never stored twice or half.
func AppendAtomic(filename string, perm os.FileMode, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	if buf.Len() == 0 {
		return nil
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		return rollback(f, size, fmt.Errorf("failed to append: %w", err))
	}
	if err := f.Sync(); err != nil {
		return rollback(f, size, fmt.Errorf("failed to sync: %w", err))
	}
	return f.Close()
}

func rollback(f *os.File, size int64, cause error) error {
	if err := f.Truncate(size); err != nil {
		return fmt.Errorf("%w (truncate also failed: %v)", cause, err)
	}
	return cause
}
