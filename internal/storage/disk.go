package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrExists is returned by Persist when the target file is already present
// and overwriting is disabled.
var ErrExists = errors.New("file already exists")

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

// Disk persists content below the local filesystem.
// It is safe for concurrent use as long as no two callers write the same
// path at the same time; the dedup index guarantees that.
type Disk struct {
	overwrite bool
}

// NewDisk creates a Disk store. When overwrite is false, existing files are
// left untouched and Persist reports ErrExists.
func NewDisk(overwrite bool) *Disk {
	return &Disk{overwrite: overwrite}
}

// Persist writes everything read from r to path and returns the byte count.
func (d *Disk) Persist(path string, r io.Reader) (int64, error) {
	if !d.overwrite && d.Exists(path) {
		return 0, fmt.Errorf("%s: %w", path, ErrExists)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	n, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		if copyErr != nil {
			return n, fmt.Errorf("failed to write %s: %w", path, copyErr)
		}
		return n, fmt.Errorf("failed to close %s: %w", path, closeErr)
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		_ = os.Remove(tmpName)
		return n, fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return n, fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return n, nil
}

// Exists reports whether path is an existing regular file.
func (d *Disk) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Overwrite reports whether existing files are replaced.
func (d *Disk) Overwrite() bool {
	return d.overwrite
}
