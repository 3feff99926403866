package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local keeps uploaded files in a single flat directory on disk.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create uploads dir %s: %w", dir, err)
	}

	return &Local{dir: dir}, nil
}

func (s *Local) Dir() string { return s.dir }

// Save writes through a temp file and renames into place, so a failed write
// never leaves a half-written file under the final name.
func (s *Local) Save(ctx context.Context, name, contentType string, r io.Reader) error {
	const op = "filestore.local.Save"

	fullPath := filepath.Join(s.dir, filepath.Base(name))
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%s: create temp: %w", op, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%s: write: %w", op, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%s: sync: %w", op, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%s: close: %w", op, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%s: rename: %w", op, err)
	}

	return nil
}

func (s *Local) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	const op = "filestore.local.Open"

	fullPath := filepath.Join(s.dir, filepath.Base(name))

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%s: %s: %w", op, name, ErrFileNotExist)
		}
		return nil, 0, fmt.Errorf("%s: open %s: %w", op, name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("%s: stat %s: %w", op, name, err)
	}

	return f, info.Size(), nil
}

func (s *Local) Remove(ctx context.Context, name string) error {
	const op = "filestore.local.Remove"

	fullPath := filepath.Join(s.dir, filepath.Base(name))

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %s: %w", op, name, ErrFileNotExist)
		}
		return fmt.Errorf("%s: remove %s: %w", op, name, err)
	}

	return nil
}
