package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalMedium stores a document as a file. Writes go to a temporary file in
// the same directory which is then renamed over the target, so readers
// never see a half written document.
type LocalMedium struct {
	path string
}

func NewLocalMedium(path string) *LocalMedium {
	return &LocalMedium{path: path}
}

func (m *LocalMedium) Name() string {
	return m.path
}

func (m *LocalMedium) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}

		return nil, fmt.Errorf("failed to read %s, %w", m.path, err)
	}

	return data, nil
}

func (m *LocalMedium) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s, %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file, %w", err)
	}
	defer os.Remove(tmp.Name()) // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary file, %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary file, %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file, %w", err)
	}

	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("failed to replace %s, %w", m.path, err)
	}

	return nil
}
