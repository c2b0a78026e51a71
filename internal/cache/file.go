package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileCache keeps one file per key under Dir.
type FileCache struct {
	Dir string
	mu  sync.Mutex
}

var _ Cache = (*FileCache)(nil)

func NewFileCache(dir string) *FileCache {
	return &FileCache{Dir: dir}
}

func (fc *FileCache) Get(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(filepath.Join(fc.Dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(data), nil
}

func (fc *FileCache) Set(_ context.Context, key, value string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.write(key, value)
}

// MultiSet writes every entry to a temp file first and only then renames them
// into place, so a failed write leaves the previous values intact.
func (fc *FileCache) MultiSet(_ context.Context, entries []Entry) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	temps := make([]string, 0, len(entries))
	cleanup := func() {
		for _, t := range temps {
			_ = os.Remove(t)
		}
	}
	for _, e := range entries {
		tmp, err := fc.writeTemp(e.Key, e.Value)
		if err != nil {
			cleanup()
			return err
		}
		temps = append(temps, tmp)
	}
	for i, e := range entries {
		if err := os.Rename(temps[i], filepath.Join(fc.Dir, e.Key)); err != nil {
			cleanup()
			return fmt.Errorf("failed to commit %s: %w", e.Key, err)
		}
	}
	return nil
}

func (fc *FileCache) write(key, value string) error {
	tmp, err := fc.writeTemp(key, value)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(fc.Dir, key)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

func (fc *FileCache) writeTemp(key, value string) (string, error) {
	filePath := filepath.Join(fc.Dir, key)
	// Create parent directories if they don't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(filePath), "."+filepath.Base(key)+".*")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(value); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
