package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// Medium is the string key-value store a DurableStore mirrors itself into.
// DurableStore treats it as best-effort; errors are logged, never returned to callers.
type Medium interface {
	// Read returns the value stored under key and whether it exists.
	Read(key string) (string, bool, error)
	// Write stores value under key, replacing any previous value.
	Write(key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}

// FileMedium keeps each key in its own file under Dir.
type FileMedium struct {
	Dir string
}

// NewFileMedium creates dir if needed and returns a medium rooted there.
func NewFileMedium(dir string) (*FileMedium, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileMedium{Dir: dir}, nil
}

func (m *FileMedium) path(key string) string {
	return filepath.Join(m.Dir, url.PathEscape(key)+".json")
}

// Read implements Medium.Read.
func (m *FileMedium) Read(key string) (string, bool, error) {
	b, err := os.ReadFile(m.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// Write implements Medium.Write. The file is replaced atomically.
func (m *FileMedium) Write(key, value string) error {
	tmp, err := os.CreateTemp(m.Dir, ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), m.path(key))
}

// Remove implements Medium.Remove.
func (m *FileMedium) Remove(key string) error {
	err := os.Remove(m.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
