package runner

import (
	"errors"
	"io/fs"
	"os"
)

// FS is the filesystem surface the runner touches. It exists so tests can
// run the batch logic without a real working directory.
type FS interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// RemoveAll removes name and any children. A missing name is not an
	// error.
	RemoveAll(name string) error
	Mkdir(name string, perm fs.FileMode) error
}

// OSFS implements FS on the real filesystem.
type OSFS struct{}

func (OSFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (OSFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (OSFS) RemoveAll(name string) error {
	err := os.RemoveAll(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (OSFS) Mkdir(name string, perm fs.FileMode) error {
	return os.Mkdir(name, perm)
}
