// Package scaffold creates new solution files from built-in templates.
package scaffold

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed templates/*.rs
var templates embed.FS

// Template names, indexed by the -template number.
var names = []string{"default", "local", "safe"}

// ErrExists is returned when the target file is already there.
var ErrExists = errors.New("file already exists")

// Templates returns the template names in -template order.
func Templates() []string {
	return append([]string(nil), names...)
}

// ValidTemplate reports whether n selects a template.
func ValidTemplate(n int) bool {
	return n >= 0 && n < len(names)
}

// Path returns where Create puts the binary target name inside a cargo
// project rooted at dir.
func Path(dir, name string) string {
	return filepath.Join(dir, "src", "bin", name+".rs")
}

// Create writes template n to src/bin/<name>.rs under dir and returns the
// path. An existing file is never overwritten.
func Create(dir, name string, n int) (string, error) {
	if name == "" || filepath.Base(name) != name || !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid binary name %q", name)
	}
	if !ValidTemplate(n) {
		return "", fmt.Errorf("invalid template %d: 0..%d are available", n, len(names)-1)
	}

	content, err := templates.ReadFile("templates/" + names[n] + ".rs")
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", names[n], err)
	}

	path := Path(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
