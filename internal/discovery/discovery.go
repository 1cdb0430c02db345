// Package discovery finds input fixtures by naming convention.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultTag is the substring that marks an input file or directory.
const DefaultTag = "input"

// Discover scans dir (not recursively) for inputs:
//   - a regular file whose name contains tag;
//   - every regular file directly inside a directory whose name, lower-cased,
//     contains tag.
//
// The result is de-duplicated and sorted in ascending lexicographic order.
func Discover(dir, tag string) ([]string, error) {
	if tag == "" {
		tag = DefaultTag
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var inputs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		info, err := os.Stat(path)
		if err != nil {
			// Dangling symlink or a race with deletion.
			continue
		}

		switch {
		case info.IsDir():
			if !strings.Contains(strings.ToLower(entry.Name()), strings.ToLower(tag)) {
				continue
			}
			files, err := regularFiles(path)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, files...)

		case info.Mode().IsRegular():
			if strings.Contains(entry.Name(), tag) {
				inputs = append(inputs, path)
			}
		}
	}

	slices.Sort(inputs)
	return slices.Compact(inputs), nil
}

// regularFiles lists the regular files directly inside dir.
func regularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	return files, nil
}
