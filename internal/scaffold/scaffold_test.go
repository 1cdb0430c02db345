package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	for n, name := range Templates() {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			path, err := Create(dir, "a", n)
			require.NoError(t, err)
			require.Equal(t, filepath.Join(dir, "src", "bin", "a.rs"), path)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.True(t, strings.Contains(string(data), "fn main()"))
		})
	}
}

func TestCreate_TemplatesDiffer(t *testing.T) {
	dir := t.TempDir()
	seen := make(map[string]bool)
	for n := range Templates() {
		path, err := Create(dir, "t"+string(rune('0'+n)), n)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		seen[string(data)] = true
	}
	require.Len(t, seen, len(Templates()))
}

func TestCreate_RefusesExisting(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, "a")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("mine"), 0o644))

	_, err := Create(dir, "a", 0)
	require.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "mine", string(data), "existing file must be untouched")
}

func TestCreate_Invalid(t *testing.T) {
	dir := t.TempDir()

	testCases := []struct {
		name     string
		bin      string
		template int
	}{
		{"empty name", "", 0},
		{"path name", "x/y", 0},
		{"parent name", "..", 0},
		{"negative template", "a", -1},
		{"template out of range", "a", 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Create(dir, tc.bin, tc.template)
			require.Error(t, err)
		})
	}

	_, err := os.Stat(filepath.Join(dir, "src"))
	require.True(t, os.IsNotExist(err), "nothing is created for invalid arguments")
}
