package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "input2.txt"))
	touch(t, filepath.Join(dir, "input1.txt"))
	touch(t, filepath.Join(dir, "my_input"))
	touch(t, filepath.Join(dir, "INPUT_upper.txt")) // file match is case-sensitive
	touch(t, filepath.Join(dir, "main.cpp"))
	touch(t, filepath.Join(dir, "Inputs", "b.txt")) // directory match is not
	touch(t, filepath.Join(dir, "Inputs", "a.txt"))
	touch(t, filepath.Join(dir, "Inputs", "deep", "c.txt"))
	touch(t, filepath.Join(dir, "other", "input9.txt"))

	got, err := Discover(dir, "input")
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "Inputs", "a.txt"),
		filepath.Join(dir, "Inputs", "b.txt"),
		filepath.Join(dir, "input1.txt"),
		filepath.Join(dir, "input2.txt"),
		filepath.Join(dir, "my_input"),
	}
	require.Equal(t, want, got)
}

func TestDiscover_DirectoryNamedLikeInputFile(t *testing.T) {
	dir := t.TempDir()

	// A tagged directory whose files are also tagged is listed once.
	touch(t, filepath.Join(dir, "input", "input1.txt"))
	touch(t, filepath.Join(dir, "input", "input2.txt"))

	got, err := Discover(dir, "input")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "input", "input1.txt"),
		filepath.Join(dir, "input", "input2.txt"),
	}, got)
}

func TestDiscover_CustomAndDefaultTag(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "case1.in"))
	touch(t, filepath.Join(dir, "input.txt"))

	got, err := Discover(dir, ".in")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "case1.in")}, got)

	got, err = Discover(dir, "")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "input.txt")}, got)
}

func TestDiscover_Empty(t *testing.T) {
	got, err := Discover(t.TempDir(), "input")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDiscover_MissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), "input")
	require.Error(t, err)
}

func TestDiscover_MixedCaseTagMatchesDirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Input", "1.txt"))
	touch(t, filepath.Join(dir, "Input.txt"))
	touch(t, filepath.Join(dir, "input.txt")) // file match stays case-sensitive

	got, err := Discover(dir, "Input")
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "Input", "1.txt"),
		filepath.Join(dir, "Input.txt"),
	}, got)
}
