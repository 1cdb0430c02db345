package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Available checks if the binary can be found on PATH (or at its path).
func Available(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}

// Version runs `<binary> --version` and returns the first line of output,
// e.g. "g++ (GCC) 14.2.1 20240910" or "cargo 1.82.0 (8f40fc59f 2024-08-21)".
func Version(ctx context.Context, binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", err
	}

	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%s --version failed: %w", binary, err)
	}

	first, _, _ := bytes.Cut(output, []byte("\n"))
	return strings.TrimSpace(string(first)), nil
}
