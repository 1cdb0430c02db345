// Package process builds the program under test with an external toolchain.
package process

import (
	"context"
	"os/exec"
	"strings"
)

// Toolchain creates the build command for one source file.
// This interface keeps the CLI independent of the language being built.
type Toolchain interface {
	// BuildCommand returns a ready-to-start build command.
	// The command should NOT be started yet.
	BuildCommand(ctx context.Context) (*exec.Cmd, error)

	// Name returns a human-readable name for this toolchain.
	Name() string

	// BinaryPath is where the built executable will be.
	BinaryPath() string

	// OwnsBinary reports whether the executable is a scratch file that
	// should be removed after the batch.
	OwnsBinary() bool
}

// CommandString returns the command line that would be executed.
func CommandString(ctx context.Context, tc Toolchain) (string, error) {
	cmd, err := tc.BuildCommand(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(cmd.Args, " "), nil
}
