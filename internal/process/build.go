package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-cpbench/internal/logging"
)

// BuildResult captures the outcome of a build.
type BuildResult struct {
	Toolchain   string
	Command     string
	ExitCode    int
	Duration    time.Duration
	Diagnostics logging.DiagnosticCounts
}

// Success reports whether the build produced an executable.
func (r *BuildResult) Success() bool {
	return r.ExitCode == 0
}

// Build runs the toolchain's build command to completion. Compiler output
// is passed through to stdout and stderr unchanged; stderr is additionally
// fed line by line to handler when it is non-nil.
//
// A build that ran and failed is not an error: the result carries the exit
// code. An error means the build command could not be run at all.
func Build(ctx context.Context, tc Toolchain, stdout, stderr io.Writer, handler *logging.DiagnosticsHandler) (*BuildResult, error) {
	cmd, err := tc.BuildCommand(ctx)
	if err != nil {
		return nil, fmt.Errorf("build command: %w", err)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	var (
		pw   *io.PipeWriter
		done chan struct{}
	)
	if handler != nil {
		var pr *io.PipeReader
		pr, pw = io.Pipe()
		done = make(chan struct{})
		go func() {
			defer close(done)
			handler.HandleReader(pr)
		}()
		cmd.Stderr = io.MultiWriter(stderr, pw)
	}

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	var diags logging.DiagnosticCounts
	if handler != nil {
		pw.Close()
		<-done
		diags = handler.Counts()
	}

	exitCode, err := exitStatus(runErr)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", tc.Name(), err)
	}

	return &BuildResult{
		Toolchain:   tc.Name(),
		Command:     cmd.String(),
		ExitCode:    exitCode,
		Duration:    elapsed,
		Diagnostics: diags,
	}, nil
}

// exitStatus extracts the exit code from a Run error.
// Signal deaths map to 128+signal.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
