package runner

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// execute runs the binary once against j's input. The returned error, if
// any, is classified by Kind.
//
// The clock starts once the whole input has been written and stops when the
// child has exited, so the measured time covers the child's own work and not
// the cost of filling the pipe.
func (r *Runner) execute(j job) (*Result, *JobError) {
	input, err := r.fs.ReadFile(j.input)
	if err != nil {
		return nil, jobError(FilesystemFailure, j.name, fmt.Errorf("read input: %w", err))
	}

	cmd := exec.Command(r.cfg.Binary)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, jobError(SpawnFailure, j.name, fmt.Errorf("stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, jobError(SpawnFailure, j.name, fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, jobError(SpawnFailure, j.name, fmt.Errorf("stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return nil, jobError(SpawnFailure, j.name, fmt.Errorf("start %s: %w", r.cfg.Binary, err))
	}

	// Drain both streams while stdin is written so a chatty child cannot
	// block on a full pipe.
	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := outBuf.ReadFrom(stdout)
		return err
	})
	g.Go(func() error {
		_, err := errBuf.ReadFrom(stderr)
		return err
	})

	_, writeErr := stdin.Write(input)
	start := time.Now()
	if closeErr := stdin.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		// Reap the child; its output is discarded.
		_ = g.Wait()
		_ = cmd.Wait()
		return nil, jobError(StdinWriteFailure, j.name, writeErr)
	}

	readErr := g.Wait()
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	exitCode, err := exitStatus(waitErr)
	if err != nil {
		return nil, jobError(WaitFailure, j.name, fmt.Errorf("wait: %w", err))
	}
	if readErr != nil {
		return nil, jobError(WaitFailure, j.name, fmt.Errorf("read output: %w", readErr))
	}

	return &Result{
		Input:    j.input,
		Name:     j.name,
		Index:    j.index,
		HasIndex: j.hasIndex,
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
		Elapsed:  elapsed,
		ExitCode: exitCode,
	}, nil
}

// exitStatus converts a Wait error into an exit code. A process that ran
// and exited, successfully or not, yields a nil error; signal deaths map to
// 128+signal.
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
