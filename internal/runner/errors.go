package runner

import "fmt"

// Kind classifies a job failure.
type Kind int

const (
	// SpawnFailure means the child process could not be started.
	SpawnFailure Kind = iota + 1

	// StdinWriteFailure means the child closed or rejected its input.
	// It is reported and the job ends; it never fails the batch.
	StdinWriteFailure

	// WaitFailure means the child's output or exit status could not be
	// collected.
	WaitFailure

	// FilesystemFailure means an input file could not be read or a result
	// file could not be written.
	FilesystemFailure
)

// String returns the snake_case name of the kind, as used in logs and
// metric labels.
func (k Kind) String() string {
	switch k {
	case SpawnFailure:
		return "spawn_failure"
	case StdinWriteFailure:
		return "stdin_write_failure"
	case WaitFailure:
		return "wait_failure"
	case FilesystemFailure:
		return "filesystem_failure"
	default:
		return "unknown"
	}
}

// JobError is the failure of a single job.
type JobError struct {
	Kind Kind
	Name string // display name of the input file
	Err  error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Kind, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func jobError(kind Kind, name string, err error) *JobError {
	return &JobError{Kind: kind, Name: name, Err: err}
}
