// Package runner runs a compiled binary against a batch of input files.
//
// Each input becomes one job: spawn the binary, feed the file on stdin,
// time the run, then report the elapsed time and route the captured stdout
// to the console or to a per-index result file. With Parallelism 1 jobs run
// one after another on the caller's goroutine and the first unrecoverable
// error stops the batch. With Parallelism > 1 jobs are spread over a worker
// pool and failures are isolated to the job that caused them.
package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/randomizedcoder/go-cpbench/internal/pool"
)

// DefaultOutputDir is the directory result files are written to.
const DefaultOutputDir = "output"

// Result is the outcome of one completed job.
type Result struct {
	Input    string // path as discovered
	Name     string // display name (base name of Input)
	Index    int
	HasIndex bool // true in persisted-output mode

	Stdout   []byte
	Stderr   []byte
	Elapsed  time.Duration
	ExitCode int
}

// OutputFile returns the result file name for r, or "" when r has no index.
func (r *Result) OutputFile() string {
	if !r.HasIndex {
		return ""
	}
	return outputFileName(r.Index)
}

// Observer receives job outcomes. Implementations must be safe for
// concurrent use.
type Observer interface {
	CaseFinished(res *Result)
	CaseFailed(err *JobError)
	UnitPanicked(err *pool.PanicError)
}

type noopObserver struct{}

func (noopObserver) CaseFinished(*Result)          {}
func (noopObserver) CaseFailed(*JobError)          {}
func (noopObserver) UnitPanicked(*pool.PanicError) {}

// Config configures a Runner.
type Config struct {
	// Binary is the executable under test.
	Binary string

	// OutputDir is recreated empty before a persisted-output batch.
	OutputDir string

	// PersistOutput writes stdout to OutputDir/output.<i>.txt instead of
	// echoing it to the console.
	PersistOutput bool

	// Parallelism is the number of concurrent jobs. 1 runs sequentially.
	Parallelism int

	FS       FS
	Console  *Console
	Logger   *slog.Logger
	Observer Observer
}

// Runner executes batches of jobs against one binary.
type Runner struct {
	cfg      Config
	fs       FS
	console  *Console
	logger   *slog.Logger
	observer Observer
}

// New creates a Runner, filling unset fields of cfg with defaults.
func New(cfg Config) *Runner {
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}

	r := &Runner{
		cfg:      cfg,
		fs:       cfg.FS,
		console:  cfg.Console,
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}
	if r.fs == nil {
		r.fs = OSFS{}
	}
	if r.console == nil {
		r.console = NewConsole(os.Stdout, nil)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.observer == nil {
		r.observer = noopObserver{}
	}
	return r
}

// PrepareOutputDir removes any entry named OutputDir and recreates it as an
// empty directory.
func (r *Runner) PrepareOutputDir() error {
	if err := r.fs.RemoveAll(r.cfg.OutputDir); err != nil {
		return fmt.Errorf("remove %s: %w", r.cfg.OutputDir, err)
	}
	if err := r.fs.Mkdir(r.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", r.cfg.OutputDir, err)
	}
	return nil
}

// Run executes one job per input, in discovery order. Inputs must already
// be sorted; result indices follow their positions.
func (r *Runner) Run(inputs []string) error {
	if r.cfg.PersistOutput {
		if err := r.PrepareOutputDir(); err != nil {
			return err
		}
	}

	r.logger.Info("batch_starting",
		"binary", r.cfg.Binary,
		"inputs", len(inputs),
		"parallelism", r.cfg.Parallelism,
		"persist_output", r.cfg.PersistOutput,
	)

	start := time.Now()
	var err error
	if r.cfg.Parallelism > 1 {
		err = r.runPooled(inputs)
	} else {
		err = r.runSequential(inputs)
	}

	r.logger.Info("batch_finished",
		"inputs", len(inputs),
		"elapsed", time.Since(start).String(),
		"failed", err != nil,
	)
	return err
}

func (r *Runner) runSequential(inputs []string) error {
	for i, input := range inputs {
		if err := r.runJob(r.newJob(i, input)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runPooled(inputs []string) error {
	p := pool.New(r.cfg.Parallelism, r.logger)

	// One slot per job; each job writes only its own slot.
	failures := make([]error, len(inputs)+1)
	for i, input := range inputs {
		i, j := i, r.newJob(i, input)
		if err := p.Execute(func() {
			failures[i] = r.runJob(j)
		}); err != nil {
			failures[i] = err
		}
	}

	if err := p.Shutdown(); err != nil {
		r.reportPanics(err)
		failures[len(inputs)] = err
	}
	return errors.Join(failures...)
}

func (r *Runner) reportPanics(err error) {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var perr *pool.PanicError
		if errors.As(e, &perr) {
			r.observer.UnitPanicked(perr)
		}
	}
}

type job struct {
	input    string
	name     string
	index    int
	hasIndex bool
}

func (r *Runner) newJob(i int, input string) job {
	return job{
		input:    input,
		name:     filepath.Base(input),
		index:    i,
		hasIndex: r.cfg.PersistOutput,
	}
}

// runJob executes j and reports its outcome. It returns nil for successful
// jobs and for recoverable failures.
func (r *Runner) runJob(j job) error {
	res, jerr := r.execute(j)
	if jerr == nil {
		jerr = r.emit(res)
	}
	if jerr != nil {
		r.reportFailure(jerr)
		if jerr.Kind == StdinWriteFailure {
			return nil
		}
		return jerr
	}

	r.logger.Debug("case_finished",
		"input", j.name,
		"elapsed_ms", res.Elapsed.Milliseconds(),
		"exit_code", res.ExitCode,
		"stdout_bytes", len(res.Stdout),
		"stderr_bytes", len(res.Stderr),
	)
	r.observer.CaseFinished(res)
	return nil
}

// emit persists stdout when the job has an index and writes the console
// block.
func (r *Runner) emit(res *Result) *JobError {
	b := r.console.NewBlock()
	ms := res.Elapsed.Milliseconds()

	if res.HasIndex {
		name := res.OutputFile()
		path := filepath.Join(r.cfg.OutputDir, name)
		if err := r.fs.WriteFile(path, res.Stdout, fs.FileMode(0o644)); err != nil {
			return jobError(FilesystemFailure, res.Name, fmt.Errorf("write %s: %w", path, err))
		}
		b.Banner(fmt.Sprintf("%s: %dms (%s)", res.Name, ms, name))
	} else {
		b.Banner(fmt.Sprintf("%s: %dms", res.Name, ms)).Raw(res.Stdout)
	}

	if len(res.Stderr) > 0 {
		b.Banner("(stderr)").Raw(res.Stderr)
	}

	if err := r.console.Write(b); err != nil {
		r.logger.Warn("console_write_failed", "input", res.Name, "error", err)
	}
	return nil
}

func (r *Runner) reportFailure(jerr *JobError) {
	b := r.console.NewBlock().Banner(fmt.Sprintf("%s: ERROR: %v", jerr.Name, jerr.Err))
	if err := r.console.Write(b); err != nil {
		r.logger.Warn("console_write_failed", "input", jerr.Name, "error", err)
	}

	r.logger.Warn("case_failed",
		"input", jerr.Name,
		"kind", jerr.Kind.String(),
		"error", jerr.Err,
	)
	r.observer.CaseFailed(jerr)
}

func outputFileName(i int) string {
	return fmt.Sprintf("output.%d.txt", i)
}
