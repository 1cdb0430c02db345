// Package orchestrator runs one go-cpbench batch end to end: discover the
// inputs, check the environment, build the source, run every input against
// the binary and report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-cpbench/internal/banner"
	"github.com/randomizedcoder/go-cpbench/internal/config"
	"github.com/randomizedcoder/go-cpbench/internal/discovery"
	"github.com/randomizedcoder/go-cpbench/internal/logging"
	"github.com/randomizedcoder/go-cpbench/internal/metrics"
	"github.com/randomizedcoder/go-cpbench/internal/preflight"
	"github.com/randomizedcoder/go-cpbench/internal/process"
	"github.com/randomizedcoder/go-cpbench/internal/runner"
	"github.com/randomizedcoder/go-cpbench/internal/stats"
)

// ErrBuildFailed is returned when the toolchain exits non-zero. No test
// case is run after a failed build.
var ErrBuildFailed = errors.New("build failed")

// Options overrides the orchestrator's environment. The zero value builds
// with the toolchain named by the config and works in the current directory.
type Options struct {
	// Toolchain replaces NewToolchain(cfg).
	Toolchain process.Toolchain

	// Dir is scanned for inputs. Defaults to ".".
	Dir string

	// Stdout receives reports and program output; Stderr receives build
	// diagnostics, preflight results and the exit summary.
	Stdout io.Writer
	Stderr io.Writer
}

// Orchestrator coordinates all components for a batch.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger

	toolchain process.Toolchain
	metrics   *metrics.Collector

	dir    string
	stdout io.Writer
	stderr io.Writer

	startTime time.Time
}

// NewToolchain returns the toolchain for cfg.Lang.
func NewToolchain(cfg *config.Config) process.Toolchain {
	if cfg.Lang == config.LangRust {
		return process.NewCargoToolchain(&process.CargoConfig{
			CargoPath: cfg.Compiler,
			Bin:       cfg.BinaryName(),
			Release:   cfg.Release,
		})
	}
	return process.NewGxxToolchain(&process.GxxConfig{
		CompilerPath: cfg.Compiler,
		Source:       cfg.Source,
		Release:      cfg.Release,
		Warning:      cfg.Warning,
	})
}

// New creates a new Orchestrator with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts Options) *Orchestrator {
	o := &Orchestrator{
		config:    cfg,
		logger:    logger,
		toolchain: opts.Toolchain,
		dir:       opts.Dir,
		stdout:    opts.Stdout,
		stderr:    opts.Stderr,
	}
	if o.toolchain == nil {
		o.toolchain = NewToolchain(cfg)
	}
	if o.dir == "" {
		o.dir = "."
	}
	if o.stdout == nil {
		o.stdout = os.Stdout
	}
	if o.stderr == nil {
		o.stderr = os.Stderr
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Run executes the batch. It returns ErrBuildFailed, a preflight or
// discovery error, or the runner's error; the summary and metrics file are
// written in every case where the build was attempted.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startTime = time.Now()

	inputs, err := discovery.Discover(o.dir, o.config.InputTag)
	if err != nil {
		return fmt.Errorf("discover inputs: %w", err)
	}
	o.logger.Info("inputs_discovered", "dir", o.dir, "tag", o.config.InputTag, "count", len(inputs))

	if !o.config.SkipPreflight {
		result := preflight.RunAll(preflight.Params{
			Parallelism: o.config.Parallelism,
			Compiler:    o.config.Compiler,
			Inputs:      len(inputs),
		})
		preflight.PrintResults(o.stderr, result)
		if !result.Passed {
			return fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}

	o.metrics = metrics.NewCollector(metrics.CollectorConfig{
		Toolchain: o.toolchain.Name(),
		Release:   o.config.Release,
		Workers:   o.config.Parallelism,
		Inputs:    len(inputs),
	})
	defer o.finish()

	if err := o.build(ctx); err != nil {
		return err
	}
	defer o.removeBinary()

	r := runner.New(runner.Config{
		Binary:        o.toolchain.BinaryPath(),
		OutputDir:     o.config.OutputDir,
		PersistOutput: o.config.OutputFile,
		Parallelism:   o.config.Parallelism,
		Console:       runner.NewConsole(o.stdout, o.framer()),
		Logger:        o.logger,
		Observer:      o.metrics,
	})
	return r.Run(inputs)
}

// build runs the toolchain. Ctrl+C interrupts the compiler only; once the
// batch starts, signals get their default behaviour back.
func (o *Orchestrator) build(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	o.logger.Info("build_starting", "toolchain", o.toolchain.Name(), "release", o.config.Release)

	handler := logging.NewDiagnosticsHandler(o.logger, o.config.Verbose)
	res, err := process.Build(ctx, o.toolchain, o.stdout, o.stderr, handler)
	if err != nil {
		o.metrics.RecordBuild(false, -1, time.Since(o.startTime))
		return fmt.Errorf("build: %w", err)
	}
	o.metrics.RecordBuild(res.Success(), res.ExitCode, res.Duration)

	if !res.Success() {
		o.logger.Error("build_failed",
			"toolchain", res.Toolchain,
			"exit_code", res.ExitCode,
			"errors", res.Diagnostics.Errors,
			"first_error", handler.FirstError(),
		)
		return fmt.Errorf("%w: %s exited with status %d", ErrBuildFailed, res.Toolchain, res.ExitCode)
	}

	o.logger.Info("build_finished",
		"toolchain", res.Toolchain,
		"duration", res.Duration.String(),
		"warnings", res.Diagnostics.Warnings,
		"binary", o.toolchain.BinaryPath(),
	)
	return nil
}

// framer sizes the report banner to the terminal when no width was set.
func (o *Orchestrator) framer() *banner.Framer {
	width := o.config.BannerWidth
	colored := false
	if f, ok := o.stdout.(*os.File); ok {
		if width == 0 {
			width = banner.DetectWidth(f.Fd(), banner.DefaultWidth)
		}
		colored = o.config.Color && banner.IsTerminal(f.Fd())
	}
	return banner.New(width, colored)
}

func (o *Orchestrator) removeBinary() {
	if !o.toolchain.OwnsBinary() || o.config.KeepBinary {
		return
	}
	path := o.toolchain.BinaryPath()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.logger.Warn("binary_cleanup_failed", "binary", path, "error", err)
	}
}

// finish writes the metrics file and, with -v, the exit summary.
func (o *Orchestrator) finish() {
	if o.config.MetricsFile != "" {
		if err := o.metrics.WriteTextfile(o.config.MetricsFile); err != nil {
			o.logger.Warn("metrics_write_failed", "path", o.config.MetricsFile, "error", err)
		}
	}

	if o.config.Verbose {
		summaryCfg := stats.SummaryConfig{
			Release:     o.config.Release,
			MetricsFile: o.config.MetricsFile,
		}
		if o.config.OutputFile {
			summaryCfg.OutputDir = o.config.OutputDir
		}
		fmt.Fprint(o.stderr, stats.FormatExitSummary(o.metrics.GenerateSummary(), summaryCfg))
	}
}

// Toolchain returns the toolchain for external access.
func (o *Orchestrator) Toolchain() process.Toolchain {
	return o.toolchain
}

// Metrics returns the metrics collector, or nil before Run has built.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}
