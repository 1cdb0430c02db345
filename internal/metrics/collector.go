// Package metrics provides Prometheus metrics for go-cpbench.
//
// A batch is short-lived, so nothing is served over HTTP. The registry is
// written once at the end of the run in the text exposition format, ready
// for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/randomizedcoder/go-cpbench/internal/pool"
	"github.com/randomizedcoder/go-cpbench/internal/runner"
)

// Outcome labels for cpbench_cases_total. Failures use runner.Kind names.
const (
	OutcomeOK          = "ok"
	OutcomeNonzeroExit = "nonzero_exit"
)

// Collector manages all Prometheus metrics for one batch. It implements
// runner.Observer.
type Collector struct {
	registry *prometheus.Registry

	info          *prometheus.GaugeVec
	casesTotal    *prometheus.CounterVec
	caseDuration  prometheus.Histogram
	stdoutBytes   prometheus.Counter
	stderrBytes   prometheus.Counter
	workers       prometheus.Gauge
	inputs        prometheus.Gauge
	buildDuration prometheus.Gauge
	buildSuccess  prometheus.Gauge
	poolPanics    prometheus.Counter

	// Configuration
	cfg CollectorConfig

	// Timing
	startTime time.Time

	// For summary generation
	mu          sync.Mutex
	digest      *tdigest.TDigest
	maxDuration time.Duration
	outcomes    map[string]int64
	exitCodes   map[int]int64
	panics      int64
	totalStdout int64
	totalStderr int64
	build       *BuildInfo
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Toolchain string
	Release   bool
	Workers   int
	Inputs    int
}

// BuildInfo is what the collector records about the build step.
type BuildInfo struct {
	Success  bool
	ExitCode int
	Duration time.Duration
}

// NewCollector creates a new metrics collector on a private registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.NewRegistry())
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry: registry,

		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cpbench_info",
				Help: "Information about the batch (value always 1)",
			},
			[]string{"toolchain", "profile"},
		),
		casesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cpbench_cases_total",
				Help: "Test cases by outcome",
			},
			[]string{"outcome"},
		),
		caseDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cpbench_case_duration_seconds",
				Help:    "Wall time of completed test cases, from end of input to exit",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms .. ~16s
			},
		),
		stdoutBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cpbench_case_stdout_bytes_total",
				Help: "Bytes written to stdout by completed test cases",
			},
		),
		stderrBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cpbench_case_stderr_bytes_total",
				Help: "Bytes written to stderr by completed test cases",
			},
		),
		workers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cpbench_workers",
				Help: "Number of concurrent test cases",
			},
		),
		inputs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cpbench_inputs",
				Help: "Number of discovered input files",
			},
		),
		buildDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cpbench_build_duration_seconds",
				Help: "Wall time of the build step",
			},
		),
		buildSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cpbench_build_success",
				Help: "1 if the build succeeded, 0 otherwise",
			},
		),
		poolPanics: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cpbench_pool_panics_total",
				Help: "Work units that panicked inside the worker pool",
			},
		),

		cfg:       cfg,
		startTime: time.Now(),
		digest:    tdigest.NewWithCompression(100),
		outcomes:  make(map[string]int64),
		exitCodes: make(map[int]int64),
	}

	registry.MustRegister(
		c.info,
		c.casesTotal,
		c.caseDuration,
		c.stdoutBytes,
		c.stderrBytes,
		c.workers,
		c.inputs,
		c.buildDuration,
		c.buildSuccess,
		c.poolPanics,
	)

	// Set initial values
	profile := "debug"
	if cfg.Release {
		profile = "release"
	}
	c.info.WithLabelValues(cfg.Toolchain, profile).Set(1)
	c.workers.Set(float64(cfg.Workers))
	c.inputs.Set(float64(cfg.Inputs))

	// Pre-create outcome series so that zero counts are exported.
	for _, outcome := range Outcomes() {
		c.casesTotal.WithLabelValues(outcome)
	}

	return c
}

// Outcomes lists every cpbench_cases_total label value.
func Outcomes() []string {
	return []string{
		OutcomeOK,
		OutcomeNonzeroExit,
		runner.StdinWriteFailure.String(),
		runner.SpawnFailure.String(),
		runner.WaitFailure.String(),
		runner.FilesystemFailure.String(),
	}
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// RecordBuild records the build step.
func (c *Collector) RecordBuild(success bool, exitCode int, d time.Duration) {
	c.buildDuration.Set(d.Seconds())
	if success {
		c.buildSuccess.Set(1)
	} else {
		c.buildSuccess.Set(0)
	}

	c.mu.Lock()
	c.build = &BuildInfo{Success: success, ExitCode: exitCode, Duration: d}
	c.mu.Unlock()
}

// CaseFinished records a test case that ran to completion.
func (c *Collector) CaseFinished(res *runner.Result) {
	outcome := OutcomeOK
	if res.ExitCode != 0 {
		outcome = OutcomeNonzeroExit
	}
	c.casesTotal.WithLabelValues(outcome).Inc()
	c.caseDuration.Observe(res.Elapsed.Seconds())
	c.stdoutBytes.Add(float64(len(res.Stdout)))
	c.stderrBytes.Add(float64(len(res.Stderr)))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[outcome]++
	c.exitCodes[res.ExitCode]++
	c.digest.Add(float64(res.Elapsed.Nanoseconds()), 1)
	if res.Elapsed > c.maxDuration {
		c.maxDuration = res.Elapsed
	}
	c.totalStdout += int64(len(res.Stdout))
	c.totalStderr += int64(len(res.Stderr))
}

// CaseFailed records a test case that could not be run or reported.
func (c *Collector) CaseFailed(err *runner.JobError) {
	outcome := err.Kind.String()
	c.casesTotal.WithLabelValues(outcome).Inc()

	c.mu.Lock()
	c.outcomes[outcome]++
	c.mu.Unlock()
}

// UnitPanicked records a panic recovered by the worker pool.
func (c *Collector) UnitPanicked(*pool.PanicError) {
	c.poolPanics.Inc()

	c.mu.Lock()
	c.panics++
	c.mu.Unlock()
}

// =============================================================================
// Export
// =============================================================================

// Gather returns the current metric families.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) {
	return c.registry.Gather()
}

// WriteTextfile writes every metric to path in the Prometheus text format.
// The file is written to a temporary name and renamed so that a collector
// never reads a partial file.
func (c *Collector) WriteTextfile(path string) error {
	families, err := c.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(tmp, mf); err != nil {
			tmp.Close()
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename metrics file: %w", err)
	}
	return nil
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration    time.Duration
	Toolchain   string
	Workers     int
	Inputs      int
	Build       *BuildInfo
	Outcomes    map[string]int64
	ExitCodes   map[int]int64
	Completed   int64
	Failed      int64
	Panics      int64
	StdoutBytes int64
	StderrBytes int64
	CaseP50     time.Duration
	CaseP95     time.Duration
	CaseP99     time.Duration
	CaseMax     time.Duration
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:    time.Since(c.startTime),
		Toolchain:   c.cfg.Toolchain,
		Workers:     c.cfg.Workers,
		Inputs:      c.cfg.Inputs,
		Outcomes:    make(map[string]int64, len(c.outcomes)),
		ExitCodes:   make(map[int]int64, len(c.exitCodes)),
		Panics:      c.panics,
		StdoutBytes: c.totalStdout,
		StderrBytes: c.totalStderr,
		CaseMax:     c.maxDuration,
	}

	if c.build != nil {
		b := *c.build
		s.Build = &b
	}

	for outcome, n := range c.outcomes {
		s.Outcomes[outcome] = n
		if outcome == OutcomeOK || outcome == OutcomeNonzeroExit {
			s.Completed += n
		} else {
			s.Failed += n
		}
	}
	for code, n := range c.exitCodes {
		s.ExitCodes[code] = n
	}

	if c.digest.Count() > 0 {
		s.CaseP50 = time.Duration(c.digest.Quantile(0.50))
		s.CaseP95 = time.Duration(c.digest.Quantile(0.95))
		s.CaseP99 = time.Duration(c.digest.Quantile(0.99))
	}

	return s
}
