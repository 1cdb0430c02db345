package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/randomizedcoder/go-cpbench/internal/pool"
	"github.com/randomizedcoder/go-cpbench/internal/runner"
)

// =============================================================================
// Test Helpers
// =============================================================================

// newTestCollector creates a collector with a test registry.
func newTestCollector(cfg CollectorConfig) (*Collector, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(cfg, registry)
	return c, registry
}

func finished(name string, elapsed time.Duration, exitCode int) *runner.Result {
	return &runner.Result{
		Input:    "inputs/" + name,
		Name:     name,
		Stdout:   []byte("out\n"),
		Stderr:   nil,
		Elapsed:  elapsed,
		ExitCode: exitCode,
	}
}

// =============================================================================
// Tests: NewCollector
// =============================================================================

func TestNewCollector(t *testing.T) {
	c, registry := newTestCollector(CollectorConfig{Toolchain: "g++", Release: true, Workers: 4, Inputs: 10})

	if got := testutil.ToFloat64(c.workers); got != 4 {
		t.Errorf("cpbench_workers = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.inputs); got != 10 {
		t.Errorf("cpbench_inputs = %v, want 10", got)
	}
	if got := testutil.ToFloat64(c.info.WithLabelValues("g++", "release")); got != 1 {
		t.Errorf("cpbench_info = %v, want 1", got)
	}

	// Every outcome is exported from the start.
	if n := testutil.CollectAndCount(c.casesTotal); n != len(Outcomes()) {
		t.Errorf("cpbench_cases_total series = %d, want %d", n, len(Outcomes()))
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 10 {
		t.Errorf("registered families = %d, want 10", len(families))
	}
}

func TestNewCollector_SeparateRegistries(t *testing.T) {
	// Two collectors must not collide.
	NewCollector(CollectorConfig{Toolchain: "g++"})
	NewCollector(CollectorConfig{Toolchain: "cargo"})
}

// =============================================================================
// Tests: Observer
// =============================================================================

func TestCollector_Outcomes(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{Toolchain: "g++", Workers: 2, Inputs: 6})

	c.CaseFinished(finished("input1", 10*time.Millisecond, 0))
	c.CaseFinished(finished("input2", 20*time.Millisecond, 0))
	c.CaseFinished(finished("input3", 30*time.Millisecond, 1))
	c.CaseFailed(&runner.JobError{Kind: runner.StdinWriteFailure, Name: "input4", Err: errors.New("broken pipe")})
	c.CaseFailed(&runner.JobError{Kind: runner.FilesystemFailure, Name: "input5", Err: errors.New("no such file")})
	c.UnitPanicked(&pool.PanicError{Worker: 1, Value: "boom"})

	tests := []struct {
		outcome string
		want    float64
	}{
		{OutcomeOK, 2},
		{OutcomeNonzeroExit, 1},
		{"stdin_write_failure", 1},
		{"filesystem_failure", 1},
		{"spawn_failure", 0},
		{"wait_failure", 0},
	}
	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			if got := testutil.ToFloat64(c.casesTotal.WithLabelValues(tt.outcome)); got != tt.want {
				t.Errorf("cpbench_cases_total{outcome=%q} = %v, want %v", tt.outcome, got, tt.want)
			}
		})
	}

	if got := testutil.ToFloat64(c.stdoutBytes); got != 12 {
		t.Errorf("stdout bytes = %v, want 12", got)
	}
	if got := testutil.ToFloat64(c.poolPanics); got != 1 {
		t.Errorf("pool panics = %v, want 1", got)
	}

	s := c.GenerateSummary()
	if s.Completed != 3 || s.Failed != 2 || s.Panics != 1 {
		t.Errorf("Completed=%d Failed=%d Panics=%d", s.Completed, s.Failed, s.Panics)
	}
	if s.ExitCodes[0] != 2 || s.ExitCodes[1] != 1 {
		t.Errorf("ExitCodes = %v", s.ExitCodes)
	}
	if s.CaseMax != 30*time.Millisecond {
		t.Errorf("CaseMax = %v, want 30ms", s.CaseMax)
	}
}

func TestCollector_RecordBuild(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{Toolchain: "g++"})

	if s := c.GenerateSummary(); s.Build != nil {
		t.Error("Build should be nil before RecordBuild")
	}

	c.RecordBuild(false, 1, 1500*time.Millisecond)
	if got := testutil.ToFloat64(c.buildSuccess); got != 0 {
		t.Errorf("build success = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.buildDuration); got != 1.5 {
		t.Errorf("build duration = %v, want 1.5", got)
	}

	c.RecordBuild(true, 0, time.Second)
	if got := testutil.ToFloat64(c.buildSuccess); got != 1 {
		t.Errorf("build success = %v, want 1", got)
	}

	s := c.GenerateSummary()
	if s.Build == nil || !s.Build.Success || s.Build.Duration != time.Second {
		t.Errorf("Build = %+v", s.Build)
	}
}

func TestCollector_Percentiles(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{Toolchain: "g++"})

	for i := 1; i <= 100; i++ {
		c.CaseFinished(finished("input", time.Duration(i)*time.Millisecond, 0))
	}

	s := c.GenerateSummary()

	// t-digest is approximate; allow a couple of milliseconds.
	within := func(name string, got, want time.Duration) {
		t.Helper()
		if diff := got - want; diff < -2*time.Millisecond || diff > 2*time.Millisecond {
			t.Errorf("%s = %v, want ~%v", name, got, want)
		}
	}
	within("p50", s.CaseP50, 50*time.Millisecond)
	within("p95", s.CaseP95, 95*time.Millisecond)
	within("p99", s.CaseP99, 99*time.Millisecond)

	if s.CaseMax != 100*time.Millisecond {
		t.Errorf("CaseMax = %v, want 100ms", s.CaseMax)
	}
	if !(s.CaseP50 <= s.CaseP95 && s.CaseP95 <= s.CaseP99 && s.CaseP99 <= s.CaseMax) {
		t.Errorf("percentiles out of order: %v %v %v %v", s.CaseP50, s.CaseP95, s.CaseP99, s.CaseMax)
	}
}

func TestCollector_EmptySummary(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{Toolchain: "cargo", Workers: 1})

	s := c.GenerateSummary()
	if s.Completed != 0 || s.Failed != 0 || s.CaseP50 != 0 || s.CaseMax != 0 {
		t.Errorf("empty summary should be zero: %+v", s)
	}
	if s.Toolchain != "cargo" || s.Workers != 1 {
		t.Errorf("Toolchain=%q Workers=%d", s.Toolchain, s.Workers)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{Toolchain: "g++", Workers: 8})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.CaseFinished(finished("input", time.Millisecond, 0))
				_ = c.GenerateSummary()
			}
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(c.casesTotal.WithLabelValues(OutcomeOK)); got != 400 {
		t.Errorf("ok cases = %v, want 400", got)
	}
	if s := c.GenerateSummary(); s.Completed != 400 {
		t.Errorf("Completed = %d, want 400", s.Completed)
	}
}

// =============================================================================
// Tests: WriteTextfile
// =============================================================================

func TestCollector_WriteTextfile(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{Toolchain: "g++", Workers: 2, Inputs: 2})
	c.RecordBuild(true, 0, 2*time.Second)
	c.CaseFinished(finished("input1", 5*time.Millisecond, 0))
	c.CaseFailed(&runner.JobError{Kind: runner.SpawnFailure, Name: "input2", Err: errors.New("exec format error")})

	dir := t.TempDir()
	path := filepath.Join(dir, "cpbench.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)

	for _, want := range []string{
		"# TYPE cpbench_cases_total counter",
		`cpbench_cases_total{outcome="ok"} 1`,
		`cpbench_cases_total{outcome="spawn_failure"} 1`,
		`cpbench_cases_total{outcome="wait_failure"} 0`,
		"# TYPE cpbench_case_duration_seconds histogram",
		"cpbench_case_duration_seconds_count 1",
		"cpbench_build_success 1",
		"cpbench_build_duration_seconds 2",
		"cpbench_workers 2",
		`cpbench_info{profile="debug",toolchain="g++"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q", want)
		}
	}

	// Only the final file remains.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover files in %s: %v", dir, entries)
	}
}

func TestCollector_WriteTextfile_BadDir(t *testing.T) {
	c, _ := newTestCollector(CollectorConfig{Toolchain: "g++"})

	if err := c.WriteTextfile(filepath.Join(t.TempDir(), "missing", "cpbench.prom")); err == nil {
		t.Error("WriteTextfile into a missing directory should fail")
	}
}

func TestCollector_GatherMatchesTestutil(t *testing.T) {
	c, registry := newTestCollector(CollectorConfig{Toolchain: "g++"})
	c.CaseFinished(finished("input1", time.Millisecond, 3))

	expected := `
# HELP cpbench_pool_panics_total Work units that panicked inside the worker pool
# TYPE cpbench_pool_panics_total counter
cpbench_pool_panics_total 0
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "cpbench_pool_panics_total"); err != nil {
		t.Error(err)
	}
	if n, err := testutil.GatherAndCount(registry, "cpbench_case_duration_seconds"); err != nil || n != 1 {
		t.Errorf("GatherAndCount = %d, %v", n, err)
	}
}
