// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-cpbench/internal/process"
)

// Note: syscall.RLIMIT_NPROC is not exported in Go's syscall package,
// so we read process limits from /proc/self/limits instead.
var procLimitsPath = "/proc/self/limits"

// versionTimeout bounds `<compiler> --version`.
const versionTimeout = 5 * time.Second

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Params describes the batch being checked.
type Params struct {
	Parallelism int
	Compiler    string // toolchain binary, e.g. g++ or cargo
	Inputs      int    // number of discovered input files
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(p Params) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	checks := []Check{
		checkToolchain(p.Compiler),
		checkFileDescriptors(p.Parallelism),
		checkProcessLimit(p.Parallelism),
		checkInputs(p.Inputs),
	}
	for _, c := range checks {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	return result
}

// checkToolchain verifies the compiler or build tool is available and working.
func checkToolchain(compiler string) Check {
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()

	version, err := process.Version(ctx, compiler)
	if err != nil {
		return Check{
			Name:    "toolchain",
			Passed:  false,
			Message: fmt.Sprintf("%s not usable: %v", compiler, err),
		}
	}

	return Check{
		Name:    "toolchain",
		Passed:  true,
		Message: fmt.Sprintf("%s (%s)", compiler, version),
	}
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(parallelism int) Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	// Each running case holds three pipes (both ends while starting),
	// plus the input file and the result file.
	required := parallelism*8 + 64
	actual := int(min(limit.Cur, uint64(1<<31-1)))

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d workers)", actual, required, parallelism),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
func checkProcessLimit(parallelism int) Check {
	required := parallelism + 32

	data, err := os.ReadFile(procLimitsPath)
	if err != nil {
		// Non-Linux or restricted access, assume OK
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	actual := parseMaxProcesses(string(data))
	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// parseMaxProcesses extracts the soft "Max processes" limit from the
// contents of /proc/self/limits. Returns 0 if absent.
func parseMaxProcesses(limits string) int {
	actual := 0
	for _, line := range strings.Split(limits, "\n") {
		if strings.HasPrefix(line, "Max processes") {
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				if fields[2] == "unlimited" {
					actual = 1000000
				} else {
					fmt.Sscanf(fields[2], "%d", &actual)
				}
			}
			break
		}
	}
	return actual
}

// checkInputs warns when there is nothing to run.
func checkInputs(n int) Check {
	if n == 0 {
		return Check{
			Name:    "inputs",
			Passed:  true,
			Warning: true,
			Message: "no input files found; only the build will run",
		}
	}
	return Check{
		Name:    "inputs",
		Passed:  true,
		Message: fmt.Sprintf("%d input files", n),
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 4096 (or lower -parallel)"
	case "process_limit":
		return "ulimit -u 4096 (or lower -parallel)"
	case "toolchain":
		return "install g++ or cargo, or point -compiler at it"
	default:
		return "see -h"
	}
}
