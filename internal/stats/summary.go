// Package stats formats the end-of-run summary.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/randomizedcoder/go-cpbench/internal/metrics"
)

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════\n"
	lightRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Release is true for an optimised build
	Release bool

	// OutputDir is where result files went, if they were persisted
	OutputDir string

	// MetricsFile is the textfile metrics were written to, if any
	MetricsFile string
}

// FormatExitSummary formats a run summary for display at program exit.
func FormatExitSummary(s *metrics.Summary, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                           go-cpbench Exit Summary\n")
	b.WriteString(heavyRule + "\n")

	profile := "debug"
	if cfg.Release {
		profile = "release"
	}

	// Run info
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(s.Duration))
	fmt.Fprintf(&b, "Toolchain:              %s (%s)\n", s.Toolchain, profile)
	fmt.Fprintf(&b, "Workers:                %d\n", s.Workers)
	fmt.Fprintf(&b, "Inputs:                 %d\n", s.Inputs)
	if s.Build != nil {
		if s.Build.Success {
			fmt.Fprintf(&b, "Build:                  ok in %s\n", FormatMs(s.Build.Duration))
		} else {
			fmt.Fprintf(&b, "Build:                  FAILED (exit %d) after %s\n", s.Build.ExitCode, FormatMs(s.Build.Duration))
		}
	}
	b.WriteString("\n")

	if s.Completed+s.Failed > 0 || s.Panics > 0 {
		b.WriteString(formatCases(s))
	}

	if cfg.OutputDir != "" && s.Completed > 0 {
		fmt.Fprintf(&b, "Results written to:     %s/\n", cfg.OutputDir)
	}
	if cfg.MetricsFile != "" {
		fmt.Fprintf(&b, "Metrics written to:     %s\n", cfg.MetricsFile)
	}

	b.WriteString(heavyRule)
	return b.String()
}

func formatCases(s *metrics.Summary) string {
	var b strings.Builder

	b.WriteString(lightRule)
	b.WriteString("                                  Test Cases\n")
	b.WriteString(lightRule + "\n")

	fmt.Fprintf(&b, "  %-24s %10s\n", "Outcome", "Count")
	b.WriteString("  " + strings.Repeat("─", 35) + "\n")
	for _, outcome := range metrics.Outcomes() {
		if n := s.Outcomes[outcome]; n > 0 {
			fmt.Fprintf(&b, "  %-24s %10s\n", outcome, FormatNumber(n))
		}
	}
	if s.Panics > 0 {
		fmt.Fprintf(&b, "  %-24s %10s\n", "panic", FormatNumber(s.Panics))
	}
	b.WriteString("\n")

	if s.Completed > 0 {
		fmt.Fprintf(&b, "  Case Time:  p50 %s   p95 %s   p99 %s   max %s\n",
			FormatMs(s.CaseP50), FormatMs(s.CaseP95), FormatMs(s.CaseP99), FormatMs(s.CaseMax))
		fmt.Fprintf(&b, "  Output:     stdout %s   stderr %s\n",
			FormatBytes(s.StdoutBytes), FormatBytes(s.StderrBytes))
		fmt.Fprintf(&b, "  Exit Codes: %s\n", formatExitCodes(s.ExitCodes))
		b.WriteString("\n")
	}

	return b.String()
}

// formatExitCodes renders "0 (clean): 8, 1 (error): 1" in code order.
func formatExitCodes(codes map[int]int64) string {
	keys := make([]int, 0, len(codes))
	for code := range codes {
		keys = append(keys, code)
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(keys))
	for _, code := range keys {
		label := fmt.Sprintf("%d", code)
		if l := exitCodeLabel(code); l != "" {
			label += " " + l
		}
		parts = append(parts, fmt.Sprintf("%s: %d", label, codes[code]))
	}
	return strings.Join(parts, ", ")
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 134:
		return "(SIGABRT)"
	case 136:
		return "(SIGFPE)"
	case 137:
		return "(SIGKILL)"
	case 139:
		return "(SIGSEGV)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
