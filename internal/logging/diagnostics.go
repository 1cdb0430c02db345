package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent compiler lines kept.
	MaxBufferedLines = 100
)

// Class is the kind of a compiler diagnostic line.
type Class int

const (
	ClassOther Class = iota
	ClassError
	ClassWarning
	ClassNote
)

func (c Class) String() string {
	switch c {
	case ClassError:
		return "error"
	case ClassWarning:
		return "warning"
	case ClassNote:
		return "note"
	default:
		return "other"
	}
}

// DiagnosticCounts is the number of lines seen per class.
type DiagnosticCounts struct {
	Errors   int
	Warnings int
	Notes    int
	Other    int
}

// Total is the number of lines seen.
func (c DiagnosticCounts) Total() int {
	return c.Errors + c.Warnings + c.Notes + c.Other
}

// DiagnosticsHandler consumes compiler stderr (g++ or rustc via cargo).
// It classifies each line, keeps the most recent ones for the build summary
// and logs them.
type DiagnosticsHandler struct {
	logger  *slog.Logger
	verbose bool

	mu     sync.Mutex
	counts DiagnosticCounts

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
}

// NewDiagnosticsHandler creates a handler logging to logger. Lines that are
// neither errors nor warnings are only logged when verbose is set.
func NewDiagnosticsHandler(logger *slog.Logger, verbose bool) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleReader reads from r until EOF and processes each line.
// This should be run in a goroutine.
func (h *DiagnosticsHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, MaxLineLength), MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
	if scanner.Err() != nil {
		// Over-long line; drain so the writer never blocks.
		_, _ = io.Copy(io.Discard, r)
	}
}

// HandleLine processes a single line of compiler output.
func (h *DiagnosticsHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}
	class := ClassifyLine(line)

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	switch class {
	case ClassError:
		h.counts.Errors++
	case ClassWarning:
		h.counts.Warnings++
	case ClassNote:
		h.counts.Notes++
	default:
		h.counts.Other++
	}
	h.mu.Unlock()

	h.logLine(line, class)
}

func (h *DiagnosticsHandler) logLine(line string, class Class) {
	level := slog.LevelDebug
	if class == ClassError || class == ClassWarning {
		level = slog.LevelInfo
	}

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level == slog.LevelDebug {
		return
	}

	h.logger.Log(context.Background(), level, "compiler_output",
		"class", class.String(),
		"line", line,
	)
}

// ClassifyLine recognises gcc/clang ("file:1:2: error: ...") and rustc
// ("error[E0425]: ...", "  = note: ...") diagnostics.
func ClassifyLine(line string) Class {
	lower := strings.ToLower(strings.TrimSpace(line))

	switch {
	case strings.Contains(lower, ": error:"),
		strings.Contains(lower, ": fatal error:"),
		strings.HasPrefix(lower, "error:"),
		strings.HasPrefix(lower, "error["),
		strings.HasPrefix(lower, "fatal error:"):
		return ClassError
	case strings.Contains(lower, ": warning:"),
		strings.HasPrefix(lower, "warning:"),
		strings.HasPrefix(lower, "warning["):
		return ClassWarning
	case strings.Contains(lower, ": note:"),
		strings.HasPrefix(lower, "note:"),
		strings.HasPrefix(lower, "= note:"),
		strings.HasPrefix(lower, "= help:"):
		return ClassNote
	default:
		return ClassOther
	}
}

// Counts returns the number of lines seen per class.
func (h *DiagnosticsHandler) Counts() DiagnosticCounts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *DiagnosticsHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)

	// Read from circular buffer in order
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}

// FirstError returns the first recent line classified as an error, or "".
func (h *DiagnosticsHandler) FirstError() string {
	for _, line := range h.RecentLines(MaxBufferedLines) {
		if ClassifyLine(line) == ClassError {
			return line
		}
	}
	return ""
}
