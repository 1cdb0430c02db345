package process

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
)

// DefaultGxxOutput is where g++ puts the executable when no -o is given.
const DefaultGxxOutput = "a.out"

var (
	// Release: fastest code, no checks.
	gxxReleaseFlags = []string{"-Ofast"}

	// Debug: sanitizers and the DEBUG macro for local tracing.
	gxxDebugFlags = []string{"-O0", "-fsanitize=address,undefined", "-DDEBUG", "-g"}

	gxxWarningFlags = []string{
		"-Wall",
		"-Wextra",
		"-Wno-sign-conversion",
		"-Wshadow",
		"-D_GLIBCXX_ASSERTIONS",
		"-fmax-errors=2",
	}
)

// GxxConfig holds configuration for a g++ (or compatible) build.
type GxxConfig struct {
	// CompilerPath is the compiler binary.
	CompilerPath string

	// Source is the C++ file to compile.
	Source string

	// Output is the executable to produce. Defaults to a.out.
	Output string

	// Release selects -Ofast instead of the sanitizer debug build.
	Release bool

	// Warning adds the extra warning flags.
	Warning bool
}

// GxxToolchain implements Toolchain for a single-file C++ build.
type GxxToolchain struct {
	config *GxxConfig
}

// NewGxxToolchain creates a new C++ toolchain with the given configuration.
func NewGxxToolchain(cfg *GxxConfig) *GxxToolchain {
	if cfg.CompilerPath == "" {
		cfg.CompilerPath = "g++"
	}
	if cfg.Output == "" {
		cfg.Output = DefaultGxxOutput
	}
	return &GxxToolchain{config: cfg}
}

// Name returns "g++" or the configured compiler's base name.
func (g *GxxToolchain) Name() string {
	return filepath.Base(g.config.CompilerPath)
}

// BuildCommand creates an exec.Cmd for the compiler with all configured options.
func (g *GxxToolchain) BuildCommand(ctx context.Context) (*exec.Cmd, error) {
	if g.config.Source == "" {
		return nil, errors.New("no source file")
	}
	return exec.CommandContext(ctx, g.config.CompilerPath, g.buildArgs()...), nil
}

// buildArgs constructs the compiler arguments: optimisation flags, the
// source, then warnings.
func (g *GxxToolchain) buildArgs() []string {
	var args []string
	if g.config.Release {
		args = append(args, gxxReleaseFlags...)
	} else {
		args = append(args, gxxDebugFlags...)
	}

	args = append(args, g.config.Source)

	if g.config.Warning {
		args = append(args, gxxWarningFlags...)
	}

	if g.config.Output != DefaultGxxOutput {
		args = append(args, "-o", g.config.Output)
	}

	return args
}

// BinaryPath returns the executable path, relative to the working
// directory with a ./ prefix so that it is never looked up on PATH.
func (g *GxxToolchain) BinaryPath() string {
	if filepath.IsAbs(g.config.Output) {
		return g.config.Output
	}
	return "." + string(filepath.Separator) + filepath.Clean(g.config.Output)
}

// OwnsBinary is true: the executable is rebuilt on every run.
func (g *GxxToolchain) OwnsBinary() bool {
	return true
}

// Config returns the build configuration.
func (g *GxxToolchain) Config() *GxxConfig {
	return g.config
}
