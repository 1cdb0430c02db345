package process

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
)

// CargoConfig holds configuration for a cargo binary-target build.
type CargoConfig struct {
	// CargoPath is the cargo binary.
	CargoPath string

	// Bin is the binary target name (src/bin/<Bin>.rs).
	Bin string

	// Release builds with --release.
	Release bool

	// TargetDir is cargo's output directory. Defaults to "target".
	TargetDir string
}

// CargoToolchain implements Toolchain for `cargo build --bin`.
type CargoToolchain struct {
	config *CargoConfig
}

// NewCargoToolchain creates a new cargo toolchain with the given configuration.
func NewCargoToolchain(cfg *CargoConfig) *CargoToolchain {
	if cfg.CargoPath == "" {
		cfg.CargoPath = "cargo"
	}
	if cfg.TargetDir == "" {
		cfg.TargetDir = "target"
	}
	return &CargoToolchain{config: cfg}
}

// Name returns "cargo" or the configured binary's base name.
func (c *CargoToolchain) Name() string {
	return filepath.Base(c.config.CargoPath)
}

// BuildCommand creates an exec.Cmd for cargo.
func (c *CargoToolchain) BuildCommand(ctx context.Context) (*exec.Cmd, error) {
	if c.config.Bin == "" {
		return nil, errors.New("no binary target")
	}

	args := []string{"build", "--bin", c.config.Bin}
	if c.config.Release {
		args = append(args, "--release")
	}
	return exec.CommandContext(ctx, c.config.CargoPath, args...), nil
}

// BinaryPath returns target/{debug,release}/<bin>.
func (c *CargoToolchain) BinaryPath() string {
	profile := "debug"
	if c.config.Release {
		profile = "release"
	}
	return filepath.Join(c.config.TargetDir, profile, c.config.Bin)
}

// OwnsBinary is false: cargo's target directory is left alone.
func (c *CargoToolchain) OwnsBinary() bool {
	return false
}
