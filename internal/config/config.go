// Package config provides configuration management for go-cpbench.
package config

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Supported source languages.
const (
	LangCpp  = "cpp"
	LangRust = "rust"
)

// availableParallelism is the ceiling for -parallel. Replaced in tests.
var availableParallelism = runtime.NumCPU

// Config holds all configuration options for a batch.
type Config struct {
	// Build
	Source   string `json:"source" toml:"-"`
	Lang     string `json:"lang" toml:"lang"` // cpp, rust; empty = from extension
	Compiler string `json:"compiler" toml:"compiler"`
	Release  bool   `json:"release" toml:"release"`
	Warning  bool   `json:"warning" toml:"warning"`

	// Execution
	Parallelism int    `json:"parallelism" toml:"parallel"`
	OutputFile  bool   `json:"output_file" toml:"output_file"`
	InputTag    string `json:"input_tag" toml:"input_tag"`
	OutputDir   string `json:"output_dir" toml:"output_dir"`
	KeepBinary  bool   `json:"keep_binary" toml:"keep_binary"`

	// Console
	BannerWidth int  `json:"banner_width" toml:"banner_width"` // 0 = detect
	Color       bool `json:"color" toml:"color"`

	// Observability
	LogFormat   string `json:"log_format" toml:"log_format"` // json, text
	LogLevel    string `json:"log_level" toml:"log_level"`
	Verbose     bool   `json:"verbose" toml:"verbose"`
	MetricsFile string `json:"metrics_file" toml:"metrics_file"`

	// Scaffold mode: create src/bin/<New>.rs and exit
	New      string `json:"new" toml:"-"`
	Template int    `json:"template" toml:"template"`

	// Diagnostic modes
	PrintCmd      bool   `json:"print_cmd" toml:"-"`
	SkipPreflight bool   `json:"skip_preflight" toml:"skip_preflight"`
	ConfigFile    string `json:"config_file" toml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Parallelism: 1,
		InputTag:    "input",
		OutputDir:   "output",

		BannerWidth: 0,
		Color:       true,

		LogFormat: "json",
		LogLevel:  "warn",
	}
}

// BinaryName is the cargo target name for a Rust source: the file name
// without directory or extension.
func (c *Config) BinaryName() string {
	return strings.TrimSuffix(filepath.Base(c.Source), filepath.Ext(c.Source))
}

// resolve fills the fields whose defaults depend on other fields.
func (c *Config) resolve() {
	if c.Lang == "" {
		c.Lang = langFromExt(c.Source)
	}
	if c.Compiler == "" {
		switch c.Lang {
		case LangCpp:
			c.Compiler = "g++"
		case LangRust:
			c.Compiler = "cargo"
		}
	}
	if limit := availableParallelism(); c.Parallelism > limit {
		c.Parallelism = limit
	}
}

func langFromExt(source string) string {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".cpp", ".cc", ".cxx", ".c++":
		return LangCpp
	case ".rs":
		return LangRust
	case "":
		// A bare name is a cargo bin target.
		if source != "" {
			return LangRust
		}
	}
	return ""
}
