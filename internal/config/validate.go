package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/randomizedcoder/go-cpbench/internal/scaffold"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.New != "" {
		return validateNew(cfg)
	}

	if cfg.Source == "" {
		errs = append(errs, ValidationError{
			Field:   "source",
			Message: "source file is required",
		})
	}

	switch cfg.Lang {
	case LangCpp, LangRust:
	case "":
		if cfg.Source != "" {
			errs = append(errs, ValidationError{
				Field:   "lang",
				Message: fmt.Sprintf("cannot infer language from %q; use -lang", cfg.Source),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "lang",
			Message: fmt.Sprintf("must be 'cpp' or 'rust' (got %q)", cfg.Lang),
		})
	}

	if cfg.Parallelism < 1 {
		errs = append(errs, ValidationError{
			Field:   "parallelism",
			Message: "must be at least 1",
		})
	}

	if cfg.InputTag == "" {
		errs = append(errs, ValidationError{
			Field:   "input_tag",
			Message: "must not be empty",
		})
	}

	// The output directory is removed recursively before every persisted run.
	if err := validateOutputDir(cfg.OutputDir); err != nil {
		errs = append(errs, ValidationError{
			Field:   "output_dir",
			Message: err.Error(),
		})
	}

	if cfg.BannerWidth < 0 {
		errs = append(errs, ValidationError{
			Field:   "banner_width",
			Message: "must not be negative",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of: debug, info, warn, error (got %q)", cfg.LogLevel),
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateNew checks -new mode, which only writes one file.
func validateNew(cfg *Config) error {
	var errs []error
	if cfg.Source != "" {
		errs = append(errs, ValidationError{
			Field:   "new",
			Message: fmt.Sprintf("cannot be combined with a source file (got %q)", cfg.Source),
		})
	}
	if !scaffold.ValidTemplate(cfg.Template) {
		errs = append(errs, ValidationError{
			Field:   "template",
			Message: fmt.Sprintf("must be 0..%d (got %d)", len(scaffold.Templates())-1, cfg.Template),
		})
	}
	return errors.Join(errs...)
}

// validateOutputDir rejects directories whose removal would take more than
// the previous run's results with it.
func validateOutputDir(dir string) error {
	if dir == "" {
		return errors.New("must not be empty")
	}

	clean := filepath.Clean(dir)
	if clean == "." || !filepath.IsLocal(clean) {
		return fmt.Errorf("must be below the working directory (got %q)", dir)
	}
	return nil
}
