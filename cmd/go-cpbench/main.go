// Package main provides the go-cpbench CLI entry point.
//
// go-cpbench compiles a competitive-programming solution and runs it against
// every input fixture in the current directory, reporting each run's time
// and echoing or saving its output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/randomizedcoder/go-cpbench/internal/config"
	"github.com/randomizedcoder/go-cpbench/internal/logging"
	"github.com/randomizedcoder/go-cpbench/internal/orchestrator"
	"github.com/randomizedcoder/go-cpbench/internal/process"
	"github.com/randomizedcoder/go-cpbench/internal/scaffold"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-cpbench
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-cpbench %s\n", version)
			return 0
		}
	}

	// Parse config file and command-line flags
	cfg, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Handle -new mode
	if cfg.New != "" {
		path, err := scaffold.Create(".", cfg.New, cfg.Template)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Created %s\n", path)
		return 0
	}

	// Initialize logger
	logger, _ := logging.WithRunID(logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose))
	logging.SetDefault(logger)

	toolchain := orchestrator.NewToolchain(cfg)

	// Handle -print-cmd mode
	if cfg.PrintCmd {
		cmd, err := process.CommandString(context.Background(), toolchain)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println("# Build command:")
		fmt.Println()
		fmt.Println(cmd)
		return 0
	}

	logger.Info("starting",
		"version", version,
		"source", cfg.Source,
		"lang", cfg.Lang,
		"toolchain", toolchain.Name(),
		"release", cfg.Release,
		"parallelism", cfg.Parallelism,
		"output_file", cfg.OutputFile,
	)

	orch := orchestrator.New(cfg, logger, orchestrator.Options{Toolchain: toolchain})
	if err := orch.Run(context.Background()); err != nil {
		logger.Error("run_failed", "error", err)
		return 1
	}

	return 0
}
