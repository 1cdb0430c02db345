package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// parallelFlag implements -parallel. Given bare it means every available
// CPU; given a value it is capped at that.
type parallelFlag struct {
	n *int
}

func (p parallelFlag) String() string {
	if p.n == nil {
		return "1"
	}
	return strconv.Itoa(*p.n)
}

func (p parallelFlag) Set(value string) error {
	limit := availableParallelism()
	switch value {
	case "true":
		*p.n = limit
		return nil
	case "false":
		*p.n = 1
		return nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parallelism must be a number (got %q)", value)
	}
	if n < 0 {
		return fmt.Errorf("parallelism must not be negative (got %d)", n)
	}
	// -p0 runs sequentially, like -p1.
	*p.n = max(1, min(n, limit))
	return nil
}

func (p parallelFlag) IsBoolFlag() bool { return true }

// shortFlags are the single-letter options that may be clustered.
var shortFlags = map[byte]bool{'r': true, 'o': true, 'w': true, 'p': true, 'v': true, 'h': true}

// ParseArgs parses command-line arguments (without the program name) and
// returns a Config. Precedence: defaults, then the -config file, then flags.
func ParseArgs(args []string) (*Config, error) {
	cfg := DefaultConfig()

	if path := configPath(args); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	fs := newFlagSet(cfg, os.Stderr)

	// flag stops at the first positional argument; keep going so options
	// may follow the source file.
	rest := expandArgs(args, func(name string) bool { return fs.Lookup(name) != nil })
	var positional []string
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	switch len(positional) {
	case 0:
	case 1:
		cfg.Source = positional[0]
	default:
		return nil, fmt.Errorf("expected one source file, got %d: %s", len(positional), strings.Join(positional, " "))
	}

	cfg.resolve()
	return cfg, nil
}

func newFlagSet(cfg *Config, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("go-cpbench", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.Usage = func() {
		fmt.Fprintf(out, `go-cpbench - build a solution and run it against every input file

Usage:
  go-cpbench [flags] <source>
  go-cpbench -new <name> [-template N]

Build:
`)
		printFlagCategory(fs, out, []string{"release", "warning", "lang", "compiler", "print-cmd", "keep-binary"})

		fmt.Fprintf(out, "\nNew Solution:\n")
		printFlagCategory(fs, out, []string{"new", "template"})

		fmt.Fprintf(out, "\nExecution:\n")
		printFlagCategory(fs, out, []string{"parallel", "output-file", "input-tag", "output-dir", "skip-preflight"})

		fmt.Fprintf(out, "\nConsole:\n")
		printFlagCategory(fs, out, []string{"banner-width", "color"})

		fmt.Fprintf(out, "\nObservability:\n")
		printFlagCategory(fs, out, []string{"v", "log-format", "log-level", "metrics-file", "config"})

		fmt.Fprintf(out, `
Short Options:
  -r, -o, -w and -p[N] may be clustered: -rp4o is -r -p=4 -o.
  --parallelN is accepted for -parallel=N.

Input Files:
  Files whose name contains the input tag are inputs. So are the files
  inside a directory whose name contains the tag.

Examples:
  # Debug build, print each output
  go-cpbench main.cpp

  # Release build on 4 workers, outputs to output/output.<i>.txt
  go-cpbench -rp4o main.cpp

  # Cargo binary target
  go-cpbench -lang rust -release a

  # Start src/bin/b.rs from the stdin-only template
  go-cpbench -new b -template 2

`)
	}

	// Build
	fs.BoolVar(&cfg.Release, "release", cfg.Release, "Optimised build without sanitizers")
	fs.BoolVar(&cfg.Release, "r", cfg.Release, "Shorthand for -release")
	fs.BoolVar(&cfg.Warning, "warning", cfg.Warning, "Enable extra compiler warnings")
	fs.BoolVar(&cfg.Warning, "w", cfg.Warning, "Shorthand for -warning")
	fs.StringVar(&cfg.Lang, "lang", cfg.Lang, `Source language: "cpp" or "rust" (default from extension)`)
	fs.StringVar(&cfg.Compiler, "compiler", cfg.Compiler, `Compiler or build tool (default "g++" or "cargo")`)
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the build command and exit")
	fs.BoolVar(&cfg.KeepBinary, "keep-binary", cfg.KeepBinary, "Do not remove the built binary")

	// New solution
	fs.StringVar(&cfg.New, "new", cfg.New, "Create src/bin/<name>.rs from a template and exit")
	fs.IntVar(&cfg.Template, "template", cfg.Template, "Template for -new: 0 default, 1 template_cp crate, 2 stdin only")

	// Execution
	fs.Var(parallelFlag{&cfg.Parallelism}, "parallel", "Run inputs on N workers; bare means all CPUs")
	fs.Var(parallelFlag{&cfg.Parallelism}, "p", "Shorthand for -parallel")
	fs.BoolVar(&cfg.OutputFile, "output-file", cfg.OutputFile, "Write each output to <output-dir>/output.<i>.txt")
	fs.BoolVar(&cfg.OutputFile, "o", cfg.OutputFile, "Shorthand for -output-file")
	fs.StringVar(&cfg.InputTag, "input-tag", cfg.InputTag, "Substring that marks input files and directories")
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory for -output-file results (recreated every run)")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Console
	fs.IntVar(&cfg.BannerWidth, "banner-width", cfg.BannerWidth, "Banner width in columns (0 = terminal width)")
	fs.BoolVar(&cfg.Color, "color", cfg.Color, "Colour banners when stdout is a terminal")

	// Observability
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn" or "error"`)
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus textfile metrics here after the run")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "TOML config file applied before flags")

	return fs
}

// expandArgs rewrites the short-option forms the flag package does not
// understand: clusters such as -rp4o and the --parallelN spelling.
func expandArgs(args []string, isFlag func(string) bool) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		out = append(out, expandArg(arg, isFlag)...)
	}
	return out
}

func expandArg(arg string, isFlag func(string) bool) []string {
	if len(arg) < 2 || arg[0] != '-' {
		return []string{arg}
	}

	name := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
	if digits, ok := strings.CutPrefix(name, "parallel"); ok && digits != "" && isDigits(digits) {
		return []string{"-parallel=" + digits}
	}

	flagName, _, _ := strings.Cut(name, "=")
	if isFlag(flagName) || strings.HasPrefix(arg, "--") {
		return []string{arg}
	}

	var expanded []string
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !shortFlags[c] {
			// Not a cluster; let flag report it.
			return []string{arg}
		}
		if c != 'p' {
			expanded = append(expanded, "-"+string(c))
			continue
		}
		j := i + 1
		for j < len(name) && name[j] >= '0' && name[j] <= '9' {
			j++
		}
		if j > i+1 {
			expanded = append(expanded, "-p="+name[i+1:j])
		} else {
			expanded = append(expanded, "-p")
		}
		i = j - 1
	}
	return expanded
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, w io.Writer, names []string) {
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			fmt.Fprintf(w, " (default %s)", f.DefValue)
		}
		fmt.Fprintln(w)
	}
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
		if _, isParallel := f.Value.(parallelFlag); isParallel {
			return "[=N]"
		}
		return ""
	}

	if _, err := strconv.Atoi(f.DefValue); err == nil {
		return "int"
	}
	return "string"
}
