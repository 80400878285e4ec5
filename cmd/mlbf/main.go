// mlbf - compile, optimize, run and transpile BF programs
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/tebeka/atexit"
	"github.com/tliron/commonlog"

	"github.com/chazu/mlbf/manifest"
	"github.com/chazu/mlbf/pkg/bytecode"
	"github.com/chazu/mlbf/pkg/codegen"
	"github.com/chazu/mlbf/pkg/image"
	"github.com/chazu/mlbf/pkg/optimizer"
	"github.com/chazu/mlbf/server"
	"github.com/chazu/mlbf/store"
	"github.com/chazu/mlbf/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("mlbf")

// options holds the parsed command line.
type options struct {
	level     int
	dump      bool
	emit      string
	output    string
	stats     bool
	save      string
	load      string
	serve     string
	lsp       bool
	noCache   bool
	verbosity int
	configDir string
	tapeSize  int
	eof       string
}

// loaded is a program ready to run, dump or transpile.
type loaded struct {
	program *bytecode.Program
	stats   *optimizer.Stats // nil unless optimized in this run
	key     string
	level   int
}

func main() {
	var o options
	registerFlags(flag.CommandLine, &o)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mlbf [options] [file.b]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles a BF program to bytecode, optimizes it and runs it on stdin/stdout.\n")
		fmt.Fprintf(os.Stderr, "With no file, or with -, the program is read from stdin.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mlbf hello.b                 # Run hello.b\n")
		fmt.Fprintf(os.Stderr, "  mlbf -O 0 -dump hello.b      # Dump the unoptimized bytecode\n")
		fmt.Fprintf(os.Stderr, "  mlbf -emit go -o hello.go hello.b\n")
		fmt.Fprintf(os.Stderr, "  mlbf -save hello.bfc hello.b # Compile once\n")
		fmt.Fprintf(os.Stderr, "  mlbf -load hello.bfc         # Run the saved image\n")
		fmt.Fprintf(os.Stderr, "  mlbf -serve :8420            # Start the HTTP playground\n")
	}
	flag.Parse()

	if err := run(o, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

// registerFlags defines the command line flags on fs.
func registerFlags(fs *flag.FlagSet, o *options) {
	fs.IntVar(&o.level, "O", 1, "Optimization level (0 links only, 1 runs every pass)")
	fs.BoolVar(&o.dump, "dump", false, "Print the instruction dump instead of running")
	fs.StringVar(&o.emit, "emit", "", "Transpile instead of running: go or c")
	fs.StringVar(&o.output, "o", "", "Write -dump or -emit output to this file")
	fs.BoolVar(&o.stats, "stats", false, "Print optimizer and profiler statistics to stderr")
	fs.StringVar(&o.save, "save", "", "Write the compiled program as a .bfc image")
	fs.StringVar(&o.load, "load", "", "Load a .bfc image instead of compiling source")
	fs.StringVar(&o.serve, "serve", "", "Start the HTTP playground on this address")
	fs.BoolVar(&o.lsp, "lsp", false, "Start the language server on stdio")
	fs.BoolVar(&o.noCache, "no-cache", false, "Bypass the compile cache")
	fs.IntVar(&o.verbosity, "v", 0, "Log verbosity (-4 to 5)")
	fs.StringVar(&o.configDir, "config", "", "Directory containing mlbf.toml (default: search upwards)")
	fs.IntVar(&o.tapeSize, "tape", vm.DefaultTapeSize, "Tape size in cells")
	fs.StringVar(&o.eof, "eof", "unchanged", "Input end-of-file policy: unchanged or zero")
}

func run(o options, args []string) error {
	cfg, err := loadConfig(o.configDir)
	if err != nil {
		return err
	}
	applyFlags(flag.CommandLine, cfg, &o)

	var logPath *string
	if cfg.Log.File != "" {
		logPath = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)

	eof, err := vm.ParseEOFPolicy(cfg.VM.EOF)
	if err != nil {
		return err
	}

	if o.lsp {
		return server.NewLSP().Run()
	}

	var cache *store.Store
	if cfg.Cache.Enabled && o.load == "" {
		cache, err = openCache(cfg)
		if err != nil {
			log.Warningf("compile cache disabled: %s", err)
		} else {
			atexit.Register(func() { cache.Close() })
		}
	}

	if o.serve != "" {
		srv := server.New(server.Config{
			Addr:       cfg.Server.Addr,
			RunTimeout: cfg.RunTimeout(),
			ProgramTTL: cfg.ProgramTTL(),
			Level:      cfg.Optimizer.Level,
			Passes:     cfg.Optimizer.Passes,
			TapeSize:   cfg.VM.TapeSize,
			EOF:        eof,
		}, server.WithCache(cache))
		return srv.Start()
	}

	if len(args) > 1 {
		return fmt.Errorf("expected at most one source file, got %d", len(args))
	}
	var path string
	if len(args) == 1 {
		path = args[0]
	}

	l, err := loadProgram(o, cfg, path, cache)
	if err != nil {
		return err
	}
	return execute(o, cfg, eof, path, l, os.Stdin, os.Stdout)
}

// execute saves, dumps, transpiles or runs a loaded program, then releases
// it.
func execute(o options, cfg *manifest.Config, eof vm.EOFPolicy, path string, l *loaded, stdin io.Reader, stdout io.Writer) error {
	p := l.program
	defer p.Release()

	if o.stats && l.stats != nil {
		printOptimizerStats(os.Stderr, l.stats)
	}

	if o.save != "" {
		if err := image.WriteFile(o.save, p, store.MetaFor(l.key, l.level)); err != nil {
			return err
		}
		log.Infof("wrote %s", o.save)
	}

	switch {
	case o.dump:
		return writeOutput(stdout, o.output, p.DisassembleWithName(path))
	case o.emit != "":
		src, err := transpile(p, o.emit, codegen.Options{TapeSize: cfg.VM.TapeSize, EOF: eof})
		if err != nil {
			return err
		}
		return writeOutput(stdout, o.output, src)
	case o.save != "":
		return nil
	}

	var prof *vm.Profiler
	if o.stats {
		prof = vm.NewProfiler(p.Len())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := vm.New(stdin, stdout, vm.Options{TapeSize: cfg.VM.TapeSize, EOF: eof, Profiler: prof})
	runErr := m.Run(ctx, p)
	if prof != nil {
		printProfile(os.Stderr, p, prof)
	}
	return runErr
}

func loadConfig(dir string) (*manifest.Config, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = manifest.Default()
	}
	return cfg, nil
}

// applyFlags overrides configuration values with flags set explicitly in fs.
// Any positive -O level means 1.
func applyFlags(fs *flag.FlagSet, cfg *manifest.Config, o *options) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "O":
			cfg.Optimizer.Level = min(max(o.level, 0), 1)
		case "v":
			cfg.Log.Verbosity = o.verbosity
		case "tape":
			cfg.VM.TapeSize = o.tapeSize
		case "eof":
			cfg.VM.EOF = o.eof
		case "no-cache":
			cfg.Cache.Enabled = !o.noCache
		case "serve":
			cfg.Server.Addr = o.serve
		}
	})
}

func openCache(cfg *manifest.Config) (*store.Store, error) {
	path := cfg.CachePath()
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

// loadProgram reads an image or compiles source. An unoptimized image is
// optimized when the configured level asks for it.
func loadProgram(o options, cfg *manifest.Config, path string, cache *store.Store) (*loaded, error) {
	level := cfg.Optimizer.Level
	opts := optimizer.Options{Level: level, Passes: cfg.Optimizer.Passes}

	if o.load != "" {
		p, img, err := image.ReadFile(o.load)
		if err != nil {
			return nil, err
		}
		log.Infof("loaded %s (%d instructions, level %d)", o.load, p.Len(), img.Level)

		l := &loaded{program: p, key: img.SourceHash, level: img.Level}
		if img.Flags&image.FlagOptimized == 0 && level > 0 {
			if l.stats, err = optimizer.Optimize(p, opts); err != nil {
				return nil, err
			}
			l.level = level
		} else if img.Flags&image.FlagLinked == 0 {
			if err := p.Link(); err != nil {
				return nil, err
			}
		}
		return l, nil
	}

	src, err := readSource(path)
	if err != nil {
		return nil, err
	}

	b, err := store.Compile(cache, src, opts)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("%s:%w", path, err)
		}
		return nil, err
	}
	if b.Cached {
		log.Debugf("cache hit %s", b.Key)
	}
	return &loaded{program: b.Program, stats: b.Stats, key: b.Key, level: level}, nil
}

func readSource(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func transpile(p *bytecode.Program, target string, opts codegen.Options) (string, error) {
	switch target {
	case "go":
		return codegen.GenerateGo(p, opts)
	case "c":
		return codegen.GenerateC(p, opts)
	}
	return "", fmt.Errorf("unknown -emit target %q (want go or c)", target)
}

func writeOutput(stdout io.Writer, path, content string) error {
	if path == "" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return err
	}
	log.Infof("wrote %s", path)
	return nil
}
