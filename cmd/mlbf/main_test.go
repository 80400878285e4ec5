package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/mlbf/compiler"
	"github.com/chazu/mlbf/manifest"
	"github.com/chazu/mlbf/pkg/codegen"
	"github.com/chazu/mlbf/pkg/image"
	"github.com/chazu/mlbf/pkg/optimizer"
	"github.com/chazu/mlbf/store"
	"github.com/chazu/mlbf/vm"
)

func TestTranspileTargets(t *testing.T) {
	res, err := compiler.Compile("+[-].")
	if err != nil {
		t.Fatal(err)
	}

	goSrc, err := transpile(res.Program, "go", codegen.Options{})
	if err != nil {
		t.Fatalf("go: %v", err)
	}
	if !strings.Contains(goSrc, "package main") {
		t.Errorf("go output missing package clause:\n%s", goSrc)
	}

	cSrc, err := transpile(res.Program, "c", codegen.Options{})
	if err != nil {
		t.Fatalf("c: %v", err)
	}
	if !strings.Contains(cSrc, "int main(void)") {
		t.Errorf("c output missing main:\n%s", cSrc)
	}

	if _, err := transpile(res.Program, "rust", codegen.Options{}); err == nil {
		t.Error("unknown target should fail")
	}
}

func TestLoadProgramFromSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clear.b")
	if err := os.WriteFile(path, []byte("+++[-]"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := manifest.Default()
	l, err := loadProgram(options{}, cfg, path, nil)
	if err != nil {
		t.Fatalf("loadProgram: %v", err)
	}
	if l.stats == nil || l.stats.Applied["loops/clear"] != 1 {
		t.Errorf("stats = %+v, want one clear loop", l.stats)
	}
	if l.key != store.Key("+++[-]", 1) {
		t.Errorf("key = %q", l.key)
	}
}

func TestLoadProgramReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.b")
	if err := os.WriteFile(path, []byte("+\n]"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := loadProgram(options{}, manifest.Default(), path, nil)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if want := path + ":2:1:"; !strings.HasPrefix(err.Error(), want) {
		t.Errorf("error = %q, want prefix %q", err, want)
	}
}

func TestLoadProgramFromImage(t *testing.T) {
	res, err := compiler.Compile("++[->+<]")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "prog.bfc")
	if err := image.WriteFile(path, res.Program, store.MetaFor("abc", 0)); err != nil {
		t.Fatal(err)
	}

	cfg := manifest.Default()
	cfg.Optimizer.Level = 0
	l, err := loadProgram(options{load: path}, cfg, "", nil)
	if err != nil {
		t.Fatalf("loadProgram: %v", err)
	}
	if l.stats != nil || l.level != 0 || l.key != "abc" {
		t.Errorf("loaded = %+v, want unoptimized level 0 image", l)
	}

	cfg.Optimizer.Level = 1
	l, err = loadProgram(options{load: path}, cfg, "", nil)
	if err != nil {
		t.Fatalf("loadProgram: %v", err)
	}
	if l.stats == nil || l.level != 1 {
		t.Fatalf("loaded = %+v, want the image optimized at level 1", l)
	}
	if l.stats.Total() == 0 {
		t.Error("expected rewrites on an unoptimized image")
	}
}

func TestPrintOptimizerStats(t *testing.T) {
	var buf bytes.Buffer
	printOptimizerStats(&buf, &optimizer.Stats{
		Before:  7,
		After:   3,
		Applied: map[string]int{"loops/clear": 1, "fold/ADD_V-ADD_V": 2},
	})

	out := buf.String()
	for _, want := range []string{"7 -> 3", "loops/clear", "fold/ADD_V-ADD_V"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "fold/") > strings.Index(out, "loops/") {
		t.Error("idioms should be listed in sorted order")
	}
}

func TestPrintProfile(t *testing.T) {
	res, err := compiler.Compile("+++[-]")
	if err != nil {
		t.Fatal(err)
	}
	prof := vm.NewProfiler(res.Program.Len())
	m := vm.New(strings.NewReader(""), &bytes.Buffer{}, vm.Options{Profiler: prof})
	if err := m.Run(t.Context(), res.Program); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	printProfile(&buf, res.Program, prof)
	out := buf.String()
	for _, want := range []string{"Hot instructions", "DEC_V", "BRANCH_NZ"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestApplyFlagsClampsLevel(t *testing.T) {
	tests := []struct {
		args []string
		want int
	}{
		{[]string{"-O", "2"}, 1},
		{[]string{"-O", "1"}, 1},
		{[]string{"-O", "0"}, 0},
		{[]string{"-O", "-3"}, 0},
		{nil, 1},
	}

	for _, tt := range tests {
		var o options
		fs := flag.NewFlagSet("mlbf", flag.ContinueOnError)
		registerFlags(fs, &o)
		if err := fs.Parse(tt.args); err != nil {
			t.Fatal(err)
		}

		cfg := manifest.Default()
		applyFlags(fs, cfg, &o)
		if cfg.Optimizer.Level != tt.want {
			t.Errorf("%v: level = %d, want %d", tt.args, cfg.Optimizer.Level, tt.want)
		}
	}
}

func TestExecuteReleasesProgram(t *testing.T) {
	cfg := manifest.Default()
	for _, o := range []options{{}, {dump: true}} {
		res, err := compiler.Compile("+++.")
		if err != nil {
			t.Fatal(err)
		}
		l := &loaded{program: res.Program}

		var out bytes.Buffer
		if err := execute(o, cfg, vm.EOFUnchanged, "", l, strings.NewReader(""), &out); err != nil {
			t.Fatalf("execute(%+v): %v", o, err)
		}
		if out.Len() == 0 {
			t.Errorf("execute(%+v) wrote nothing", o)
		}
		if !res.Program.Released() {
			t.Errorf("execute(%+v) did not release the program", o)
		}
	}
}
