package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/mlbf/compiler"
	"github.com/chazu/mlbf/pkg/bytecode"
	"github.com/chazu/mlbf/pkg/optimizer"
	"github.com/chazu/mlbf/vm"
)

func compileLevel(t *testing.T, src string, level int) *bytecode.Program {
	t.Helper()
	res, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q) error = %v", src, err)
	}
	if _, err := optimizer.Optimize(res.Program, optimizer.Options{Level: level}); err != nil {
		t.Fatalf("Optimize(%q) error = %v", src, err)
	}
	return res.Program
}

func programOf(t *testing.T, ins ...bytecode.Instruction) *bytecode.Program {
	t.Helper()
	p := bytecode.NewProgram()
	for _, i := range ins {
		if err := p.Append(i); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func TestGenerateGoStructure(t *testing.T) {
	src, err := GenerateGo(compileLevel(t, "+[->+<]>.,<[>]", 1), Options{SkipValidation: true})
	if err != nil {
		t.Fatalf("GenerateGo() error = %v", err)
	}

	for _, want := range []string{
		"// Code generated by mlbf. DO NOT EDIT.",
		"package main",
		"[30000]byte",
		"defer out.Flush()",
		"t[p]++",
		"+= t[p]",
		"t[p] = 0",
		"out.WriteByte(t[p])",
		"read(&t[p])",
		"for t[p] != 0 {",
		"p++",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated Go missing %q:\n%s", want, src)
		}
	}
	if strings.Contains(src, "return\n}") {
		t.Errorf("trailing HALT should not produce a return in main:\n%s", src)
	}
}

func TestGenerateGoOperands(t *testing.T) {
	p := programOf(t,
		bytecode.NewInstruction(bytecode.OpAddV, 300, 2),
		bytecode.NewInstruction(bytecode.OpSubV, 3, -1),
		bytecode.NewInstruction(bytecode.OpMul, -2, 1),
		bytecode.NewInstruction(bytecode.OpSubP, 4, 0),
		bytecode.NewInstruction(bytecode.OpHalt, 0, 0),
	)

	src, err := GenerateGo(p, Options{TapeSize: 64, SkipValidation: true})
	if err != nil {
		t.Fatalf("GenerateGo() error = %v", err)
	}
	for _, want := range []string{"[64]byte", "t[p+2] += 44", "t[p-1] -= 3", "t[p+1] += t[p] * 254", "p -= 4"} {
		if !strings.Contains(src, want) {
			t.Errorf("generated Go missing %q:\n%s", want, src)
		}
	}
}

func TestGenerateGoEOFPolicy(t *testing.T) {
	p := compileLevel(t, ",", 0)

	zero, err := GenerateGo(p, Options{EOF: vm.EOFZero, SkipValidation: true})
	if err != nil {
		t.Fatalf("GenerateGo() error = %v", err)
	}
	if !strings.Contains(zero, "*cell = 0") {
		t.Errorf("zero policy missing reset:\n%s", zero)
	}

	unchanged, err := GenerateGo(p, Options{SkipValidation: true})
	if err != nil {
		t.Fatalf("GenerateGo() error = %v", err)
	}
	if strings.Contains(unchanged, "*cell = 0") {
		t.Errorf("unchanged policy should not reset:\n%s", unchanged)
	}
}

func TestGenerateGoTypeChecks(t *testing.T) {
	const helloWorld = "++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++."
	for _, level := range []int{0, 1} {
		if _, err := GenerateGo(compileLevel(t, helloWorld+",[.,]", level), Options{}); err != nil {
			t.Errorf("level %d: GenerateGo() error = %v", level, err)
		}
	}
}

func TestGenerateC(t *testing.T) {
	got, err := GenerateC(compileLevel(t, ",[.-]", 0), Options{})
	if err != nil {
		t.Fatalf("GenerateC() error = %v", err)
	}

	want := `/* Code generated by mlbf. DO NOT EDIT. */
#include <stdio.h>

static unsigned char t[30000];

int main(void) {
	unsigned char *p = t;
	int c;

	fflush(stdout);
	c = getchar();
	if (c != EOF) p[0] = (unsigned char)c;
	while (*p) {
		putchar(p[0]);
		p[0]--;
	}
	return 0;
}
`
	if got != want {
		t.Errorf("GenerateC() =\n%s\nwant\n%s", got, want)
	}
}

func TestGenerateCFused(t *testing.T) {
	got, err := GenerateC(compileLevel(t, "+++[->>++<<]>>.", 1), Options{EOF: vm.EOFZero})
	if err != nil {
		t.Fatalf("GenerateC() error = %v", err)
	}
	for _, want := range []string{"p[0] += 3;", "p[2] += *p * 2;", "p[0] = 0;", "p += 2;", "putchar(p[0]);"} {
		if !strings.Contains(got, want) {
			t.Errorf("generated C missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "int c;") {
		t.Errorf("program without input should not declare c:\n%s", got)
	}
}

func TestGenerateRejectsJmp(t *testing.T) {
	p := programOf(t,
		bytecode.NewInstruction(bytecode.OpJmp, 0, 0),
		bytecode.NewInstruction(bytecode.OpHalt, 0, 0),
	)

	if _, err := GenerateGo(p, Options{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("GenerateGo() error = %v, want ErrUnsupported", err)
	}
	if _, err := GenerateC(p, Options{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("GenerateC() error = %v, want ErrUnsupported", err)
	}
}

func TestGenerateRejectsUnbalanced(t *testing.T) {
	tests := [][]bytecode.Instruction{
		{bytecode.NewInstruction(bytecode.OpBranchZ, 0, 0)},
		{bytecode.NewInstruction(bytecode.OpBranchNZ, 0, 0)},
	}
	for _, ins := range tests {
		p := programOf(t, ins...)
		if _, err := GenerateC(p, Options{}); !errors.Is(err, ErrUnbalanced) {
			t.Errorf("GenerateC(%v) error = %v, want ErrUnbalanced", ins, err)
		}
	}
}

func TestMidProgramHalt(t *testing.T) {
	p := programOf(t,
		bytecode.NewInstruction(bytecode.OpHalt, 0, 0),
		bytecode.NewInstruction(bytecode.OpOut, 0, 0),
		bytecode.NewInstruction(bytecode.OpHalt, 0, 0),
	)

	got, err := GenerateC(p, Options{})
	if err != nil {
		t.Fatalf("GenerateC() error = %v", err)
	}
	if strings.Count(got, "return 0;") != 2 {
		t.Errorf("want one early and one final return:\n%s", got)
	}
}
