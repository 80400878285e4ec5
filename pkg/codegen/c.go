package codegen

import (
	"fmt"
	"strings"

	"github.com/chazu/mlbf/pkg/bytecode"
	"github.com/chazu/mlbf/vm"
)

// cWriter accumulates indented C source.
type cWriter struct {
	sb     strings.Builder
	indent int
	eof    vm.EOFPolicy
}

func (w *cWriter) writeLine(format string, args ...any) {
	if format == "" {
		w.sb.WriteString("\n")
		return
	}
	for i := 0; i < w.indent; i++ {
		w.sb.WriteString("\t")
	}
	w.sb.WriteString(fmt.Sprintf(format, args...))
	w.sb.WriteString("\n")
}

// GenerateC returns a C translation unit equivalent to p.
func GenerateC(p *bytecode.Program, opts Options) (string, error) {
	nodes, err := buildTree(p)
	if err != nil {
		return "", err
	}

	w := &cWriter{eof: opts.EOF}
	w.writeLine("/* Code generated by mlbf. DO NOT EDIT. */")
	w.writeLine("#include <stdio.h>")
	w.writeLine("")
	w.writeLine("static unsigned char t[%d];", opts.tapeSize())
	w.writeLine("")
	w.writeLine("int main(void) {")
	w.indent++
	w.writeLine("unsigned char *p = t;")
	if usesInput(nodes) {
		w.writeLine("int c;")
	}
	w.writeLine("")
	w.statements(nodes)
	w.writeLine("return 0;")
	w.indent--
	w.writeLine("}")

	return w.sb.String(), nil
}

// cCell renders p[offset].
func cCell(offset int32) string {
	return fmt.Sprintf("p[%d]", offset)
}

func (w *cWriter) statements(nodes []node) {
	for _, n := range nodes {
		if n.loop {
			w.writeLine("while (*p) {")
			w.indent++
			w.statements(n.body)
			w.indent--
			w.writeLine("}")
			continue
		}

		ins := n.ins
		cell := cCell(ins.Offset)
		switch ins.Opcode {
		case bytecode.OpIn:
			w.writeLine("fflush(stdout);")
			w.writeLine("c = getchar();")
			if w.eof == vm.EOFZero {
				w.writeLine("%s = c == EOF ? 0 : (unsigned char)c;", cell)
			} else {
				w.writeLine("if (c != EOF) %s = (unsigned char)c;", cell)
			}
		case bytecode.OpOut:
			w.writeLine("putchar(%s);", cell)
		case bytecode.OpIncV:
			w.writeLine("%s++;", cell)
		case bytecode.OpDecV:
			w.writeLine("%s--;", cell)
		case bytecode.OpAddV:
			w.writeLine("%s += %d;", cell, uint8(ins.Argument))
		case bytecode.OpSubV:
			w.writeLine("%s -= %d;", cell, uint8(ins.Argument))
		case bytecode.OpIncP:
			w.writeLine("p++;")
		case bytecode.OpDecP:
			w.writeLine("p--;")
		case bytecode.OpAddP:
			w.writeLine("p += %d;", ins.Argument)
		case bytecode.OpSubP:
			w.writeLine("p -= %d;", ins.Argument)
		case bytecode.OpHalt:
			w.writeLine("return 0;")
		case bytecode.OpClear:
			w.writeLine("%s = 0;", cell)
		case bytecode.OpCopy:
			w.writeLine("%s += *p;", cell)
		case bytecode.OpMul:
			w.writeLine("%s += *p * %d;", cell, uint8(ins.Argument))
		}
	}
}
