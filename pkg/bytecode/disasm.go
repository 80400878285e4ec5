package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// FormatInstruction renders one dump line: index, mnemonic, argument in
// decimal and hex, offset.
func FormatInstruction(index int, ins Instruction) string {
	return fmt.Sprintf("(0x%08x) %-9s -> %d (0x%08x), Offset: %d",
		index, ins.Opcode, ins.Argument, uint32(ins.Argument), ins.Offset)
}

// Dump writes one line per instruction to w. The format is a debugging
// aid, not a file format.
func (p *Program) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, ins := range p.ir[:p.length] {
		if _, err := fmt.Fprintln(bw, FormatInstruction(i, ins)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Disassemble returns the dump as a string.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns the dump preceded by a short header.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; %d instructions (%d real), capacity %d\n", p.length, p.RealLen(), len(p.ir)))

	// Dump into a strings.Builder cannot fail.
	_ = p.Dump(&sb)
	return sb.String()
}

// DisassembleToLines returns each dump line as a separate string.
func (p *Program) DisassembleToLines() []string {
	lines := make([]string, 0, p.length)
	for i, ins := range p.ir[:p.length] {
		lines = append(lines, FormatInstruction(i, ins))
	}
	return lines
}
