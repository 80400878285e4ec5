package vm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chazu/mlbf/pkg/bytecode"
)

// DefaultTapeSize is the number of cells a Machine gets when none is given.
const DefaultTapeSize = 30000

// checkInterval is the number of backward jumps between context checks.
const checkInterval = 4096

var (
	ErrTapeOverflow  = errors.New("data pointer outside tape")
	ErrInvalidOpcode = errors.New("invalid opcode")
	ErrBadBranch     = errors.New("branch target out of range")
)

// EOFPolicy decides what IN stores when input is exhausted.
type EOFPolicy int

const (
	EOFUnchanged EOFPolicy = iota // leave the cell as it was
	EOFZero                       // store 0
)

// ParseEOFPolicy parses "unchanged" or "zero".
func ParseEOFPolicy(s string) (EOFPolicy, error) {
	switch s {
	case "", "unchanged":
		return EOFUnchanged, nil
	case "zero":
		return EOFZero, nil
	}
	return 0, fmt.Errorf("unknown EOF policy %q (want unchanged or zero)", s)
}

func (e EOFPolicy) String() string {
	if e == EOFZero {
		return "zero"
	}
	return "unchanged"
}

// Options configures a Machine.
type Options struct {
	TapeSize int       // cells; DefaultTapeSize when zero
	EOF      EOFPolicy // behavior of IN at end of input
	Profiler *Profiler // optional execution counts
}

// Machine is a Brainfuck tape machine. A Machine is not safe for concurrent
// use; create one per run.
type Machine struct {
	tape     []byte
	ptr      int
	in       io.ByteReader
	out      *bufio.Writer
	eof      EOFPolicy
	profiler *Profiler
}

// New creates a machine reading from in and writing to out.
func New(in io.Reader, out io.Writer, opts Options) *Machine {
	size := opts.TapeSize
	if size <= 0 {
		size = DefaultTapeSize
	}

	br, ok := in.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(in)
	}

	return &Machine{
		tape:     make([]byte, size),
		in:       br,
		out:      bufio.NewWriter(out),
		eof:      opts.EOF,
		profiler: opts.Profiler,
	}
}

// Tape returns the machine's cells.
func (m *Machine) Tape() []byte {
	return m.tape
}

// Pointer returns the data pointer.
func (m *Machine) Pointer() int {
	return m.ptr
}

// cell returns the tape index p+offset, checking bounds.
func (m *Machine) cell(offset int32, pc int) (int, error) {
	i := m.ptr + int(offset)
	if i < 0 || i >= len(m.tape) {
		return 0, fmt.Errorf("%w: cell %d at instruction %d", ErrTapeOverflow, i, pc)
	}
	return i, nil
}

func (m *Machine) move(delta int32, pc int) error {
	next := m.ptr + int(delta)
	if next < 0 || next >= len(m.tape) {
		return fmt.Errorf("%w: pointer %d at instruction %d", ErrTapeOverflow, next, pc)
	}
	m.ptr = next
	return nil
}

// Run executes p from instruction 0 until HALT or the end of the program.
// Output is flushed before Run returns and before every read.
func (m *Machine) Run(ctx context.Context, p *bytecode.Program) (err error) {
	code := p.Instructions()
	defer func() {
		if ferr := m.out.Flush(); err == nil {
			err = ferr
		}
	}()

	backward := 0
	jump := func(pc int, target int32) (int, error) {
		t := int(target)
		if t < 0 || t > len(code) {
			return 0, fmt.Errorf("%w: %d at instruction %d", ErrBadBranch, t, pc)
		}
		if t <= pc {
			backward++
			if backward%checkInterval == 0 {
				if err := ctx.Err(); err != nil {
					return 0, err
				}
			}
		}
		return t, nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for pc := 0; pc < len(code); {
		ins := code[pc]
		if m.profiler != nil {
			m.profiler.record(pc, ins.Opcode)
		}

		switch ins.Opcode {
		case bytecode.OpNop:

		case bytecode.OpIn:
			i, err := m.cell(ins.Offset, pc)
			if err != nil {
				return err
			}
			if err := m.out.Flush(); err != nil {
				return err
			}
			c, err := m.in.ReadByte()
			switch {
			case err == io.EOF:
				if m.eof == EOFZero {
					m.tape[i] = 0
				}
			case err != nil:
				return fmt.Errorf("read input: %w", err)
			default:
				m.tape[i] = c
			}

		case bytecode.OpOut:
			i, err := m.cell(ins.Offset, pc)
			if err != nil {
				return err
			}
			if err := m.out.WriteByte(m.tape[i]); err != nil {
				return err
			}

		case bytecode.OpIncV, bytecode.OpDecV, bytecode.OpAddV, bytecode.OpSubV:
			i, err := m.cell(ins.Offset, pc)
			if err != nil {
				return err
			}
			switch ins.Opcode {
			case bytecode.OpIncV:
				m.tape[i]++
			case bytecode.OpDecV:
				m.tape[i]--
			case bytecode.OpAddV:
				m.tape[i] += byte(ins.Argument)
			case bytecode.OpSubV:
				m.tape[i] -= byte(ins.Argument)
			}

		case bytecode.OpIncP:
			err = m.move(1, pc)
		case bytecode.OpDecP:
			err = m.move(-1, pc)
		case bytecode.OpAddP:
			err = m.move(ins.Argument, pc)
		case bytecode.OpSubP:
			err = m.move(-ins.Argument, pc)

		case bytecode.OpBranchZ:
			if m.tape[m.ptr] == 0 {
				if pc, err = jump(pc, ins.Argument); err != nil {
					return err
				}
				continue
			}
		case bytecode.OpBranchNZ:
			if m.tape[m.ptr] != 0 {
				if pc, err = jump(pc, ins.Argument); err != nil {
					return err
				}
				continue
			}
		case bytecode.OpJmp:
			if pc, err = jump(pc, ins.Argument); err != nil {
				return err
			}
			continue

		case bytecode.OpHalt:
			return nil

		case bytecode.OpClear, bytecode.OpCopy, bytecode.OpMul:
			// A zero source cell means the loop this replaced never ran,
			// so the target is not touched.
			if ins.Opcode != bytecode.OpClear && m.tape[m.ptr] == 0 {
				break
			}
			i, err := m.cell(ins.Offset, pc)
			if err != nil {
				return err
			}
			switch ins.Opcode {
			case bytecode.OpClear:
				m.tape[i] = 0
			case bytecode.OpCopy:
				m.tape[i] += m.tape[m.ptr]
			case bytecode.OpMul:
				m.tape[i] += m.tape[m.ptr] * byte(ins.Argument)
			}

		default:
			return fmt.Errorf("%w: tag %d at instruction %d", ErrInvalidOpcode, uint8(ins.Opcode), pc)
		}

		if err != nil {
			return err
		}
		pc++
	}
	return nil
}
