package bytecode

import (
	"errors"
	"fmt"
)

const (
	// AddressBits is the width of a branch target operand. Every
	// instruction of a program must be addressable with this many bits.
	AddressBits = 16

	// MaxProgramSize is the hard ceiling on the number of instruction
	// slots. It follows from AddressBits; widening one means revisiting
	// the other.
	MaxProgramSize = 1 << AddressBits

	// AllocBatch is the number of slots added by each Grow.
	AllocBatch = 1024
)

var (
	// ErrAllocation is returned when a program buffer cannot be created
	// with the requested number of slots.
	ErrAllocation = errors.New("cannot allocate program buffer")

	// ErrCapacityExceeded is returned when growth would pass MaxProgramSize.
	ErrCapacityExceeded = errors.New("program exceeds maximum size")

	// ErrOutOfRange is returned when a substitution span is not strictly
	// inside the populated part of the program.
	ErrOutOfRange = errors.New("substitution out of range")

	// ErrReleased is returned by mutating operations after Release.
	ErrReleased = errors.New("program has been released")
)

// Instruction is a fixed-size IR record. Argument and Offset are
// interpreted according to Opcode.
type Instruction struct {
	Opcode   Opcode
	Argument int32
	Offset   int32
}

// NewInstruction builds an instruction with the given operands.
func NewInstruction(op Opcode, argument, offset int32) Instruction {
	return Instruction{Opcode: op, Argument: argument, Offset: offset}
}

// IsNop reports whether the instruction is an erased slot.
func (ins Instruction) IsNop() bool {
	return ins.Opcode == OpNop
}

// Program is a growable, bounded store of instructions.
// The buffer is owned by the Program; callers only ever see copies.
type Program struct {
	ir       []Instruction // len(ir) is the capacity; [0, length) is populated
	length   int
	released bool
}

// NewProgram creates an empty program with one allocation batch of slots.
func NewProgram() *Program {
	return &Program{ir: make([]Instruction, AllocBatch)}
}

// NewProgramWithCapacity creates an empty program with n slots.
// Returns ErrAllocation if n is not a usable capacity.
func NewProgramWithCapacity(n int) (*Program, error) {
	if n <= 0 || n > MaxProgramSize {
		return nil, fmt.Errorf("%w: capacity %d not in [1, %d]", ErrAllocation, n, MaxProgramSize)
	}
	return &Program{ir: make([]Instruction, n)}, nil
}

// Len returns the logical instruction count.
func (p *Program) Len() int {
	return p.length
}

// Cap returns the number of allocated slots.
func (p *Program) Cap() int {
	return len(p.ir)
}

// Released reports whether Release has been called.
func (p *Program) Released() bool {
	return p.released
}

// Grow unconditionally adds one batch of slots, clamped to MaxProgramSize.
// When the program already sits at the ceiling nothing is changed.
func (p *Program) Grow() error {
	if p.released {
		return ErrReleased
	}

	capacity := len(p.ir)
	if capacity >= MaxProgramSize {
		return fmt.Errorf("grow past %d slots: %w", MaxProgramSize, ErrCapacityExceeded)
	}

	ir := make([]Instruction, min(capacity+AllocBatch, MaxProgramSize))
	copy(ir, p.ir[:p.length])
	p.ir = ir
	return nil
}

// Append adds an instruction at the end, growing first if the buffer is full.
// On failure the program is unchanged.
func (p *Program) Append(ins Instruction) error {
	if p.released {
		return ErrReleased
	}
	if p.length >= len(p.ir) {
		if err := p.Grow(); err != nil {
			return err
		}
	}

	p.ir[p.length] = ins
	p.length++
	return nil
}

// Substitute overwrites [pos, pos+len(repl)) with repl.
//
// The span must end strictly before Len(): a replacement may not reach the
// last instruction. Length and capacity never change; pad short
// replacements with Pad so no matched slot is left half-written.
func (p *Program) Substitute(pos int, repl []Instruction) error {
	if p.released {
		return ErrReleased
	}
	end := pos + len(repl)
	if pos < 0 || end >= p.length {
		return fmt.Errorf("%w: span [%d, %d) with length %d", ErrOutOfRange, pos, end, p.length)
	}

	copy(p.ir[pos:end], repl)
	return nil
}

// Pad returns repl extended with NOPs to n slots. A replacement that is
// already n or more slots long is returned unchanged.
func Pad(repl []Instruction, n int) []Instruction {
	if len(repl) >= n {
		return repl
	}
	out := make([]Instruction, n)
	copy(out, repl)
	return out
}

// At returns the instruction at index i.
// Panics if i is outside [0, Len()).
func (p *Program) At(i int) Instruction {
	if i < 0 || i >= p.length {
		panic(fmt.Sprintf("bytecode: index %d out of range [0, %d)", i, p.length))
	}
	return p.ir[i]
}

// Instructions returns a copy of the populated instructions.
func (p *Program) Instructions() []Instruction {
	out := make([]Instruction, p.length)
	copy(out, p.ir[:p.length])
	return out
}

// Collect returns the non-NOP instructions of [pos, pos+span), clipped to
// the populated range. It is the natural companion of MatchSequence.
func (p *Program) Collect(pos, span int) []Instruction {
	pos = max(pos, 0)
	end := min(pos+span, p.length)

	var out []Instruction
	for i := pos; i < end; i++ {
		if !p.ir[i].IsNop() {
			out = append(out, p.ir[i])
		}
	}
	return out
}

// RealLen returns the number of non-NOP instructions.
func (p *Program) RealLen() int {
	n := 0
	for _, ins := range p.ir[:p.length] {
		if !ins.IsNop() {
			n++
		}
	}
	return n
}

// Release drops the instruction buffer. It is safe to call more than once;
// mutating operations fail with ErrReleased afterwards.
func (p *Program) Release() {
	p.ir = nil
	p.length = 0
	p.released = true
}
