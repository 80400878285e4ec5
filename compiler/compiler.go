// Package compiler is the mlbf front-end: it turns Brainfuck source into a
// naive bytecode program with one instruction per command.
package compiler

import (
	"errors"
	"fmt"

	"github.com/chazu/mlbf/pkg/bytecode"
)

var (
	// ErrUnmatchedOpen is reported for a '[' without a closing ']'.
	ErrUnmatchedOpen = errors.New("unmatched '['")

	// ErrUnmatchedClose is reported for a ']' without an opening '['.
	ErrUnmatchedClose = errors.New("unmatched ']'")

	// ErrProgramTooLarge is reported when the program does not fit in
	// bytecode.MaxProgramSize instructions.
	ErrProgramTooLarge = errors.New("program too large")
)

// Error is a compile error tied to a source position.
type Error struct {
	Pos Position
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Pos, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result is a compiled program together with its source map.
type Result struct {
	Program *bytecode.Program

	// Positions[i] is the source position of instruction i. The trailing
	// HALT maps to the end of input.
	Positions []Position
}

// InstructionAt returns the index of the instruction compiled from the
// command at line:column, or -1 if no command starts there.
func (r *Result) InstructionAt(line, column int) int {
	for i, p := range r.Positions {
		if p.Line == line && p.Column == column {
			return i
		}
	}
	return -1
}

var naive = map[TokenType]bytecode.Instruction{
	TokenIncrement: bytecode.NewInstruction(bytecode.OpIncV, 1, 0),
	TokenDecrement: bytecode.NewInstruction(bytecode.OpDecV, 1, 0),
	TokenRight:     bytecode.NewInstruction(bytecode.OpIncP, 1, 0),
	TokenLeft:      bytecode.NewInstruction(bytecode.OpDecP, 1, 0),
	TokenOutput:    bytecode.NewInstruction(bytecode.OpOut, 0, 0),
	TokenInput:     bytecode.NewInstruction(bytecode.OpIn, 0, 0),
	TokenLoopStart: bytecode.NewInstruction(bytecode.OpBranchZ, 0, 0),
	TokenLoopEnd:   bytecode.NewInstruction(bytecode.OpBranchNZ, 0, 0),
	TokenEOF:       bytecode.NewInstruction(bytecode.OpHalt, 0, 0),
}

// Compile translates source into a linked program terminated by HALT.
// The first error found is returned as an *Error.
func Compile(src string) (*Result, error) {
	if errs := Check(src); len(errs) > 0 {
		return nil, errs[0]
	}

	res := &Result{Program: bytecode.NewProgram()}
	lexer := NewLexer(src)
	for {
		tok := lexer.NextToken()
		if err := res.Program.Append(naive[tok.Type]); err != nil {
			return nil, &Error{Pos: tok.Pos, Err: fmt.Errorf("%w: %w", ErrProgramTooLarge, err)}
		}
		res.Positions = append(res.Positions, tok.Pos)

		if tok.Type == TokenEOF {
			break
		}
	}

	if err := res.Program.Link(); err != nil {
		return nil, err
	}
	return res, nil
}

// Check reports every bracket error in source order without building a
// program. Unclosed '[' errors come after all ']' errors.
func Check(src string) []*Error {
	var errs []*Error
	var open []Position

	lexer := NewLexer(src)
	for tok := lexer.NextToken(); tok.Type != TokenEOF; tok = lexer.NextToken() {
		switch tok.Type {
		case TokenLoopStart:
			open = append(open, tok.Pos)
		case TokenLoopEnd:
			if len(open) == 0 {
				errs = append(errs, &Error{Pos: tok.Pos, Err: ErrUnmatchedClose})
				continue
			}
			open = open[:len(open)-1]
		}
	}
	for _, pos := range open {
		errs = append(errs, &Error{Pos: pos, Err: ErrUnmatchedOpen})
	}
	return errs
}
