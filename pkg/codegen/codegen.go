// Package codegen transpiles mlbf bytecode into standalone Go or C programs.
package codegen

import (
	"errors"
	"fmt"

	"github.com/chazu/mlbf/pkg/bytecode"
	"github.com/chazu/mlbf/vm"
)

var (
	// ErrUnsupported is returned for instructions with no structured
	// equivalent, such as JMP.
	ErrUnsupported = errors.New("instruction not supported by transpiler")

	// ErrUnbalanced is returned when branches do not nest.
	ErrUnbalanced = errors.New("unbalanced branches")

	// ErrInvalidOutput is returned when generated Go fails to type-check.
	ErrInvalidOutput = errors.New("generated code does not type-check")
)

// Options controls code generation.
type Options struct {
	TapeSize int          // cells; vm.DefaultTapeSize when zero
	EOF      vm.EOFPolicy // behavior of input at end of stream

	// SkipValidation disables type-checking of generated Go.
	SkipValidation bool
}

func (o Options) tapeSize() int {
	if o.TapeSize <= 0 {
		return vm.DefaultTapeSize
	}
	return o.TapeSize
}

// node is one straight-line instruction, or a loop when body is non-nil.
type node struct {
	ins  bytecode.Instruction
	loop bool
	body []node
}

// buildTree nests the instructions of p by their branch pairs.
func buildTree(p *bytecode.Program) ([]node, error) {
	root := []node{}
	stack := [][]node{}

	for i, ins := range p.Instructions() {
		switch ins.Opcode {
		case bytecode.OpNop:
		case bytecode.OpBranchZ:
			stack = append(stack, root)
			root = []node{}
		case bytecode.OpBranchNZ:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: BRANCH_NZ at %d", ErrUnbalanced, i)
			}
			body := root
			root = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			root = append(root, node{loop: true, body: body})
		case bytecode.OpJmp:
			return nil, fmt.Errorf("%w: %s at %d", ErrUnsupported, ins.Opcode, i)
		default:
			if !ins.Opcode.IsValid() {
				return nil, fmt.Errorf("%w: tag %d at %d", ErrUnsupported, uint8(ins.Opcode), i)
			}
			root = append(root, node{ins: ins})
		}
	}

	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: %d loops left open", ErrUnbalanced, len(stack))
	}

	// The final HALT is implied by the end of main.
	if n := len(root); n > 0 && !root[n-1].loop && root[n-1].ins.Opcode == bytecode.OpHalt {
		root = root[:n-1]
	}
	return root, nil
}

// usesInput reports whether any node reads input.
func usesInput(nodes []node) bool {
	for _, n := range nodes {
		if n.loop && usesInput(n.body) {
			return true
		}
		if !n.loop && n.ins.Opcode == bytecode.OpIn {
			return true
		}
	}
	return false
}
