package bytecode

import (
	"errors"
	"fmt"
)

var (
	// ErrUnbalanced is returned when BRANCH_Z and BRANCH_NZ do not pair up.
	ErrUnbalanced = errors.New("unbalanced branches")

	// ErrAddressOverflow is returned when a branch target does not fit in
	// AddressBits.
	ErrAddressOverflow = errors.New("branch target exceeds address width")
)

// Link pairs every BRANCH_Z with its BRANCH_NZ and rewrites their targets:
// a BRANCH_Z continues after its partner, a BRANCH_NZ continues after the
// BRANCH_Z that opened the loop. JMP targets are left alone.
//
// Nothing is written unless every branch pairs and every target fits.
func (p *Program) Link() error {
	if p.released {
		return ErrReleased
	}

	partner := make(map[int]int)
	var open []int
	for i, ins := range p.ir[:p.length] {
		switch ins.Opcode {
		case OpBranchZ:
			open = append(open, i)
		case OpBranchNZ:
			if len(open) == 0 {
				return fmt.Errorf("%w: BRANCH_NZ at %d has no BRANCH_Z", ErrUnbalanced, i)
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]
			partner[start] = i
			partner[i] = start
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("%w: BRANCH_Z at %d has no BRANCH_NZ", ErrUnbalanced, open[len(open)-1])
	}

	for i, j := range partner {
		if j+1 >= MaxProgramSize {
			return fmt.Errorf("%w: target %d of instruction %d", ErrAddressOverflow, j+1, i)
		}
	}
	for i, j := range partner {
		p.ir[i].Argument = int32(j + 1)
	}
	return nil
}
