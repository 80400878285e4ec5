// Package bytecode is the flat intermediate representation shared by the
// mlbf front-end, optimizer, interpreter and transpilers.
//
// A Program is a growable buffer of fixed-size Instructions with a hard
// ceiling of MaxProgramSize slots. The ceiling exists because branch
// targets are absolute instruction indices that must fit in AddressBits.
//
// # Rewriting
//
// The optimizer never compacts a program. It locates an idiom with
// MatchSequence, which treats NOP slots as transparent filler but still
// counts them in the returned span, and overwrites the span in place with
// Substitute. Leftover slots become NOPs, so instruction indices stay
// stable across passes:
//
//	span := p.MatchSequence(rules, pos)
//	if span > 0 {
//		err := p.Substitute(pos, bytecode.Pad(replacement, span))
//	}
//
// # Fused operands
//
// With p the data pointer and t the tape:
//
//   - ADD_V/SUB_V: t[p+offset] += / -= argument
//   - ADD_P/SUB_P: p += / -= argument
//   - BRANCH_Z/BRANCH_NZ/JMP: argument is the index of the next instruction
//   - CLEAR: t[p+offset] = 0
//   - COPY: t[p+offset] += t[p]
//   - MUL: t[p+offset] += t[p] * argument
//
// COPY and MUL leave t[p] alone; the loop idioms follow them with a CLEAR.
//
// Nothing in this package logs or panics on bad input; every fallible
// operation either succeeds completely or leaves the program untouched.
package bytecode
