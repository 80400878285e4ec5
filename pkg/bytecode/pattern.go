package bytecode

// PatternFlags controls how a PatternRule compares operands.
type PatternFlags uint8

const (
	// PatternStrict requires the argument to match as well as the opcode.
	PatternStrict PatternFlags = 1 << 0

	// PatternStrictOffset requires the offset to match.
	PatternStrictOffset PatternFlags = 1 << 1
)

// Has reports whether every bit of f is set.
func (fl PatternFlags) Has(f PatternFlags) bool {
	return fl&f == f
}

// PatternRule describes one instruction of a sequence to find.
// The opcode always has to match; operands only when flagged.
type PatternRule struct {
	Instruction Instruction
	Flags       PatternFlags
}

// Loose returns a rule matching any instruction with the given opcode.
func Loose(op Opcode) PatternRule {
	return PatternRule{Instruction: Instruction{Opcode: op}}
}

// Strict returns a rule matching op with exactly the given argument.
func Strict(op Opcode, argument int32) PatternRule {
	return PatternRule{Instruction: Instruction{Opcode: op, Argument: argument}, Flags: PatternStrict}
}

// matches compares a real instruction against the rule.
func (r PatternRule) matches(ins Instruction) bool {
	if ins.Opcode != r.Instruction.Opcode {
		return false
	}
	if r.Flags.Has(PatternStrict) && ins.Argument != r.Instruction.Argument {
		return false
	}
	if r.Flags.Has(PatternStrictOffset) && ins.Offset != r.Instruction.Offset {
		return false
	}
	return true
}

// MatchSequence reports whether the real instructions starting at pos
// satisfy rules in order, with NOPs between them skipped.
//
// The result is the physical span consumed, NOPs included, so it can be
// handed straight to Substitute. Zero means no match: an empty rule list,
// a position outside the program, a mismatching instruction, or running
// out of program before every rule was satisfied.
func (p *Program) MatchSequence(rules []PatternRule, pos int) int {
	size := len(rules)
	if size == 0 || pos < 0 || pos+size > p.length {
		return 0
	}

	matched := 0
	span := size
	for i := 0; i < span && pos+i < p.length; i++ {
		ins := p.ir[pos+i]
		if ins.IsNop() {
			span++
			continue
		}

		if !rules[matched].matches(ins) {
			return 0
		}
		matched++
	}

	// Trailing NOPs can stretch the span past the end of the program;
	// only a scan that consumed every rule counts.
	if matched != size {
		return 0
	}
	return span
}
