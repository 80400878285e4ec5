package bytecode

// Opcode selects the behavior of an instruction.
// The catalog is closed; OpNop is the zero value and doubles as the
// tombstone left behind by Substitute.
type Opcode uint8

const (
	// ========================================================================
	// Primitive commands (one per source token, optionally run-length fused)
	// ========================================================================

	OpNop  Opcode = iota // Erased/inert slot
	OpIn                 // Read a byte into t[p+offset]
	OpOut                // Write t[p+offset]
	OpIncV               // t[p+offset] += 1
	OpDecV               // t[p+offset] -= 1
	OpAddV               // t[p+offset] += argument
	OpSubV               // t[p+offset] -= argument
	OpIncP               // p += 1
	OpDecP               // p -= 1
	OpAddP               // p += argument
	OpSubP               // p -= argument

	// ========================================================================
	// Control flow (argument is an absolute instruction index)
	// ========================================================================

	OpBranchZ  // if t[p] == 0 continue at argument
	OpBranchNZ // if t[p] != 0 continue at argument
	OpJmp      // continue at argument
	OpHalt     // stop execution

	// ========================================================================
	// Fused idioms produced by the optimizer
	// ========================================================================

	OpClear // t[p+offset] = 0
	OpCopy  // t[p+offset] += t[p]
	OpMul   // t[p+offset] += t[p] * argument

	opcodeCount
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string // Canonical mnemonic
	HasArg    bool   // Argument is meaningful
	HasOffset bool   // Offset is meaningful
	IsBranch  bool   // Argument is an instruction index
}

var opcodeInfoTable = [opcodeCount]OpcodeInfo{
	OpNop:      {"NOP", false, false, false},
	OpIn:       {"IN", false, true, false},
	OpOut:      {"OUT", false, true, false},
	OpIncV:     {"INC_V", false, true, false},
	OpDecV:     {"DEC_V", false, true, false},
	OpAddV:     {"ADD_V", true, true, false},
	OpSubV:     {"SUB_V", true, true, false},
	OpIncP:     {"INC_P", false, false, false},
	OpDecP:     {"DEC_P", false, false, false},
	OpAddP:     {"ADD_P", true, false, false},
	OpSubP:     {"SUB_P", true, false, false},
	OpBranchZ:  {"BRANCH_Z", true, false, true},
	OpBranchNZ: {"BRANCH_NZ", true, false, true},
	OpJmp:      {"JMP", true, false, true},
	OpHalt:     {"HALT", false, false, false},
	OpClear:    {"CLEAR", false, true, false},
	OpCopy:     {"COPY", false, true, false},
	OpMul:      {"MUL", true, true, false},
}

// UnknownMnemonic is returned by String for tags outside the catalog.
const UnknownMnemonic = "?"

// IsValid reports whether op is part of the catalog.
func (op Opcode) IsValid() bool {
	return op < opcodeCount
}

// GetOpcodeInfo returns metadata for an opcode.
// Unknown opcodes get a zero OpcodeInfo named UnknownMnemonic.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if !op.IsValid() {
		return OpcodeInfo{Name: UnknownMnemonic}
	}
	return opcodeInfoTable[op]
}

// String returns the canonical mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsBranch returns true if the argument of this opcode is a branch target.
func (op Opcode) IsBranch() bool {
	return GetOpcodeInfo(op).IsBranch
}

// AllOpcodes returns every defined opcode in catalog order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, opcodeCount)
	for op := Opcode(0); op < opcodeCount; op++ {
		ops = append(ops, op)
	}
	return ops
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return int(opcodeCount)
}
