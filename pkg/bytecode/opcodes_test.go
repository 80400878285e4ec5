package bytecode

import "testing"

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		name := op.String()
		if name == "" || name == UnknownMnemonic {
			t.Errorf("Opcode %d has no mnemonic", op)
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got != 18 {
		t.Errorf("OpcodeCount() = %d, want 18", got)
	}
	if got := len(AllOpcodes()); got != OpcodeCount() {
		t.Errorf("len(AllOpcodes()) = %d, want %d", got, OpcodeCount())
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "NOP"},
		{OpIn, "IN"},
		{OpOut, "OUT"},
		{OpIncV, "INC_V"},
		{OpDecV, "DEC_V"},
		{OpAddV, "ADD_V"},
		{OpSubV, "SUB_V"},
		{OpIncP, "INC_P"},
		{OpDecP, "DEC_P"},
		{OpAddP, "ADD_P"},
		{OpSubP, "SUB_P"},
		{OpBranchZ, "BRANCH_Z"},
		{OpBranchNZ, "BRANCH_NZ"},
		{OpJmp, "JMP"},
		{OpHalt, "HALT"},
		{OpClear, "CLEAR"},
		{OpCopy, "COPY"},
		{OpMul, "MUL"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	for _, op := range []Opcode{Opcode(OpcodeCount()), 0x7F, 0xFF} {
		if got := op.String(); got != UnknownMnemonic {
			t.Errorf("Opcode(%d).String() = %q, want %q", op, got, UnknownMnemonic)
		}
		if op.IsValid() {
			t.Errorf("Opcode(%d).IsValid() = true", op)
		}
	}
}

func TestOpcodeIsBranch(t *testing.T) {
	branches := map[Opcode]bool{OpBranchZ: true, OpBranchNZ: true, OpJmp: true}
	for _, op := range AllOpcodes() {
		if got := op.IsBranch(); got != branches[op] {
			t.Errorf("%s.IsBranch() = %v, want %v", op, got, branches[op])
		}
	}
}

func TestNopIsZeroValue(t *testing.T) {
	var ins Instruction
	if !ins.IsNop() {
		t.Error("zero Instruction should be a NOP")
	}
}
