package vm

import (
	"sort"
	"sync/atomic"

	"github.com/chazu/mlbf/pkg/bytecode"
)

// Profiler counts how often each instruction and each opcode executes.
// Counters are atomic so a report can be read while a run is in progress.
type Profiler struct {
	perInstruction []uint64 // indexed by instruction
	perOpcode      []uint64 // indexed by Opcode
}

// NewProfiler creates a profiler for a program of n instructions.
func NewProfiler(n int) *Profiler {
	return &Profiler{
		perInstruction: make([]uint64, n),
		perOpcode:      make([]uint64, bytecode.OpcodeCount()),
	}
}

func (p *Profiler) record(pc int, op bytecode.Opcode) {
	if pc < len(p.perInstruction) {
		atomic.AddUint64(&p.perInstruction[pc], 1)
	}
	if int(op) < len(p.perOpcode) {
		atomic.AddUint64(&p.perOpcode[op], 1)
	}
}

// Count returns the number of times instruction pc executed.
func (p *Profiler) Count(pc int) uint64 {
	if pc < 0 || pc >= len(p.perInstruction) {
		return 0
	}
	return atomic.LoadUint64(&p.perInstruction[pc])
}

// OpcodeCount returns the number of times op executed.
func (p *Profiler) OpcodeCount(op bytecode.Opcode) uint64 {
	if int(op) >= len(p.perOpcode) {
		return 0
	}
	return atomic.LoadUint64(&p.perOpcode[op])
}

// Steps returns the total number of instructions executed, NOPs included.
func (p *Profiler) Steps() uint64 {
	var total uint64
	for i := range p.perOpcode {
		total += atomic.LoadUint64(&p.perOpcode[i])
	}
	return total
}

// HotSpot is an instruction and its execution count.
type HotSpot struct {
	Index int
	Count uint64
}

// TopInstructions returns the n most executed instructions, most executed
// first. Ties keep program order.
func (p *Profiler) TopInstructions(n int) []HotSpot {
	var all []HotSpot
	for i := range p.perInstruction {
		if c := atomic.LoadUint64(&p.perInstruction[i]); c > 0 {
			all = append(all, HotSpot{Index: i, Count: c})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Count > all[j].Count
	})
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// Reset clears all counters.
func (p *Profiler) Reset() {
	for i := range p.perInstruction {
		atomic.StoreUint64(&p.perInstruction[i], 0)
	}
	for i := range p.perOpcode {
		atomic.StoreUint64(&p.perOpcode[i], 0)
	}
}
