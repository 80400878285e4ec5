package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/chazu/mlbf/pkg/bytecode"
	"github.com/chazu/mlbf/pkg/optimizer"
	"github.com/chazu/mlbf/vm"
)

// hotSpots is how many instructions the profile table lists.
const hotSpots = 10

func printOptimizerStats(w io.Writer, stats *optimizer.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Optimizer: %d -> %d instructions", stats.Before, stats.After))
	t.AppendHeader(table.Row{"Idiom", "Rewrites"})
	for _, k := range stats.Keys() {
		t.AppendRow(table.Row{k, stats.Applied[k]})
	}
	t.AppendFooter(table.Row{"Total", stats.Total()})
	t.Render()
}

func printProfile(w io.Writer, p *bytecode.Program, prof *vm.Profiler) {
	ops := table.NewWriter()
	ops.SetOutputMirror(w)
	ops.SetTitle(fmt.Sprintf("Executed %d instructions", prof.Steps()))
	ops.AppendHeader(table.Row{"Opcode", "Count"})
	for _, op := range bytecode.AllOpcodes() {
		if n := prof.OpcodeCount(op); n > 0 {
			ops.AppendRow(table.Row{op, n})
		}
	}
	ops.Render()

	hot := table.NewWriter()
	hot.SetOutputMirror(w)
	hot.SetTitle("Hot instructions")
	hot.AppendHeader(table.Row{"Instruction", "Count"})
	for _, h := range prof.TopInstructions(hotSpots) {
		hot.AppendRow(table.Row{bytecode.FormatInstruction(h.Index, p.At(h.Index)), h.Count})
	}
	hot.Render()
}
