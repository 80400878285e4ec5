package optimizer

import (
	"fmt"

	bc "github.com/chazu/mlbf/pkg/bytecode"
)

// Pass names, in the order DefaultPasses runs them.
const (
	PassPromote = "promote"
	PassFold    = "fold"
	PassLoops   = "loops"
	PassDemote  = "demote"
)

// PassNames lists every pass DefaultPasses returns.
var PassNames = []string{PassPromote, PassFold, PassLoops, PassDemote}

// DefaultPasses returns the standard pipeline.
//
// promote turns unit steps into their counted forms, fold merges runs of
// counted steps, loops recognizes clear and multiply loops over the folded
// code, and demote turns counted steps of one back into unit steps.
func DefaultPasses() []Pass {
	return []Pass{
		{Name: PassPromote, Idioms: promoteIdioms()},
		{Name: PassFold, Idioms: foldIdioms()},
		{Name: PassLoops, Idioms: loopIdioms()},
		{Name: PassDemote, Idioms: demoteIdioms()},
	}
}

func rules(rs ...bc.PatternRule) []bc.PatternRule { return rs }

// retag replaces the opcode of a single matched instruction.
func retag(op bc.Opcode, arg int32) Rewrite {
	return func(m []bc.Instruction) ([]bc.Instruction, bool) {
		if len(m) != 1 {
			return nil, false
		}
		return []bc.Instruction{bc.NewInstruction(op, arg, m[0].Offset)}, true
	}
}

// ---------------------------------------------------------------------------
// promote / demote
// ---------------------------------------------------------------------------

func promoteIdioms() []Idiom {
	return []Idiom{
		{Name: "inc-v", Pattern: rules(bc.Loose(bc.OpIncV)), Rewrite: retag(bc.OpAddV, 1)},
		{Name: "dec-v", Pattern: rules(bc.Loose(bc.OpDecV)), Rewrite: retag(bc.OpSubV, 1)},
		{Name: "inc-p", Pattern: rules(bc.Loose(bc.OpIncP)), Rewrite: retag(bc.OpAddP, 1)},
		{Name: "dec-p", Pattern: rules(bc.Loose(bc.OpDecP)), Rewrite: retag(bc.OpSubP, 1)},
	}
}

func demoteIdioms() []Idiom {
	return []Idiom{
		{Name: "add-v", Pattern: rules(bc.Strict(bc.OpAddV, 1)), Rewrite: retag(bc.OpIncV, 1)},
		{Name: "sub-v", Pattern: rules(bc.Strict(bc.OpSubV, 1)), Rewrite: retag(bc.OpDecV, 1)},
		{Name: "add-p", Pattern: rules(bc.Strict(bc.OpAddP, 1)), Rewrite: retag(bc.OpIncP, 1)},
		{Name: "sub-p", Pattern: rules(bc.Strict(bc.OpSubP, 1)), Rewrite: retag(bc.OpDecP, 1)},
	}
}

// ---------------------------------------------------------------------------
// fold
// ---------------------------------------------------------------------------

// signed returns the net effect of a counted step, or false if ins is not one.
func signed(ins bc.Instruction) (int32, bool) {
	switch ins.Opcode {
	case bc.OpAddV, bc.OpAddP:
		return ins.Argument, true
	case bc.OpSubV, bc.OpSubP:
		return -ins.Argument, true
	}
	return 0, false
}

// counted builds the counted step for a net delta. A zero delta folds away.
func counted(add, sub bc.Opcode, net, offset int32) []bc.Instruction {
	switch {
	case net > 0:
		return []bc.Instruction{bc.NewInstruction(add, net, offset)}
	case net < 0:
		return []bc.Instruction{bc.NewInstruction(sub, -net, offset)}
	}
	return nil
}

func foldPair(add, sub bc.Opcode) Rewrite {
	return func(m []bc.Instruction) ([]bc.Instruction, bool) {
		if len(m) != 2 || m[0].Offset != m[1].Offset {
			return nil, false
		}
		a, _ := signed(m[0])
		b, _ := signed(m[1])
		return counted(add, sub, a+b, m[0].Offset), true
	}
}

func foldIdioms() []Idiom {
	var idioms []Idiom
	for _, family := range []struct{ add, sub bc.Opcode }{
		{bc.OpAddV, bc.OpSubV},
		{bc.OpAddP, bc.OpSubP},
	} {
		for _, first := range []bc.Opcode{family.add, family.sub} {
			for _, second := range []bc.Opcode{family.add, family.sub} {
				idioms = append(idioms, Idiom{
					Name:    fmt.Sprintf("%s-%s", first, second),
					Pattern: rules(bc.Loose(first), bc.Loose(second)),
					Rewrite: foldPair(family.add, family.sub),
				})
			}
		}
	}
	return idioms
}

// ---------------------------------------------------------------------------
// loops
// ---------------------------------------------------------------------------

func clearLoop(m []bc.Instruction) ([]bc.Instruction, bool) {
	if len(m) != 3 || m[1].Offset != 0 {
		return nil, false
	}
	return []bc.Instruction{bc.NewInstruction(bc.OpClear, 0, 0)}, true
}

// multiplyLoop rewrites a loop whose body only moves the pointer and adds to
// cells. The body must return the pointer to where it started and take
// exactly one from the counter cell; every other touched cell receives
// counter times its per-iteration delta. The counter is cleared afterwards.
func multiplyLoop(m []bc.Instruction) ([]bc.Instruction, bool) {
	if len(m) < 3 {
		return nil, false
	}

	var ptr int32
	var order []int32
	delta := make(map[int32]int32)
	for _, ins := range m[1 : len(m)-1] {
		n, ok := signed(ins)
		if !ok {
			return nil, false
		}
		switch ins.Opcode {
		case bc.OpAddP, bc.OpSubP:
			ptr += n
		default:
			cell := ptr + ins.Offset
			if _, seen := delta[cell]; !seen {
				order = append(order, cell)
			}
			delta[cell] += n
		}
	}

	if ptr != 0 || delta[0] != -1 {
		return nil, false
	}

	var out []bc.Instruction
	for _, cell := range order {
		switch factor := delta[cell]; {
		case cell == 0 || factor == 0:
		case factor == 1:
			out = append(out, bc.NewInstruction(bc.OpCopy, 0, cell))
		default:
			out = append(out, bc.NewInstruction(bc.OpMul, factor, cell))
		}
	}
	return append(out, bc.NewInstruction(bc.OpClear, 0, 0)), true
}

func loopIdioms() []Idiom {
	idioms := []Idiom{
		{
			Name:    "clear",
			Pattern: rules(bc.Loose(bc.OpBranchZ), bc.Strict(bc.OpSubV, 1), bc.Loose(bc.OpBranchNZ)),
			Rewrite: clearLoop,
		},
		{
			Name:    "clear-up",
			Pattern: rules(bc.Loose(bc.OpBranchZ), bc.Strict(bc.OpAddV, 1), bc.Loose(bc.OpBranchNZ)),
			Rewrite: clearLoop,
		},
	}

	directions := []struct {
		tag       string
		out, back bc.Opcode
	}{
		{"right", bc.OpAddP, bc.OpSubP},
		{"left", bc.OpSubP, bc.OpAddP},
	}
	targets := []bc.Opcode{bc.OpAddV, bc.OpSubV}
	counter := bc.Strict(bc.OpSubV, 1)
	enter, leave := bc.Loose(bc.OpBranchZ), bc.Loose(bc.OpBranchNZ)

	for _, d := range directions {
		for _, t1 := range targets {
			idioms = append(idioms,
				Idiom{
					Name:    fmt.Sprintf("mul-%s-%s", d.tag, t1),
					Pattern: rules(enter, counter, bc.Loose(d.out), bc.Loose(t1), bc.Loose(d.back), leave),
					Rewrite: multiplyLoop,
				},
				Idiom{
					Name:    fmt.Sprintf("mul-%s-%s-tail", d.tag, t1),
					Pattern: rules(enter, bc.Loose(d.out), bc.Loose(t1), bc.Loose(d.back), counter, leave),
					Rewrite: multiplyLoop,
				},
			)
			for _, t2 := range targets {
				idioms = append(idioms, Idiom{
					Name: fmt.Sprintf("mul2-%s-%s-%s", d.tag, t1, t2),
					Pattern: rules(enter, counter,
						bc.Loose(d.out), bc.Loose(t1),
						bc.Loose(d.out), bc.Loose(t2),
						bc.Loose(d.back), leave),
					Rewrite: multiplyLoop,
				})
			}
		}
	}
	return idioms
}
