// Package optimizer rewrites a naive program into a denser one by finding
// idioms with bytecode.Program.MatchSequence and replacing them in place.
package optimizer

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/chazu/mlbf/pkg/bytecode"
)

var log = commonlog.GetLogger("mlbf.optimizer")

// ErrReplacementTooLong is returned when an idiom produces more
// instructions than it matched.
var ErrReplacementTooLong = errors.New("replacement longer than matched span")

// Rewrite builds the replacement for the real instructions of a match.
// Returning false rejects the match and leaves the program alone.
type Rewrite func(matched []bytecode.Instruction) ([]bytecode.Instruction, bool)

// Idiom is a named pattern and the rewrite applied when it matches.
type Idiom struct {
	Name    string
	Pattern []bytecode.PatternRule
	Rewrite Rewrite
}

// Pass is an ordered list of idioms applied across the whole program.
// Earlier idioms win when several match at the same position.
type Pass struct {
	Name   string
	Idioms []Idiom
}

// Options controls which passes run.
type Options struct {
	// Level 0 only links branches; level 1 and above run every pass.
	Level int

	// Passes restricts optimization to the named passes. Empty means all.
	Passes []string
}

// Stats summarizes an optimization run.
type Stats struct {
	Before  int            // real instructions before optimizing
	After   int            // real instructions after optimizing
	Applied map[string]int // "pass/idiom" -> number of rewrites
}

// Total returns the number of rewrites applied.
func (s *Stats) Total() int {
	n := 0
	for _, c := range s.Applied {
		n += c
	}
	return n
}

// Keys returns the applied idiom keys in sorted order.
func (s *Stats) Keys() []string {
	keys := make([]string, 0, len(s.Applied))
	for k := range s.Applied {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Optimize runs the selected passes over p and relinks its branches.
func Optimize(p *bytecode.Program, opts Options) (*Stats, error) {
	stats := &Stats{
		Before:  p.RealLen(),
		Applied: make(map[string]int),
	}

	if opts.Level > 0 {
		for _, pass := range DefaultPasses() {
			if len(opts.Passes) > 0 && !slices.Contains(opts.Passes, pass.Name) {
				continue
			}
			if err := RunPass(p, pass, stats); err != nil {
				return nil, fmt.Errorf("pass %s: %w", pass.Name, err)
			}
		}
	}

	if err := p.Link(); err != nil {
		return nil, err
	}

	stats.After = p.RealLen()
	log.Debugf("optimized %d -> %d instructions with %d rewrites", stats.Before, stats.After, stats.Total())
	return stats, nil
}

// RunPass applies pass at every position of p. After a rewrite the same
// position is tried again so chains like a run of ADD_V collapse fully.
func RunPass(p *bytecode.Program, pass Pass, stats *Stats) error {
	rewrites := 0
	for pos := 0; pos < p.Len(); {
		applied, err := applyAt(p, pass, pos, stats)
		if err != nil {
			return err
		}
		if applied {
			rewrites++
			continue
		}
		pos++
	}

	log.Debugf("pass %s: %d rewrites", pass.Name, rewrites)
	return nil
}

// applyAt tries each idiom of pass at pos and applies the first that fits.
func applyAt(p *bytecode.Program, pass Pass, pos int, stats *Stats) (bool, error) {
	for _, idiom := range pass.Idioms {
		span := p.MatchSequence(idiom.Pattern, pos)
		if span == 0 {
			continue
		}

		repl, ok := idiom.Rewrite(p.Collect(pos, span))
		if !ok {
			continue
		}
		if len(repl) > span {
			return false, fmt.Errorf("%w: %s produced %d for %d slots", ErrReplacementTooLong, idiom.Name, len(repl), span)
		}

		if err := p.Substitute(pos, bytecode.Pad(repl, span)); err != nil {
			if errors.Is(err, bytecode.ErrOutOfRange) {
				// The span touches the last instruction; skip this opportunity.
				continue
			}
			return false, err
		}

		if stats != nil {
			stats.Applied[pass.Name+"/"+idiom.Name]++
		}
		return true, nil
	}
	return false, nil
}
