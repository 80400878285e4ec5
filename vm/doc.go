// Package vm executes mlbf bytecode.
//
// This package contains:
//   - Machine, a tape interpreter for naive and optimized programs
//   - EOF policies for the IN instruction
//   - Profiler, per-instruction execution counts for hot loop reports
package vm
