// Package compiler implements the two-phase, single-linear-walk
// compiler: it consumes a pre-tokenised token stream produced by an
// external Scanner and emits a portable stack-based bytecode Image
// for a companion virtual machine (both the Scanner and the VM are
// out of scope here). See SPEC_FULL.md for the full module map.
//
// Generalised from the teacher's free-function, package-level-state
// style (vida/gen.go's compiler struct with unexported globals) into
// a single driver-owned Compiler struct whose fields are the
// sub-components spec.md §9 names explicitly ("Global mutable state
// -> driver-owned context"): every pass-local subsystem is a field,
// never a package-level variable.
package compiler

import "github.com/ashlang/ashc/internal/token"

// Compiler is the driver-owned context threaded through every parsing
// and emission function. Driver.Compile uses one Compiler for both
// passes: between the pre-analyse and main passes it resets the symbol
// table in place and replaces the builder, register tracker and
// nesting stack, so that Symbol ids interned during pre-analyse remain
// valid (spec.md §4, §9).
type Compiler struct {
	stream   *token.Stream
	symbols  *SymbolTable
	builder  *Builder
	regs     *RegisterTracker
	nesting  *NestingStack
	localCP  *CallPointManager
	importCP *CallPointManager
	memloc   *MemoryLocation

	opts Options

	// currentSection/currentLine track the token position most
	// recently consumed, for diagnostics raised mid-production before
	// a more specific line is known.
	currentSection int
	currentLine    int

	sectionNames []string
	diagnostics  []Diagnostic

	// pass distinguishes pre-analyse from the main emission pass; a
	// handful of productions (forward function declarations, struct
	// member registration) behave differently in each (spec.md §4).
	pass Pass

	// scopeDepth is stamped onto the SymbolEntries the declaration
	// parsers create (parameter names get scopeDepth+1). Nothing in
	// this package changes it, so it stays 0; NestingStack pushes and
	// pops do not touch it.
	scopeDepth int

	currentFunction Symbol // NoSymbol at file scope
	thisType        Symbol // NoSymbol outside a struct method body
	thisParam       Symbol // the receiver's synthetic Variable symbol, NoSymbol outside a method body

	builtins builtinTypes

	// explicitExports lists symbols named by an `export` clause,
	// exported regardless of Options.ExportAll (spec.md §4 "export
	// table population").
	explicitExports []Symbol
}

// Pass identifies which of the two compiler passes is running.
type Pass int

const (
	PassPreAnalyse Pass = iota
	PassMain
)

// Options bundles the compile-time knobs spec.md §6 names plus the
// ambient ones SPEC_FULL.md §2.4 adds (logging/session correlation
// live on Driver, not here, since they are not compile semantics).
type Options struct {
	ExportAll        bool
	NoImportOverride bool
	OldStrings       bool
}

func (c *Compiler) sectionName(id int) string {
	if id >= 0 && id < len(c.sectionNames) {
		return c.sectionNames[id]
	}
	return "<unknown>"
}

// Diagnostics returns every Warning accumulated so far, in emission order.
func (c *Compiler) Diagnostics() []Diagnostic {
	return c.diagnostics
}
