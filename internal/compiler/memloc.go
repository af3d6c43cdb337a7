package compiler

import "github.com/ashlang/ashc/internal/image"

// memloc.go implements the Memory-Location Accumulator (spec.md §3,
// §5): a value describing where a memory operand lives (Global,
// Import, Local, or None/register-resident) that the Access-Data
// Subsystem builds up clause by clause, and that only materialises an
// OpLoadSPOffs/MAR-set instruction lazily, the first time an
// instruction actually needs to dereference through MAR — repeated
// component accesses accumulate an offset instead of re-emitting a
// MAR load per clause. Grounded on the teacher's address-computation
// helper (vida/gen.go's inline "base register + running offset"
// pattern used while walking a chain of index/field accesses)
// generalised into its own type per spec.md §9.
type MemScope int

const (
	MemNone MemScope = iota
	MemGlobal
	MemLocal
	MemImport
)

// MemoryLocation accumulates a base scope and a running byte/cell
// offset while an Access-Data clause chain is walked, only emitting
// the MAR-materialising instruction once, right before it is needed
// (SetStart records the base, AddComponentOffset folds in each
// further clause's static offset, MakeMARCurrent emits the load if
// the tracked register state doesn't already prove MAR holds it).
type MemoryLocation struct {
	scope      MemScope
	baseSymbol Symbol // the Variable/global/import symbol this location is rooted at
	offset     int    // accumulated static offset in Cells from baseSymbol's start
	dynamic    bool   // true once a non-constant index has been folded in (offset is then only a partial static component)
	marCurrent bool   // true once MakeMARCurrent has materialised the address and nothing has invalidated it since
}

// NewMemoryLocation returns a location in the None state.
func NewMemoryLocation() *MemoryLocation {
	return &MemoryLocation{}
}

// SetStart roots the location at a Variable symbol's declared scope
// and offset (spec.md §3 "set_start").
func (c *Compiler) SetStart(loc *MemoryLocation, varSym Symbol) {
	e := c.symbols.Entry(varSym)
	if e == nil || e.Variable == nil {
		c.internal(c.currentLine, "SetStart: %v is not a variable", varSym)
	}
	loc.scope = memScopeOf(e.Variable.Scope)
	loc.baseSymbol = varSym
	loc.offset = e.Variable.Offset
	loc.dynamic = false
	loc.marCurrent = false
}

func memScopeOf(s ScopeType) MemScope {
	switch s {
	case ScopeGlobal:
		return MemGlobal
	case ScopeLocal:
		return MemLocal
	case ScopeImport:
		return MemImport
	default:
		return MemNone
	}
}

// AddComponentOffset folds a further struct-member or fixed-index
// offset into the accumulated location without emitting any code
// (spec.md §3 "add_component_offset").
func (loc *MemoryLocation) AddComponentOffset(delta int) {
	loc.offset += delta
	loc.marCurrent = false
}

// MarkDynamic records that a subsequent clause used a non-constant
// index (e.g. `a[i]` with a runtime i) — its runtime displacement has
// already been added into MAR by the caller's emitted code, so the
// static offset tracked here starts over from zero relative to that point.
func (loc *MemoryLocation) MarkDynamic() {
	loc.dynamic = true
	loc.offset = 0
	loc.marCurrent = false
}

// Reset returns the location to the None state (spec.md §3 "reset").
func (loc *MemoryLocation) Reset() {
	*loc = MemoryLocation{}
}

// contentKey names what MAR would hold if materialised, used against
// the RegisterTracker to elide a redundant reload.
func (loc *MemoryLocation) contentKey() string {
	key := "mem:" + scopeLetter(loc.scope) + ":" + itoa(int(loc.baseSymbol)) + "+" + itoa(loc.offset)
	if loc.dynamic {
		key += ":dyn"
	}
	return key
}

func scopeLetter(s MemScope) string {
	switch s {
	case MemGlobal:
		return "g"
	case MemLocal:
		return "l"
	case MemImport:
		return "i"
	default:
		return "?"
	}
}

// MakeMARCurrent emits whatever instruction is needed so MAR holds
// loc's address, skipping emission entirely if the RegisterTracker
// already proves it does (spec.md §3 "make_mar_current", §5
// redundant-reload elision). Global/local bases load an immediate
// stack-pointer-relative or absolute offset via OpLoadSPOffs; import
// bases go through the pending Call-Point-managed import fixup
// instead, so MakeMARCurrent is a no-op for MemImport (the caller
// resolves those through access.go's import-access path).
func (c *Compiler) MakeMARCurrent(loc *MemoryLocation) {
	if loc.scope == MemNone || loc.scope == MemImport {
		return
	}
	key := loc.contentKey()
	if c.regs.IsValid(RegMAR, key) {
		loc.marCurrent = true
		return
	}
	at := c.builder.Emit(image.OpLoadSPOffs, image.Cell(loc.offset))
	if loc.scope == MemGlobal {
		c.builder.AddFixup(at+1, image.FixupGlobalData)
	}
	c.regs.Set(RegMAR, key)
	loc.marCurrent = true
}
