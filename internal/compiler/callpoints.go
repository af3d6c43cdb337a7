package compiler

import "github.com/ashlang/ashc/internal/image"

// callpoints.go implements the Call-Point Manager (spec.md §3, §4.2):
// two instances are used, one tracking calls to local functions
// (patched once the callee's body is compiled and its code offset is
// known) and one tracking calls to imports (patched once the import
// table index is assigned). Grounded on the teacher's forward-call
// bookkeeping (vida/gen.go's compiler tracks call sites needing a
// later address patch when a function is called before its
// definition is reached) generalised into a reusable component used
// twice, per spec.md §9 "duplicated forward-reference bookkeeping ->
// one generic Call-Point Manager type, instantiated twice".
type CallPointManager struct {
	// pending maps a callee's Symbol to the list of code offsets of
	// not-yet-patched call operands.
	pending map[Symbol][]int
	// resolved records callee keys whose target address is already
	// known, so late Track calls can be patched immediately instead of queueing.
	resolved map[Symbol]image.Cell
}

func NewCallPointManager() *CallPointManager {
	return &CallPointManager{
		pending:  make(map[Symbol][]int),
		resolved: make(map[Symbol]image.Cell),
	}
}

// Track records a call-site operand offset for callee. If callee's
// address is already resolved, the caller should patch immediately
// via Resolved instead of calling Track — Track is only for the
// forward-reference case.
func (m *CallPointManager) Track(callee Symbol, operandOffset int) {
	m.pending[callee] = append(m.pending[callee], operandOffset)
}

// Resolved reports whether callee's target address is already known,
// returning it if so.
func (m *CallPointManager) Resolved(callee Symbol) (image.Cell, bool) {
	addr, ok := m.resolved[callee]
	return addr, ok
}

// SetCallPoint records that callee now resolves to addr, patching
// every previously tracked pending call site to addr immediately
// (spec.md §4.2 "set_callpoint").
func (c *Compiler) SetCallPoint(m *CallPointManager, callee Symbol, addr image.Cell) {
	m.resolved[callee] = addr
	for _, off := range m.pending[callee] {
		c.builder.PatchOperand(off, addr)
	}
	delete(m.pending, callee)
}

// UpdateOnYanking shifts every pending call-site offset that falls
// within [start, start+length) by -start (the offsets are now
// relative to the yanked chunk) and every offset at or after
// start+length by -length (the code that followed the yanked region
// slid down). Offsets before start are untouched. This keeps a Call-
// Point Manager consistent when NestingStack.YankChunk cuts code out
// from under it (spec.md §4.2 "update_on_yanking").
func (m *CallPointManager) UpdateOnYanking(start, length int) map[Symbol][]int {
	yanked := make(map[Symbol][]int)
	for callee, offsets := range m.pending {
		kept := offsets[:0]
		for _, off := range offsets {
			switch {
			case off >= start && off < start+length:
				yanked[callee] = append(yanked[callee], off-start)
			case off >= start+length:
				kept = append(kept, off-length)
			default:
				kept = append(kept, off)
			}
		}
		if len(kept) == 0 {
			delete(m.pending, callee)
		} else {
			m.pending[callee] = kept
		}
	}
	return yanked
}

// UpdateOnWriting re-inserts call-site offsets previously removed by
// UpdateOnYanking, rebasing them from chunk-relative back to absolute
// now that the chunk is being re-emitted at base (spec.md §4.2
// "update_on_writing").
func (m *CallPointManager) UpdateOnWriting(yanked map[Symbol][]int, base int) {
	for callee, offsets := range yanked {
		for _, off := range offsets {
			m.pending[callee] = append(m.pending[callee], base+off)
		}
	}
}

// CheckForUnresolved returns the callees that never got a
// SetCallPoint, for the driver's final-checks pass to report as
// undefined-function errors (spec.md §4.2 "check_for_unresolved").
func (m *CallPointManager) CheckForUnresolved() []Symbol {
	var out []Symbol
	for callee := range m.pending {
		out = append(out, callee)
	}
	return out
}
