package compiler

import "github.com/ashlang/ashc/internal/image"

// builder.go implements the Compiled-Script Builder (spec.md §3, §6):
// append-only buffers for code, fixups, global data, the string pool,
// imports and exports, plus per-function metadata. Grounded on the
// teacher's single growing bytecode slice (vida/gen.go's
// compiler.chunk []Bytecode, appended to by emitByte/emitBytes)
// generalised to the multi-buffer Image shape spec.md §6 specifies.
type Builder struct {
	code       []image.Cell
	fixups     []image.Fixup
	globals    []image.Cell
	strings    []byte
	stringOffs map[string]int
	imports    []string
	importOffs map[string]int
	exports    []image.ExportEntry
	functions  []image.FunctionEntry

	// localBlockOffset is the running offset, in Cells, of the next
	// local variable slot within the function currently being
	// compiled — spec.md §3 "OffsetToLocalVarBlock".
	localBlockOffset int
}

func NewBuilder() *Builder {
	return &Builder{
		stringOffs: make(map[string]int),
		importOffs: make(map[string]int),
	}
}

// CodeSize returns the current length of the code vector, used both
// as "the address of the next instruction" and as a restore point for
// speculative emission (fold.go) and chunk yanking (nesting.go).
func (b *Builder) CodeSize() int { return len(b.code) }

// FixupSize returns the current length of the fixup table, the other
// half of a restore point.
func (b *Builder) FixupSize() int { return len(b.fixups) }

// Emit appends one opcode cell followed by its operand cells, panics
// (via the caller's internal()) being the caller's responsibility if
// the operand count is wrong — Builder itself just appends.
func (b *Builder) Emit(op image.Opcode, operands ...image.Cell) int {
	at := len(b.code)
	b.code = append(b.code, image.Cell(op))
	b.code = append(b.code, operands...)
	return at
}

// PatchOperand overwrites operand cell at absolute code offset off
// (counted from the start of the code vector, not from an
// instruction's own opcode cell) — used by Call-Point Managers and
// NestingStack jump-fixups to back-patch forward references.
func (b *Builder) PatchOperand(off int, value image.Cell) {
	b.code[off] = value
}

// AddFixup records that the cell at codeOffset needs relocation of
// kind typ at load time.
func (b *Builder) AddFixup(codeOffset int, typ image.FixupType) {
	b.fixups = append(b.fixups, image.Fixup{CodeOffset: codeOffset, Type: typ})
}

// TruncateTo discards every code cell and fixup appended after a
// prior restore point (fold.go's speculative constant folding, and
// NestingStack's chunk yanking both rely on this).
func (b *Builder) TruncateTo(codeSize, fixupSize int) {
	b.code = b.code[:codeSize]
	b.fixups = b.fixups[:fixupSize]
}

// Slice returns a copy of the code cells in [start, end), used when
// yanking a chunk of already-emitted code out of the stream so it can
// be re-emitted later (nesting.go).
func (b *Builder) Slice(start, end int) []image.Cell {
	out := make([]image.Cell, end-start)
	copy(out, b.code[start:end])
	return out
}

// AppendGlobal reserves n Cells in the global-data image, zero-filled,
// returning the offset of the first reserved cell.
func (b *Builder) AppendGlobal(n int) int {
	off := len(b.globals)
	b.globals = append(b.globals, make([]image.Cell, n)...)
	return off
}

// InternString interns s in the string pool (NUL-terminated, per the
// teacher's C-string convention, vida/lexer.go) and returns its byte
// offset, reusing an existing entry for a byte-identical string.
func (b *Builder) InternString(s string) int {
	if off, ok := b.stringOffs[s]; ok {
		return off
	}
	off := len(b.strings)
	b.strings = append(b.strings, s...)
	b.strings = append(b.strings, 0)
	b.stringOffs[s] = off
	return off
}

// InternImport interns name^arityEncoding in the import table,
// returning its index. A later PruneImport call may blank the slot
// without shifting indices already referenced by OpCallExt operands.
func (b *Builder) InternImport(name string, arityEncoded int) int {
	key := encodedImportKey(name, arityEncoded)
	if idx, ok := b.importOffs[key]; ok {
		return idx
	}
	idx := len(b.imports)
	b.imports = append(b.imports, key)
	b.importOffs[key] = idx
	return idx
}

// PruneImport blanks an import slot that turned out to be unused
// (spec.md §4 "final checks: import pruning/blanking") without
// shifting any other index.
func (b *Builder) PruneImport(idx int) {
	if idx >= 0 && idx < len(b.imports) {
		delete(b.importOffs, b.imports[idx])
		b.imports[idx] = ""
	}
}

func encodedImportKey(name string, arityEncoded int) string {
	return name + "^" + itoa(arityEncoded)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// AddExport registers name as exported at offset with the given arity
// encoding (0 for a global variable export).
func (b *Builder) AddExport(name string, offset int, arityEncode int32) {
	b.exports = append(b.exports, image.ExportEntry{Name: name, Offset: offset, ArityEncode: arityEncode})
}

// AddFunction records per-function metadata once a function body has
// been fully emitted.
func (b *Builder) AddFunction(name string, codeOffset, paramCount int) {
	b.functions = append(b.functions, image.FunctionEntry{Name: name, CodeOffset: codeOffset, ParamCount: paramCount})
}

// ReserveLocal advances the local-variable block offset by n Cells
// and returns the offset the reservation starts at (spec.md §3
// "OffsetToLocalVarBlock").
func (b *Builder) ReserveLocal(n int) int {
	off := b.localBlockOffset
	b.localBlockOffset += n
	return off
}

// ResetLocalBlock is called at the start of every function body.
func (b *Builder) ResetLocalBlock() { b.localBlockOffset = 0 }

// ShrinkLocalBlock reverses n Cells' worth of a prior ReserveLocal,
// called when a block's locals go out of scope so that a sibling
// block declared afterwards reuses the freed offsets rather than
// growing the frame unboundedly (spec.md §4.10, grounded on the same
// compile-time bookkeeping the original compiler's
// OffsetToLocalVarBlock -= size_of_local_vars performs on block exit).
func (b *Builder) ShrinkLocalBlock(n int) { b.localBlockOffset -= n }

// LocalBlockSize returns how many Cells the current function's locals
// occupy so far.
func (b *Builder) LocalBlockSize() int { return b.localBlockOffset }

// Image finalises and returns the built Image.
func (b *Builder) Image() image.Image {
	return image.Image{
		Code:       b.code,
		Fixups:     b.fixups,
		GlobalData: b.globals,
		Strings:    b.strings,
		Imports:    b.imports,
		Exports:    b.exports,
		Functions:  b.functions,
	}
}
