package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashlang/ashc/internal/image"
)

func TestBuilderEmitAndSizes(t *testing.T) {
	b := NewBuilder()
	at := b.Emit(image.OpLitToReg, 0, 5)
	require.Equal(t, 0, at)
	require.Equal(t, 3, b.CodeSize())
}

func TestBuilderTruncateToDiscardsSpeculativeEmission(t *testing.T) {
	b := NewBuilder()
	b.Emit(image.OpLitToReg, 0, 5)
	codeSize, fixupSize := b.CodeSize(), b.FixupSize()
	b.Emit(image.OpAdd, 0, 1)
	b.AddFixup(3, image.FixupCode)
	b.TruncateTo(codeSize, fixupSize)
	require.Equal(t, codeSize, b.CodeSize())
	require.Equal(t, fixupSize, b.FixupSize())
}

func TestBuilderPatchOperand(t *testing.T) {
	b := NewBuilder()
	b.Emit(image.OpJMP, -1)
	b.PatchOperand(1, 42)
	require.Equal(t, image.Cell(42), b.Slice(0, 2)[1])
}

func TestBuilderInternStringDeduplicates(t *testing.T) {
	b := NewBuilder()
	off1 := b.InternString("hello")
	off2 := b.InternString("hello")
	off3 := b.InternString("world")
	require.Equal(t, off1, off2)
	require.NotEqual(t, off1, off3)
	require.Equal(t, byte(0), b.strings[off1+len("hello")])
}

func TestBuilderInternImportAndPrune(t *testing.T) {
	b := NewBuilder()
	idx := b.InternImport("puts", 1)
	idx2 := b.InternImport("puts", 1)
	require.Equal(t, idx, idx2)
	b.PruneImport(idx)
	require.Equal(t, "", b.imports[idx])
	newIdx := b.InternImport("puts", 1)
	require.NotEqual(t, idx, newIdx)
}

func TestBuilderReserveLocalAndResetLocalBlock(t *testing.T) {
	b := NewBuilder()
	off1 := b.ReserveLocal(2)
	off2 := b.ReserveLocal(3)
	require.Equal(t, 0, off1)
	require.Equal(t, 2, off2)
	require.Equal(t, 5, b.LocalBlockSize())
	b.ResetLocalBlock()
	require.Equal(t, 0, b.LocalBlockSize())
}

func TestBuilderAppendGlobalZeroFills(t *testing.T) {
	b := NewBuilder()
	off := b.AppendGlobal(3)
	require.Equal(t, 0, off)
	require.Equal(t, []image.Cell{0, 0, 0}, b.globals)
}

func TestBuilderImageReflectsAllBuffers(t *testing.T) {
	b := NewBuilder()
	b.Emit(image.OpRet)
	b.AddExport("main", 0, 0)
	b.AddFunction("main", 0, 0)
	img := b.Image()
	require.Len(t, img.Code, 1)
	require.Len(t, img.Exports, 1)
	require.Len(t, img.Functions, 1)
}
