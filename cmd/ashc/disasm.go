package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/ashlang/ashc/internal/image"
)

// printDisassembly renders an Image the way a developer debugging the
// compiler wants to see it: one line per code cell, opcodes annotated
// with their operand count, followed by the fixup, global, string,
// import, export and function tables. There is no companion VM in this
// module (spec.md §1) to load the Image, so this is the only way to
// inspect one.
func printDisassembly(img image.Image) {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	fmt.Fprintf(w, "; code (%d cells)\n", len(img.Code))
	for pc := 0; pc < len(img.Code); {
		op := image.Opcode(img.Code[pc])
		n := op.OperandCount()
		fmt.Fprintf(w, "%6d  %-16s", pc, op)
		for i := 1; i <= n && pc+i < len(img.Code); i++ {
			fmt.Fprintf(w, " %d", img.Code[pc+i])
		}
		fmt.Fprintln(w)
		pc += 1 + n
	}

	if len(img.Fixups) > 0 {
		fmt.Fprintf(w, "; fixups (%d)\n", len(img.Fixups))
		for _, f := range img.Fixups {
			fmt.Fprintf(w, "  %6d  %s\n", f.CodeOffset, f.Type)
		}
	}
	if len(img.GlobalData) > 0 {
		fmt.Fprintf(w, "; globals (%d cells)\n", len(img.GlobalData))
	}
	if len(img.Strings) > 0 {
		fmt.Fprintf(w, "; string pool (%d bytes)\n", len(img.Strings))
	}
	for i, imp := range img.Imports {
		if imp == "" {
			continue
		}
		fmt.Fprintf(w, "; import[%d] = %s\n", i, imp)
	}
	for _, e := range img.Exports {
		fmt.Fprintf(w, "; export %s @ %d (arity %d)\n", e.Name, e.Offset, e.ArityEncode)
	}
	for _, f := range img.Functions {
		fmt.Fprintf(w, "; function %s @ %d (%d params)\n", f.Name, f.CodeOffset, f.ParamCount)
	}
}

// writeImage serialises an Image to path in a simple length-prefixed
// binary layout: each section is a uint32 element count followed by
// its elements (code/global cells as int32, the string pool as raw
// bytes, import/export/function tables as length-prefixed records).
// There being no standardised on-disk Image format in scope (spec.md
// §6 defines the in-memory shape only), this is this module's own
// loader-facing encoding.
func writeImage(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	writeCells(w, img.Code)
	writeCells(w, img.GlobalData)
	writeBytes(w, img.Strings)
	binary.Write(w, binary.LittleEndian, uint32(len(img.Imports)))
	for _, s := range img.Imports {
		writeBytes(w, []byte(s))
	}
	binary.Write(w, binary.LittleEndian, uint32(len(img.Exports)))
	for _, e := range img.Exports {
		writeBytes(w, []byte(e.Name))
		binary.Write(w, binary.LittleEndian, int64(e.Offset))
		binary.Write(w, binary.LittleEndian, e.ArityEncode)
	}
	binary.Write(w, binary.LittleEndian, uint32(len(img.Functions)))
	for _, fn := range img.Functions {
		writeBytes(w, []byte(fn.Name))
		binary.Write(w, binary.LittleEndian, int64(fn.CodeOffset))
		binary.Write(w, binary.LittleEndian, int64(fn.ParamCount))
	}
	return w.Flush()
}

func writeCells(w *bufio.Writer, cells []image.Cell) {
	binary.Write(w, binary.LittleEndian, uint32(len(cells)))
	for _, c := range cells {
		binary.Write(w, binary.LittleEndian, int32(c))
	}
}

func writeBytes(w *bufio.Writer, b []byte) {
	binary.Write(w, binary.LittleEndian, uint32(len(b)))
	w.Write(b)
}
