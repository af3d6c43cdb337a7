package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashlang/ashc/internal/image"
)

func sampleImage() image.Image {
	return image.Image{
		Code:    []image.Cell{image.Cell(image.OpLitToReg), 5, image.Cell(image.OpRet)},
		Imports: []string{"", "puts^1"},
		Exports: []image.ExportEntry{{Name: "f", Offset: 0, ArityEncode: 0}},
		Functions: []image.FunctionEntry{
			{Name: "f", CodeOffset: 0, ParamCount: 0},
		},
	}
}

func TestWriteImageProducesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.ashc")
	require.NoError(t, writeImage(sampleImage(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestWriteImageFailsOnUnwritablePath(t *testing.T) {
	err := writeImage(sampleImage(), filepath.Join(t.TempDir(), "missing-dir", "out.ashc"))
	require.Error(t, err)
}

func TestPrintDisassemblyWritesCodeFixupsAndTables(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = old }()

	printDisassembly(sampleImage())
	w.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	os.Stdout = old

	s := string(out)
	require.Contains(t, s, "; code (3 cells)")
	require.Contains(t, s, "; import[1] = puts^1")
	require.Contains(t, s, "; export f @ 0")
	require.Contains(t, s, "; function f @ 0")
}
