package compiler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ashlang/ashc/internal/scanner"
)

func compileSource(t *testing.T, src string, opts Options) (Result, error) {
	t.Helper()
	toks, err := scanner.New(src, 0).ScanAll()
	require.NoError(t, err)
	d := NewDriver(zerolog.Nop())
	return d.Compile(toks, []string{"test"}, opts)
}

func TestCompileEmptySourceProducesEmptyImage(t *testing.T) {
	res, err := compileSource(t, "", Options{})
	require.NoError(t, err)
	require.Empty(t, res.Image.Code)
	require.Empty(t, res.Diagnostics)
}

func TestCompileForwardReferenceResolvesAcrossPasses(t *testing.T) {
	res, err := compileSource(t, "void f() { g(); } void g() { }", Options{})
	require.NoError(t, err)
	require.Greater(t, len(res.Image.Code), 0)
}

func TestCompileUnresolvedCallProducesCompileError(t *testing.T) {
	_, err := compileSource(t, "void f() { g(); }", Options{})
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, SeverityUserError, ce.Diagnostic.Severity)
	require.Contains(t, ce.Diagnostic.Message, "g")
}

func TestCompileDuplicateIncompatibleSignatureFails(t *testing.T) {
	_, err := compileSource(t, "int f(int a); int f(int a, int b) { return 0; }", Options{})
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
}

func TestCompileExplicitExportPopulatesExportTable(t *testing.T) {
	res, err := compileSource(t, "void f() { } export f;", Options{})
	require.NoError(t, err)
	require.Len(t, res.Image.Exports, 1)
	require.Equal(t, "f", res.Image.Exports[0].Name)
}

func TestCompileExportAllExportsEveryTopLevelFunctionAndGlobal(t *testing.T) {
	res, err := compileSource(t, "void f() { } int g = 1;", Options{ExportAll: true})
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range res.Image.Exports {
		names[e.Name] = true
	}
	require.True(t, names["f"])
	require.True(t, names["g"])
}

func TestCompileWithoutExportAllOrClauseExportsNothing(t *testing.T) {
	res, err := compileSource(t, "void f() { }", Options{})
	require.NoError(t, err)
	require.Empty(t, res.Image.Exports)
}

func TestCompileGlobalVariableInitializerEmitsCode(t *testing.T) {
	res, err := compileSource(t, "int x = 5;", Options{})
	require.NoError(t, err)
	require.Greater(t, len(res.Image.Code), 0)
}

func TestCompileStructDeclarationWithMethodsEndToEnd(t *testing.T) {
	res, err := compileSource(t, "struct Point { attribute int x; } void f() { }", Options{})
	require.NoError(t, err)
	require.Greater(t, len(res.Image.Functions), 0)
}
