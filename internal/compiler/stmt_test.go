package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashlang/ashc/internal/image"
	"github.com/ashlang/ashc/internal/scanner"
	"github.com/ashlang/ashc/internal/token"
)

func hasOpcode(code []image.Cell, op image.Opcode) bool {
	for _, cell := range code {
		if image.Opcode(cell) == op {
			return true
		}
	}
	return false
}

func TestParseIfEmitsConditionalJumpAndAssignsInBranch(t *testing.T) {
	c := declTestCompiler(t, "void f() { int x; if (x) { x = 2; } }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpJZ))
	require.True(t, hasOpcode(code, image.OpMemWrite))
}

func TestParseIfElseCompilesBothBranches(t *testing.T) {
	c := declTestCompiler(t, "void f() { int x; if (x) { x = 1; } else { x = 2; } }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpJZ))
	require.True(t, hasOpcode(code, image.OpJMP))
}

func TestParseWhileLoopEmitsBackEdgeJump(t *testing.T) {
	c := declTestCompiler(t, "void f() { int x; while (x) { x = 0; } }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpJZ))
	require.True(t, hasOpcode(code, image.OpJMP))
}

func TestParseDoWhileCompilesBodyBeforeCondition(t *testing.T) {
	c := declTestCompiler(t, "void f() { int x; do { x = 1; } while (x); }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpJNZ))
}

func TestParseForLoopWithEmptyClausesCompilesAndBreaksOut(t *testing.T) {
	c := declTestCompiler(t, "void f() { for (;;) { break; } }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpJMP))
}

func TestParseForLoopWithConditionYanksStepChunk(t *testing.T) {
	c := declTestCompiler(t, "void f() { int i; for (; i; ) { break; } }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpJZ))
	require.True(t, hasOpcode(code, image.OpJMP))
}

func TestParseForLoopWithAssignmentStepYanksAssignChunk(t *testing.T) {
	c := declTestCompiler(t, "int f() { int s; int i; for (i = 0; i < 3; i = i + 1) { s = s + i; } return s; }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpJZ))
	require.True(t, hasOpcode(code, image.OpMemWrite))
}

func TestParsePostfixIncrementReadsThenWrites(t *testing.T) {
	c := declTestCompiler(t, "void f() { int i; i++; }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpMemRead))
	require.True(t, hasOpcode(code, image.OpMemWrite))
}

func TestParsePrefixDecrementReadsThenWrites(t *testing.T) {
	c := declTestCompiler(t, "void f() { int i; --i; }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpMemRead))
	require.True(t, hasOpcode(code, image.OpMemWrite))
}

func TestParseSwitchCaseAndDefaultCompile(t *testing.T) {
	c := declTestCompiler(t, "void f() { int x; switch (x) { case 1: x = 1; break; default: x = 2; } }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpIsEqual))
}

func TestParseBreakOutsideLoopOrSwitchFails(t *testing.T) {
	c := declTestCompiler(t, "break;")
	require.Panics(t, func() { c.ParseStatement() })
}

func TestParseContinueOutsideLoopFails(t *testing.T) {
	c := declTestCompiler(t, "continue;")
	require.Panics(t, func() { c.ParseStatement() })
}

func TestParseBreakInsideSwitchIsAllowedButContinueIsNot(t *testing.T) {
	c := declTestCompiler(t, "void f() { int x; switch (x) { case 1: continue; } }")
	require.Panics(t, func() { c.ParseTopLevelDeclaration() })
}

func TestParseBreakFreesDynpointerLocalsInUnwoundFrame(t *testing.T) {
	c := declTestCompiler(t, "struct Point { int a; }")
	c.ParseTopLevelDeclaration()

	toks, err := scanner.New("void f() { for (;;) { Point* p; break; } }", 0).ScanAll()
	require.NoError(t, err)
	c.stream = token.NewStream(toks, []string{"test"})
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpMemZeroPtr))
	require.True(t, hasOpcode(code, image.OpSubRealStack))
}

func TestBlockExitRestoresShadowedOuterDeclaration(t *testing.T) {
	c := declTestCompiler(t, "int f() { int x; { int x; } return x; }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	offset := image.Cell(-1)
	for i, cell := range code {
		if image.Opcode(cell) == image.OpLoadSPOffs {
			offset = code[i+1]
		}
	}
	require.EqualValues(t, 0, offset, "return x must read the outer x's slot, not the shadowed inner one")
}

func TestMissingReturnWarningSuppressedWhenFunctionAlwaysReturns(t *testing.T) {
	c := declTestCompiler(t, "int f() { return 1; }")
	c.ParseTopLevelDeclaration()
	require.Empty(t, c.Diagnostics())
}

func TestMissingReturnWarningFiresWhenFunctionMayFallThrough(t *testing.T) {
	c := declTestCompiler(t, "int f() { int x; }")
	c.ParseTopLevelDeclaration()
	require.Len(t, c.Diagnostics(), 1)
	require.Equal(t, SeverityWarning, c.Diagnostics()[0].Severity)
}

func TestParseReturnEmitsPushAndRet(t *testing.T) {
	c := declTestCompiler(t, "int f() { return 5; }")
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpPushReg))
	require.True(t, hasOpcode(code, image.OpRet))
}

func TestParseExpressionStatementCompilesBareCall(t *testing.T) {
	c := declTestCompiler(t, "void f() { g(); }")
	c.symbols.MakeFunction("g", 0, 0, 0, FunctionInfo{
		Params: []Param{{Vartype: c.voidType()}}, State: FwdNone, ImportIndex: -1,
	})
	c.ParseTopLevelDeclaration()

	code := c.builder.Image().Code
	require.True(t, hasOpcode(code, image.OpCall))
}

func TestFindTopLevelAssignmentIgnoresNestedBracketContent(t *testing.T) {
	c := declTestCompiler(t, "a[i = 1] = 2")
	pos, kind, ok := c.findTopLevelAssignment()
	require.True(t, ok)
	require.Equal(t, token.TKAssign, kind)
	// the top-level '=' is the second one in source order, not the one
	// inside the index expression.
	require.Greater(t, pos, 4)
}

func TestFindTopLevelAssignmentReportsNoneForPlainExpression(t *testing.T) {
	c := declTestCompiler(t, "f(1, 2);")
	_, _, ok := c.findTopLevelAssignment()
	require.False(t, ok)
}

func TestLooksLikeLocalVarDeclRequiresVartypeNameFollowedByIdentifier(t *testing.T) {
	c := declTestCompiler(t, "int x;")
	require.True(t, c.looksLikeLocalVarDecl())
	require.Equal(t, 0, c.stream.GetCursor())

	c2 := declTestCompiler(t, "x = 1;")
	require.False(t, c2.looksLikeLocalVarDecl())
}
