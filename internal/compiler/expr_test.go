package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashlang/ashc/internal/scanner"
	"github.com/ashlang/ashc/internal/token"
)

func exprTestCompiler(t *testing.T, src string) (*Compiler, token.Range) {
	t.Helper()
	toks, err := scanner.New(src, 0).ScanAll()
	require.NoError(t, err)
	// drop the trailing EOF token from the expression's own range.
	n := len(toks) - 1
	c := &Compiler{
		stream:  token.NewStream(toks, []string{"test"}),
		symbols: NewSymbolTable(),
		builder: NewBuilder(),
		regs:    NewRegisterTracker(),
		nesting: NewNestingStack(),
		memloc:  NewMemoryLocation(),
	}
	c.installBuiltins()
	return c, token.Range{Start: 0, Length: n}
}

func TestEvalExpressionFoldsConstantArithmetic(t *testing.T) {
	c, r := exprTestCompiler(t, "2 + 3 * 4")
	res := c.EvalExpression(r)
	require.NotEqual(t, NoSymbol, res.Literal)
	lit := c.symbols.Entry(res.Literal).Literal
	require.EqualValues(t, 14, lit.IntValue)
	require.Equal(t, 0, c.builder.CodeSize(), "a fully constant expression should emit no code")
}

func TestEvalExpressionFoldsComparison(t *testing.T) {
	c, r := exprTestCompiler(t, "2 < 3")
	res := c.EvalExpression(r)
	require.NotEqual(t, NoSymbol, res.Literal)
	require.EqualValues(t, 1, c.symbols.Entry(res.Literal).Literal.IntValue)
}

func TestEvalExpressionHonoursParentheses(t *testing.T) {
	c, r := exprTestCompiler(t, "(2 + 3) * 4")
	res := c.EvalExpression(r)
	require.EqualValues(t, 20, c.symbols.Entry(res.Literal).Literal.IntValue)
}

func TestEvalExpressionEmitsArithmeticForNonLiteralOperand(t *testing.T) {
	c, r := exprTestCompiler(t, "2 + x")
	c.symbols.MakeVariable("x", 0, 0, 0, VariableInfo{Vartype: c.intType(), Scope: ScopeGlobal, Offset: 0})
	res := c.EvalExpression(r)
	require.Equal(t, NoSymbol, res.Literal)
	require.Greater(t, c.builder.CodeSize(), 0)
}

func TestFloatBitsToCellReinterpretsFloat32Bits(t *testing.T) {
	require.EqualValues(t, 0x3F800000, floatBitsToCell(1.0))
	require.EqualValues(t, 0x3F000000, floatBitsToCell(0.5))
}

func TestTokenOperatorNameCoversAllTableEntries(t *testing.T) {
	require.Equal(t, "+", tokenOperatorName(token.TKPlus))
	require.Equal(t, ">=", tokenOperatorName(token.TKGte))
	require.Equal(t, "<<", tokenOperatorName(token.TKShl))
}

func TestEvalUnaryMinusOnVariable(t *testing.T) {
	c, r := exprTestCompiler(t, "-x")
	c.symbols.MakeVariable("x", 0, 0, 0, VariableInfo{Vartype: c.intType(), Scope: ScopeGlobal, Offset: 0})
	res := c.EvalExpression(r)
	require.Equal(t, NoSymbol, res.Literal)
	require.Greater(t, c.builder.CodeSize(), 0)
}
