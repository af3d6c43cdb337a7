package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashlang/ashc/internal/image"
)

func makeIntLiteral(c *Compiler, v int64) Symbol {
	return c.symbols.MakeLiteral("", 0, 0, LiteralInfo{IntValue: v})
}

func makeFloatLiteral(c *Compiler, v float64) Symbol {
	return c.symbols.MakeLiteral("", 0, 0, LiteralInfo{IsFloat: true, FloatValue: v})
}

func TestTryFoldIntegerAddition(t *testing.T) {
	c := newTestCompilerWithSymbols()
	op := c.symbols.MakeOperator("+", OperatorInfo{Fold: foldAdd})
	lhs, rhs := makeIntLiteral(c, 2), makeIntLiteral(c, 3)

	sym, ok := c.TryFold(op, lhs, rhs)
	require.True(t, ok)
	require.EqualValues(t, 5, c.symbols.Entry(sym).Literal.IntValue)
}

func TestTryFoldPromotesToFloatWhenEitherOperandIsFloat(t *testing.T) {
	c := newTestCompilerWithSymbols()
	op := c.symbols.MakeOperator("*", OperatorInfo{Fold: foldMul})
	lhs, rhs := makeIntLiteral(c, 2), makeFloatLiteral(c, 1.5)

	sym, ok := c.TryFold(op, lhs, rhs)
	require.True(t, ok)
	lit := c.symbols.Entry(sym).Literal
	require.True(t, lit.IsFloat)
	require.InDelta(t, 3.0, lit.FloatValue, 0.0001)
}

func TestTryFoldDivisionByZeroDefersToRuntime(t *testing.T) {
	c := newTestCompilerWithSymbols()
	op := c.symbols.MakeOperator("/", OperatorInfo{Fold: foldDiv})
	lhs, rhs := makeIntLiteral(c, 4), makeIntLiteral(c, 0)

	_, ok := c.TryFold(op, lhs, rhs)
	require.False(t, ok)
}

func TestTryFoldComparisonProducesBooleanAsInt(t *testing.T) {
	c := newTestCompilerWithSymbols()
	op := c.symbols.MakeOperator("<", OperatorInfo{Fold: foldLt})
	lhs, rhs := makeIntLiteral(c, 2), makeIntLiteral(c, 3)

	sym, ok := c.TryFold(op, lhs, rhs)
	require.True(t, ok)
	require.EqualValues(t, 1, c.symbols.Entry(sym).Literal.IntValue)
}

func TestTryFoldFailsForOperatorWithoutFoldFunc(t *testing.T) {
	c := newTestCompilerWithSymbols()
	op := c.symbols.MakeOperator("&&", OperatorInfo{})
	lhs, rhs := makeIntLiteral(c, 1), makeIntLiteral(c, 0)

	_, ok := c.TryFold(op, lhs, rhs)
	require.False(t, ok)
}

func TestTryFoldFailsWhenOperandIsNotALiteral(t *testing.T) {
	c := newTestCompilerWithSymbols()
	op := c.symbols.MakeOperator("+", OperatorInfo{Fold: foldAdd})
	notLiteral := c.symbols.MakeVariable("x", 0, 0, 0, VariableInfo{})
	rhs := makeIntLiteral(c, 1)

	_, ok := c.TryFold(op, notLiteral, rhs)
	require.False(t, ok)
}

func TestSaveRestorePointDiscardsSpeculativeEmission(t *testing.T) {
	c := newTestCompiler()
	c.builder.Emit(image.OpLitToReg, 0, 1)
	rp := c.SaveRestorePoint()
	c.builder.Emit(image.OpAdd, 0, 1)
	c.regs.Set(RegAX, "speculative")

	c.Discard(rp)
	require.Equal(t, 3, c.builder.CodeSize())
	require.False(t, c.regs.IsValid(RegAX, "speculative"))
}
