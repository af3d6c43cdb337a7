package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashlang/ashc/internal/scanner"
	"github.com/ashlang/ashc/internal/token"
)

func accessTestCompiler(t *testing.T, src string) (*Compiler, token.Range) {
	t.Helper()
	toks, err := scanner.New(src, 0).ScanAll()
	require.NoError(t, err)
	n := len(toks) - 1
	c := &Compiler{
		stream:   token.NewStream(toks, []string{"test"}),
		symbols:  NewSymbolTable(),
		builder:  NewBuilder(),
		regs:     NewRegisterTracker(),
		nesting:  NewNestingStack(),
		memloc:   NewMemoryLocation(),
		localCP:  NewCallPointManager(),
		importCP: NewCallPointManager(),
		thisType: NoSymbol,
		thisParam: NoSymbol,
	}
	c.installBuiltins()
	return c, token.Range{Start: 0, Length: n}
}

func TestEvalAccessChainReadsGlobalVariable(t *testing.T) {
	c, r := accessTestCompiler(t, "x")
	c.symbols.MakeVariable("x", 0, 0, 0, VariableInfo{Vartype: c.intType(), Scope: ScopeGlobal, Offset: 4})

	res := c.EvalAccessChain(r)
	require.Equal(t, NoSymbol, res.Literal)
	require.Equal(t, c.intType(), res.Vartype)
	require.Greater(t, c.builder.CodeSize(), 0)
}

func TestEvalAccessChainConstantFoldsWithoutEmittingCode(t *testing.T) {
	c, r := accessTestCompiler(t, "42")
	res := c.EvalAccessChain(r)
	require.NotEqual(t, NoSymbol, res.Literal)
	require.Equal(t, 0, c.builder.CodeSize())
}

func TestEvalAccessChainMemberAccess(t *testing.T) {
	c, r := accessTestCompiler(t, "p.field")
	field := c.symbols.MakeVariable("Point.field", 0, 0, 0, VariableInfo{Vartype: c.intType(), Offset: 1})
	fieldComp := c.symbols.MakeComponent("field", 0, 0, ComponentInfo{Qualified: field})
	pointType := c.symbols.MakeVartype("Point", 0, 0, 0, VartypeInfo{Components: map[string]Symbol{"field": fieldComp}})
	c.symbols.MakeVariable("p", 0, 0, 0, VariableInfo{Vartype: pointType, Scope: ScopeGlobal, Offset: 0})

	res := c.EvalAccessChain(r)
	require.Equal(t, c.intType(), res.Vartype)
	require.Greater(t, c.builder.CodeSize(), 0)
}

func TestEvalAccessChainStaticArrayIndexFoldsConstantOffset(t *testing.T) {
	c, r := accessTestCompiler(t, "a[1]")
	arrType := c.symbols.MakeVartype("[4]int", 0, 0, 0, VartypeInfo{ElemType: c.intType(), Dimensions: []int{4}})
	c.symbols.MakeVariable("a", 0, 0, 0, VariableInfo{Vartype: arrType, Scope: ScopeGlobal, Offset: 0})

	res := c.EvalAccessChain(r)
	require.Equal(t, c.intType(), res.Vartype)
	require.Greater(t, c.builder.CodeSize(), 0)
}

func TestEvalAccessChainLengthOnStaticArrayFoldsToLiteral(t *testing.T) {
	c, r := accessTestCompiler(t, "a.Length")
	arrType := c.symbols.MakeVartype("[4]int", 0, 0, 0, VartypeInfo{ElemType: c.intType(), Dimensions: []int{4}})
	c.symbols.MakeVariable("a", 0, 0, 0, VariableInfo{Vartype: arrType, Scope: ScopeGlobal, Offset: 0})

	res := c.EvalAccessChain(r)
	require.NotEqual(t, NoSymbol, res.Literal)
	require.EqualValues(t, 4, c.symbols.Entry(res.Literal).Literal.IntValue)
}

func TestEvalAccessChainUndefinedIdentifierFails(t *testing.T) {
	c, r := accessTestCompiler(t, "missing")
	require.Panics(t, func() { c.EvalAccessChain(r) })
}

func TestEvalCallPushesArgsRightToLeftAndTracksForwardCall(t *testing.T) {
	c, r := accessTestCompiler(t, "f(1, 2)")
	fn := c.symbols.MakeFunction("f", 0, 0, 0, FunctionInfo{
		Params: []Param{
			{Vartype: c.intType()},
			{Name: Symbol(100), Vartype: c.intType()},
			{Name: Symbol(101), Vartype: c.intType()},
		},
		State:       FwdNone,
		ImportIndex: -1,
	})
	res := c.EvalAccessChain(r)
	require.Equal(t, c.intType(), res.Vartype)
	require.Contains(t, c.localCP.pending, fn)
	require.Len(t, c.localCP.pending[fn], 1)
}

func TestEvalCallWrongArgCountFails(t *testing.T) {
	c, r := accessTestCompiler(t, "f(1)")
	c.symbols.MakeFunction("f", 0, 0, 0, FunctionInfo{
		Params: []Param{
			{Vartype: c.intType()},
			{Name: Symbol(100), Vartype: c.intType()},
			{Name: Symbol(101), Vartype: c.intType()},
		},
		State:       FwdNone,
		ImportIndex: -1,
	})
	require.Panics(t, func() { c.EvalAccessChain(r) })
}

func TestAssignSimpleEmitsMemWrite(t *testing.T) {
	c, _ := accessTestCompiler(t, "x = 5")
	c.symbols.MakeVariable("x", 0, 0, 0, VariableInfo{Vartype: c.intType(), Scope: ScopeGlobal, Offset: 0})

	lhs := token.Range{Start: 0, Length: 1}
	rhs := token.Range{Start: 2, Length: 1}
	res := c.Assign(lhs, rhs, token.TKAssign)
	require.Equal(t, NoSymbol, res.Literal)
	require.Greater(t, c.builder.CodeSize(), 0)
}

func TestAssignToConstVariableFails(t *testing.T) {
	c, _ := accessTestCompiler(t, "x = 5")
	c.symbols.MakeVariable("x", 0, 0, 0, VariableInfo{Vartype: c.intType(), Scope: ScopeGlobal, Offset: 0, Qualifiers: QualConst})

	lhs := token.Range{Start: 0, Length: 1}
	rhs := token.Range{Start: 2, Length: 1}
	require.Panics(t, func() { c.Assign(lhs, rhs, token.TKAssign) })
}

func TestAssignCompoundOpReadsThenCombines(t *testing.T) {
	c, _ := accessTestCompiler(t, "x += 1")
	c.symbols.MakeVariable("x", 0, 0, 0, VariableInfo{Vartype: c.intType(), Scope: ScopeGlobal, Offset: 0})

	lhs := token.Range{Start: 0, Length: 1}
	rhs := token.Range{Start: 2, Length: 1}
	before := c.builder.CodeSize()
	c.Assign(lhs, rhs, token.TKPlusAssign)
	require.Greater(t, c.builder.CodeSize(), before)
}

func TestAssignToReadonlyAttributeFails(t *testing.T) {
	c, _ := accessTestCompiler(t, "p.X = 5")
	pointType := c.symbols.MakeVartype("Point", 0, 0, 0, VartypeInfo{Components: map[string]Symbol{}})
	getter, setter := c.synthesizeAttributeAccessors(pointType, "X", c.intType(), true)
	require.NotEqual(t, NoSymbol, getter)
	require.Equal(t, NoSymbol, setter)
	field := c.symbols.MakeVariable("Point.X", 0, 0, 0, VariableInfo{Vartype: c.intType(), Qualifiers: QualAttribute | QualReadonly, AttrGetter: getter, AttrSetter: setter})
	fieldComp := c.symbols.MakeComponent("X", 0, 0, ComponentInfo{Qualified: field})
	c.symbols.Entry(pointType).Vartype.Components["X"] = fieldComp
	c.symbols.MakeVariable("p", 0, 0, 0, VariableInfo{Vartype: pointType, Scope: ScopeGlobal, Offset: 0})

	lhs := token.Range{Start: 0, Length: 3}
	rhs := token.Range{Start: 4, Length: 1}
	require.Panics(t, func() { c.Assign(lhs, rhs, token.TKAssign) })
}

func TestAssignToWritableAttributeDispatchesThroughSetter(t *testing.T) {
	c, _ := accessTestCompiler(t, "p.X = 5")
	pointType := c.symbols.MakeVartype("Point", 0, 0, 0, VartypeInfo{Components: map[string]Symbol{}})
	getter, setter := c.synthesizeAttributeAccessors(pointType, "X", c.intType(), false)
	require.NotEqual(t, NoSymbol, setter)
	field := c.symbols.MakeVariable("Point.X", 0, 0, 0, VariableInfo{Vartype: c.intType(), Qualifiers: QualAttribute, AttrGetter: getter, AttrSetter: setter})
	fieldComp := c.symbols.MakeComponent("X", 0, 0, ComponentInfo{Qualified: field})
	c.symbols.Entry(pointType).Vartype.Components["X"] = fieldComp
	c.symbols.MakeVariable("p", 0, 0, 0, VariableInfo{Vartype: pointType, Scope: ScopeGlobal, Offset: 0})

	lhs := token.Range{Start: 0, Length: 3}
	rhs := token.Range{Start: 4, Length: 1}
	before := c.builder.CodeSize()
	c.Assign(lhs, rhs, token.TKAssign)
	require.Greater(t, c.builder.CodeSize(), before)
	require.NotEmpty(t, c.localCP.pending[setter])
}

func TestEvalAccessChainAttributeReadDispatchesThroughGetter(t *testing.T) {
	c, r := accessTestCompiler(t, "p.X")
	pointType := c.symbols.MakeVartype("Point", 0, 0, 0, VartypeInfo{Components: map[string]Symbol{}})
	getter, setter := c.synthesizeAttributeAccessors(pointType, "X", c.intType(), false)
	field := c.symbols.MakeVariable("Point.X", 0, 0, 0, VariableInfo{Vartype: c.intType(), Qualifiers: QualAttribute, AttrGetter: getter, AttrSetter: setter})
	fieldComp := c.symbols.MakeComponent("X", 0, 0, ComponentInfo{Qualified: field})
	c.symbols.Entry(pointType).Vartype.Components["X"] = fieldComp
	c.symbols.MakeVariable("p", 0, 0, 0, VariableInfo{Vartype: pointType, Scope: ScopeGlobal, Offset: 0})

	res := c.EvalAccessChain(r)
	require.Equal(t, c.intType(), res.Vartype)
	require.NotEmpty(t, c.localCP.pending[getter])
}

func TestCompoundArithKindMapsEachAssignOp(t *testing.T) {
	require.Equal(t, token.TKPlus, compoundArithKind(token.TKPlusAssign))
	require.Equal(t, token.TKMinus, compoundArithKind(token.TKMinusAssign))
	require.Equal(t, token.TKStar, compoundArithKind(token.TKStarAssign))
	require.Equal(t, token.TKSlash, compoundArithKind(token.TKSlashAssign))
	require.Equal(t, token.TKPercent, compoundArithKind(token.TKPercentAssign))
}

func TestSplitTopLevelCommasIgnoresNestedBrackets(t *testing.T) {
	c, _ := accessTestCompiler(t, "f(a, g(b, c), d)")
	// the whole argument list, excluding the outer f( and trailing ).
	r := token.Range{Start: 2, Length: 10}
	parts := c.splitTopLevelCommas(r)
	require.Len(t, parts, 3)
}

func TestEvalIncDecPrefixEmitsReadThenWrite(t *testing.T) {
	c, _ := accessTestCompiler(t, "i")
	c.symbols.MakeVariable("i", 0, 0, 0, VariableInfo{Vartype: c.intType(), Scope: ScopeGlobal, Offset: 0})

	lhs := token.Range{Start: 0, Length: 1}
	res := c.EvalIncDec(lhs, token.TKIncrement, false)
	require.Equal(t, c.intType(), res.Vartype)
	require.Greater(t, c.builder.CodeSize(), 0)
}

func TestEvalIncDecPostfixReturnsPreWriteRegister(t *testing.T) {
	c, _ := accessTestCompiler(t, "i")
	c.symbols.MakeVariable("i", 0, 0, 0, VariableInfo{Vartype: c.intType(), Scope: ScopeGlobal, Offset: 0})

	lhs := token.Range{Start: 0, Length: 1}
	res := c.EvalIncDec(lhs, token.TKDecrement, true)
	require.Equal(t, c.intType(), res.Vartype)
	require.Greater(t, c.builder.CodeSize(), 0)
}

func TestMatchClosingBracketFindsMatchingDepth(t *testing.T) {
	c, _ := accessTestCompiler(t, "(1 + (2 * 3))")
	// pos=1 is right after the outer '(' at index 0.
	close := c.matchClosingBracket(1, token.TKLParen, token.TKRParen)
	require.Equal(t, token.TKRParen, c.stream.PeekAt(close).Kind)
}
