package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSymbolTableFindOrAddIsStableAcrossCalls(t *testing.T) {
	st := NewSymbolTable()
	a := st.FindOrAdd("foo", 1, 0, 0)
	b := st.FindOrAdd("foo", 2, 0, 0)
	require.Equal(t, a, b)
}

func TestSymbolTableFindReturnsNoSymbolForUnknown(t *testing.T) {
	st := NewSymbolTable()
	require.Equal(t, NoSymbol, st.Find("missing"))
}

func TestSymbolTableEntryOutOfRangeReturnsNil(t *testing.T) {
	st := NewSymbolTable()
	require.Nil(t, st.Entry(NoSymbol))
	require.Nil(t, st.Entry(Symbol(999)))
}

func TestFunctionInfoParametersSkipsReturnTypeSlot(t *testing.T) {
	fn := FunctionInfo{Params: []Param{
		{Vartype: Symbol(1)},                  // return type
		{Name: Symbol(2), Vartype: Symbol(3), DefaultValue: NoSymbol},
		{Name: Symbol(4), Vartype: Symbol(3), DefaultValue: Symbol(5)},
	}}
	require.Equal(t, Symbol(1), fn.ReturnType())
	require.Len(t, fn.Parameters(), 2)
	require.Equal(t, 1, fn.MandatoryCount())
}

func TestSymbolTableResetClearsVariablesButKeepsFunctionHeaders(t *testing.T) {
	st := NewSymbolTable()
	v := st.MakeVariable("x", 1, 0, 0, VariableInfo{Scope: ScopeGlobal})
	fn := st.MakeFunction("f", 1, 0, 0, FunctionInfo{Params: []Param{{Vartype: NoSymbol}}})

	st.Reset(true)

	require.Nil(t, st.Entry(v).Variable)
	require.Equal(t, SymKeyword, st.Entry(v).Kind)
	require.NotNil(t, st.Entry(fn).Function)
	require.Equal(t, SymFunction, st.Entry(fn).Kind)
}

func TestSymbolTableResetLeavesFunctionHeadersEvenWhenNotKept(t *testing.T) {
	st := NewSymbolTable()
	fn := st.MakeFunction("f", 1, 0, 0, FunctionInfo{Params: []Param{{Vartype: NoSymbol}}})
	st.Reset(false)
	require.Equal(t, SymFunction, st.Entry(fn).Kind, "Reset only clears Variable/Component kinds, not Function")
}

func TestFindComponentInStructWalksParentChain(t *testing.T) {
	st := NewSymbolTable()
	childField := st.add("field", SymVariable, 0, 0, 0)
	base := st.MakeVartype("Base", 0, 0, 0, VartypeInfo{Components: map[string]Symbol{"field": childField}})
	derived := st.MakeVartype("Derived", 0, 0, 0, VartypeInfo{Parent: base, Components: map[string]Symbol{}})

	require.Equal(t, childField, st.FindComponentInStruct(derived, "field"))
	require.Equal(t, NoSymbol, st.FindComponentInStruct(derived, "missing"))
}

func TestIsManagedVartypeFollowsBaseChain(t *testing.T) {
	st := NewSymbolTable()
	managed := st.MakeVartype("Managed", 0, 0, 0, VartypeInfo{Flags: FlagManaged})
	ptr := st.MakeVartype("ptr Managed", 0, 0, 0, VartypeInfo{Base: managed, Modifier: ModDynpointer})
	plain := st.MakeVartype("int", 0, 0, 0, VartypeInfo{})

	require.True(t, st.IsManagedVartype(ptr))
	require.False(t, st.IsManagedVartype(plain))
}

func TestNumFuncParamsCountsRealParamsOnly(t *testing.T) {
	st := NewSymbolTable()
	fn := st.MakeFunction("f", 0, 0, 0, FunctionInfo{Params: []Param{
		{Vartype: NoSymbol},
		{Name: Symbol(1)},
		{Name: Symbol(2)},
	}})
	require.Equal(t, 2, st.NumFuncParams(fn))
}
