package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterSetAndIsValid(t *testing.T) {
	rt := NewRegisterTracker()
	require.False(t, rt.IsValid(RegAX, "local:1"))
	rt.Set(RegAX, "local:1")
	require.True(t, rt.IsValid(RegAX, "local:1"))
	require.False(t, rt.IsValid(RegBX, "local:1"))
}

func TestRegisterSetInvalidatesOtherHolderOfSameContent(t *testing.T) {
	rt := NewRegisterTracker()
	rt.Set(RegAX, "local:1")
	rt.Set(RegBX, "local:1")
	require.False(t, rt.IsValid(RegAX, "local:1"))
	require.True(t, rt.IsValid(RegBX, "local:1"))
}

func TestRegisterInvalidateAndInvalidateAll(t *testing.T) {
	rt := NewRegisterTracker()
	rt.Set(RegAX, "a")
	rt.Set(RegBX, "b")
	rt.Invalidate(RegAX)
	require.False(t, rt.IsValid(RegAX, "a"))
	require.True(t, rt.IsValid(RegBX, "b"))
	rt.InvalidateAll()
	require.False(t, rt.IsValid(RegBX, "b"))
}

func TestGetGeneralPurposeRegisterPrefersFree(t *testing.T) {
	rt := NewRegisterTracker()
	rt.Set(RegAX, "a")
	r := rt.GetGeneralPurposeRegister()
	require.NotEqual(t, RegAX, r)
}

func TestGetGeneralPurposeRegisterEvictsOldestWhenFull(t *testing.T) {
	rt := NewRegisterTracker()
	rt.Set(RegAX, "a")
	rt.Set(RegBX, "b")
	rt.Set(RegCX, "c")
	rt.Set(RegDX, "d")
	evicted := rt.GetGeneralPurposeRegister()
	require.Equal(t, RegAX, evicted)
	require.False(t, rt.IsValid(RegAX, "a"))
}

func TestRegisterSaveRestore(t *testing.T) {
	rt := NewRegisterTracker()
	rt.Set(RegAX, "a")
	guard := rt.Save()
	rt.Set(RegAX, "b")
	require.True(t, rt.IsValid(RegAX, "b"))
	rt.Restore(guard)
	require.True(t, rt.IsValid(RegAX, "a"))
}
