package compiler

// vartype.go implements the vartype algebra spec.md §3 requires:
// VartypeWith/VartypeWithout must be total (defined for every modifier
// on every vartype) and idempotent (applying the same modifier twice
// is a no-op, removing an absent modifier is a no-op). Grounded on the
// teacher's type representation (vida/gen.go Kind/TypeInfo pairs,
// vida/value.go's prefixed value kinds) generalised into an explicit
// modifier-chain so Const/Dynpointer/Dynarray compose predictably
// (spec.md §9 "ad-hoc type flags -> vartype modifier chain").

// VartypeWith returns the symbol for "base modified by mod", creating
// it on first use and reusing it afterwards (idempotent: calling it
// again with the same mod on the same result returns the same symbol
// unchanged, never double-wrapping).
func (c *Compiler) VartypeWith(base Symbol, mod VartypeModifier) Symbol {
	be := c.symbols.Entry(base)
	if be == nil || be.Vartype == nil {
		c.internal(c.currentLine, "VartypeWith: %v is not a vartype", base)
	}
	if be.Vartype.Modifier == mod {
		return base // idempotent: already this modifier
	}
	if mod == ModNone {
		return c.vartypeBaseOf(base)
	}
	key := modifierName(mod) + " " + be.Name
	if existing := c.symbols.Find(key); existing != NoSymbol {
		return existing
	}
	info := VartypeInfo{
		Modifier: mod,
		Base:     base,
		Size:     modifierSize(mod, be.Vartype.Size),
		Flags:    be.Vartype.Flags,
	}
	if mod == ModDynarray {
		info.ElemType = base
	}
	return c.symbols.MakeVartype(key, c.currentLine, c.currentSection, c.scopeDepth, info)
}

// VartypeWithout strips mod from t, walking back to t's Base if t
// already carries mod, or returning t unchanged if it doesn't (total:
// defined for every (t, mod) pair; idempotent: stripping an absent
// modifier is a no-op).
func (c *Compiler) VartypeWithout(t Symbol, mod VartypeModifier) Symbol {
	e := c.symbols.Entry(t)
	if e == nil || e.Vartype == nil {
		c.internal(c.currentLine, "VartypeWithout: %v is not a vartype", t)
	}
	if e.Vartype.Modifier != mod {
		return t
	}
	return e.Vartype.Base
}

// vartypeBaseOf strips every modifier down to the atomic base type.
func (c *Compiler) vartypeBaseOf(t Symbol) Symbol {
	for {
		e := c.symbols.Entry(t)
		if e == nil || e.Vartype == nil || e.Vartype.Modifier == ModNone {
			return t
		}
		t = e.Vartype.Base
	}
}

// HasModifier reports whether t carries mod anywhere in its chain.
func (c *Compiler) HasModifier(t Symbol, mod VartypeModifier) bool {
	for cur := t; cur != NoSymbol; {
		e := c.symbols.Entry(cur)
		if e == nil || e.Vartype == nil {
			return false
		}
		if e.Vartype.Modifier == mod {
			return true
		}
		if e.Vartype.Modifier == ModNone {
			return false
		}
		cur = e.Vartype.Base
	}
	return false
}

func modifierName(mod VartypeModifier) string {
	switch mod {
	case ModConst:
		return "const"
	case ModDynpointer:
		return "dynpointer"
	case ModDynarray:
		return "dynarray"
	default:
		return ""
	}
}

func modifierSize(mod VartypeModifier, baseSize int) int {
	switch mod {
	case ModConst:
		return baseSize // Const is a compile-time-only modifier, same representation
	case ModDynpointer:
		return pointerSize
	case ModDynarray:
		return pointerSize // a dynarray is header+payload reached through a pointer cell
	default:
		return baseSize
	}
}

// pointerSize is the cell width of a pointer/dynpointer/dynarray
// handle in the target image (spec.md §6: one Cell).
const pointerSize = 1

// VartypesIdentical reports structural (not merely symbol) equality,
// needed because pre-analyse and the main pass can each intern an
// equivalent-but-distinct modified vartype chain for the same source
// text (spec.md §4.2).
func (c *Compiler) VartypesIdentical(a, b Symbol) bool {
	if a == b {
		return true
	}
	ea, eb := c.symbols.Entry(a), c.symbols.Entry(b)
	if ea == nil || eb == nil || ea.Vartype == nil || eb.Vartype == nil {
		return false
	}
	if ea.Vartype.Modifier != eb.Vartype.Modifier {
		return false
	}
	if ea.Vartype.Modifier == ModNone {
		return ea.Name == eb.Name
	}
	return c.VartypesIdentical(ea.Vartype.Base, eb.Vartype.Base)
}

// IsStaticArray reports whether t has fixed compile-time dimensions
// (as opposed to Dynarray, whose length is a runtime value).
func (c *Compiler) IsStaticArray(t Symbol) bool {
	e := c.symbols.Entry(t)
	return e != nil && e.Vartype != nil && len(e.Vartype.Dimensions) > 0
}

// ArrayElementType returns the element vartype of a static array or
// dynarray, or NoSymbol if t is neither.
func (c *Compiler) ArrayElementType(t Symbol) Symbol {
	e := c.symbols.Entry(t)
	if e == nil || e.Vartype == nil {
		return NoSymbol
	}
	if e.Vartype.Modifier == ModDynarray {
		return e.Vartype.Base
	}
	if len(e.Vartype.Dimensions) > 0 {
		return e.Vartype.ElemType
	}
	return NoSymbol
}

// SizeOf returns the compile-time size, in Cells, of t's representation.
func (c *Compiler) SizeOf(t Symbol) int {
	e := c.symbols.Entry(t)
	if e == nil || e.Vartype == nil {
		return 0
	}
	if n := len(e.Vartype.Dimensions); n > 0 {
		total := c.SizeOf(e.Vartype.ElemType)
		for _, d := range e.Vartype.Dimensions {
			total *= d
		}
		return total
	}
	return e.Vartype.Size
}
