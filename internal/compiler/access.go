package compiler

import (
	"github.com/ashlang/ashc/internal/image"
	"github.com/ashlang/ashc/internal/token"
)

// access.go implements the Access-Data Subsystem (spec.md §3, §4.2):
// walks a chain of clauses — `this`, a bare identifier, a literal, a
// function call, a `.member`, a `[index]`, or the `Length` pseudo-
// attribute — left to right, accumulating a MemoryLocation as it
// goes and only emitting a memory read once the chain ends in
// something other than another clause (a trailing function call
// consumes the location as a receiver instead of reading through it).
// Grounded on the teacher's postfix-chain parser (vida/gen.go's
// parsePostfix, walking `.`, `[]` and `()` suffixes after a primary
// expression) generalised to also drive assignment (spec.md §4.2
// "Assignment and compound assignment") and the dynpointer/array
// bounds-check opcodes a bytecode target needs that a tree-walking
// interpreter's postfix chain does not.
type clauseKind int

const (
	clauseIdentifier clauseKind = iota
	clauseThis
	clauseLiteral
	clauseMember
	clauseIndex
	clauseCall
	clauseLength
)

// EvalAccessChain parses and emits code for the access-chain
// expression occupying r, returning its value already materialised
// into a register (or as a folded Literal for the trivial constant case).
func (c *Compiler) EvalAccessChain(r token.Range) EvalResult {
	pos := r.Start
	end := r.End()

	loc := NewMemoryLocation()
	var curType Symbol
	var result EvalResult
	haveResult := false

	first := c.stream.PeekAt(pos)
	switch {
	case first.Kind == token.TKThis:
		if c.thisType == NoSymbol {
			c.fail(first.Line, "'this' used outside a struct method")
		}
		curType = c.thisType
		c.SetStart(loc, c.thisParam)
		pos++
	case first.Kind == token.TKIdentifier:
		sym := c.symbols.Find(first.Text)
		if sym == NoSymbol {
			c.fail(first.Line, "undefined identifier '%s'", first.Text)
		}
		e := c.symbols.Entry(sym)
		switch e.Kind {
		case SymVariable:
			c.SetStart(loc, sym)
			curType = e.Variable.Vartype
			pos++
		case SymConstant:
			if pos+1 == end {
				lit := e.Constant.Literal
				return EvalResult{Vartype: c.literalVartype(lit), Literal: lit}
			}
			c.fail(first.Line, "'%s' is a constant and cannot be used as a receiver", first.Text)
		case SymVartype:
			curType = sym
			pos++
			result, haveResult = c.evalVartypeStaticAccess(sym, r, &pos)
		case SymFunction:
			result = c.evalCall(sym, NoSymbol, r, &pos)
			haveResult = true
		default:
			c.fail(first.Line, "'%s' cannot be used in an expression", first.Text)
		}
	case first.Kind == token.TKIntLiteral, first.Kind == token.TKFloatLiteral, first.Kind == token.TKStringLiteral:
		if pos+1 == end {
			lit := c.literalFromToken(first)
			return EvalResult{Vartype: c.literalVartype(lit), Literal: lit}
		}
		c.fail(first.Line, "literal cannot be followed by further access clauses")
	default:
		c.fail(first.Line, "expected an expression, found %q", first.Text)
	}

	for pos < end && !haveResult {
		t := c.stream.PeekAt(pos)
		switch t.Kind {
		case token.TKDot:
			pos++
			nameTok := c.stream.PeekAt(pos)
			if nameTok.Kind != token.TKIdentifier {
				c.fail(nameTok.Line, "expected a member name after '.'")
			}
			pos++
			if nameTok.Text == "Length" {
				if !c.HasModifier(curType, ModDynarray) && !c.IsStaticArray(curType) {
					c.fail(nameTok.Line, "Length is only valid on an array or dynarray")
				}
				result, haveResult = c.evalLength(loc, curType)
				break
			}
			member := c.symbols.FindComponentInStruct(c.vartypeBaseOf(curType), nameTok.Text)
			if member == NoSymbol {
				c.fail(nameTok.Line, "'%s' has no member '%s'", c.symbols.Entry(curType).Name, nameTok.Text)
			}
			ce := c.symbols.Entry(member).Component
			if ce.IsFunction {
				result = c.evalCall(ce.Qualified, curType, r, &pos)
				haveResult = true
				break
			}
			ve := c.symbols.Entry(ce.Qualified).Variable
			if ve.AttrGetter != NoSymbol {
				result = c.emitCallWithValues(ve.AttrGetter, nil)
				haveResult = true
				break
			}
			loc.AddComponentOffset(ve.Offset)
			curType = ve.Vartype
		case token.TKLBracket:
			pos++
			idxEnd := c.matchClosingBracket(pos, token.TKLBracket, token.TKRBracket)
			idxResult := c.EvalExpression(token.Range{Start: pos, Length: idxEnd - pos})
			pos = idxEnd + 1
			elemType := c.ArrayElementType(curType)
			if elemType == NoSymbol {
				c.fail(t.Line, "indexing requires an array or dynarray operand")
			}
			c.emitBoundsCheck(loc, curType, idxResult)
			c.emitDynamicIndex(loc, idxResult, c.SizeOf(elemType))
			curType = elemType
		case token.TKLParen:
			c.fail(t.Line, "unexpected call: only a function-typed clause may be called")
		default:
			c.fail(t.Line, "unexpected token %q in expression", t.Text)
		}
	}

	if haveResult {
		return result
	}

	if c.HasModifier(curType, ModDynpointer) {
		c.MakeMARCurrent(loc)
		reg := c.regs.GetGeneralPurposeRegister()
		c.builder.Emit(image.OpCheckNull)
		c.builder.Emit(image.OpMemReadPtr)
		c.regs.Set(reg, loc.contentKey()+":deref")
		return EvalResult{Vartype: c.VartypeWithout(curType, ModDynpointer), Register: reg}
	}

	c.MakeMARCurrent(loc)
	reg := c.regs.GetGeneralPurposeRegister()
	c.builder.Emit(image.OpMemRead)
	c.regs.Set(reg, loc.contentKey())
	return EvalResult{Vartype: curType, Register: reg}
}

// evalLength reads the dynarray/array length pseudo-attribute
// (spec.md §4.2 "Length pseudo-attribute /
// __Builtin_DynamicArrayLength"). Static arrays fold to a Literal
// since their length is known at compile time; dynarrays read a
// runtime header cell through MAR.
func (c *Compiler) evalLength(loc *MemoryLocation, arrType Symbol) (EvalResult, bool) {
	e := c.symbols.Entry(arrType)
	if len(e.Vartype.Dimensions) > 0 {
		lit := c.symbols.MakeLiteral("", c.currentLine, c.currentSection, LiteralInfo{Vartype: c.intType(), IntValue: int64(e.Vartype.Dimensions[0])})
		return EvalResult{Vartype: c.intType(), Literal: lit}, true
	}
	c.MakeMARCurrent(loc)
	reg := c.regs.GetGeneralPurposeRegister()
	c.builder.Emit(image.OpMemRead) // dynarray header's first cell is its length, by the target ABI's convention (__Builtin_DynamicArrayLength)
	c.regs.Set(reg, "")
	return EvalResult{Vartype: c.intType(), Register: reg}, true
}

// emitBoundsCheck emits the fixed or dynamic bounds-check opcode
// appropriate to arrType before an index is applied (spec.md §3
// "OpCheckBounds"/"OpDynamicBounds").
func (c *Compiler) emitBoundsCheck(loc *MemoryLocation, arrType Symbol, idx EvalResult) {
	e := c.symbols.Entry(arrType)
	if len(e.Vartype.Dimensions) > 0 {
		idxReg := c.materialize(idx).Register
		c.builder.Emit(image.OpCheckBounds, image.Cell(idxReg))
		return
	}
	c.MakeMARCurrent(loc)
	c.builder.Emit(image.OpDynamicBounds)
}

// emitDynamicIndex folds idx*elemSize into the accumulated
// MemoryLocation. A constant-folded index becomes a static component
// offset (no code emitted beyond what evalBinary already produced for
// it); a runtime index is added into MAR directly.
func (c *Compiler) emitDynamicIndex(loc *MemoryLocation, idx EvalResult, elemSize int) {
	if idx.Literal != NoSymbol {
		lit := c.symbols.Entry(idx.Literal).Literal
		loc.AddComponentOffset(int(lit.IntValue) * elemSize)
		return
	}
	c.MakeMARCurrent(loc)
	idxReg := c.materialize(idx).Register
	c.builder.Emit(image.OpAddReg, image.Cell(idxReg))
	loc.MarkDynamic()
}

// evalVartypeStaticAccess handles `Vartype.member` static/enum access
// (e.g. an enum constant qualified by its enum's name).
func (c *Compiler) evalVartypeStaticAccess(vt Symbol, r token.Range, pos *int) (EvalResult, bool) {
	if c.stream.PeekAt(*pos).Kind != token.TKDot {
		c.fail(c.stream.PeekAt(*pos).Line, "expected '.' after vartype name")
	}
	*pos++
	nameTok := c.stream.PeekAt(*pos)
	*pos++
	member := c.symbols.FindComponentInStruct(vt, nameTok.Text)
	if member == NoSymbol {
		c.fail(nameTok.Line, "'%s' has no static member '%s'", c.symbols.Entry(vt).Name, nameTok.Text)
	}
	ce := c.symbols.Entry(member).Component
	if ce2 := c.symbols.Entry(ce.Qualified); ce2.Kind == SymConstant {
		lit := ce2.Constant.Literal
		return EvalResult{Vartype: c.literalVartype(lit), Literal: lit}, true
	}
	c.internal(nameTok.Line, "static access to non-constant member not supported")
	return EvalResult{}, true
}

// evalCall parses a call's argument list starting at *pos (which must
// point at '(') and emits it. Arguments are evaluated right to left
// and pushed, matching the target calling convention (spec.md §4.2
// "function-call argument handling right-to-left") so the callee can
// pop them in declaration order.
func (c *Compiler) evalCall(fn Symbol, receiverType Symbol, r token.Range, pos *int) EvalResult {
	fe := c.symbols.Entry(fn).Function
	if c.stream.PeekAt(*pos).Kind != token.TKLParen {
		c.fail(c.stream.PeekAt(*pos).Line, "expected '(' to call '%s'", c.symbols.Entry(fn).Name)
	}
	argsStart := *pos + 1
	argsEnd := c.matchClosingBracket(argsStart, token.TKLParen, token.TKRParen)
	*pos = argsEnd + 1

	argRanges := c.splitTopLevelCommas(token.Range{Start: argsStart, Length: argsEnd - argsStart})
	params := fe.Parameters()
	if len(argRanges) < fe.MandatoryCount() || (!fe.Variadic && len(argRanges) > len(params)) {
		c.fail(c.currentLine, "'%s' expects %d argument(s), got %d", c.symbols.Entry(fn).Name, len(params), len(argRanges))
	}

	args := make([]EvalResult, len(argRanges))
	for i := len(argRanges) - 1; i >= 0; i-- {
		args[i] = c.materialize(c.EvalExpression(argRanges[i]))
	}
	return c.emitCallWithValues(fn, args)
}

// emitCallWithValues emits the call-convention tail shared by a
// parsed argument-list call (evalCall) and a synthesized attribute
// getter/setter invocation (EvalAccessChain/resolveLValue's `.member`
// dispatch): args are already materialised registers, pushed
// right-to-left, followed by OpNumFuncArgs and the Call/CallExt/
// forward-tracked-Call triage evalCall used to do inline (spec.md
// §4.2 "function-call argument handling right-to-left").
func (c *Compiler) emitCallWithValues(fn Symbol, args []EvalResult) EvalResult {
	fe := c.symbols.Entry(fn).Function
	c.regs.InvalidateAll()
	for i := len(args) - 1; i >= 0; i-- {
		c.builder.Emit(image.OpPushReg, image.Cell(args[i].Register))
	}
	c.builder.Emit(image.OpNumFuncArgs, image.Cell(len(args)))

	if fe.State == FwdDefined {
		addr, ok := c.localCP.Resolved(fn)
		if !ok {
			c.internal(c.currentLine, "function '%s' marked defined but has no call-point address", c.symbols.Entry(fn).Name)
		}
		c.builder.Emit(image.OpCall, addr)
	} else if fe.ImportIndex >= 0 && fe.State == FwdNone {
		at := c.builder.Emit(image.OpCallExt, image.Cell(fe.ImportIndex))
		c.builder.AddFixup(at+1, image.FixupImport)
	} else {
		at := c.builder.Emit(image.OpCall, 0)
		c.localCP.Track(fn, at+1)
	}
	c.regs.InvalidateAll()
	reg := c.regs.GetGeneralPurposeRegister()
	c.builder.Emit(image.OpPopReg, image.Cell(reg))
	return EvalResult{Vartype: fe.ReturnType(), Register: reg}
}

// splitTopLevelCommas splits r on ',' tokens at bracket depth zero,
// the same technique NestingStack's frame-nesting and Declaration
// Parser's parameter lists rely on (spec.md §4.1).
func (c *Compiler) splitTopLevelCommas(r token.Range) []token.Range {
	if r.Length == 0 {
		return nil
	}
	var out []token.Range
	depth := 0
	start := r.Start
	for i := r.Start; i < r.End(); i++ {
		switch c.stream.PeekAt(i).Kind {
		case token.TKLParen, token.TKLBracket, token.TKLBrace:
			depth++
		case token.TKRParen, token.TKRBracket, token.TKRBrace:
			depth--
		case token.TKComma:
			if depth == 0 {
				out = append(out, token.Range{Start: start, Length: i - start})
				start = i + 1
			}
		}
	}
	out = append(out, token.Range{Start: start, Length: r.End() - start})
	return out
}

// matchClosingBracket returns the index of the bracket that closes
// the one at open-1 (pos is the token right after the opener).
func (c *Compiler) matchClosingBracket(pos int, open, close token.Kind) int {
	depth := 1
	for {
		t := c.stream.PeekAt(pos)
		if t.Kind == token.TKEOF {
			c.fail(t.Line, "unterminated bracket")
		}
		if t.Kind == open {
			depth++
		} else if t.Kind == close {
			depth--
			if depth == 0 {
				return pos
			}
		}
		pos++
	}
}

// Assign evaluates rhs and stores it through the access chain in lhs,
// applying compoundOp first if it is not token.TKAssign (spec.md §4.2
// "Assignment and compound assignment"). When lhs resolves to a
// synthesized `attribute` member, the store is routed through its
// setter Function instead of touching backing storage directly
// (grounded on AccessData_CallAttributeFunc, which dispatches every
// attribute write through the matching setter rather than the raw
// member offset).
func (c *Compiler) Assign(lhs, rhs token.Range, compoundOp token.Kind) EvalResult {
	loc, curType, getter, setter := c.resolveLValue(lhs)

	if setter != NoSymbol {
		rhsVal := c.materialize(c.EvalExpression(rhs))
		if compoundOp != token.TKAssign {
			cur := c.emitCallWithValues(getter, nil)
			rhsVal = c.emitBinaryOpcode(compoundArithKind(compoundOp), cur, rhsVal)
		}
		return c.emitCallWithValues(setter, []EvalResult{rhsVal})
	}

	rhsVal := c.materialize(c.EvalExpression(rhs))
	if compoundOp != token.TKAssign {
		c.MakeMARCurrent(loc)
		cur := c.regs.GetGeneralPurposeRegister()
		if c.HasModifier(curType, ModDynpointer) {
			c.builder.Emit(image.OpMemReadPtr)
		} else {
			c.builder.Emit(image.OpMemRead)
		}
		c.regs.Set(cur, "")
		combined := c.emitBinaryOpcode(compoundArithKind(compoundOp), EvalResult{Vartype: curType, Register: cur}, rhsVal)
		rhsVal = combined
	}

	c.MakeMARCurrent(loc)
	if c.HasModifier(curType, ModDynpointer) {
		c.builder.Emit(image.OpMemWritePtr, image.Cell(rhsVal.Register))
	} else {
		c.builder.Emit(image.OpMemWrite, image.Cell(rhsVal.Register))
	}
	return rhsVal
}

// EvalIncDec implements prefix and postfix `++`/`--` (spec.md §3
// binary-scan note: "`++` and `--` are treated as postfix when an
// operand precedes them"). Prefix reads, combines with a literal 1,
// writes back and yields the new value; postfix yields the value read
// before the write.
func (c *Compiler) EvalIncDec(lhs token.Range, op token.Kind, postfix bool) EvalResult {
	loc, curType, getter, setter := c.resolveLValue(lhs)

	if setter != NoSymbol {
		cur := c.emitCallWithValues(getter, nil)
		arith := token.TKPlus
		if op == token.TKDecrement {
			arith = token.TKMinus
		}
		one := c.materialize(EvalResult{Vartype: curType, Literal: c.oneLiteralFor(curType)})
		updated := c.emitBinaryOpcode(arith, cur, one)
		c.emitCallWithValues(setter, []EvalResult{updated})
		if postfix {
			return cur
		}
		return updated
	}

	c.MakeMARCurrent(loc)
	cur := c.regs.GetGeneralPurposeRegister()
	if c.HasModifier(curType, ModDynpointer) {
		c.builder.Emit(image.OpMemReadPtr)
	} else {
		c.builder.Emit(image.OpMemRead)
	}
	c.regs.Set(cur, "")

	var oldReg Register
	if postfix {
		oldReg = c.regs.GetGeneralPurposeRegister()
		c.builder.Emit(image.OpRegToReg, image.Cell(cur), image.Cell(oldReg))
	}

	arith := token.TKPlus
	if op == token.TKDecrement {
		arith = token.TKMinus
	}
	one := c.materialize(EvalResult{Vartype: curType, Literal: c.oneLiteralFor(curType)})
	updated := c.emitBinaryOpcode(arith, EvalResult{Vartype: curType, Register: cur}, one)

	c.MakeMARCurrent(loc)
	if c.HasModifier(curType, ModDynpointer) {
		c.builder.Emit(image.OpMemWritePtr, image.Cell(updated.Register))
	} else {
		c.builder.Emit(image.OpMemWrite, image.Cell(updated.Register))
	}

	if postfix {
		return EvalResult{Vartype: curType, Register: oldReg}
	}
	return EvalResult{Vartype: curType, Register: updated.Register}
}

// oneLiteralFor returns a freshly interned literal 1 (or 1.0) matching
// vt's numeric kind, the implicit operand of ++/--.
func (c *Compiler) oneLiteralFor(vt Symbol) Symbol {
	if vt == c.floatType() {
		return c.symbols.MakeLiteral("", c.currentLine, c.currentSection, LiteralInfo{Vartype: vt, IsFloat: true, FloatValue: 1})
	}
	return c.symbols.MakeLiteral("", c.currentLine, c.currentSection, LiteralInfo{Vartype: vt, IntValue: 1})
}

func compoundArithKind(op token.Kind) token.Kind {
	switch op {
	case token.TKPlusAssign:
		return token.TKPlus
	case token.TKMinusAssign:
		return token.TKMinus
	case token.TKStarAssign:
		return token.TKStar
	case token.TKSlashAssign:
		return token.TKSlash
	case token.TKPercentAssign:
		return token.TKPercent
	default:
		return op
	}
}

// resolveLValue walks lhs the same way EvalAccessChain does but stops
// short of reading through the final MemoryLocation, since Assign
// needs to write there instead. When the chain resolves to a
// synthesized `attribute` member, loc is nil and getter/setter name
// the accessors to dispatch through instead (setter is NoSymbol only
// when the member itself is not an attribute; a readonly attribute
// fails here rather than being returned, since every caller of
// resolveLValue is an assignment target).
func (c *Compiler) resolveLValue(lhs token.Range) (loc *MemoryLocation, curType Symbol, getter Symbol, setter Symbol) {
	pos := lhs.Start
	end := lhs.End()
	loc = NewMemoryLocation()

	first := c.stream.PeekAt(pos)
	if first.Kind != token.TKIdentifier && first.Kind != token.TKThis {
		c.fail(first.Line, "invalid assignment target")
	}
	if first.Kind == token.TKThis {
		curType = c.thisType
		c.SetStart(loc, c.thisParam)
	} else {
		sym := c.symbols.Find(first.Text)
		e := c.symbols.Entry(sym)
		if e == nil || e.Kind != SymVariable {
			c.fail(first.Line, "'%s' is not assignable", first.Text)
		}
		if e.Variable.Qualifiers.Has(QualConst) || e.Variable.Qualifiers.Has(QualReadonly) {
			c.fail(first.Line, "'%s' is not assignable", first.Text)
		}
		if e.Variable.AttrGetter != NoSymbol {
			if pos+1 != end {
				c.fail(first.Line, "cannot assign through a chained attribute access")
			}
			if e.Variable.AttrSetter == NoSymbol {
				c.fail(first.Line, "'%s' is a readonly attribute and cannot be assigned", first.Text)
			}
			return nil, e.Variable.Vartype, e.Variable.AttrGetter, e.Variable.AttrSetter
		}
		c.SetStart(loc, sym)
		curType = e.Variable.Vartype
	}
	pos++

	for pos < end {
		t := c.stream.PeekAt(pos)
		switch t.Kind {
		case token.TKDot:
			pos++
			nameTok := c.stream.PeekAt(pos)
			pos++
			member := c.symbols.FindComponentInStruct(c.vartypeBaseOf(curType), nameTok.Text)
			if member == NoSymbol {
				c.fail(nameTok.Line, "'%s' has no member '%s'", c.symbols.Entry(curType).Name, nameTok.Text)
			}
			ce := c.symbols.Entry(member).Component
			vinfo := c.symbols.Entry(ce.Qualified).Variable
			if vinfo.AttrGetter != NoSymbol {
				if pos != end {
					c.fail(nameTok.Line, "cannot assign through a chained attribute access")
				}
				if vinfo.AttrSetter == NoSymbol {
					c.fail(nameTok.Line, "'%s' is a readonly attribute and cannot be assigned", nameTok.Text)
				}
				return nil, vinfo.Vartype, vinfo.AttrGetter, vinfo.AttrSetter
			}
			loc.AddComponentOffset(vinfo.Offset)
			curType = vinfo.Vartype
		case token.TKLBracket:
			pos++
			idxEnd := c.matchClosingBracket(pos, token.TKLBracket, token.TKRBracket)
			idx := c.EvalExpression(token.Range{Start: pos, Length: idxEnd - pos})
			pos = idxEnd + 1
			elemType := c.ArrayElementType(curType)
			if elemType == NoSymbol {
				c.fail(t.Line, "indexing requires an array or dynarray operand")
			}
			c.emitBoundsCheck(loc, curType, idx)
			c.emitDynamicIndex(loc, idx, c.SizeOf(elemType))
			curType = elemType
		default:
			c.fail(t.Line, "invalid assignment target")
		}
	}
	return loc, curType, NoSymbol, NoSymbol
}
