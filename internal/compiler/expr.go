package compiler

import (
	"math"

	"github.com/ashlang/ashc/internal/image"
	"github.com/ashlang/ashc/internal/token"
)

// expr.go implements the Expression Evaluator (spec.md §3, §5): given
// a token Range known to hold exactly one expression, find the
// least-binding operator at bracket depth zero, split the range
// there, evaluate both sides, and combine them with the opcode
// variant that operand's runtime kind demands (int/float/string/
// dynpointer each use a distinct comparison and arithmetic opcode
// family, spec.md §3 "Operator.Opcodes"). && and || short-circuit:
// the right operand is only evaluated if the left didn't already
// decide the result. Grounded on the teacher's single-pass
// expression compiler (vida/gen.go's parseExpr, itself a Pratt-style
// precedence-climbing walk directly over tokens with no AST) — this
// evaluator instead does an explicit least-binding-operator scan, the
// alternative single-linear-walk technique spec.md §3 names, which
// composes more directly with the yanked-chunk/restore-point
// machinery expr.go and fold.go share with statement parsing.
type EvalResult struct {
	Vartype  Symbol
	Register Register // holds the value once evaluation completes; RegMAR is never a result register
	Literal  Symbol   // set (Vartype's Literal) iff the expression folded to a compile-time constant, else NoSymbol
}

// EvalExpression evaluates the expression occupying r and leaves its
// value in the returned register (or reports Literal != NoSymbol if
// it folded away entirely, in which case no register is guaranteed
// to hold it and the caller should emit the literal itself with
// EmitLiteral).
func (c *Compiler) EvalExpression(r token.Range) EvalResult {
	toks := c.stream.Slice(r)
	if len(toks) == 0 {
		c.internal(c.currentLine, "empty expression range")
	}
	if lit, vt, ok := c.tryFoldRange(r); ok {
		return EvalResult{Vartype: vt, Literal: lit}
	}
	return c.evalBinary(r, 0)
}

// precedenceLevels lists binary operator token kinds from
// loosest-binding to tightest, mirroring spec.md §3's "Operator"
// symbols' BinaryPrecedence field, which this table's index encodes.
var precedenceLevels = [][]token.Kind{
	{token.TKOrOr},
	{token.TKAndAnd},
	{token.TKPipe},
	{token.TKCaret},
	{token.TKAmp},
	{token.TKEq, token.TKNeq},
	{token.TKLt, token.TKLte, token.TKGt, token.TKGte},
	{token.TKShl, token.TKShr},
	{token.TKPlus, token.TKMinus},
	{token.TKStar, token.TKSlash, token.TKPercent},
}

// evalBinary scans r for the loosest-binding operator still
// unconsidered at level and below, at bracket depth zero. If none is
// found at this level it recurses to the next tighter level; running
// out of levels falls through to unary/primary parsing.
func (c *Compiler) evalBinary(r token.Range, level int) EvalResult {
	if level >= len(precedenceLevels) {
		return c.evalUnary(r)
	}
	kinds := precedenceLevels[level]
	if splitAt, opKind, ok := c.findOperatorAtDepthZero(r, kinds); ok {
		left := token.Range{Start: r.Start, Length: splitAt - r.Start}
		right := token.Range{Start: splitAt + 1, Length: r.End() - splitAt - 1}
		return c.evalBinaryOp(opKind, left, right, level)
	}
	return c.evalBinary(r, level+1)
}

// findOperatorAtDepthZero scans r left to right (so same-precedence
// operators associate left) for the first token matching one of
// kinds while bracket depth is zero, ignoring occurrences inside
// (), [], {}.
func (c *Compiler) findOperatorAtDepthZero(r token.Range, kinds []token.Kind) (pos int, kind token.Kind, ok bool) {
	depth := 0
	for i := r.Start; i < r.End(); i++ {
		t := c.stream.PeekAt(i)
		switch t.Kind {
		case token.TKLParen, token.TKLBracket, token.TKLBrace:
			depth++
		case token.TKRParen, token.TKRBracket, token.TKRBrace:
			depth--
		}
		if depth != 0 {
			continue
		}
		if i == r.Start {
			continue // a leading operator is unary, not this level's binary form
		}
		for _, k := range kinds {
			if t.Kind == k {
				return i, k, true
			}
		}
	}
	return 0, 0, false
}

func (c *Compiler) evalBinaryOp(opKind token.Kind, left, right token.Range, level int) EvalResult {
	if opKind == token.TKAndAnd || opKind == token.TKOrOr {
		return c.evalShortCircuit(opKind, left, right)
	}

	lhs := c.evalBinary(left, level+1)
	rp := c.SaveRestorePoint()
	lhsVal := c.materialize(lhs)

	opSym := c.operatorSymbolFor(opKind)
	if lhs.Literal != NoSymbol {
		rhs := c.evalBinary(right, level+1)
		if rhs.Literal != NoSymbol {
			if folded, ok := c.TryFold(opSym, lhs.Literal, rhs.Literal); ok {
				c.Discard(rp)
				return EvalResult{Vartype: c.literalVartype(folded), Literal: folded}
			}
		}
		rhsVal := c.materialize(rhs)
		return c.emitBinaryOpcode(opKind, lhsVal, rhsVal)
	}

	guard := c.regs.Save()
	saveReg := lhs.Register
	rhs := c.evalBinary(right, level+1)
	c.regs.Restore(guard)
	lhs.Register = saveReg
	rhsVal := c.materialize(rhs)
	return c.emitBinaryOpcode(opKind, lhsVal, rhsVal)
}

// evalShortCircuit implements && and ||: the right operand is
// compiled behind a conditional jump so it is only evaluated when the
// left operand didn't already decide the result (spec.md §3
// "short-circuit").
func (c *Compiler) evalShortCircuit(opKind token.Kind, left, right token.Range) EvalResult {
	lhs := c.materialize(c.evalBinary(left, 0))
	shortCircuitOp := image.OpJZ
	if opKind == token.TKOrOr {
		shortCircuitOp = image.OpJNZ
	}
	skipAt := c.builder.Emit(shortCircuitOp, 0)
	rhs := c.materialize(c.evalBinary(right, 0))
	if rhs.Register != lhs.Register {
		c.builder.Emit(image.OpRegToReg, image.Cell(rhs.Register), image.Cell(lhs.Register))
	}
	endAt := c.builder.Emit(image.OpJMP, 0)
	target := image.Cell(c.builder.CodeSize())
	c.builder.PatchOperand(skipAt+1, target)
	c.builder.PatchOperand(endAt+1, image.Cell(c.builder.CodeSize()))
	c.regs.InvalidateAll()
	return EvalResult{Vartype: lhs.Vartype, Register: lhs.Register, Literal: NoSymbol}
}

// evalUnary handles prefix (!, -, ~, ++, --) and postfix (++, --)
// forms, then falls through to evalPrimary.
func (c *Compiler) evalUnary(r token.Range) EvalResult {
	first := c.stream.PeekAt(r.Start)
	switch first.Kind {
	case token.TKNot, token.TKMinus, token.TKTilde:
		inner := c.evalUnary(token.Range{Start: r.Start + 1, Length: r.Length - 1})
		return c.emitUnaryOpcode(first.Kind, inner)
	case token.TKIncrement, token.TKDecrement:
		return c.EvalIncDec(token.Range{Start: r.Start + 1, Length: r.Length - 1}, first.Kind, false)
	}
	last := c.stream.PeekAt(r.End() - 1)
	if last.Kind == token.TKIncrement || last.Kind == token.TKDecrement {
		return c.EvalIncDec(token.Range{Start: r.Start, Length: r.Length - 1}, last.Kind, true)
	}
	return c.evalPrimary(r)
}

// evalPrimary handles parenthesised sub-expressions and delegates
// everything else (literals, variable/function access chains) to the
// Access-Data Subsystem.
func (c *Compiler) evalPrimary(r token.Range) EvalResult {
	first := c.stream.PeekAt(r.Start)
	last := c.stream.PeekAt(r.End() - 1)
	if first.Kind == token.TKLParen && last.Kind == token.TKRParen && c.matchesBracket(r) {
		return c.EvalExpression(token.Range{Start: r.Start + 1, Length: r.Length - 2})
	}
	return c.EvalAccessChain(r)
}

// matchesBracket reports whether r's opening bracket at r.Start is
// the partner of the closing bracket at r.End()-1 (as opposed to the
// depth returning to zero and back up before the end, in which case
// the outer parens are not redundant and must stay part of a binary scan).
func (c *Compiler) matchesBracket(r token.Range) bool {
	depth := 0
	for i := r.Start; i < r.End(); i++ {
		switch c.stream.PeekAt(i).Kind {
		case token.TKLParen, token.TKLBracket, token.TKLBrace:
			depth++
		case token.TKRParen, token.TKRBracket, token.TKRBrace:
			depth--
		}
		if depth == 0 {
			return i == r.End()-1
		}
	}
	return false
}

// materialize ensures result.Literal, if set, is also loaded into a
// register, since operand combination always happens through
// registers even when one side folded to a constant (spec.md §3
// "Register Tracker").
func (c *Compiler) materialize(r EvalResult) EvalResult {
	if r.Literal == NoSymbol {
		return r
	}
	reg := c.regs.GetGeneralPurposeRegister()
	c.EmitLiteral(reg, r.Literal)
	return EvalResult{Vartype: r.Vartype, Register: reg, Literal: NoSymbol}
}

// EmitLiteral loads lit's value into reg via OpLitToReg.
func (c *Compiler) EmitLiteral(reg Register, lit Symbol) {
	e := c.symbols.Entry(lit)
	if e == nil || e.Literal == nil {
		c.internal(c.currentLine, "EmitLiteral: %v is not a literal", lit)
	}
	value := e.Literal.IntValue
	if e.Literal.IsFloat {
		value = floatBitsToCell(e.Literal.FloatValue)
	}
	c.builder.Emit(image.OpLitToReg, image.Cell(reg), image.Cell(value))
	c.regs.Set(reg, "")
}

// floatBitsToCell stores a float literal in a single Cell as the bit
// pattern of its 32-bit IEEE 754 value reinterpreted as an integer
// (spec.md GLOSSARY "Cell").
func floatBitsToCell(f float64) int64 {
	return int64(int32(math.Float32bits(float32(f))))
}

func (c *Compiler) literalVartype(lit Symbol) Symbol {
	e := c.symbols.Entry(lit)
	if e == nil || e.Literal == nil {
		return NoSymbol
	}
	return e.Literal.Vartype
}

// tryFoldRange recognises the trivial case of r being a single
// literal or a named Constant, letting the caller skip evalBinary
// entirely.
func (c *Compiler) tryFoldRange(r token.Range) (Symbol, Symbol, bool) {
	if r.Length != 1 {
		return NoSymbol, NoSymbol, false
	}
	t := c.stream.PeekAt(r.Start)
	switch t.Kind {
	case token.TKIntLiteral, token.TKFloatLiteral, token.TKStringLiteral:
		lit := c.literalFromToken(t)
		return lit, c.literalVartype(lit), true
	case token.TKIdentifier:
		sym := c.symbols.Find(t.Text)
		if e := c.symbols.Entry(sym); e != nil && e.Kind == SymConstant {
			return e.Constant.Literal, c.literalVartype(e.Constant.Literal), true
		}
	}
	return NoSymbol, NoSymbol, false
}

// literalFromToken interns an ad-hoc Literal symbol for an inline
// numeric or string literal token (named Constants go through
// symbol.go's MakeConstant instead).
func (c *Compiler) literalFromToken(t token.Token) Symbol {
	switch t.Kind {
	case token.TKIntLiteral:
		return c.symbols.MakeLiteral("", t.Line, t.Section, LiteralInfo{Vartype: c.intType(), IntValue: t.IntVal})
	case token.TKFloatLiteral:
		return c.symbols.MakeLiteral("", t.Line, t.Section, LiteralInfo{Vartype: c.floatType(), IsFloat: true, FloatValue: t.FltVal})
	case token.TKStringLiteral:
		off := c.builder.InternString(t.Text)
		return c.symbols.MakeLiteral("", t.Line, t.Section, LiteralInfo{Vartype: c.stringType(), StringOffset: off})
	default:
		c.internal(t.Line, "literalFromToken: unexpected kind %v", t.Kind)
		return NoSymbol
	}
}

func (c *Compiler) operatorSymbolFor(k token.Kind) Symbol {
	sym := c.symbols.Find(tokenOperatorName(k))
	if sym == NoSymbol {
		c.internal(c.currentLine, "no Operator symbol registered for %v", k)
	}
	return sym
}

func tokenOperatorName(k token.Kind) string {
	switch k {
	case token.TKPlus:
		return "+"
	case token.TKMinus:
		return "-"
	case token.TKStar:
		return "*"
	case token.TKSlash:
		return "/"
	case token.TKPercent:
		return "%"
	case token.TKEq:
		return "=="
	case token.TKNeq:
		return "!="
	case token.TKLt:
		return "<"
	case token.TKLte:
		return "<="
	case token.TKGt:
		return ">"
	case token.TKGte:
		return ">="
	case token.TKAndAnd:
		return "&&"
	case token.TKOrOr:
		return "||"
	case token.TKAmp:
		return "&"
	case token.TKPipe:
		return "|"
	case token.TKCaret:
		return "^"
	case token.TKShl:
		return "<<"
	case token.TKShr:
		return ">>"
	default:
		return k.String()
	}
}

// emitBinaryOpcode picks the opcode variant for the two operands'
// runtime kind (int/float/string/dynpointer, spec.md §3
// "Operator.Opcodes") and emits it, returning the result in lhs's register.
func (c *Compiler) emitBinaryOpcode(opKind token.Kind, lhs, rhs EvalResult) EvalResult {
	opSym := c.operatorSymbolFor(opKind)
	oe := c.symbols.Entry(opSym)
	op := c.selectOpcode(oe.Operator.Opcodes, lhs.Vartype)
	c.builder.Emit(op, image.Cell(lhs.Register), image.Cell(rhs.Register))
	c.regs.Set(lhs.Register, "")
	resultType := lhs.Vartype
	if isComparisonOpcode(op) {
		resultType = c.intType()
	}
	return EvalResult{Vartype: resultType, Register: lhs.Register, Literal: NoSymbol}
}

func (c *Compiler) emitUnaryOpcode(k token.Kind, v EvalResult) EvalResult {
	v = c.materialize(v)
	switch k {
	case token.TKMinus:
		zero := c.regs.GetGeneralPurposeRegister()
		c.builder.Emit(image.OpLitToReg, image.Cell(zero), 0)
		c.builder.Emit(image.OpSub, image.Cell(zero), image.Cell(v.Register))
		c.regs.Set(zero, "")
		return EvalResult{Vartype: v.Vartype, Register: zero}
	case token.TKNot, token.TKTilde:
		c.builder.Emit(image.OpNotReg, image.Cell(v.Register))
		c.regs.Set(v.Register, "")
		return EvalResult{Vartype: v.Vartype, Register: v.Register}
	default:
		c.internal(c.currentLine, "emitUnaryOpcode: unexpected %v", k)
		return v
	}
}

func (c *Compiler) selectOpcode(ops OperandOpcodes, vt Symbol) image.Opcode {
	switch {
	case c.isFloatType(vt):
		return image.Opcode(ops.FloatOp)
	case c.isStringType(vt):
		return image.Opcode(ops.StringOp)
	case c.HasModifier(vt, ModDynpointer):
		return image.Opcode(ops.DynpointerOp)
	default:
		return image.Opcode(ops.IntOp)
	}
}

func isComparisonOpcode(op image.Opcode) bool {
	switch op {
	case image.OpIsEqual, image.OpNotEqual, image.OpGreater, image.OpGreaterEqual,
		image.OpLess, image.OpLessEqual, image.OpFGreater, image.OpFGreaterEqual,
		image.OpFLess, image.OpFLessEqual, image.OpStringsEqual, image.OpStringsNotEq:
		return true
	default:
		return false
	}
}
