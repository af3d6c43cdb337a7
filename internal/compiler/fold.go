package compiler

// fold.go implements compile-time constant folding (spec.md §3, §5):
// when both operands of an operator resolve to Literal symbols, the
// Expression Evaluator can ask fold.go to compute the result at
// compile time instead of emitting arithmetic instructions. Emission
// happens speculatively during expression parsing (see expr.go), so
// folding also needs a restore-point mechanism to discard whatever
// code was spec­ulatively emitted before the fold was recognised as
// possible. Grounded on the teacher's own constant-folding pass
// (vida/gen.go folds adjacent literal operations during expression
// compilation before falling back to emitting arithmetic opcodes).

// FoldFunc computes a Literal-to-Literal binary operation at compile
// time. It returns ok=false if the operand LiteralInfos are not a
// shape it can fold (e.g. a string literal offered to an arithmetic
// operator).
type FoldFunc func(c *Compiler, lhs, rhs LiteralInfo) (result LiteralInfo, ok bool)

// RestorePoint captures builder/register state before speculative
// emission, so it can be discarded if constant folding turns out to
// apply (spec.md §5 "restore points").
type RestorePoint struct {
	codeSize   int
	fixupSize  int
	regs       RegisterGuard
}

// SaveRestorePoint captures the current position.
func (c *Compiler) SaveRestorePoint() RestorePoint {
	return RestorePoint{
		codeSize:  c.builder.CodeSize(),
		fixupSize: c.builder.FixupSize(),
		regs:      c.regs.Save(),
	}
}

// Discard rewinds the builder and register tracker to rp, throwing
// away everything emitted since (spec.md §5).
func (c *Compiler) Discard(rp RestorePoint) {
	c.builder.TruncateTo(rp.codeSize, rp.fixupSize)
	c.regs.Restore(rp.regs)
}

// TryFold attempts to fold opSym applied to two Literal operands,
// returning the resulting Literal symbol and true on success.
// Non-literal operands, or an operator with no registered FoldFunc,
// yield ok=false and the caller falls back to code emission.
func (c *Compiler) TryFold(opSym Symbol, lhs, rhs Symbol) (Symbol, bool) {
	oe := c.symbols.Entry(opSym)
	if oe == nil || oe.Operator == nil || oe.Operator.Fold == nil {
		return NoSymbol, false
	}
	le, re := c.symbols.Entry(lhs), c.symbols.Entry(rhs)
	if le == nil || re == nil || le.Kind != SymLiteral || re.Kind != SymLiteral {
		return NoSymbol, false
	}
	result, ok := oe.Operator.Fold(c, *le.Literal, *re.Literal)
	if !ok {
		return NoSymbol, false
	}
	return c.symbols.MakeLiteral("", c.currentLine, c.currentSection, result), true
}

// foldArith builds a FoldFunc for '+', '-' and '*' (division has its
// own foldDiv), shared by int and float literals; op is applied to the raw numeric
// values, staying in the float domain if either operand is a float
// literal, following the target language's usual arithmetic promotion.
func foldArith(intOp func(a, b int64) int64, floatOp func(a, b float64) float64) FoldFunc {
	return func(c *Compiler, lhs, rhs LiteralInfo) (LiteralInfo, bool) {
		if lhs.IsFloat || rhs.IsFloat {
			a, b := literalAsFloat(lhs), literalAsFloat(rhs)
			return LiteralInfo{Vartype: lhs.Vartype, IsFloat: true, FloatValue: floatOp(a, b)}, true
		}
		if intOp == nil {
			return LiteralInfo{}, false
		}
		return LiteralInfo{Vartype: lhs.Vartype, IntValue: intOp(lhs.IntValue, rhs.IntValue)}, true
	}
}

func literalAsFloat(l LiteralInfo) float64 {
	if l.IsFloat {
		return l.FloatValue
	}
	return float64(l.IntValue)
}

// foldCompare builds a FoldFunc for a relational operator, always
// producing an int literal (0/1) the way the target VM represents
// booleans (spec.md GLOSSARY "Boolean representation").
func foldCompare(intCmp func(a, b int64) bool, floatCmp func(a, b float64) bool) FoldFunc {
	return func(c *Compiler, lhs, rhs LiteralInfo) (LiteralInfo, bool) {
		var result bool
		if lhs.IsFloat || rhs.IsFloat {
			result = floatCmp(literalAsFloat(lhs), literalAsFloat(rhs))
		} else {
			result = intCmp(lhs.IntValue, rhs.IntValue)
		}
		v := int64(0)
		if result {
			v = 1
		}
		return LiteralInfo{Vartype: lhs.Vartype, IntValue: v}, true
	}
}

// foldStringConcat is the FoldFunc slot for '+' applied to two string
// literals. It is nil: this module keeps only numeric folding, and
// string concatenation is not folded. A string Literal records only
// its string-pool offset (StringOffset), not its text, so there is no
// text to concatenate at fold time (see DESIGN.md).
var foldStringConcat FoldFunc = nil

var (
	foldAdd = foldArith(func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	foldSub = foldArith(func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	foldMul = foldArith(func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
	foldDiv FoldFunc = func(c *Compiler, lhs, rhs LiteralInfo) (LiteralInfo, bool) {
		if lhs.IsFloat || rhs.IsFloat {
			return LiteralInfo{Vartype: lhs.Vartype, IsFloat: true, FloatValue: literalAsFloat(lhs) / literalAsFloat(rhs)}, true
		}
		if rhs.IntValue == 0 {
			return LiteralInfo{}, false // let the division-by-zero surface as a runtime instruction instead
		}
		return LiteralInfo{Vartype: lhs.Vartype, IntValue: lhs.IntValue / rhs.IntValue}, true
	}

	foldEq  = foldCompare(func(a, b int64) bool { return a == b }, func(a, b float64) bool { return a == b })
	foldNeq = foldCompare(func(a, b int64) bool { return a != b }, func(a, b float64) bool { return a != b })
	foldLt  = foldCompare(func(a, b int64) bool { return a < b }, func(a, b float64) bool { return a < b })
	foldLte = foldCompare(func(a, b int64) bool { return a <= b }, func(a, b float64) bool { return a <= b })
	foldGt  = foldCompare(func(a, b int64) bool { return a > b }, func(a, b float64) bool { return a > b })
	foldGte = foldCompare(func(a, b int64) bool { return a >= b }, func(a, b float64) bool { return a >= b })
)
