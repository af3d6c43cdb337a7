package compiler

import (
	"github.com/ashlang/ashc/internal/image"
	"github.com/ashlang/ashc/internal/token"
)

// stmt.go implements the Statement Parser (spec.md §3, §4.2):
// if/else, while, do-while, for (whose step clause is compiled in
// source order but yanked and re-emitted after the loop body, spec.md
// §3 "yanked bytecode chunks"), switch/case/default/fallthrough
// (emitting a jump table once every case has been scanned), break/
// continue (propagated outward through NestingStack to the nearest
// loop/switch, cleaning up any dynpointer locals declared inside the
// frames being unwound), and return (protecting the return value
// across that same cleanup). Grounded on the teacher's statement
// dispatch (vida/gen.go's statement() switch over leading keyword
// tokens, one function per construct) kept in the same per-construct
// shape here.

// ParseStatement consumes one statement starting at the stream's
// current position.
func (c *Compiler) ParseStatement() {
	t := c.stream.Peek()
	c.currentLine = t.Line
	c.currentSection = t.Section
	switch t.Kind {
	case token.TKLBrace:
		c.parseBlock()
	case token.TKIf:
		c.parseIf()
	case token.TKWhile:
		c.parseWhile()
	case token.TKDo:
		c.parseDoWhile()
	case token.TKFor:
		c.parseFor()
	case token.TKSwitch:
		c.parseSwitch()
	case token.TKBreak:
		c.parseBreak()
	case token.TKContinue:
		c.parseContinue()
	case token.TKReturn:
		c.parseReturn()
	case token.TKConst, token.TKStruct, token.TKEnum:
		c.parseVariableDecl(ScopeLocal)
	case token.TKIdentifier:
		if c.looksLikeLocalVarDecl() {
			c.parseVariableDecl(ScopeLocal)
		} else {
			c.parseExpressionStatement()
		}
	case token.TKSemicolon:
		c.stream.Get()
	default:
		c.parseExpressionStatement()
	}
}

// looksLikeLocalVarDecl disambiguates `Type name ...;` from an
// expression statement starting with an identifier (a call, an
// assignment, a bare access chain) by checking whether the identifier
// names a vartype.
func (c *Compiler) looksLikeLocalVarDecl() bool {
	sym := c.symbols.Find(c.stream.Peek().Text)
	if sym == NoSymbol || c.symbols.Entry(sym).Kind != SymVartype {
		return false
	}
	save := c.stream.GetCursor()
	defer c.stream.SetCursor(save)
	c.skipVartypeTokens()
	return c.stream.Peek().Kind == token.TKIdentifier
}

// freeDynpointersAndSize emits zeroOp for every dynpointer-typed local
// among defs and returns their combined size in Cells (spec.md §4.10
// — grounded on the original compiler's FreeDynpointersOfLocals,
// which walks exactly this kind of per-level old-definition list).
// Callers pass OpMemZeroPtrND instead of the ordinary OpMemZeroPtr
// when a dynpointer return value might alias one of the locals being
// freed (parseReturn), so the VM does not drop the last reference to
// the value it is about to hand back to the caller.
func (c *Compiler) freeDynpointersAndSize(defs []shadowedDef, zeroOp image.Opcode) int {
	size := 0
	for _, sh := range defs {
		ve := c.symbols.Entry(sh.sym).Variable
		if ve == nil {
			continue
		}
		if c.HasModifier(ve.Vartype, ModDynpointer) {
			c.builder.Emit(zeroOp, image.Cell(ve.Offset))
		}
		size += c.SizeOf(ve.Vartype)
	}
	return size
}

// exitScope runs when a frame closes through ordinary, fall-through
// control flow (a block's closing brace, a loop or switch finishing
// normally): it frees the frame's dynpointer locals, shrinks the
// runtime local stack and the compile-time local-block offset by
// their combined size, then restores whatever name each one shadowed
// (spec.md §4.2, §4.10 — the original compiler's
// FreeDynpointersOfLocals + RemoveLocalsFromStack +
// RestoreLocalsFromSymtable, run together at every HandleEndOfBrace).
func (c *Compiler) exitScope(shadowed []shadowedDef) {
	if size := c.freeDynpointersAndSize(shadowed, image.OpMemZeroPtr); size > 0 {
		c.builder.Emit(image.OpSubRealStack, image.Cell(size))
		c.builder.ShrinkLocalBlock(size)
	}
	for _, sh := range shadowed {
		c.symbols.Restore(sh.name, sh.previous)
	}
}

// unwindForJumpOut emits the runtime cleanup a break/continue/return
// needs for every local declared between the current position and
// target (exclusive of target's own locals, which unwind normally
// when target itself later closes): dynpointers are zeroed and the
// runtime stack pointer is shrunk by their combined size. Unlike
// exitScope, the compile-time local-block offset and symbol table are
// left untouched — parsing continues past the jump inside the frames
// that are still lexically open, and those frames' own locals must
// keep the offsets they were assigned (spec.md §4.10, grounded on the
// original compiler's save_offset/RemoveLocalsFromStack/restore
// dance around break, continue and return).
func (c *Compiler) unwindForJumpOut(target int, zeroOp image.Opcode) {
	if size := c.freeDynpointersAndSize(c.nesting.LocalsToUnwindForJumpOut(target), zeroOp); size > 0 {
		c.builder.Emit(image.OpSubRealStack, image.Cell(size))
	}
}

func (c *Compiler) parseBlock() {
	c.stream.Get() // '{'
	c.nesting.Push(FrameBraces, c.builder.CodeSize(), c.builder.FixupSize())
	for c.stream.Peek().Kind != token.TKRBrace {
		if c.stream.Peek().Kind == token.TKEOF {
			c.fail(c.currentLine, "unterminated block")
		}
		c.ParseStatement()
	}
	c.stream.Get() // '}'
	frame := c.nesting.popPropagatingJumpOut()
	c.exitScope(frame.Shadowed())
}

func (c *Compiler) parseIf() {
	c.stream.Get() // 'if'
	if c.stream.Get().Kind != token.TKLParen {
		c.fail(c.currentLine, "expected '(' after 'if'")
	}
	condStart := c.stream.GetCursor()
	condEnd := c.matchClosingBracket(condStart, token.TKLParen, token.TKRParen)
	cond := c.materialize(c.EvalExpression(token.Range{Start: condStart, Length: condEnd - condStart}))
	c.stream.SetCursor(condEnd + 1)

	elseJumpAt := c.builder.Emit(image.OpJZ, image.Cell(cond.Register))
	_ = elseJumpAt
	c.nesting.Push(FrameIf, c.builder.CodeSize(), c.builder.FixupSize())
	c.ParseStatement()
	ifFrame := c.nesting.Pop()
	c.exitScope(ifFrame.Shadowed())

	if c.stream.Peek().Kind == token.TKElse {
		c.stream.Get()
		endJumpAt := c.builder.Emit(image.OpJMP, 0)
		c.builder.PatchOperand(elseJumpAt+1, image.Cell(c.builder.CodeSize()))
		c.nesting.Push(FrameElse, c.builder.CodeSize(), c.builder.FixupSize())
		c.nesting.Top().branchJumpOutLevel = ifFrame.jumpOutLevel
		c.ParseStatement()
		elseFrame := c.nesting.popMergingBranch()
		c.exitScope(elseFrame.Shadowed())
		c.builder.PatchOperand(endJumpAt+1, image.Cell(c.builder.CodeSize()))
	} else {
		// No 'else': the if-body might not run at all, so its
		// jumpOutLevel must not propagate to the parent regardless of
		// what is inside it (spec.md §4.3, matching the original
		// compiler's HandleEndOfIf when no 'else' follows).
		c.builder.PatchOperand(elseJumpAt+1, image.Cell(c.builder.CodeSize()))
	}
	c.regs.InvalidateAll()
}

func (c *Compiler) parseWhile() {
	c.stream.Get() // 'while'
	loopStart := image.Cell(c.builder.CodeSize())
	if c.stream.Get().Kind != token.TKLParen {
		c.fail(c.currentLine, "expected '(' after 'while'")
	}
	condStart := c.stream.GetCursor()
	condEnd := c.matchClosingBracket(condStart, token.TKLParen, token.TKRParen)
	cond := c.materialize(c.EvalExpression(token.Range{Start: condStart, Length: condEnd - condStart}))
	c.stream.SetCursor(condEnd + 1)
	exitJumpAt := c.builder.Emit(image.OpJZ, image.Cell(cond.Register))

	c.nesting.Push(FrameWhile, c.builder.CodeSize(), c.builder.FixupSize())
	c.ParseStatement()
	c.ResolveContinues(loopStart)
	c.builder.Emit(image.OpJMP, loopStart)
	target := image.Cell(c.builder.CodeSize())
	c.ResolveBreaks(target)
	// The condition is tested before the body runs, so the body might
	// never execute at all: its jumpOutLevel must not propagate to the
	// parent (spec.md §4.3, matching the original compiler's
	// HandleEndOfWhile, which pops without merging).
	frame := c.nesting.Pop()
	c.exitScope(frame.Shadowed())
	c.builder.PatchOperand(exitJumpAt+1, target)
	c.regs.InvalidateAll()
}

func (c *Compiler) parseDoWhile() {
	c.stream.Get() // 'do'
	bodyStart := image.Cell(c.builder.CodeSize())
	c.nesting.Push(FrameDo, c.builder.CodeSize(), c.builder.FixupSize())
	c.ParseStatement()
	if c.stream.Get().Kind != token.TKWhile {
		c.fail(c.currentLine, "expected 'while' after do-block")
	}
	if c.stream.Get().Kind != token.TKLParen {
		c.fail(c.currentLine, "expected '(' after 'while'")
	}
	condStart := c.stream.GetCursor()
	condEnd := c.matchClosingBracket(condStart, token.TKLParen, token.TKRParen)
	continueTarget := image.Cell(c.builder.CodeSize())
	c.ResolveContinues(continueTarget)
	cond := c.materialize(c.EvalExpression(token.Range{Start: condStart, Length: condEnd - condStart}))
	c.stream.SetCursor(condEnd + 1)
	if c.stream.Peek().Kind == token.TKSemicolon {
		c.stream.Get()
	}
	c.builder.Emit(image.OpJNZ, image.Cell(cond.Register))
	c.builder.PatchOperand(c.builder.CodeSize()-1, bodyStart)
	target := image.Cell(c.builder.CodeSize())
	c.ResolveBreaks(target)
	// A do-while body runs at least once, so its jumpOutLevel does
	// propagate (spec.md §4.3, matching HandleEndOfDo).
	frame := c.nesting.popPropagatingJumpOut()
	c.exitScope(frame.Shadowed())
	c.regs.InvalidateAll()
}

// evalClauseExpression evaluates a for-loop init/step clause, which
// (unlike a general expression) may itself be an assignment — spec.md
// §3 scenario D's `i = i + 1` step is exactly this case — so it is
// routed through Assign whenever a depth-zero assignment operator is
// present, the same split parseExpressionStatement applies at
// statement level.
func (c *Compiler) evalClauseExpression(r token.Range) {
	if pos, kind, ok := c.findTopLevelAssignmentIn(r); ok {
		lhs := token.Range{Start: r.Start, Length: pos - r.Start}
		rhsStart := pos + 1
		rhs := token.Range{Start: rhsStart, Length: r.End() - rhsStart}
		c.Assign(lhs, rhs, kind)
		return
	}
	c.EvalExpression(r)
}

// parseFor parses `for (init; cond; step) body`. The step clause is
// compiled in source order (so its symbol references resolve exactly
// as written) but is yanked right after compilation and re-emitted
// after the body, since it must execute once per iteration after the
// body, not once before it (spec.md §3 "yanked bytecode chunks").
func (c *Compiler) parseFor() {
	c.stream.Get() // 'for'
	if c.stream.Get().Kind != token.TKLParen {
		c.fail(c.currentLine, "expected '(' after 'for'")
	}
	c.nesting.Push(FrameFor, c.builder.CodeSize(), c.builder.FixupSize())

	if c.stream.Peek().Kind != token.TKSemicolon {
		if c.looksLikeLocalVarDecl() {
			c.parseVariableDecl(ScopeLocal)
		} else {
			initEnd := c.scanToDelimiter(token.TKSemicolon)
			start := c.stream.GetCursor()
			c.evalClauseExpression(token.Range{Start: start, Length: initEnd - start})
			c.stream.SetCursor(initEnd)
			c.stream.Get()
		}
	} else {
		c.stream.Get()
	}

	condLoopStart := image.Cell(c.builder.CodeSize())
	var exitJumpAt int
	haveCond := c.stream.Peek().Kind != token.TKSemicolon
	if haveCond {
		condStart := c.stream.GetCursor()
		condEnd := c.scanToDelimiter(token.TKSemicolon)
		c.materialize(c.EvalExpression(token.Range{Start: condStart, Length: condEnd - condStart}))
		c.stream.SetCursor(condEnd)
		exitJumpAt = c.builder.Emit(image.OpJZ, 0)
	}
	c.stream.Get() // ';'

	stepStart := c.stream.GetCursor()
	stepEnd := c.matchClosingBracket(stepStart, token.TKLParen, token.TKRParen)
	chunkCodeStart := c.builder.CodeSize()
	chunkFixupStart := c.builder.FixupSize()
	if stepEnd > stepStart {
		c.evalClauseExpression(token.Range{Start: stepStart, Length: stepEnd - stepStart})
	}
	c.YankChunk("step", chunkCodeStart, chunkFixupStart)
	c.stream.SetCursor(stepEnd + 1)

	c.ParseStatement()

	continueTarget := image.Cell(c.builder.CodeSize())
	c.ResolveContinues(continueTarget)
	c.WriteChunk("step")
	c.builder.Emit(image.OpJMP, condLoopStart)

	target := image.Cell(c.builder.CodeSize())
	if haveCond {
		c.builder.PatchOperand(exitJumpAt+1, target)
	}
	c.ResolveBreaks(target)
	// Same reasoning as while: the condition may make the body run
	// zero times, so its jumpOutLevel must not propagate.
	frame := c.nesting.Pop()
	c.exitScope(frame.Shadowed())
	c.regs.InvalidateAll()
}

// parseSwitch parses `switch (expr) { case lit: stmts; ... default: stmts; }`.
// Each case's test is compiled against the switch's subject and
// yanked into a chunk (spec.md §3 "switch jumptable"); once every
// case has been scanned, the chunks are re-emitted back to back after
// the last case body as a linear test chain, each test followed by a
// JNZ to its case body and the chain ending in a jump to the default
// body (or falling through to the switch's exit, if there is none). A
// JMP emitted before the first case body reaches the chain, and a JMP
// after the last body skips over it — the straightforward jump-table
// realisation for a target ISA with no dedicated indexed-dispatch opcode.
func (c *Compiler) parseSwitch() {
	c.stream.Get() // 'switch'
	if c.stream.Get().Kind != token.TKLParen {
		c.fail(c.currentLine, "expected '(' after 'switch'")
	}
	subjStart := c.stream.GetCursor()
	subjEnd := c.matchClosingBracket(subjStart, token.TKLParen, token.TKRParen)
	subject := c.materialize(c.EvalExpression(token.Range{Start: subjStart, Length: subjEnd - subjStart}))
	c.stream.SetCursor(subjEnd + 1)

	if c.stream.Get().Kind != token.TKLBrace {
		c.fail(c.currentLine, "expected '{' after switch subject")
	}
	c.nesting.Push(FrameSwitch, c.builder.CodeSize(), c.builder.FixupSize())
	dispatchAt := c.builder.Emit(image.OpJMP, 0)

	type caseBody struct {
		chunkKey   string
		bodyOffset int
		isDefault  bool
	}
	var cases []caseBody
	n := 0
	for c.stream.Peek().Kind != token.TKRBrace {
		switch c.stream.Peek().Kind {
		case token.TKCase:
			c.stream.Get()
			litTok := c.stream.Get()
			if c.stream.Get().Kind != token.TKColon {
				c.fail(litTok.Line, "expected ':' after case value")
			}
			key := "case" + itoa(n)
			n++
			testStart := c.builder.CodeSize()
			testFixupStart := c.builder.FixupSize()
			lit := c.literalFromToken(litTok)
			litVal := c.materialize(EvalResult{Vartype: c.literalVartype(lit), Literal: lit})
			c.builder.Emit(image.OpIsEqual, image.Cell(subject.Register), image.Cell(litVal.Register))
			c.YankChunk(key, testStart, testFixupStart)
			c.nesting.AddSwitchCase(key)

			bodyOffset := c.builder.CodeSize()
			for c.stream.Peek().Kind != token.TKCase && c.stream.Peek().Kind != token.TKDefault && c.stream.Peek().Kind != token.TKRBrace {
				if c.stream.Peek().Kind == token.TKFallthrough {
					c.stream.Get()
					if c.stream.Peek().Kind == token.TKSemicolon {
						c.stream.Get()
					}
					break
				}
				c.ParseStatement()
			}
			cases = append(cases, caseBody{chunkKey: key, bodyOffset: bodyOffset})
		case token.TKDefault:
			c.stream.Get()
			if c.stream.Get().Kind != token.TKColon {
				c.fail(c.currentLine, "expected ':' after 'default'")
			}
			bodyOffset := c.builder.CodeSize()
			for c.stream.Peek().Kind != token.TKCase && c.stream.Peek().Kind != token.TKRBrace {
				c.ParseStatement()
			}
			cases = append(cases, caseBody{bodyOffset: bodyOffset, isDefault: true})
		default:
			c.fail(c.currentLine, "expected 'case' or 'default' in switch body")
		}
	}
	c.stream.Get() // '}'

	endJumpAt := c.builder.Emit(image.OpJMP, 0)
	c.builder.PatchOperand(dispatchAt+1, image.Cell(c.builder.CodeSize()))
	for _, cb := range cases {
		if !cb.isDefault {
			c.WriteChunk(cb.chunkKey)
			c.builder.Emit(image.OpJNZ, image.Cell(cb.bodyOffset))
		}
	}
	for _, cb := range cases {
		if cb.isDefault {
			c.builder.Emit(image.OpJMP, image.Cell(cb.bodyOffset))
		}
	}
	switchEnd := image.Cell(c.builder.CodeSize())
	c.builder.PatchOperand(endJumpAt+1, switchEnd)
	c.ResolveBreaks(switchEnd)
	// A switch's jumpOutLevel is deliberately never propagated: proving
	// every case (including an absent default) escapes is more
	// bookkeeping than the missing-explicit-return warning is worth, so
	// a switch is conservatively treated as if it might fall through.
	frame := c.nesting.Pop()
	c.exitScope(frame.Shadowed())
	c.regs.InvalidateAll()
}

// parseBreak parses `break;`, jumping to the nearest enclosing loop's
// or switch's exit point (spec.md §3 "break/continue with dynamic-
// pointer cleanup" — any dynpointer local declared after the loop/
// switch frame was entered and still in scope must be zeroed before
// the jump, mirroring the ordinary block-exit epilogue).
func (c *Compiler) parseBreak() {
	t := c.stream.Get()
	if !c.nesting.InLoopOrSwitch() {
		c.fail(t.Line, "'break' used outside a loop or switch")
	}
	if c.stream.Peek().Kind == token.TKSemicolon {
		c.stream.Get()
	}
	target := c.nesting.nearestLoopOrSwitchIndex()
	c.unwindForJumpOut(target, image.OpMemZeroPtr)
	at := c.builder.Emit(image.OpJMP, 0)
	c.nesting.AddBreak(at + 1)
}

func (c *Compiler) parseContinue() {
	t := c.stream.Get()
	if !c.nesting.InLoop() {
		c.fail(t.Line, "'continue' used outside a loop")
	}
	if c.stream.Peek().Kind == token.TKSemicolon {
		c.stream.Get()
	}
	target := c.nesting.nearestLoopIndex()
	c.unwindForJumpOut(target, image.OpMemZeroPtr)
	at := c.builder.Emit(image.OpJMP, 0)
	c.nesting.AddContinue(at + 1)
}

// parseReturn parses `return [expr];`. The return value is evaluated
// into a register and pushed immediately, before any cleanup code
// runs, so it is already off the register file by the time locals are
// unwound (spec.md §3 "return with return-value protection"). A
// return can be nested arbitrarily deep in blocks/loops/switches, so
// it must free every dynpointer local and shrink the runtime stack
// for the whole function itself, right here — it cannot rely on
// compileFunctionBody's own trailing epilogue, which only the
// implicit fall-off-the-end path ever reaches (spec.md §4.10,
// grounded on the original compiler's ParseReturn, which calls
// FreeDynpointersOfLocals(0)/RemoveLocalsFromStack(kFunctionScope)
// itself rather than deferring to HandleEndOfFuncBody).
func (c *Compiler) parseReturn() {
	c.stream.Get() // 'return'
	if c.stream.Peek().Kind != token.TKSemicolon {
		exprStart := c.stream.GetCursor()
		exprEnd := c.scanToDelimiter(token.TKSemicolon)
		val := c.materialize(c.EvalExpression(token.Range{Start: exprStart, Length: exprEnd - exprStart}))
		c.stream.SetCursor(exprEnd)
		c.builder.Emit(image.OpPushReg, image.Cell(val.Register))
	}
	if c.stream.Peek().Kind == token.TKSemicolon {
		c.stream.Get()
	}
	c.nesting.RecordJumpOut(returnEscapeLevel)
	zeroOp := image.OpMemZeroPtr
	if fe := c.symbols.Entry(c.currentFunction).Function; fe != nil && c.HasModifier(fe.ReturnType(), ModDynpointer) {
		// The value about to be returned may itself be one of the
		// locals being unwound; the ND variant avoids dropping its last
		// reference before the caller gets it (spec.md §4.10, grounded
		// on the original compiler's FreeDynpointersOfAllLocals_DynResult).
		zeroOp = image.OpMemZeroPtrND
	}
	c.unwindForJumpOut(returnEscapeLevel, zeroOp)
	c.builder.Emit(image.OpRet)
	c.regs.InvalidateAll()
}

func (c *Compiler) parseExpressionStatement() {
	start := c.stream.GetCursor()
	assignPos, assignKind, isAssign := c.findTopLevelAssignment()
	if isAssign {
		lhs := token.Range{Start: start, Length: assignPos - start}
		rhsStart := assignPos + 1
		rhsEnd := c.scanToDelimiter(token.TKSemicolon)
		rhs := token.Range{Start: rhsStart, Length: rhsEnd - rhsStart}
		c.Assign(lhs, rhs, assignKind)
		c.stream.SetCursor(rhsEnd)
	} else {
		end := c.scanToDelimiter(token.TKSemicolon)
		c.EvalExpression(token.Range{Start: start, Length: end - start})
		c.stream.SetCursor(end)
	}
	if c.stream.Peek().Kind == token.TKSemicolon {
		c.stream.Get()
	}
	c.regs.InvalidateAll()
}

var assignmentKinds = []token.Kind{
	token.TKAssign, token.TKPlusAssign, token.TKMinusAssign,
	token.TKStarAssign, token.TKSlashAssign, token.TKPercentAssign,
}

// findTopLevelAssignment scans from the stream's current position to
// the statement's terminating ';' looking for a depth-zero assignment
// operator.
func (c *Compiler) findTopLevelAssignment() (pos int, kind token.Kind, ok bool) {
	start := c.stream.GetCursor()
	end := c.scanToDelimiter(token.TKSemicolon)
	return c.findTopLevelAssignmentIn(token.Range{Start: start, Length: end - start})
}

// findTopLevelAssignmentIn is findTopLevelAssignment bounded by an
// explicit range instead of the next ';', so callers that already
// know their clause's end (parseFor's init/step clauses, bounded by
// ';' or ')' rather than a statement terminator) can reuse the same
// depth-zero scan.
func (c *Compiler) findTopLevelAssignmentIn(r token.Range) (pos int, kind token.Kind, ok bool) {
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
		for _, k := range assignmentKinds {
			if t.Kind == k {
				return i, k, true
			}
		}
	}
	return 0, 0, false
}
