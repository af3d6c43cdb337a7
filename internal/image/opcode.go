package image

import "fmt"

// Cell is one 32-bit signed slot of the code vector (spec.md §6).
// Unlike the teacher's packed instruction words (vida/opcode.go packs
// opcode + operands into a single Bytecode word with bit shifts),
// here each instruction is opcode-cell followed by zero or more plain
// operand cells — the shape spec.md §6 asks for, since operand cells
// must be independently addressable by the fixup table.
type Cell = int32

// Opcode identifies an instruction. The operand count of each opcode
// is fixed and given by OperandCount.
type Opcode Cell

const (
	OpLitToReg Opcode = iota
	OpLoadSPOffs
	OpMemRead
	OpMemReadB
	OpMemReadW
	OpMemWrite
	OpMemWriteB
	OpMemWriteW
	OpMemReadPtr
	OpMemWritePtr
	OpMemInitPtr
	OpMemZeroPtr
	OpMemZeroPtrND
	OpRegToReg
	OpPushReg
	OpPopReg
	OpPushReal
	OpSubRealStack
	OpAdd
	OpSub
	OpMul
	OpAddReg
	OpSubReg
	OpNotReg
	OpIsEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpAnd
	OpOr
	OpFGreater
	OpFGreaterEqual
	OpFLess
	OpFLessEqual
	OpStringsEqual
	OpStringsNotEq
	OpCreateString
	OpJMP
	OpJZ
	OpJNZ
	OpCall
	OpCallExt
	OpCallObj
	OpCheckNull
	OpCheckNullReg
	OpCheckBounds
	OpDynamicBounds
	OpNewArray
	OpNewUserObject
	OpRet
	OpNumFuncArgs
	OpThisBase
	OpLoopCheckOff
	OpLineNum
	OpZeroMemory

	opcodeCount
)

var opcodeNames = [...]string{
	OpLitToReg:      "LITTOREG",
	OpLoadSPOffs:    "LOADSPOFFS",
	OpMemRead:       "MEMREAD",
	OpMemReadB:      "MEMREADB",
	OpMemReadW:      "MEMREADW",
	OpMemWrite:      "MEMWRITE",
	OpMemWriteB:     "MEMWRITEB",
	OpMemWriteW:     "MEMWRITEW",
	OpMemReadPtr:    "MEMREADPTR",
	OpMemWritePtr:   "MEMWRITEPTR",
	OpMemInitPtr:    "MEMINITPTR",
	OpMemZeroPtr:    "MEMZEROPTR",
	OpMemZeroPtrND:  "MEMZEROPTRND",
	OpRegToReg:      "REGTOREG",
	OpPushReg:       "PUSHREG",
	OpPopReg:        "POPREG",
	OpPushReal:      "PUSHREAL",
	OpSubRealStack:  "SUBREALSTACK",
	OpAdd:           "ADD",
	OpSub:           "SUB",
	OpMul:           "MUL",
	OpAddReg:        "ADDREG",
	OpSubReg:        "SUBREG",
	OpNotReg:        "NOTREG",
	OpIsEqual:       "ISEQUAL",
	OpNotEqual:      "NOTEQUAL",
	OpGreater:       "GREATER",
	OpGreaterEqual:  "GREATEREQUAL",
	OpLess:          "LESS",
	OpLessEqual:     "LESSEQUAL",
	OpAnd:           "AND",
	OpOr:            "OR",
	OpFGreater:      "FGREATER",
	OpFGreaterEqual: "FGREATEREQUAL",
	OpFLess:         "FLESS",
	OpFLessEqual:    "FLESSEQUAL",
	OpStringsEqual:  "STRINGSEQUAL",
	OpStringsNotEq:  "STRINGSNOTEQ",
	OpCreateString:  "CREATESTRING",
	OpJMP:           "JMP",
	OpJZ:            "JZ",
	OpJNZ:           "JNZ",
	OpCall:          "CALL",
	OpCallExt:       "CALLEXT",
	OpCallObj:       "CALLOBJ",
	OpCheckNull:     "CHECKNULL",
	OpCheckNullReg:  "CHECKNULLREG",
	OpCheckBounds:   "CHECKBOUNDS",
	OpDynamicBounds: "DYNAMICBOUNDS",
	OpNewArray:      "NEWARRAY",
	OpNewUserObject: "NEWUSEROBJECT",
	OpRet:           "RET",
	OpNumFuncArgs:   "NUMFUNCARGS",
	OpThisBase:      "THISBASE",
	OpLoopCheckOff:  "LOOPCHECKOFF",
	OpLineNum:       "LINENUM",
	OpZeroMemory:    "ZEROMEMORY",
}

func (op Opcode) String() string {
	if int(op) >= 0 && int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// OperandCount is the fixed number of operand cells following each
// opcode cell; an opcode marked 0 is a single cell. OpCall always has
// exactly one operand, the callee address cell, which also carries
// the fixup while the call is still pending.
var operandCount = [...]int{
	OpLitToReg: 2, OpLoadSPOffs: 1,
	OpMemRead: 0, OpMemReadB: 0, OpMemReadW: 0,
	OpMemWrite: 1, OpMemWriteB: 1, OpMemWriteW: 1,
	OpMemReadPtr: 0, OpMemWritePtr: 1, OpMemInitPtr: 1, OpMemZeroPtr: 1, OpMemZeroPtrND: 1,
	OpRegToReg: 2, OpPushReg: 1, OpPopReg: 1,
	OpPushReal: 1, OpSubRealStack: 1,
	OpAdd: 2, OpSub: 2, OpMul: 2, OpAddReg: 1, OpSubReg: 1, OpNotReg: 1,
	OpIsEqual: 2, OpNotEqual: 2, OpGreater: 2, OpGreaterEqual: 2, OpLess: 2, OpLessEqual: 2,
	OpAnd: 2, OpOr: 2,
	OpFGreater: 2, OpFGreaterEqual: 2, OpFLess: 2, OpFLessEqual: 2,
	OpStringsEqual: 2, OpStringsNotEq: 2, OpCreateString: 1,
	OpJMP: 1, OpJZ: 1, OpJNZ: 1,
	OpCall: 1, OpCallExt: 1, OpCallObj: 1,
	OpCheckNull: 0, OpCheckNullReg: 1, OpCheckBounds: 1, OpDynamicBounds: 0,
	OpNewArray: 2, OpNewUserObject: 1,
	OpRet: 0, OpNumFuncArgs: 1, OpThisBase: 1, OpLoopCheckOff: 0, OpLineNum: 1,
	OpZeroMemory: 1,
}

// OperandCount returns how many operand cells follow this opcode's cell.
func (op Opcode) OperandCount() int {
	if int(op) >= 0 && int(op) < len(operandCount) {
		return operandCount[op]
	}
	return 0
}
