// Package token defines the wire format produced by the Scanner and
// consumed by the compiler: token kinds, literal payloads, and the
// random-access token Stream the compiler's Source Cursor is built on.
//
// The Scanner itself is an external collaborator (spec.md §1) — this
// package only fixes the interface between it and the compiler.
package token

import "fmt"

// Kind is the syntactic category of a token. Unlike a compiler Symbol
// (interned name -> SymbolEntry, see package compiler), a Kind never
// changes meaning across a compile: TKIdentifier always means "an
// identifier token", whereas the identifier's Symbol is resolved by
// the compiler against its own symbol table.
type Kind int

const (
	TKEOF Kind = iota
	TKIdentifier
	TKIntLiteral
	TKFloatLiteral
	TKStringLiteral

	// Keywords.
	TKEnum
	TKStruct
	TKExtends
	TKManaged
	TKAutoptr
	TKBuiltin
	TKStringstruct
	TKImport
	TKExport
	TKReadonly
	TKWriteprotected
	TKProtected
	TKStatic
	TKConst
	TKAttribute
	TKThis
	TKNew
	TKNull
	TKVoid
	TKNoloopcheck
	TKIf
	TKElse
	TKWhile
	TKDo
	TKFor
	TKSwitch
	TKCase
	TKDefault
	TKFallthrough
	TKBreak
	TKContinue
	TKReturn

	// Punctuation / delimiters.
	TKLBrace
	TKRBrace
	TKLParen
	TKRParen
	TKLBracket
	TKRBracket
	TKSemicolon
	TKComma
	TKColon
	TKColonColon
	TKDot
	TKQuestion
	TKEllipsis

	// Operators (precedence/variant data lives in the compiler's
	// operator SymbolEntry, not here — this is only lexical shape).
	TKAssign
	TKPlusAssign
	TKMinusAssign
	TKStarAssign
	TKSlashAssign
	TKPercentAssign
	TKPlus
	TKMinus
	TKStar
	TKSlash
	TKPercent
	TKIncrement
	TKDecrement
	TKEq
	TKNeq
	TKLt
	TKLte
	TKGt
	TKGte
	TKAndAnd
	TKOrOr
	TKNot
	TKAmp
	TKPipe
	TKCaret
	TKTilde
	TKShl
	TKShr
)

var keywords = map[string]Kind{
	"enum":           TKEnum,
	"struct":         TKStruct,
	"extends":        TKExtends,
	"managed":        TKManaged,
	"autoptr":        TKAutoptr,
	"builtin":        TKBuiltin,
	"stringstruct":   TKStringstruct,
	"import":         TKImport,
	"export":         TKExport,
	"readonly":       TKReadonly,
	"writeprotected":  TKWriteprotected,
	"protected":      TKProtected,
	"static":         TKStatic,
	"const":          TKConst,
	"attribute":      TKAttribute,
	"this":           TKThis,
	"new":            TKNew,
	"null":           TKNull,
	"void":           TKVoid,
	"noloopcheck":    TKNoloopcheck,
	"if":             TKIf,
	"else":           TKElse,
	"while":          TKWhile,
	"do":             TKDo,
	"for":            TKFor,
	"switch":         TKSwitch,
	"case":           TKCase,
	"default":        TKDefault,
	"fallthrough":    TKFallthrough,
	"break":          TKBreak,
	"continue":       TKContinue,
	"return":         TKReturn,
}

// LookupKeyword reports whether name is a keyword and its Kind.
func LookupKeyword(name string) (Kind, bool) {
	k, ok := keywords[name]
	return k, ok
}

var kindNames = map[Kind]string{
	TKEOF: "EOF", TKIdentifier: "identifier", TKIntLiteral: "int-literal",
	TKFloatLiteral: "float-literal", TKStringLiteral: "string-literal",
	TKLBrace: "{", TKRBrace: "}", TKLParen: "(", TKRParen: ")",
	TKLBracket: "[", TKRBracket: "]", TKSemicolon: ";", TKComma: ",",
	TKColon: ":", TKColonColon: "::", TKDot: ".", TKQuestion: "?",
	TKEllipsis: "...", TKAssign: "=", TKPlus: "+", TKMinus: "-",
	TKStar: "*", TKSlash: "/", TKPercent: "%", TKIncrement: "++",
	TKDecrement: "--", TKEq: "==", TKNeq: "!=", TKLt: "<", TKLte: "<=",
	TKGt: ">", TKGte: ">=", TKAndAnd: "&&", TKOrOr: "||", TKNot: "!",
	TKAmp: "&", TKPipe: "|", TKCaret: "^", TKTilde: "~", TKShl: "<<",
	TKShr: ">>",
}

func (k Kind) String() string {
	for name, kw := range keywords {
		if kw == k {
			return name
		}
	}
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical unit, as produced by the Scanner.
type Token struct {
	Kind    Kind
	Text    string // identifier name, or raw string-literal content
	IntVal  int64
	FltVal  float64
	Section int // source section id, see Stream
	Line    int // 1-based line within Section
}

func (t Token) String() string {
	if t.Text != "" {
		return fmt.Sprintf("%v(%q)@%d:%d", t.Kind, t.Text, t.Section, t.Line)
	}
	return fmt.Sprintf("%v@%d:%d", t.Kind, t.Section, t.Line)
}
