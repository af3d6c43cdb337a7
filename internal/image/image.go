// Package image defines the compiled-script output format: the code
// vector, the fixup table, the global-data image, the string pool,
// the import/export tables and per-function metadata (spec.md §3, §6).
// A companion virtual machine (out of scope for this module, spec.md
// §1) is the consumer of these types.
package image

import "fmt"

// FixupType classifies what a fixup entry relocates.
type FixupType int

const (
	FixupGlobalData FixupType = iota
	FixupImport
	FixupCode
	FixupString
)

func (t FixupType) String() string {
	switch t {
	case FixupGlobalData:
		return "GlobalData"
	case FixupImport:
		return "Import"
	case FixupCode:
		return "Code"
	case FixupString:
		return "String"
	default:
		return fmt.Sprintf("FixupType(%d)", int(t))
	}
}

// Fixup marks one code cell as needing relocation at load time.
type Fixup struct {
	CodeOffset int
	Type       FixupType
}

// ExportEntry describes one exported function or global.
type ExportEntry struct {
	Name        string
	Offset      int
	ArityEncode int32 // arity + 100*variadicFlag for functions; 0 for globals.
}

// FunctionEntry is per-function metadata emitted for every compiled function.
type FunctionEntry struct {
	Name       string
	CodeOffset int
	ParamCount int
}

// Image is the complete output of a compile: everything a loader needs
// to relocate and a VM needs to run, see spec.md §6.
type Image struct {
	Code       []Cell
	Fixups     []Fixup
	GlobalData []Cell
	Strings    []byte
	Imports    []string // function imports suffixed "^N" (N = arity + 100*variadic), empty string = pruned.
	Exports    []ExportEntry
	Functions  []FunctionEntry
}

// ImportArityEncoding packs an import function's arity and variadic
// flag the way spec.md §6 specifies: arity + 100*variadicFlag.
func ImportArityEncoding(arity int, variadic bool) int {
	if variadic {
		return arity + 100
	}
	return arity
}

// Options are the recognised compile options (spec.md §6).
type Options struct {
	// ExportAll exports every defined function regardless of `export` clauses.
	ExportAll bool
	// NoImportOverride disallows a {body} for a function already declared import.
	NoImportOverride bool
	// OldStrings permits the legacy `string` buffer type as a variable type.
	OldStrings bool
}
