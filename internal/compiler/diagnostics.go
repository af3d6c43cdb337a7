package compiler

import "fmt"

// Severity classifies a Diagnostic (spec.md §6 "Diagnostics", §7 taxonomy).
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityUserError
	SeverityInternalError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "Warning"
	case SeverityUserError:
		return "UserError"
	case SeverityInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Diagnostic is one compiler message: (section, line, text), plus an
// optional cross-reference to a prior declaration (spec.md §7
// "Locality" / "User-visible behaviour").
type Diagnostic struct {
	Severity   Severity
	Section    int
	SectionStr string
	Line       int
	Message    string
	// RefLine/RefSectionStr, when RefLine != 0, point at a prior
	// declaration referenced by this diagnostic ("see line N").
	RefLine       int
	RefSectionStr string
}

func (d Diagnostic) String() string {
	prefix := ""
	if d.Severity == SeverityInternalError {
		prefix = "Internal error: "
	}
	loc := fmt.Sprintf("%s:%d", d.SectionStr, d.Line)
	if d.RefLine != 0 {
		if d.RefSectionStr != "" && d.RefSectionStr != d.SectionStr {
			return fmt.Sprintf("%s%s: %s (see %s line %d)", prefix, loc, d.Message, d.RefSectionStr, d.RefLine)
		}
		return fmt.Sprintf("%s%s: %s (see line %d)", prefix, loc, d.Message, d.RefLine)
	}
	return fmt.Sprintf("%s%s: %s", prefix, loc, d.Message)
}

// signal is the payload of the single non-local control-flow
// mechanism spec.md §7 requires: every parser-side failure panics
// with a signal, and Compile (driver.go) is the only recover() site.
// This is the idiomatic Go rendering of the teacher's single
// os.Exit-based error path (vida/gen.go unexpectedTokenError and
// friends) — see SPEC_FULL.md §2.3.
type signal struct {
	diag Diagnostic
}

// fail raises a UserError and unwinds to the driver.
func (c *Compiler) fail(line int, format string, args ...any) {
	panic(signal{diag: Diagnostic{
		Severity:   SeverityUserError,
		Section:    c.currentSection,
		SectionStr: c.sectionName(c.currentSection),
		Line:       line,
		Message:    fmt.Sprintf(format, args...),
	}})
}

// failRef is fail but with a "see line N" cross-reference.
func (c *Compiler) failRef(line int, refLine int, refSection int, format string, args ...any) {
	panic(signal{diag: Diagnostic{
		Severity:      SeverityUserError,
		Section:       c.currentSection,
		SectionStr:    c.sectionName(c.currentSection),
		Line:          line,
		Message:       fmt.Sprintf(format, args...),
		RefLine:       refLine,
		RefSectionStr: c.sectionName(refSection),
	}})
}

// internal raises an InternalError: an invariant the compiler believes
// cannot fail (spec.md §7 taxonomy).
func (c *Compiler) internal(line int, format string, args ...any) {
	panic(signal{diag: Diagnostic{
		Severity:   SeverityInternalError,
		Section:    c.currentSection,
		SectionStr: c.sectionName(c.currentSection),
		Line:       line,
		Message:    fmt.Sprintf(format, args...),
	}})
}

// warn appends a Warning without unwinding (spec.md §7: dead code
// after return/break/continue, zero-size variables, 0 used where
// null/""/0.0 preferred, name hides a function/type, missing explicit
// return).
func (c *Compiler) warn(line int, format string, args ...any) {
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity:   SeverityWarning,
		Section:    c.currentSection,
		SectionStr: c.sectionName(c.currentSection),
		Line:       line,
		Message:    fmt.Sprintf(format, args...),
	})
}
