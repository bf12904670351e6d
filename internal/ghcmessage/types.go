// Package ghcmessage implements the compiler-output parser: a pure,
// total function from a chunk of ghci stdout to an ordered sequence
// of typed GhcMessages.
package ghcmessage

import (
	"fmt"
	"strings"
)

// Severity is a GHC diagnostic's severity.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// SpanKind tags which shape of position-range a Span carries.
type SpanKind int

const (
	// SpanNone is an empty range (e.g. "<no location info>" diagnostics).
	SpanNone SpanKind = iota
	// SpanPoint is a zero-length (line,col) position: "L:C:".
	SpanPoint
	// SpanSingleLine is a single-line column range: "L:C1-C2:".
	SpanSingleLine
	// SpanMultiLine is a range across lines: "(L1,C1)-(L2,C2):".
	SpanMultiLine
)

// Span is a GHC source position-range, one of four shapes.
type Span struct {
	Kind SpanKind
	// For SpanPoint and SpanSingleLine, Line/Col1 hold the (only) line
	// and starting column; SpanSingleLine also sets Col2.
	Line, Col1, Col2 int
	// For SpanMultiLine, the full (Line,Col1)-(Line2,Col2) range.
	Line2 int
}

// String renders the span exactly as it appears before the trailing
// colon in a diagnostic's rendered form ("" for SpanNone).
func (s Span) String() string {
	switch s.Kind {
	case SpanPoint:
		return fmt.Sprintf("%d:%d", s.Line, s.Col1)
	case SpanSingleLine:
		return fmt.Sprintf("%d:%d-%d", s.Line, s.Col1, s.Col2)
	case SpanMultiLine:
		return fmt.Sprintf("(%d,%d)-(%d,%d)", s.Line, s.Col1, s.Line2, s.Col2)
	default:
		return ""
	}
}

// GhcDiagnostic is a single compiler diagnostic: severity, an optional
// source path, a position-range, and verbatim message text (which may
// contain embedded newlines and a leading "[GHC-NNNNN]" code).
type GhcDiagnostic struct {
	Severity Severity
	Path     string // empty means "no location info"
	Span     Span
	Message  string
}

// String renders the diagnostic's minimally structured round-trip form:
//
//	<path|"<no location info>">[:<range>]: <severity>: <message>
//
// with a single space between the severity colon and the message,
// unless the message begins with a newline (in which case no extra
// space is inserted, since the message itself supplies the layout).
func (d GhcDiagnostic) String() string {
	var b strings.Builder
	if d.Path != "" {
		b.WriteString(d.Path)
	} else {
		b.WriteString("<no location info>")
	}
	if s := d.Span.String(); s != "" {
		b.WriteByte(':')
		b.WriteString(s)
	}
	b.WriteString(": ")
	b.WriteString(d.Severity.String())
	b.WriteString(":")
	if !strings.HasPrefix(d.Message, "\n") {
		b.WriteByte(' ')
	}
	b.WriteString(d.Message)
	return b.String()
}

// SummaryResult is the outcome of a CompilationSummary.
type SummaryResult int

const (
	Ok SummaryResult = iota
	Err
)

// CompilationSummary is the "Ok, N modules loaded." / "Failed, N modules
// loaded." line GHC prints at the end of a load.
type CompilationSummary struct {
	Result        SummaryResult
	ModulesLoaded int
}

// CompilingModule is emitted per "[n of m] Compiling ..." line.
type CompilingModule struct {
	Name string // dotted module name
	Path string // resolved source path
}

// Kind tags which variant a GhcMessage holds.
type Kind int

const (
	KindCompiling Kind = iota
	KindDiagnostic
	KindLoadConfig
	KindSummary
)

// GhcMessage is the tagged union {Compiling | Diagnostic | LoadConfig |
// Summary} the parser emits. Exactly one of the typed fields is set,
// matching Kind.
type GhcMessage struct {
	Kind       Kind
	Compiling  CompilingModule
	Diagnostic GhcDiagnostic
	LoadConfig string // path the configuration was loaded from
	Summary    CompilationSummary
}
