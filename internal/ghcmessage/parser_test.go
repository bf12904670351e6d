package ghcmessage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_CompilingLine(t *testing.T) {
	msgs := Parse("[1 of 3] Compiling Foo ( Foo.hs, Foo.o, interpreted )\n")
	want := []GhcMessage{{Kind: KindCompiling, Compiling: CompilingModule{Name: "Foo", Path: "Foo.hs"}}}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_CompilationSummaryOk(t *testing.T) {
	msgs := Parse("Ok, six modules loaded.\n")
	want := []GhcMessage{{Kind: KindSummary, Summary: CompilationSummary{Result: Ok, ModulesLoaded: 6}}}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_CompilationSummaryDigits(t *testing.T) {
	msgs := Parse("Failed, 12 modules loaded.\n")
	want := []GhcMessage{{Kind: KindSummary, Summary: CompilationSummary{Result: Err, ModulesLoaded: 12}}}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_CantFindFile(t *testing.T) {
	msgs := Parse("<no location info>: error: can't find file: Why.hs\n")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d: %+v", len(msgs), msgs)
	}
	d := msgs[0].Diagnostic
	if msgs[0].Kind != KindDiagnostic || d.Severity != Error || d.Path != "" || d.Span.Kind != SpanNone {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
	if d.Message != "can't find file: Why.hs" {
		t.Errorf("Message = %q", d.Message)
	}
}

func TestParse_GenericDiagnosticSingleLine(t *testing.T) {
	msgs := Parse("src/Foo.hs:10:5-12: warning: [GHC-63394] Defaulting the following constraints\n")
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %+v", msgs)
	}
	d := msgs[0].Diagnostic
	if d.Severity != Warning || d.Path != "src/Foo.hs" {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
	if d.Span.Kind != SpanSingleLine || d.Span.Line != 10 || d.Span.Col1 != 5 || d.Span.Col2 != 12 {
		t.Errorf("Span = %+v", d.Span)
	}
	if d.Message != "[GHC-63394] Defaulting the following constraints" {
		t.Errorf("Message = %q", d.Message)
	}
}

func TestParse_GenericDiagnosticMultiLineBody(t *testing.T) {
	input := "src/Foo.hs:10:5: error:\n" +
		"    Variable not in scope: foo\n" +
		"   |\n" +
		"12 | foo\n" +
		"   |\n" +
		"Not indented, unrelated line\n"
	msgs := Parse(input)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d: %+v", len(msgs), msgs)
	}
	d := msgs[0].Diagnostic
	wantMsg := "\n    Variable not in scope: foo\n   |\n12 | foo\n   |"
	if d.Message != wantMsg {
		t.Errorf("Message = %q, want %q", d.Message, wantMsg)
	}
}

func TestParse_MultiLineSpan(t *testing.T) {
	msgs := Parse("src/Foo.hs:(10,5)-(12,8): error: oops\n")
	d := msgs[0].Diagnostic
	if d.Span.Kind != SpanMultiLine {
		t.Fatalf("Span.Kind = %v", d.Span.Kind)
	}
	if d.Span.Line != 10 || d.Span.Col1 != 5 || d.Span.Line2 != 12 || d.Span.Col2 != 8 {
		t.Errorf("Span = %+v", d.Span)
	}
}

func TestParse_LoadedConfig(t *testing.T) {
	msgs := Parse("Loaded GHCi configuration from /home/user/.ghci\n")
	want := []GhcMessage{{Kind: KindLoadConfig, LoadConfig: "/home/user/.ghci"}}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_ImportCycleDedup(t *testing.T) {
	input := "Module imports form a cycle:\n" +
		"  module `A' (src/A.hs)\n" +
		"  module `B' (src/B.hs)\n" +
		"  module `C' (src/C.hs)\n" +
		"  module `A' (src/A.hs)\n"
	msgs := Parse(input)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 deduplicated diagnostics, got %d: %+v", len(msgs), msgs)
	}
	paths := map[string]bool{}
	for _, m := range msgs {
		if m.Kind != KindDiagnostic {
			t.Fatalf("expected diagnostic, got kind %v", m.Kind)
		}
		paths[m.Diagnostic.Path] = true
	}
	for _, want := range []string{"src/A.hs", "src/B.hs", "src/C.hs"} {
		if !paths[want] {
			t.Errorf("missing diagnostic for %s", want)
		}
	}
}

func TestParse_ImportCycleUnicodeQuotes(t *testing.T) {
	input := "Module graph contains a cycle:\n" +
		"  module ‘A’ (src/A.hs)\n"
	msgs := Parse(input)
	if len(msgs) != 1 || msgs[0].Diagnostic.Path != "src/A.hs" {
		t.Fatalf("unexpected result: %+v", msgs)
	}
}

func TestParse_IgnoresUnrecognizedLines(t *testing.T) {
	msgs := Parse("some random line\nanother one\n")
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %+v", msgs)
	}
}

func TestParse_StripsANSIBeforeMatching(t *testing.T) {
	msgs := Parse("\x1b[1mOk, one module loaded.\x1b[0m\n")
	want := []GhcMessage{{Kind: KindSummary, Summary: CompilationSummary{Result: Ok, ModulesLoaded: 1}}}
	if diff := cmp.Diff(want, msgs); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestGhcDiagnostic_DisplayRoundTrip(t *testing.T) {
	d := GhcDiagnostic{
		Severity: Error,
		Path:     "src/Foo.hs",
		Span:     Span{Kind: SpanPoint, Line: 3, Col1: 7},
		Message:  "parse error",
	}
	want := "src/Foo.hs:3:7: error: parse error"
	if got := d.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestGhcDiagnostic_DisplayNoLocationInfo(t *testing.T) {
	d := GhcDiagnostic{Severity: Warning, Message: "eval failed"}
	want := "<no location info>: warning: eval failed"
	if got := d.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestGhcDiagnostic_DisplayMessageStartingWithNewline(t *testing.T) {
	d := GhcDiagnostic{Severity: Error, Path: "A.hs", Message: "\nbody line"}
	want := "A.hs: error:\nbody line"
	if got := d.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
