package ghcmessage

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ghciwatch/ghciwatch/internal/normalpath"
)

var (
	ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][\s\S]*?(?:\x07|\x1b\\)|\x1b[@-Z\\\-_]`)

	compilingRe = regexp.MustCompile(`^\s*\[\s*\d+\s+of\s+\d+\]\s+Compiling\s+(\S+)\s+\(\s*(.*?)\s*\)(.*)$`)

	// path : range : severity : rest
	diagnosticRe = regexp.MustCompile(`^(.+?):(\d+:\d+(?:-\d+)?|\(\d+,\d+\)-\(\d+,\d+\)):\s*(?i:(error|warning))\s*:?\s?(.*)$`)

	cantFindFileRe = regexp.MustCompile(`(?i)^(<no location info>|<compiler-generated code>|<interactive>):\s*(error|warning)\s*:\s*can't find file:\s*(.+)$`)
	noLocationRe   = regexp.MustCompile(`(?i)^(<no location info>|<compiler-generated code>|<interactive>):\s*(error|warning)\s*:?\s?(.*)$`)

	loadedConfigRe = regexp.MustCompile(`^Loaded GHCi configuration from (.+)$`)

	summaryRe = regexp.MustCompile(`^(Ok|Failed), (\d+|no|one|two|three|four|five|six) modules? loaded\.$`)

	cycleHeaderRe = regexp.MustCompile(`^Module (?:graph contains|imports form) a cycle:$`)
	cycleLineRe   = regexp.MustCompile(`^\s*module\s+(.+?)\s+\(([^)]+)\)\s*$`)

	pipeLineRe = regexp.MustCompile(`^\d+\s*\|`)
)

var summaryWords = map[string]int{
	"no": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
}

// StripANSI removes CSI, OSC, and bare ESC-prefixed escape sequences
// from s. It is exposed because the incremental reader needs the same
// stripping when matching the prompt marker at line start.
func StripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// Parse converts a UTF-8 chunk (the text between two prompt sentinels)
// into an ordered sequence of GhcMessages. Parse is pure, total, and
// never fails: unrecognized lines are silently dropped. The caller
// guarantees chunk is valid UTF-8.
func Parse(chunk string) []GhcMessage {
	clean := StripANSI(chunk)
	lines := strings.Split(clean, "\n")
	// A trailing "\n" produces a final empty element; drop it so it
	// isn't treated as a blank line requiring its own iteration.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var out []GhcMessage
	i := 0
	for i < len(lines) {
		line := lines[i]

		if line == "" {
			i++
			continue
		}

		if m, ok := tryCompiling(line); ok {
			out = append(out, m)
			i++
			continue
		}

		if msgs, next, ok := tryImportCycle(lines, i); ok {
			out = append(out, msgs...)
			i = next
			continue
		}

		if m, ok := tryCantFindFile(line); ok {
			out = append(out, m)
			i++
			continue
		}

		if m, next, ok := tryDiagnostic(lines, i); ok {
			out = append(out, m)
			i = next
			continue
		}

		if m, next, ok := tryNoLocationInfo(lines, i); ok {
			out = append(out, m)
			i = next
			continue
		}

		if m, ok := tryLoadedConfig(line); ok {
			out = append(out, m)
			i++
			continue
		}

		if m, ok := tryCompilationSummary(line); ok {
			out = append(out, m)
			i++
			continue
		}

		// Unrecognized line: dropped silently. The parser has no logger
		// of its own (it owns no state); callers that care can log at
		// the chunk level.
		i++
	}
	return out
}

func tryCompiling(line string) (GhcMessage, bool) {
	m := compilingRe.FindStringSubmatch(line)
	if m == nil {
		return GhcMessage{}, false
	}
	name := m[1]
	items := strings.Split(m[2], ",")
	var sourcePath string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if normalpath.IsHaskellSourceFile(item) {
			sourcePath = item
			break
		}
	}
	if sourcePath == "" {
		return GhcMessage{}, false
	}
	return GhcMessage{
		Kind:      KindCompiling,
		Compiling: CompilingModule{Name: name, Path: sourcePath},
	}, true
}

func severityFromWord(w string) Severity {
	if strings.EqualFold(w, "error") {
		return Error
	}
	return Warning
}

func tryDiagnostic(lines []string, i int) (GhcMessage, int, bool) {
	m := diagnosticRe.FindStringSubmatch(lines[i])
	if m == nil {
		return GhcMessage{}, i, false
	}
	path := m[1]
	span := parseSpan(m[2])
	sev := severityFromWord(m[3])
	body, next := collectBody(lines, i, m[4])
	return GhcMessage{
		Kind: KindDiagnostic,
		Diagnostic: GhcDiagnostic{
			Severity: sev,
			Path:     path,
			Span:     span,
			Message:  body,
		},
	}, next, true
}

func tryCantFindFile(line string) (GhcMessage, bool) {
	m := cantFindFileRe.FindStringSubmatch(line)
	if m == nil {
		return GhcMessage{}, false
	}
	sev := severityFromWord(m[2])
	return GhcMessage{
		Kind: KindDiagnostic,
		Diagnostic: GhcDiagnostic{
			Severity: sev,
			Path:     "",
			Span:     Span{Kind: SpanNone},
			Message:  "can't find file: " + m[3],
		},
	}, true
}

func tryNoLocationInfo(lines []string, i int) (GhcMessage, int, bool) {
	m := noLocationRe.FindStringSubmatch(lines[i])
	if m == nil {
		return GhcMessage{}, i, false
	}
	sev := severityFromWord(m[2])
	body, next := collectBody(lines, i, m[3])
	return GhcMessage{
		Kind: KindDiagnostic,
		Diagnostic: GhcDiagnostic{
			Severity: sev,
			Path:     "",
			Span:     Span{Kind: SpanNone},
			Message:  body,
		},
	}, next, true
}

func tryLoadedConfig(line string) (GhcMessage, bool) {
	m := loadedConfigRe.FindStringSubmatch(line)
	if m == nil {
		return GhcMessage{}, false
	}
	return GhcMessage{Kind: KindLoadConfig, LoadConfig: m[1]}, true
}

func tryCompilationSummary(line string) (GhcMessage, bool) {
	m := summaryRe.FindStringSubmatch(line)
	if m == nil {
		return GhcMessage{}, false
	}
	result := Ok
	if m[1] == "Failed" {
		result = Err
	}
	n, ok := summaryWords[m[2]]
	if !ok {
		parsed, err := strconv.Atoi(m[2])
		if err != nil {
			return GhcMessage{}, false
		}
		n = parsed
	}
	return GhcMessage{Kind: KindSummary, Summary: CompilationSummary{Result: result, ModulesLoaded: n}}, true
}

func tryImportCycle(lines []string, i int) ([]GhcMessage, int, bool) {
	if !cycleHeaderRe.MatchString(lines[i]) {
		return nil, i, false
	}
	header := lines[i]
	j := i + 1
	var body strings.Builder
	body.WriteString(header)

	type entry struct {
		path string
	}
	seen := make(map[string]bool)
	var entries []entry

	for j < len(lines) && isIndented(lines[j]) {
		m := cycleLineRe.FindStringSubmatch(lines[j])
		body.WriteString("\n")
		body.WriteString(lines[j])
		if m != nil {
			_ = stripQuotedIdent(strings.TrimSpace(m[1])) // module name, not carried on GhcDiagnostic
			path := filepath.Clean(strings.TrimSpace(m[2]))
			if !seen[path] {
				seen[path] = true
				entries = append(entries, entry{path: path})
			}
		}
		j++
	}

	if len(entries) == 0 {
		// Header alone, with no recognizable module lines: per rule 8,
		// an unparseable line is dropped rather than reported.
		return nil, j, true
	}

	full := body.String()
	msgs := make([]GhcMessage, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, GhcMessage{
			Kind: KindDiagnostic,
			Diagnostic: GhcDiagnostic{
				Severity: Error,
				Path:     e.path,
				Span:     Span{Kind: SpanNone},
				Message:  full,
			},
		})
	}
	return msgs, j, true
}

// stripQuotedIdent removes one layer of quoting from a single-quoted
// identifier, accepting Unicode ‘…’, ASCII `…', or no quoting at all.
// The quoting scheme is fixed on the first character read.
func stripQuotedIdent(s string) string {
	switch {
	case strings.HasPrefix(s, "‘") && strings.HasSuffix(s, "’"):
		return strings.TrimSuffix(strings.TrimPrefix(s, "‘"), "’")
	case strings.HasPrefix(s, "`") && strings.HasSuffix(s, "'"):
		return strings.TrimSuffix(strings.TrimPrefix(s, "`"), "'")
	default:
		return s
	}
}

var (
	multiLineSpanRe = regexp.MustCompile(`^\((\d+),(\d+)\)-\((\d+),(\d+)\)$`)
	singleLineSpanRe = regexp.MustCompile(`^(\d+):(\d+)-(\d+)$`)
	pointSpanRe      = regexp.MustCompile(`^(\d+):(\d+)$`)
)

func parseSpan(raw string) Span {
	if m := multiLineSpanRe.FindStringSubmatch(raw); m != nil {
		return Span{Kind: SpanMultiLine, Line: atoi(m[1]), Col1: atoi(m[2]), Line2: atoi(m[3]), Col2: atoi(m[4])}
	}
	if m := singleLineSpanRe.FindStringSubmatch(raw); m != nil {
		return Span{Kind: SpanSingleLine, Line: atoi(m[1]), Col1: atoi(m[2]), Col2: atoi(m[3])}
	}
	if m := pointSpanRe.FindStringSubmatch(raw); m != nil {
		return Span{Kind: SpanPoint, Line: atoi(m[1]), Col1: atoi(m[2])}
	}
	return Span{Kind: SpanNone}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func collectBody(lines []string, i int, firstRest string) (string, int) {
	message := firstRest
	j := i + 1
	for j < len(lines) {
		line := lines[j]
		if line == "" {
			break
		}
		if isIndented(line) || pipeLineRe.MatchString(line) {
			message += "\n" + line
			j++
			continue
		}
		break
	}
	return message, j
}

func isIndented(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}
