package ghci

import "strings"

// EvalCommand is one expression extracted from a source comment to run
// automatically after a successful reload, ghcid-style.
type EvalCommand struct {
	// Command is what gets written to ghci: a multiline command is
	// wrapped in :{ / :} so it parses as one block.
	Command string
	// DisplayCommand is Command in the form the user wrote it, used
	// when reporting results.
	DisplayCommand string
	// Line is the 1-indexed source line the comment starts on.
	Line int
}

const (
	lineMarker     = "-- $> "
	multilineStart = "{- $>"
	multilineEnd   = "<$ -}"
)

// ParseEvalCommands scans source for eval comments: a line-comment form,
// "-- $> <expr>", and a block-comment form spanning from a line starting
// with "{- $>" to a line starting with "<$ -}". Leading whitespace before
// either marker is allowed; the markers must otherwise start their line,
// so text that merely contains the marker substring mid-line is ignored.
func ParseEvalCommands(source string) []EvalCommand {
	lines := strings.Split(source, "\n")
	var out []EvalCommand

	for i := 0; i < len(lines); {
		trimmed := strings.TrimLeft(lines[i], " \t")

		if strings.HasPrefix(trimmed, lineMarker) {
			expr := strings.TrimPrefix(trimmed, lineMarker)
			out = append(out, EvalCommand{
				Command:        expr,
				DisplayCommand: expr,
				Line:           i + 1,
			})
			i++
			continue
		}

		if strings.HasPrefix(trimmed, multilineStart) {
			startLine := i + 1
			inline := strings.TrimLeft(strings.TrimPrefix(trimmed, multilineStart), " \t")

			var body []string
			if inline != "" {
				body = append(body, inline)
			}

			i++
			closed := false
			for i < len(lines) {
				lt := strings.TrimLeft(lines[i], " \t")
				if strings.HasPrefix(lt, multilineEnd) {
					closed = true
					i++
					break
				}
				body = append(body, lines[i])
				i++
			}
			if !closed {
				// Unterminated block comment; nothing left to scan.
				break
			}

			bodyText := strings.Join(body, "\n")
			out = append(out, EvalCommand{
				Command:        ":{\n" + bodyText + "\n:}",
				DisplayCommand: strings.TrimSpace(bodyText),
				Line:           startLine,
			})
			continue
		}

		i++
	}

	return out
}
