// Package glob implements a whitelist/ignore glob matcher: a sequence
// of patterns with .gitignore matching semantics, but with one
// inversion — a leading "!" marks an *ignore* pattern rather than a
// re-include. Patterns are evaluated in declaration order and the
// last pattern that matches a path decides its outcome.
package glob

import (
	"fmt"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// Outcome is the three-valued result of matching a path against a
// Matcher's pattern list.
type Outcome int

const (
	// None means no pattern matched the path at all.
	None Outcome = iota
	// Whitelist means the last matching pattern was a plain (non-"!")
	// pattern — the path is included.
	Whitelist
	// Ignore means the last matching pattern was "!"-prefixed — the
	// path is excluded.
	Ignore
)

func (o Outcome) String() string {
	switch o {
	case Whitelist:
		return "whitelist"
	case Ignore:
		return "ignore"
	default:
		return "none"
	}
}

// pattern is one compiled glob paired with its polarity.
type pattern struct {
	ignore  bool // true if this pattern was "!"-prefixed
	compiled *gitignore.GitIgnore
	raw     string
}

// Matcher evaluates a path against an ordered list of patterns. A
// Matcher with no patterns matches nothing (every path yields None).
type Matcher struct {
	patterns []pattern
}

// Compile builds a Matcher from raw pattern strings, in the order given.
// Each pattern uses .gitignore glob syntax (including "**" and trailing
// "/" for directory-only patterns); a leading "!" designates an ignore
// pattern instead of .gitignore's "re-include" meaning.
//
// The underlying gitignore.GitIgnore library is used strictly as a
// single-glob matcher (the "!" prefix is stripped before compiling, so
// its own negation bookkeeping never applies): the whitelist/ignore
// inversion and the last-match-wins precedence are implemented here,
// not inherited from the library.
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: make([]pattern, 0, len(patterns))}
	for _, raw := range patterns {
		isIgnore := strings.HasPrefix(raw, "!")
		glob := strings.TrimPrefix(raw, "!")
		if glob == "" {
			continue
		}
		compiled := gitignore.CompileIgnoreLines(glob)
		if compiled == nil {
			return nil, fmt.Errorf("compiling glob pattern %q", raw)
		}
		m.patterns = append(m.patterns, pattern{ignore: isIgnore, compiled: compiled, raw: raw})
	}
	return m, nil
}

// Match returns the outcome for path: the polarity of the last pattern
// in declaration order whose glob matches, or None if nothing matched.
func (m *Matcher) Match(path string) Outcome {
	if m == nil {
		return None
	}
	outcome := None
	for _, p := range m.patterns {
		if !p.compiled.MatchesPath(path) {
			continue
		}
		if p.ignore {
			outcome = Ignore
		} else {
			outcome = Whitelist
		}
	}
	return outcome
}

// IsWhitelisted reports whether the last matching pattern for path (if
// any) was a whitelist pattern. This is the question ghci.PlanReload
// asks of the reload-globs and restart-globs matchers.
func (m *Matcher) IsWhitelisted(path string) bool {
	return m.Match(path) == Whitelist
}
