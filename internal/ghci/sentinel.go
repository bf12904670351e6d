package ghci

import (
	"fmt"
	"strconv"
)

// PromptSentinel is installed as ghci's prompt and prompt-cont
// immediately after startup. It must never occur in normal compiler
// output.
const PromptSentinel = "###~GHCIWATCH-PROMPT~###"

// syncCounter hands out monotonically increasing sync sentinels, one
// per session. It is owned by a single Driver instance, not the
// process.
type syncCounter struct {
	n int
}

// next renders the next sync sentinel and a Haskell character-list
// literal expression that prints it, sidestepping OverloadedStrings
// and RebindableSyntax by never emitting a string literal.
func (c *syncCounter) next() (sentinel, putStrLnExpr string) {
	c.n++
	sentinel = fmt.Sprintf("###~GHCIWATCH-SYNC-%d~###", c.n)
	putStrLnExpr = fmt.Sprintf("System.IO.putStrLn %s", charListLiteral(sentinel))
	return sentinel, putStrLnExpr
}

// charListLiteral renders s as a Haskell [Char] literal, e.g. "ab" ->
// "['a','b']", so it type-checks regardless of OverloadedStrings.
func charListLiteral(s string) string {
	var b []byte
	b = append(b, '[')
	first := true
	for _, r := range s {
		if !first {
			b = append(b, ',')
		}
		first = false
		b = append(b, []byte(strconv.QuoteRune(r))...)
	}
	b = append(b, ']')
	return string(b)
}
