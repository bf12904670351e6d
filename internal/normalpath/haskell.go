package normalpath

import (
	"path/filepath"
	"strings"
)

// haskellExtensions lists Haskell source extensions in priority order,
// used both for recognition (any match) and for resolving a bare module
// name to a file (first existing extension wins).
var haskellExtensions = []string{
	"hs", "lhs", "hsboot", "hs-boot", "hsc", "x", "y", "c2hs", "gc",
}

// HaskellExtensions returns the fixed priority-ordered list of
// recognized Haskell source extensions (without the leading dot).
func HaskellExtensions() []string {
	out := make([]string, len(haskellExtensions))
	copy(out, haskellExtensions)
	return out
}

// IsHaskellSourceFile reports whether path's lowercase extension is one
// of the recognized Haskell source extensions.
func IsHaskellSourceFile(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}
	for _, e := range haskellExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
