// Package normalpath implements the canonical path identifier used
// throughout the supervisor: an absolute, dot-resolved path paired with a
// path relative to a declared base directory.
package normalpath

import (
	"path/filepath"
	"strings"
)

// NormalPath is an absolute, lexically-resolved path paired with a path
// relative to a base directory. Hash/equality/ordering use the absolute
// form; rendering uses the relative form when available. Once constructed
// a NormalPath is never mutated.
type NormalPath struct {
	abs string
	rel string // empty and relOK=false if diffing against base failed
	relOK bool
}

// New absolutizes path against base (if path is not already absolute),
// collapses "." and ".." components lexically, and computes the relative
// form by diffing against base. base itself is absolutized and cleaned
// the same way. If base and path can't be related (e.g. different
// volumes on Windows), the relative form is absent and String falls back
// to the absolute form.
func New(path string, base string) NormalPath {
	absBase, err := filepath.Abs(base)
	if err != nil {
		absBase = filepath.Clean(base)
	}

	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Clean(filepath.Join(absBase, path))
	}

	rel, err := filepath.Rel(absBase, abs)
	if err != nil || strings.HasPrefix(rel, ".."+string(filepath.Separator)) && isDifferentVolume(absBase, abs) {
		return NormalPath{abs: abs}
	}
	return NormalPath{abs: abs, rel: rel, relOK: true}
}

// isDifferentVolume exists so the Windows build (where filepath.Rel fails
// outright across drive letters) and the POSIX build (where ".." escapes
// are legal relative paths) share one code path. On POSIX it always
// reports false, so escaping ".." relatives are kept.
func isDifferentVolume(a, b string) bool {
	return filepath.VolumeName(a) != filepath.VolumeName(b)
}

// Absolute returns the absolute, dot-resolved form.
func (n NormalPath) Absolute() string { return n.abs }

// Relative returns the path relative to the base directory this
// NormalPath was constructed with, and whether that relative form
// exists. When it does not (cross-volume base/path), callers should fall
// back to Absolute.
func (n NormalPath) Relative() (string, bool) { return n.rel, n.relOK }

// String renders the relative form when available, falling back to the
// absolute form. This is the form used for display and for composing
// ghci commands like :add.
func (n NormalPath) String() string {
	if n.relOK {
		return n.rel
	}
	return n.abs
}

// Equal reports whether two NormalPaths refer to the same absolute path.
func (n NormalPath) Equal(other NormalPath) bool {
	return n.abs == other.abs
}

// Less orders NormalPaths by absolute path, for deterministic iteration
// (e.g. the error log's sorted-by-path rendering).
func (n NormalPath) Less(other NormalPath) bool {
	return n.abs < other.abs
}

// Key returns the value used to key NormalPaths in maps: the absolute
// path. NormalPath itself is comparable (it's a struct of strings plus a
// bool) and usable directly as a map key, but Key documents the intended
// identity explicitly at call sites that build path-keyed maps.
func (n NormalPath) Key() string { return n.abs }
