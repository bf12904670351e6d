// Package fileevent classifies batches of low-level watcher events into
// the Modify/Remove events the rest of the supervisor understands.
package fileevent

import "github.com/ghciwatch/ghciwatch/internal/normalpath"

// Kind is one of the low-level event tags a watcher backend attaches to
// a raw filesystem notification.
type Kind int

const (
	CreateFile Kind = iota
	ModifyData
	ModifyName
	RemoveFile
	Metadata
)

// FileType is the file's classification immediately after the event.
type FileType int

const (
	TypeAbsent FileType = iota
	TypeFile
	TypeDir
)

// RawEvent is one low-level event as delivered by a watch.Backend: a
// path, the kinds of change observed, and the path's post-event type.
type RawEvent struct {
	Path  normalpath.NormalPath
	Kinds []Kind
	After FileType
}

func (e RawEvent) has(k Kind) bool {
	for _, got := range e.Kinds {
		if got == k {
			return true
		}
	}
	return false
}

// Event is the classifier's output: a tagged union of Modify(path) and
// Remove(path).
type Event struct {
	op   op
	Path normalpath.NormalPath
}

type op int

const (
	opModify op = iota
	opRemove
)

// Modify constructs a Modify event for path.
func Modify(path normalpath.NormalPath) Event { return Event{op: opModify, Path: path} }

// Remove constructs a Remove event for path.
func Remove(path normalpath.NormalPath) Event { return Event{op: opRemove, Path: path} }

// IsModify reports whether this event is a Modify.
func (e Event) IsModify() bool { return e.op == opModify }

// IsRemove reports whether this event is a Remove.
func (e Event) IsRemove() bool { return e.op == opRemove }

// Classify aggregates a batch of low-level events (possibly several per
// path, from a debounced window) into at most one Event per path:
//
//	exists_after=false, was_removed=true            → Remove(path)
//	exists_after=true,  was_modified/created/renamed → Modify(path)
//	otherwise                                        → dropped
func Classify(raw []RawEvent) []Event {
	type agg struct {
		path        normalpath.NormalPath
		after       FileType
		wasRemoved  bool
		wasModified bool
		wasCreated  bool
		wasRenamed  bool
	}

	order := make([]string, 0, len(raw))
	byKey := make(map[string]*agg, len(raw))

	for _, e := range raw {
		key := e.Path.Key()
		a, ok := byKey[key]
		if !ok {
			a = &agg{path: e.Path}
			byKey[key] = a
			order = append(order, key)
		}
		a.after = e.After
		if e.has(RemoveFile) {
			a.wasRemoved = true
		}
		if e.has(ModifyData) {
			a.wasModified = true
		}
		if e.has(CreateFile) {
			a.wasCreated = true
		}
		if e.has(ModifyName) {
			a.wasRenamed = true
		}
	}

	out := make([]Event, 0, len(order))
	for _, key := range order {
		a := byKey[key]
		existsAfter := a.after != TypeAbsent
		switch {
		case !existsAfter && a.wasRemoved:
			out = append(out, Remove(a.path))
		case existsAfter && (a.wasModified || a.wasCreated || a.wasRenamed):
			out = append(out, Modify(a.path))
		}
	}
	return out
}
