// Package tree implements directory snapshots: attribute maps, tree
// entries, the canonical binary tree encoding, and conversion between a
// nested tree hierarchy and a flat path-keyed view.
package tree

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/snapvault/pkg/object"
)

// Tree maps child names to entries. Iteration for encoding always goes
// through Names, which sorts.
type Tree struct {
	Entries map[string]Entry
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{Entries: make(map[string]Entry)}
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

// Set inserts or replaces the entry stored under name.
func (t *Tree) Set(name string, e Entry) error {
	if !validName(name) {
		return &PathError{Op: "tree set", Path: name, Err: ErrBadName}
	}
	if e.Kind == KindNull {
		return &PathError{Op: "tree set", Path: name, Err: ErrNullEntry}
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	t.Entries[name] = e
	return nil
}

// Get returns the entry stored under name.
func (t *Tree) Get(name string) (Entry, bool) {
	e, ok := t.Entries[name]
	return e, ok
}

// Len returns the number of children.
func (t *Tree) Len() int {
	return len(t.Entries)
}

// Names returns the child names in ascending byte order.
func (t *Tree) Names() []string {
	names := make([]string, 0, len(t.Entries))
	for name := range t.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	out := &Tree{Entries: make(map[string]Entry, len(t.Entries))}
	for name, e := range t.Entries {
		out.Entries[name] = e.Clone()
	}
	return out
}

// Equal reports whether both trees hold the same children.
func (t *Tree) Equal(o *Tree) bool {
	if t.Len() != o.Len() {
		return false
	}
	for name, e := range t.Entries {
		oe, ok := o.Entries[name]
		if !ok || !e.Equal(oe) {
			return false
		}
	}
	return true
}

// AddFile records the file or directory at path under its base name.
func (t *Tree) AddFile(path string, h, largeHash object.Hash) error {
	e, err := EntryFromFile(path, h, largeHash)
	if err != nil {
		return err
	}
	return t.Set(filepath.Base(path), e)
}
