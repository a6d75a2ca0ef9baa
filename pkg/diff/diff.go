// Package diff compares two flattened snapshots path by path.
package diff

import (
	"github.com/odvcencio/snapvault/pkg/tree"
)

// ChangeType classifies what happened to a path between two snapshots.
type ChangeType int

const (
	Added    ChangeType = iota // Path exists only in the after snapshot.
	Removed                    // Path exists only in the before snapshot.
	Modified                   // Content or kind changed.
	Metadata                   // Same content, different attributes.
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	case Metadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// Change records a single path-level change between two snapshots.
type Change struct {
	Type   ChangeType
	Path   string
	Before *tree.Entry // nil for Added.
	After  *tree.Entry // nil for Removed.
	// Attrs lists the attribute keys whose values differ, for Metadata
	// and Modified changes.
	Attrs []string
}

// Options tunes Flats.
type Options struct {
	// IgnoreAttrs are attribute keys left out of the comparison, such as
	// tree.AttrCtime which a checkout cannot restore.
	IgnoreAttrs []string
}

// Flats computes the changes from before to after in path order.
// Directories are compared by attributes only; their content changes
// surface as changes to the paths beneath them.
func Flats(before, after tree.Flat, opts Options) []Change {
	ignore := make(map[string]bool, len(opts.IgnoreAttrs))
	for _, k := range opts.IgnoreAttrs {
		ignore[k] = true
	}

	merged := make(tree.Flat, len(before)+len(after))
	for p, e := range before {
		merged[p] = e
	}
	for p, e := range after {
		merged[p] = e
	}

	var changes []Change
	for _, p := range merged.Paths() {
		b, inBefore := before[p]
		a, inAfter := after[p]
		switch {
		case !inBefore:
			changes = append(changes, Change{Type: Added, Path: p, After: &a})
		case !inAfter:
			changes = append(changes, Change{Type: Removed, Path: p, Before: &b})
		default:
			attrs := attrDelta(b.Attrs, a.Attrs, ignore)
			contentChanged := b.Kind != a.Kind || (a.Kind != tree.KindTree && b.Hash != a.Hash)
			switch {
			case contentChanged:
				changes = append(changes, Change{Type: Modified, Path: p, Before: &b, After: &a, Attrs: attrs})
			case len(attrs) > 0:
				changes = append(changes, Change{Type: Metadata, Path: p, Before: &b, After: &a, Attrs: attrs})
			}
		}
	}
	return changes
}

func attrDelta(before, after tree.AttrMap, ignore map[string]bool) []string {
	keys := before.Clone()
	keys.MergeFrom(after)

	var delta []string
	for _, k := range keys.Keys() {
		if ignore[k] {
			continue
		}
		bv, inBefore := before[k]
		av, inAfter := after[k]
		if inBefore != inAfter || bv != av {
			delta = append(delta, k)
		}
	}
	return delta
}
