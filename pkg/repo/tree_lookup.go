package repo

import (
	"fmt"
	"strings"

	"github.com/odvcencio/snapvault/pkg/object"
	"github.com/odvcencio/snapvault/pkg/tree"
)

// Lookup walks from treeHash down relPath ("a/b/c", slash separated) and
// returns the entry found there. The bool is false when some component
// does not exist or a non-directory is traversed.
func (r *Repo) Lookup(treeHash object.Hash, relPath string) (tree.Entry, bool, error) {
	relPath = strings.Trim(relPath, "/")
	if relPath == "" {
		return tree.Entry{}, false, fmt.Errorf("lookup: %w: empty path", object.ErrMalformed)
	}
	parts := strings.Split(relPath, "/")
	current := treeHash

	for i, part := range parts {
		t, err := r.GetTree(current)
		if err != nil {
			return tree.Entry{}, false, fmt.Errorf("lookup %s: %w", relPath, err)
		}
		entry, found := t.Get(part)
		if !found {
			return tree.Entry{}, false, nil
		}
		if i == len(parts)-1 {
			return entry, true, nil
		}
		if entry.Kind != tree.KindTree {
			return tree.Entry{}, false, nil
		}
		current = entry.Hash
	}

	return tree.Entry{}, false, nil
}

// TreeForRev resolves rev and returns the tree it names. A commit maps
// to its root tree; a tree hash is returned as is.
func (r *Repo) TreeForRev(rev string) (object.Hash, error) {
	h, err := r.ResolveRev(rev)
	if err != nil {
		return "", err
	}
	info, err := r.Store.Stat(h)
	if err != nil {
		return "", err
	}
	switch {
	case info.Is(object.TypeTree):
		return h, nil
	case info.Is(object.TypeCommit):
		c, err := r.Store.ReadCommit(h)
		if err != nil {
			return "", err
		}
		return c.TreeHash, nil
	default:
		return "", fmt.Errorf("resolve %q: %w: %s is a %s", rev, object.ErrTypeMismatch, h.Short(), info.Type)
	}
}
