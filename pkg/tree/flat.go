package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/snapvault/pkg/object"
	log "github.com/sirupsen/logrus"
)

// Getter resolves tree hashes.
type Getter interface {
	GetTree(h object.Hash) (*Tree, error)
}

// Repo is the storage a tree hierarchy is finalized into.
type Repo interface {
	Getter
	AddBlob(t object.ObjectType, data []byte) (object.Hash, error)
	AddBackref(from, to object.Hash) error
}

// SectionedRepo is a Repo that can hold off readers while a group of
// writes lands. Unflatten runs inside one section when it is available.
type SectionedRepo interface {
	Repo
	WriteSection(fn func(Repo) error) error
}

// Flat maps absolute slash-separated paths to entries. The root itself
// may appear under "/" or "".
type Flat map[string]Entry

// Paths returns the keys of f in ascending order.
func (f Flat) Paths() []string {
	paths := make([]string, 0, len(f))
	for p := range f {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Flatten expands t and every subtree it references into a flat view.
// Directories appear alongside their children so empty directories
// survive a round trip.
func (t *Tree) Flatten(g Getter) (Flat, error) {
	flat := make(Flat)
	if err := t.flattenInto(flat, "/", g); err != nil {
		return nil, err
	}
	return flat, nil
}

func (t *Tree) flattenInto(flat Flat, prefix string, g Getter) error {
	for _, name := range t.Names() {
		e := t.Entries[name]
		p := prefix + name
		flat[p] = e.Clone()
		if e.Kind != KindTree {
			continue
		}
		sub, err := g.GetTree(e.Hash)
		if err != nil {
			return &PathError{Op: "flatten", Path: p, Err: err}
		}
		if err := sub.flattenInto(flat, p+"/", g); err != nil {
			return err
		}
	}
	return nil
}

func isRoot(p string) bool {
	return p == "" || p == "/"
}

func validPath(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	for _, part := range strings.Split(p[1:], "/") {
		if !validName(part) {
			return false
		}
	}
	return true
}

// splitPath returns the parent directory key and base name of p.
func splitPath(p string) (string, string) {
	i := strings.LastIndexByte(p, '/')
	return p[:i], p[i+1:]
}

func depth(p string) int {
	return strings.Count(p, "/")
}

type pendingSet map[string]*Tree

// ensure registers p and every ancestor of p as pending directories.
func (ps pendingSet) ensure(p string) *Tree {
	if t, ok := ps[p]; ok {
		return t
	}
	t := New()
	ps[p] = t
	if p != "" {
		parent, _ := splitPath(p)
		ps.ensure(parent)
	}
	return t
}

// Unflatten rebuilds the tree hierarchy described by flat, storing every
// directory level bottom-up and recording the parent-to-child backrefs of
// the result. Every directory other than the root needs a tree entry in
// flat carrying the basic attributes.
func Unflatten(flat Flat, r Repo) (*Tree, object.Hash, error) {
	var (
		root     *Tree
		rootHash object.Hash
	)
	run := func(inner Repo) error {
		var err error
		root, rootHash, err = unflatten(flat, inner)
		return err
	}
	if sr, ok := r.(SectionedRepo); ok {
		if err := sr.WriteSection(run); err != nil {
			return nil, "", err
		}
	} else if err := run(r); err != nil {
		return nil, "", err
	}
	return root, rootHash, nil
}

func unflatten(flat Flat, r Repo) (*Tree, object.Hash, error) {
	pending := pendingSet{"": New()}
	for _, p := range flat.Paths() {
		e := flat[p]
		if e.Kind == KindNull {
			return nil, "", &PathError{Op: "unflatten", Path: p, Err: ErrNullEntry}
		}
		if isRoot(p) {
			if e.Kind != KindTree {
				return nil, "", &PathError{Op: "unflatten", Path: p, Err: ErrNotDir}
			}
			continue
		}
		if !validPath(p) {
			return nil, "", &PathError{Op: "unflatten", Path: p, Err: ErrBadName}
		}
		parent, name := splitPath(p)
		switch e.Kind {
		case KindTree:
			pending.ensure(p)
		case KindBlob, KindLargeBlob:
			if err := pending.ensure(parent).Set(name, e.Clone()); err != nil {
				return nil, "", err
			}
		default:
			return nil, "", &PathError{Op: "unflatten", Path: p, Err: fmt.Errorf("%w: unknown entry kind %d", object.ErrMalformed, uint8(e.Kind))}
		}
	}

	dirs := make([]string, 0, len(pending))
	for p := range pending {
		if p != "" {
			dirs = append(dirs, p)
		}
	}
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := depth(dirs[i]), depth(dirs[j])
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})

	for _, p := range dirs {
		src, ok := flat[p]
		switch {
		case !ok:
			return nil, "", &PathError{Op: "unflatten", Path: p, Err: ErrNoDirEntry}
		case src.Kind != KindTree:
			return nil, "", &PathError{Op: "unflatten", Path: p, Err: ErrNotDir}
		case !src.HasBasicAttrs():
			return nil, "", &PathError{Op: "unflatten", Path: p, Err: ErrMissingAttrs}
		}

		h, err := store(pending[p], r)
		if err != nil {
			return nil, "", &PathError{Op: "unflatten", Path: p, Err: err}
		}
		entry := Entry{Kind: KindTree, Hash: h, Attrs: src.Attrs.Clone()}
		parent, name := splitPath(p)
		if err := pending[parent].Set(name, entry); err != nil {
			return nil, "", err
		}
		log.Debugf("unflatten: %s -> tree %s (%d entries)", p, h.Short(), pending[p].Len())
	}

	root := pending[""]
	rootHash, err := store(root, r)
	if err != nil {
		return nil, "", &PathError{Op: "unflatten", Path: "/", Err: err}
	}
	if err := RecordBackrefs(rootHash, root, r); err != nil {
		return nil, "", err
	}
	log.Debugf("unflatten: root tree %s (%d directories)", rootHash.Short(), len(dirs)+1)
	return root, rootHash, nil
}

func store(t *Tree, r Repo) (object.Hash, error) {
	data, err := t.Blob()
	if err != nil {
		return "", err
	}
	return r.AddBlob(object.TypeTree, data)
}

// RecordBackrefs records a backref from h to every direct child of t and
// recurses into child trees.
func RecordBackrefs(h object.Hash, t *Tree, r Repo) error {
	for _, name := range t.Names() {
		e := t.Entries[name]
		if err := r.AddBackref(h, e.Hash); err != nil {
			return fmt.Errorf("backref %s -> %s: %w", h.Short(), e.Hash.Short(), err)
		}
		if e.Kind != KindTree {
			continue
		}
		sub, err := r.GetTree(e.Hash)
		if err != nil {
			return &PathError{Op: "backrefs", Path: name, Err: err}
		}
		if err := RecordBackrefs(e.Hash, sub, r); err != nil {
			return err
		}
	}
	return nil
}
