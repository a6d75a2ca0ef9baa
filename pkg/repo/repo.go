package repo

import (
	"fmt"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/odvcencio/snapvault/pkg/backref"
	"github.com/odvcencio/snapvault/pkg/largeblob"
	"github.com/odvcencio/snapvault/pkg/object"
	"github.com/odvcencio/snapvault/pkg/tree"
)

// Repo represents an opened snapvault repository.
//
// Reads and single-object writes run concurrently. WriteSection excludes
// both for its duration, so a multi-object write such as tree
// finalization is never observed half done. Snapshots and commits also
// hold gcMu shared while the objects they write are still unreferenced;
// Purge and RebuildBackrefs take it exclusively.
type Repo struct {
	RootDir  string           // working directory root
	Dir      string           // .snapvault/ directory
	Store    *object.Store    // content-addressed object store
	Backrefs *backref.Tracker // parent -> child reference index
	Config   *Config

	mu    sync.RWMutex
	gcMu  sync.RWMutex
	trees *lru.Cache[object.Hash, *tree.Tree]
	rabin *largeblob.Rabin
}

var (
	_ tree.SectionedRepo = (*Repo)(nil)
	_ largeblob.Sink     = (*Repo)(nil)
	_ largeblob.Source   = (*Repo)(nil)
)

// GetObject returns the object stored under h.
func (r *Repo) GetObject(h object.Hash) (object.Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Store.Get(h)
}

// HasObject reports whether h has a record, purged or not.
func (r *Repo) HasObject(h object.Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Store.Has(h)
}

// ObjectType returns the type recorded for h.
func (r *Repo) ObjectType(h object.Hash) (object.ObjectType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, err := r.Store.Stat(h)
	if err != nil {
		return "", err
	}
	return info.Type, nil
}

// GetTree fetches and decodes the tree stored under h. The returned tree
// is the caller's to modify.
func (r *Repo) GetTree(h object.Hash) (*tree.Tree, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getTree(h)
}

func (r *Repo) getTree(h object.Hash) (*tree.Tree, error) {
	if t, ok := r.trees.Get(h); ok {
		return t.Clone(), nil
	}
	data, err := r.Store.ReadTyped(h, object.TypeTree)
	if err != nil {
		return nil, err
	}
	t, err := tree.FromBlob(data)
	if err != nil {
		return nil, fmt.Errorf("get tree %s: %w", h.Short(), err)
	}
	r.trees.Add(h, t)
	return t.Clone(), nil
}

// AddBlob stores data as an object of type t and returns its hash.
// Storing the same bytes twice is a no-op.
func (r *Repo) AddBlob(t object.ObjectType, data []byte) (object.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Store.Write(t, data)
}

// AddObjectRaw stores a payload whose identity is already known, streaming
// it from rd.
func (r *Repo) AddObjectRaw(info object.Info, rd io.Reader) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Store.WriteRaw(info, rd)
}

// AddBackref records that from references to.
func (r *Repo) AddBackref(from, to object.Hash) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Backrefs.Add(from, to)
}

// GetRefCounts returns, for every stored object, the objects referencing
// it. Objects nothing references map to an empty set.
func (r *Repo) GetRefCounts() (map[object.Hash]map[object.Hash]backref.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts, err := r.Backrefs.All()
	if err != nil {
		return nil, err
	}
	hashes, err := r.Store.List()
	if err != nil {
		return nil, err
	}
	for _, h := range hashes {
		if _, ok := counts[h]; !ok {
			counts[h] = make(map[object.Hash]backref.State)
		}
	}
	return counts, nil
}

// WriteSection runs fn with readers and other writers held off. fn must
// use the Repo it is given, not r.
func (r *Repo) WriteSection(fn func(tree.Repo) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(sectionView{r: r})
}

// sectionView is the lock-free Repo handed to a write section.
type sectionView struct {
	r *Repo
}

func (v sectionView) GetTree(h object.Hash) (*tree.Tree, error) {
	return v.r.getTree(h)
}

func (v sectionView) AddBlob(t object.ObjectType, data []byte) (object.Hash, error) {
	return v.r.Store.Write(t, data)
}

func (v sectionView) AddBackref(from, to object.Hash) error {
	return v.r.Backrefs.Add(from, to)
}
