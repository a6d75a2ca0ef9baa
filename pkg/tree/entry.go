package tree

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/odvcencio/snapvault/pkg/largeblob"
	"github.com/odvcencio/snapvault/pkg/object"
)

// EntryKind classifies a tree entry.
type EntryKind uint8

const (
	// KindNull marks an entry that has not been populated. It never
	// appears in a serialized tree.
	KindNull EntryKind = iota
	KindTree
	KindBlob
	KindLargeBlob
)

func (k EntryKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindTree:
		return "tree"
	case KindBlob:
		return "blob"
	case KindLargeBlob:
		return "largeblob"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ObjectType returns the type of the object an entry of this kind points at.
func (k EntryKind) ObjectType() (object.ObjectType, error) {
	switch k {
	case KindTree:
		return object.TypeTree, nil
	case KindBlob:
		return object.TypeBlob, nil
	case KindLargeBlob:
		return object.TypeLargeBlob, nil
	case KindNull:
		return "", ErrNullEntry
	default:
		return "", fmt.Errorf("%w: unknown entry kind %d", object.ErrMalformed, uint8(k))
	}
}

func kindFromTag(tag string) (EntryKind, error) {
	switch object.ObjectType(tag) {
	case object.TypeTree:
		return KindTree, nil
	case object.TypeBlob:
		return KindBlob, nil
	case object.TypeLargeBlob:
		return KindLargeBlob, nil
	default:
		return KindNull, fmt.Errorf("%w: unknown entry tag %q", object.ErrMalformed, tag)
	}
}

// Entry is one named child of a Tree. LargeHash is only meaningful for
// KindLargeBlob entries, where Hash names the chunk index object and
// LargeHash the hash of the whole file content.
type Entry struct {
	Kind      EntryKind
	Hash      object.Hash
	LargeHash object.Hash
	Attrs     AttrMap
}

// NewEntry returns an entry of the given kind with an empty attribute map.
func NewEntry(kind EntryKind, h object.Hash) Entry {
	return Entry{Kind: kind, Hash: h, Attrs: make(AttrMap)}
}

// EntryFromFile classifies path as a directory or file and records its
// attributes. A non-empty largeHash turns a file into a large blob.
// Directory hashes are usually unknown at this point and may be empty.
func EntryFromFile(path string, h, largeHash object.Hash) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, &PathError{Op: "entry", Path: path, Err: fmt.Errorf("%w: %w", object.ErrMalformed, err)}
	}

	e := NewEntry(KindBlob, h)
	if info.IsDir() {
		e.Kind = KindTree
	}
	if largeHash != "" {
		if e.Kind == KindTree {
			return Entry{}, &PathError{Op: "entry", Path: path, Err: ErrLargeBlobDir}
		}
		e.Kind = KindLargeBlob
		e.LargeHash = largeHash
	}
	if err := e.Attrs.SetFromFile(path); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// HasBasicAttrs reports whether the entry carries all basic attributes.
func (e Entry) HasBasicAttrs() bool {
	return e.Attrs.HasBasic()
}

// Clone returns a copy of e that shares no attribute storage with it.
func (e Entry) Clone() Entry {
	e.Attrs = e.Attrs.Clone()
	return e
}

// Equal reports whether two entries carry the same reference and attributes.
func (e Entry) Equal(o Entry) bool {
	if e.Kind != o.Kind || e.Hash != o.Hash || e.LargeHash != o.LargeHash || len(e.Attrs) != len(o.Attrs) {
		return false
	}
	for k, v := range e.Attrs {
		if ov, ok := o.Attrs[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// ExtractToFile writes the content the entry refers to at path, replacing
// any existing file atomically. Permission bits are restored when the
// entry records them.
func (e Entry) ExtractToFile(path string, src largeblob.Source) error {
	switch e.Kind {
	case KindBlob:
		if err := extractBlob(path, e.Hash, src); err != nil {
			return err
		}
	case KindLargeBlob:
		lb, err := largeblob.Load(src, e.Hash)
		if err != nil {
			return fmt.Errorf("extract %s: %w", path, err)
		}
		if e.LargeHash != "" && lb.FileHash != e.LargeHash {
			return fmt.Errorf("extract %s: %w: index describes %s, entry wants %s",
				path, object.ErrCorrupt, lb.FileHash.Short(), e.LargeHash.Short())
		}
		if err := lb.ExtractFile(src, path); err != nil {
			return fmt.Errorf("extract %s: %w", path, err)
		}
	default:
		return &PathError{Op: "extract", Path: path, Err: fmt.Errorf("%s entry: %w", e.Kind, object.ErrUnimplemented)}
	}

	if perms, err := e.Attrs.Perms(); err == nil {
		if err := os.Chmod(path, perms); err != nil {
			return fmt.Errorf("extract %s: %w", path, err)
		}
	} else if !errors.Is(err, ErrMissingAttr) {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	return nil
}

func extractBlob(path string, h object.Hash, src largeblob.Source) error {
	obj, err := src.GetObject(h)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	if info := obj.Info(); !info.Is(object.TypeBlob) {
		return fmt.Errorf("extract %s: %w: %s is a %s", path, object.ErrTypeMismatch, h.Short(), info.Type)
	}
	rc, err := obj.PayloadStream()
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	defer rc.Close()

	pf, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	defer pf.Cleanup()

	if _, err := io.Copy(pf, rc); err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("extract %s: %w", path, err)
	}
	return nil
}
