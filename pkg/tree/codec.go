package tree

import (
	"fmt"

	"github.com/odvcencio/snapvault/pkg/object"
)

// Blob serializes t into its canonical binary form:
//
//	entry count          uint64
//	per entry, by name:
//	  kind tag           4 bytes: tree, blob or lgbl
//	  hash               pstr
//	  large hash         pstr, lgbl only
//	  name               pstr
//	  attr count         uint64
//	  per attr, by key:  key pstr, value pstr
//
// Integers are little-endian; a pstr is a uint16 length followed by bytes.
func (t *Tree) Blob() ([]byte, error) {
	var w object.Writer
	w.WriteUint64(uint64(t.Len()))
	for _, name := range t.Names() {
		e := t.Entries[name]
		tag, err := e.Kind.ObjectType()
		if err != nil {
			return nil, &PathError{Op: "tree encode", Path: name, Err: err}
		}
		if e.Hash == "" {
			return nil, &PathError{Op: "tree encode", Path: name, Err: fmt.Errorf("%w: entry has no hash", object.ErrMalformed)}
		}
		if err := w.WriteTag(string(tag)); err != nil {
			return nil, err
		}
		if err := w.WritePStr(string(e.Hash)); err != nil {
			return nil, &PathError{Op: "tree encode", Path: name, Err: err}
		}
		if e.Kind == KindLargeBlob {
			if err := w.WritePStr(string(e.LargeHash)); err != nil {
				return nil, &PathError{Op: "tree encode", Path: name, Err: err}
			}
		}
		if err := w.WritePStr(name); err != nil {
			return nil, &PathError{Op: "tree encode", Path: name, Err: err}
		}
		w.WriteUint64(uint64(len(e.Attrs)))
		for _, k := range e.Attrs.Keys() {
			if err := w.WritePStr(k); err != nil {
				return nil, &PathError{Op: "tree encode", Path: name, Err: err}
			}
			if err := w.WritePStr(e.Attrs[k]); err != nil {
				return nil, &PathError{Op: "tree encode", Path: name, Err: err}
			}
		}
	}
	return w.Bytes(), nil
}

// Hash returns the content hash of t's canonical encoding.
func (t *Tree) Hash() (object.Hash, error) {
	data, err := t.Blob()
	if err != nil {
		return "", err
	}
	return object.HashBytes(data), nil
}

// FromBlob decodes a tree produced by Blob.
func FromBlob(data []byte) (*Tree, error) {
	r := object.NewReader(data)
	count, err := r.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("tree decode: %w", err)
	}
	// Each entry needs at least one byte; bound the count before allocating.
	if count > uint64(r.Remaining()) {
		return nil, fmt.Errorf("tree decode: %w: %d entries in %d bytes", object.ErrMalformed, count, r.Remaining())
	}

	t := &Tree{Entries: make(map[string]Entry, count)}
	for i := uint64(0); i < count; i++ {
		e, name, err := decodeEntry(r)
		if err != nil {
			return nil, fmt.Errorf("tree decode: entry %d: %w", i, err)
		}
		if _, dup := t.Entries[name]; dup {
			return nil, fmt.Errorf("tree decode: %w: duplicate name %q", object.ErrMalformed, name)
		}
		if !validName(name) {
			return nil, &PathError{Op: "tree decode", Path: name, Err: ErrBadName}
		}
		t.Entries[name] = e
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("tree decode: %w: %d trailing bytes", object.ErrMalformed, r.Remaining())
	}
	return t, nil
}

func decodeEntry(r *object.Reader) (Entry, string, error) {
	tag, err := r.ReadTag()
	if err != nil {
		return Entry{}, "", err
	}
	kind, err := kindFromTag(tag)
	if err != nil {
		return Entry{}, "", err
	}
	e := NewEntry(kind, "")
	h, err := r.ReadPStr()
	if err != nil {
		return Entry{}, "", err
	}
	e.Hash = object.Hash(h)
	if kind == KindLargeBlob {
		lh, err := r.ReadPStr()
		if err != nil {
			return Entry{}, "", err
		}
		e.LargeHash = object.Hash(lh)
	}
	name, err := r.ReadPStr()
	if err != nil {
		return Entry{}, "", err
	}
	n, err := r.ReadUint64()
	if err != nil {
		return Entry{}, "", err
	}
	if n > uint64(r.Remaining()) {
		return Entry{}, "", fmt.Errorf("%w: %d attributes in %d bytes", object.ErrMalformed, n, r.Remaining())
	}
	for j := uint64(0); j < n; j++ {
		k, err := r.ReadPStr()
		if err != nil {
			return Entry{}, "", err
		}
		v, err := r.ReadPStr()
		if err != nil {
			return Entry{}, "", err
		}
		e.Attrs[k] = v
	}
	return e, name, nil
}
