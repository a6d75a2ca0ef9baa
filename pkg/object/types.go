package object

import (
	"fmt"
	"io"
)

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// ObjectType identifies the kind of object stored. Every type is a
// 4-byte tag so it can be written verbatim into object headers.
type ObjectType string

const (
	TypeCommit    ObjectType = "cmmt"
	TypeTree      ObjectType = "tree"
	TypeBlob      ObjectType = "blob"
	TypeLargeBlob ObjectType = "lgbl"
	TypePurged    ObjectType = "purg"
)

// TagSize is the width of an ObjectType tag on disk.
const TagSize = 4

// ParseType maps a 4-byte tag back to its ObjectType.
func ParseType(tag string) (ObjectType, error) {
	switch t := ObjectType(tag); t {
	case TypeCommit, TypeTree, TypeBlob, TypeLargeBlob, TypePurged:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown object type %q", ErrMalformed, tag)
	}
}

// String returns a human-readable name.
func (t ObjectType) String() string {
	switch t {
	case TypeCommit:
		return "commit"
	case TypeTree:
		return "tree"
	case TypeBlob:
		return "blob"
	case TypeLargeBlob:
		return "largeblob"
	case TypePurged:
		return "purged"
	default:
		return string(t)
	}
}

// Object flags.
const (
	FlagCompressed uint32 = 0x0001

	// The same bytes can be stored under more than one type: an empty
	// tree and an 8-byte file of zeros share one hash. Secondary types
	// are kept as flag bits next to the primary type tag.
	FlagAlsoCommit    uint32 = 0x0100
	FlagAlsoTree      uint32 = 0x0200
	FlagAlsoBlob      uint32 = 0x0400
	FlagAlsoLargeBlob uint32 = 0x0800
)

var typeFlags = []struct {
	t    ObjectType
	flag uint32
}{
	{TypeCommit, FlagAlsoCommit},
	{TypeTree, FlagAlsoTree},
	{TypeBlob, FlagAlsoBlob},
	{TypeLargeBlob, FlagAlsoLargeBlob},
}

func typeFlag(t ObjectType) uint32 {
	for _, tf := range typeFlags {
		if tf.t == t {
			return tf.flag
		}
	}
	return 0
}

// Info describes a stored object without its payload.
type Info struct {
	Hash        Hash
	Type        ObjectType
	Flags       uint32
	PayloadSize uint64
}

// Compressed reports whether the payload is compressed at rest.
func (i Info) Compressed() bool {
	return i.Flags&FlagCompressed != 0
}

// Is reports whether the object was stored as type t, either as its
// primary type or as a secondary one.
func (i Info) Is(t ObjectType) bool {
	if i.Type == t {
		return true
	}
	if i.Type == TypePurged {
		return false
	}
	f := typeFlag(t)
	return f != 0 && i.Flags&f != 0
}

// Types lists every type the object was stored as, primary first.
func (i Info) Types() []ObjectType {
	types := []ObjectType{i.Type}
	if i.Type == TypePurged {
		return types
	}
	for _, tf := range typeFlags {
		if tf.t != i.Type && i.Flags&tf.flag != 0 {
			types = append(types, tf.t)
		}
	}
	return types
}

// Object is an immutable, typed payload identified by its content hash.
type Object interface {
	Info() Info
	// PayloadStream returns a lazy reader over the uncompressed payload.
	// The stream fails with ErrCorrupt at EOF if the bytes do not hash to
	// Info().Hash.
	PayloadStream() (io.ReadCloser, error)
	// Payload reads and verifies the whole payload.
	Payload() ([]byte, error)
}

// CommitObj records one snapshot of a directory tree.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	User      string
	Timestamp int64
	Signature string
	Message   string
}
