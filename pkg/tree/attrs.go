package tree

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"time"
)

// Basic attribute keys.
const (
	AttrSize  = "Ssize"
	AttrPerms = "Sperms"
	AttrUser  = "Suser"
	AttrGroup = "Sgroup"
	AttrCtime = "Sctime"
	AttrMtime = "Smtime"
)

var basicAttrs = [...]string{AttrSize, AttrPerms, AttrUser, AttrGroup, AttrCtime, AttrMtime}

// AttrMap maps attribute names to their encoded values. Numeric values
// are stored as fixed-width little-endian bytes.
type AttrMap map[string]string

// MergeFrom copies every key of other into a, overwriting existing values.
func (a AttrMap) MergeFrom(other AttrMap) {
	for k, v := range other {
		a[k] = v
	}
}

// HasBasic reports whether all six basic attributes are present.
func (a AttrMap) HasBasic() bool {
	for _, k := range basicAttrs {
		if _, ok := a[k]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of a.
func (a AttrMap) Clone() AttrMap {
	out := make(AttrMap, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Keys returns the attribute names in ascending order.
func (a AttrMap) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a AttrMap) raw(key string, width int) ([]byte, error) {
	v, ok := a[key]
	if !ok {
		return nil, fmt.Errorf("attr %s: %w", key, ErrMissingAttr)
	}
	if len(v) != width {
		return nil, fmt.Errorf("attr %s: value is %d bytes, want %d: %w", key, len(v), width, ErrMissingAttr)
	}
	return []byte(v), nil
}

// String returns a string attribute.
func (a AttrMap) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("attr %s: %w", key, ErrMissingAttr)
	}
	return v, nil
}

// Uint64 decodes an 8-byte attribute.
func (a AttrMap) Uint64(key string) (uint64, error) {
	b, err := a.raw(key, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// SetUint64 encodes v as an 8-byte attribute.
func (a AttrMap) SetUint64(key string, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	a[key] = string(b[:])
}

// Uint32 decodes a 4-byte attribute.
func (a AttrMap) Uint32(key string) (uint32, error) {
	b, err := a.raw(key, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// SetUint32 encodes v as a 4-byte attribute.
func (a AttrMap) SetUint32(key string, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	a[key] = string(b[:])
}

// Int64 decodes an 8-byte signed attribute.
func (a AttrMap) Int64(key string) (int64, error) {
	v, err := a.Uint64(key)
	return int64(v), err
}

// SetInt64 encodes v as an 8-byte signed attribute.
func (a AttrMap) SetInt64(key string, v int64) {
	a.SetUint64(key, uint64(v))
}

// Size returns the recorded file size.
func (a AttrMap) Size() (uint64, error) {
	return a.Uint64(AttrSize)
}

// Perms returns the recorded permission bits.
func (a AttrMap) Perms() (os.FileMode, error) {
	v, err := a.Uint32(AttrPerms)
	if err != nil {
		return 0, err
	}
	return os.FileMode(v) & os.ModePerm, nil
}

// ModTime returns the recorded modification time.
func (a AttrMap) ModTime() (time.Time, error) {
	v, err := a.Int64(AttrMtime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0), nil
}

func (a AttrMap) setBasic(size uint64, perms uint32, user, group string, ctime, mtime int64) {
	a.SetUint64(AttrSize, size)
	a.SetUint32(AttrPerms, perms)
	a[AttrUser] = user
	a[AttrGroup] = group
	a.SetInt64(AttrCtime, ctime)
	a.SetInt64(AttrMtime, mtime)
}
