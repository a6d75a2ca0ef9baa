package object

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a hash with no stored object.
	ErrNotFound = errors.New("object not found")
	// ErrCorrupt reports a stored payload that does not verify against its hash.
	ErrCorrupt = errors.New("object content corrupt")
	// ErrPurged reports an object whose payload was replaced by a tombstone.
	ErrPurged = errors.New("object purged")
	// ErrMalformed reports undecodable input: truncated or garbled
	// encodings, unknown tags, invariant violations in caller data.
	ErrMalformed = errors.New("malformed input")
	// ErrUnimplemented reports an operation that is deliberately unsupported.
	ErrUnimplemented = errors.New("not implemented")
	// ErrTypeMismatch reports an object of a different type than requested.
	ErrTypeMismatch = errors.New("object type mismatch")
)

// Error annotates a store failure with the operation and hash involved.
type Error struct {
	Op   string
	Hash Hash
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Hash, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func objErr(op string, h Hash, err error) error {
	return &Error{Op: op, Hash: h, Err: err}
}
