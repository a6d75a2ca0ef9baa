package tree

import (
	"fmt"

	"github.com/odvcencio/snapvault/pkg/object"
)

// Malformed-input errors. Each wraps object.ErrMalformed.
var (
	ErrNullEntry       = fmt.Errorf("%w: null tree entry", object.ErrMalformed)
	ErrMissingAttrs    = fmt.Errorf("%w: entry lacks basic attributes", object.ErrMalformed)
	ErrMissingAttr     = fmt.Errorf("%w: attribute not set", object.ErrMalformed)
	ErrLargeBlobDir    = fmt.Errorf("%w: a directory cannot be a large blob", object.ErrMalformed)
	ErrBadName         = fmt.Errorf("%w: invalid entry name", object.ErrMalformed)
	ErrUnresolvedOwner = fmt.Errorf("%w: cannot resolve owner", object.ErrMalformed)
	ErrNotDir          = fmt.Errorf("%w: not a directory", object.ErrMalformed)
	ErrNoDirEntry      = fmt.Errorf("%w: directory has no entry", object.ErrMalformed)
)

// PathError records the path an operation failed on.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}
