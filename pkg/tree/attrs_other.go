//go:build !unix

package tree

import (
	"fmt"
	"os"

	"github.com/odvcencio/snapvault/pkg/object"
)

func (a AttrMap) SetFromFile(path string) error {
	return &PathError{Op: "stat", Path: path, Err: fmt.Errorf("owner lookup: %w", object.ErrUnimplemented)}
}

func (a AttrMap) SetCreation(perms os.FileMode) error {
	return fmt.Errorf("owner lookup: %w", object.ErrUnimplemented)
}
