package repo

import (
	"os"

	"github.com/odvcencio/snapvault/pkg/tree"
)

const (
	defaultDirPerm  os.FileMode = 0o755
	defaultFilePerm os.FileMode = 0o644
)

// permsFromAttrs returns the recorded permission bits, falling back to
// the usual defaults when the entry carries none.
func permsFromAttrs(attrs tree.AttrMap, isDir bool) os.FileMode {
	if perm, err := attrs.Perms(); err == nil {
		return perm
	}
	if isDir {
		return defaultDirPerm
	}
	return defaultFilePerm
}
