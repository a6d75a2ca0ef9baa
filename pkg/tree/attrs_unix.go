//go:build unix

package tree

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"time"

	"github.com/odvcencio/snapvault/pkg/object"
	"golang.org/x/sys/unix"
)

// SetFromFile fills in the basic attributes from the metadata of path.
func (a AttrMap) SetFromFile(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return &PathError{Op: "stat", Path: path, Err: fmt.Errorf("%w: %w", object.ErrMalformed, err)}
	}
	owner, group, err := lookupOwner(st.Uid, st.Gid)
	if err != nil {
		return &PathError{Op: "stat", Path: path, Err: err}
	}
	ctime, _ := st.Ctim.Unix()
	mtime, _ := st.Mtim.Unix()
	a.setBasic(uint64(st.Size), uint32(st.Mode)&0o7777, owner, group, ctime, mtime)
	return nil
}

// SetCreation fills in the basic attributes for an entry that does not
// exist on disk yet: owned by the effective user, empty, created now.
func (a AttrMap) SetCreation(perms os.FileMode) error {
	owner, group, err := lookupOwner(uint32(unix.Geteuid()), uint32(unix.Getegid()))
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	a.setBasic(0, uint32(perms.Perm()), owner, group, now, now)
	return nil
}

func lookupOwner(uid, gid uint32) (string, string, error) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return "", "", fmt.Errorf("uid %d: %w: %v", uid, ErrUnresolvedOwner, err)
	}
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return "", "", fmt.Errorf("gid %d: %w: %v", gid, ErrUnresolvedOwner, err)
	}
	return u.Username, g.Name, nil
}
