package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/snapvault/pkg/object"
)

var (
	ErrHeadCASMismatch = errors.New("HEAD compare-and-swap mismatch")
	ErrNoCommits       = errors.New("no commits yet")
	ErrAmbiguousRev    = errors.New("ambiguous revision")
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second

	minRevPrefix = 4
)

func headPath(dir string) string {
	return filepath.Join(dir, "HEAD")
}

// Head returns the commit HEAD points at, or "" before the first commit.
func (r *Repo) Head() (object.Hash, error) {
	h, err := readRefHash(headPath(r.Dir))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	return h, nil
}

// UpdateHead points HEAD at h using lockfile + rename atomic semantics.
// If expectedOld is provided, the update only succeeds when HEAD
// currently holds it ("" meaning no commit yet).
func (r *Repo) UpdateHead(h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update HEAD: expected at most one old hash")
	}
	if !h.Valid() {
		return fmt.Errorf("update HEAD: %w: invalid hash %q", object.ErrMalformed, h)
	}

	refPath := headPath(r.Dir)
	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update HEAD: lock: %w", err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update HEAD: read old hash: %w", err)
	}
	if len(expectedOld) == 1 && oldHash != expectedOld[0] {
		return fmt.Errorf("update HEAD: %w (expected %q, found %q)", ErrHeadCASMismatch, expectedOld[0], oldHash)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update HEAD: write: %w", err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update HEAD: sync: %w", err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update HEAD: close: %w", err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update HEAD: rename: %w", err)
	}
	cleanupLock = false
	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}

// ResolveRev turns a revision into an object hash.
//
// Resolution order:
//  1. "" or "HEAD" resolves to the current HEAD commit.
//  2. A full hash resolves to itself if it is stored.
//  3. Otherwise rev is treated as a unique hash prefix of at least four
//     characters.
func (r *Repo) ResolveRev(rev string) (object.Hash, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" || rev == "HEAD" {
		h, err := r.Head()
		if err != nil {
			return "", err
		}
		if h == "" {
			return "", fmt.Errorf("resolve %q: %w", "HEAD", ErrNoCommits)
		}
		return h, nil
	}

	if h := object.Hash(rev); h.Valid() {
		if !r.HasObject(h) {
			return "", fmt.Errorf("resolve %q: %w", rev, object.ErrNotFound)
		}
		return h, nil
	}

	if len(rev) < minRevPrefix {
		return "", fmt.Errorf("resolve %q: %w: prefix shorter than %d characters", rev, object.ErrMalformed, minRevPrefix)
	}
	hashes, err := r.Store.List()
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", rev, err)
	}
	var match object.Hash
	for _, h := range hashes {
		if !strings.HasPrefix(string(h), rev) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("resolve %q: %w", rev, ErrAmbiguousRev)
		}
		match = h
	}
	if match == "" {
		return "", fmt.Errorf("resolve %q: %w", rev, object.ErrNotFound)
	}
	return match, nil
}
