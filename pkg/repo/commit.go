package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odvcencio/snapvault/pkg/object"
	log "github.com/sirupsen/logrus"
)

// ErrNothingToCommit is returned when the snapshot matches HEAD's tree.
var ErrNothingToCommit = errors.New("nothing to commit")

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// Commit snapshots the working directory and records it on top of HEAD.
//
//  1. Snapshot RootDir into a tree
//  2. Read HEAD for the parent (none on the first commit)
//  3. Refuse if the tree equals the parent's tree
//  4. Sign, write the commit and record its backrefs
//  5. Advance HEAD with a compare-and-swap against the parent
func (r *Repo) Commit(ctx context.Context, message, user string, signer CommitSigner) (object.Hash, error) {
	r.gcMu.RLock()
	defer r.gcMu.RUnlock()

	treeHash, err := r.snapshot(ctx, r.RootDir)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	parentHash, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	var parents []object.Hash
	if parentHash != "" {
		parent, err := r.Store.ReadCommit(parentHash)
		if err != nil {
			return "", fmt.Errorf("commit: read parent: %w", err)
		}
		if parent.TreeHash == treeHash {
			return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
		}
		parents = append(parents, parentHash)
	}

	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		User:      user,
		Timestamp: time.Now().Unix(),
		Message:   message,
	}
	if signer != nil {
		signature, err := signer(object.CommitSigningPayload(commitObj))
		if err != nil {
			return "", fmt.Errorf("commit: sign commit: %w", err)
		}
		commitObj.Signature = signature
	}

	commitHash, err := r.writeCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if err := r.UpdateHead(commitHash, parentHash); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	log.Debugf("commit %s tree %s", commitHash.Short(), treeHash.Short())
	return commitHash, nil
}

func (r *Repo) writeCommit(c *object.CommitObj) (object.Hash, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	if err := r.Backrefs.Add(h, c.TreeHash); err != nil {
		return "", err
	}
	for _, p := range c.Parents {
		if err := r.Backrefs.Add(h, p); err != nil {
			return "", err
		}
	}
	return h, nil
}

// LogEntry pairs a commit with its hash.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits newest first. A
// limit of zero or less means no limit.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	current := start

	for current != "" && (limit <= 0 || len(entries) < limit) {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", current.Short(), err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}
	return entries, nil
}
