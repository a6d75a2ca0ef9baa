package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/snapvault/pkg/largeblob"
	"github.com/odvcencio/snapvault/pkg/object"
	"github.com/odvcencio/snapvault/pkg/tree"
	log "github.com/sirupsen/logrus"
)

// ReachableSet returns all object hashes reachable from roots by following
// object references. Hashes with no record are collected into missing
// rather than failing the walk; purged records are reachable but not
// descended into.
func (r *Repo) ReachableSet(roots []object.Hash) (reachable map[object.Hash]struct{}, missing []object.Hash, err error) {
	roots = uniqueNormalizedHashes(roots)
	reachable = make(map[object.Hash]struct{}, len(roots))

	stack := make([]object.Hash, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := reachable[h]; ok {
			continue
		}
		info, err := r.Store.Stat(h)
		if errors.Is(err, object.ErrNotFound) {
			missing = append(missing, h)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reachable set stat %s: %w", h.Short(), err)
		}
		reachable[h] = struct{}{}
		if info.Type == object.TypePurged {
			continue
		}

		_, data, err := r.Store.Read(h)
		if err != nil {
			return nil, nil, fmt.Errorf("reachable set read %s: %w", h.Short(), err)
		}
		refs, err := objectRefs(info, data)
		if err != nil {
			return nil, nil, fmt.Errorf("reachable set: %w", err)
		}
		stack = append(stack, refs...)
	}

	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return reachable, missing, nil
}

// objectRefs collects the references of every type h was stored as.
func objectRefs(info object.Info, data []byte) ([]object.Hash, error) {
	var refs []object.Hash
	for _, t := range info.Types() {
		more, err := referencedHashes(t, data)
		if err != nil {
			return nil, fmt.Errorf("parse %s (%s): %w", info.Hash.Short(), t, err)
		}
		refs = append(refs, more...)
	}
	return uniqueNormalizedHashes(refs), nil
}

// referencedHashes lists the objects a payload of type objType points at.
func referencedHashes(objType object.ObjectType, data []byte) ([]object.Hash, error) {
	switch objType {
	case object.TypeBlob, object.TypePurged:
		return nil, nil
	case object.TypeCommit:
		commit, err := object.UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := make([]object.Hash, 0, 1+len(commit.Parents))
		refs = append(refs, commit.TreeHash)
		refs = append(refs, commit.Parents...)
		return refs, nil
	case object.TypeTree:
		t, err := tree.FromBlob(data)
		if err != nil {
			return nil, err
		}
		refs := make([]object.Hash, 0, t.Len())
		for _, name := range t.Names() {
			refs = append(refs, t.Entries[name].Hash)
		}
		return refs, nil
	case object.TypeLargeBlob:
		lb, err := largeblob.FromBlob(data)
		if err != nil {
			return nil, err
		}
		refs := make([]object.Hash, 0, len(lb.Chunks))
		for _, c := range lb.Chunks {
			refs = append(refs, c.Hash)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("%w: unsupported object type %q", object.ErrMalformed, objType)
	}
}

func uniqueNormalizedHashes(in []object.Hash) []object.Hash {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[object.Hash]struct{}, len(in))
	out := make([]object.Hash, 0, len(in))
	for _, h := range in {
		h = object.Hash(strings.TrimSpace(string(h)))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// VerifyReport summarizes a repository check.
type VerifyReport struct {
	Objects   int
	Purged    int
	Reachable int
	Missing   []object.Hash
}

// Verify re-hashes every stored object, then walks the history from HEAD
// and reports objects that are referenced but absent. A non-empty
// Missing list is returned alongside an ErrNotFound error.
func (r *Repo) Verify() (*VerifyReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary, err := r.Store.Verify()
	if err != nil {
		return nil, err
	}
	report := &VerifyReport{Objects: summary.Objects, Purged: summary.Purged}

	head, err := r.Head()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	reachable, missing, err := r.ReachableSet([]object.Hash{head})
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	report.Reachable = len(reachable)
	report.Missing = missing
	if len(missing) > 0 {
		return report, fmt.Errorf("verify: %w: %d referenced objects", object.ErrNotFound, len(missing))
	}
	log.Debugf("verify: %d objects, %d purged, %d reachable", report.Objects, report.Purged, report.Reachable)
	return report, nil
}
