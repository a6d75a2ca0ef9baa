package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/snapvault/pkg/object"
	log "github.com/sirupsen/logrus"
)

// ErrReferenced is returned when purging an object something still uses.
var ErrReferenced = errors.New("object is still referenced")

// Purge replaces the payload of h with a tombstone. It refuses while any
// live object references h or HEAD points at it. The references h itself
// held are marked purged, which may free its children for purging.
// Purge waits for in-flight snapshots and commits, whose new objects are
// not referenced yet.
func (r *Repo) Purge(h object.Hash) error {
	r.gcMu.Lock()
	defer r.gcMu.Unlock()

	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	if h == head {
		return fmt.Errorf("purge %s: %w by HEAD", h.Short(), ErrReferenced)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	live, err := r.Backrefs.Live(h)
	if err != nil {
		return fmt.Errorf("purge %s: %w", h.Short(), err)
	}
	if live > 0 {
		return fmt.Errorf("purge %s: %w by %d objects", h.Short(), ErrReferenced, live)
	}
	if err := r.Store.Purge(h); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	if err := r.Backrefs.MarkPurged(h); err != nil {
		return fmt.Errorf("purge %s: %w", h.Short(), err)
	}
	r.trees.Remove(h)
	log.Infof("purged %s", h.Short())
	return nil
}

// RebuildBackrefs discards the backref index and re-derives it from every
// stored commit, tree and large blob. References held by purged objects
// are lost along with their payloads.
func (r *Repo) RebuildBackrefs() (int, error) {
	r.gcMu.Lock()
	defer r.gcMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Backrefs.Reset(); err != nil {
		return 0, fmt.Errorf("rebuild backrefs: %w", err)
	}
	hashes, err := r.Store.List()
	if err != nil {
		return 0, fmt.Errorf("rebuild backrefs: %w", err)
	}

	added := 0
	for _, h := range hashes {
		info, err := r.Store.Stat(h)
		if err != nil {
			return added, fmt.Errorf("rebuild backrefs: %w", err)
		}
		if !referencing(info) {
			continue
		}
		_, data, err := r.Store.Read(h)
		if err != nil {
			return added, fmt.Errorf("rebuild backrefs: %w", err)
		}
		refs, err := objectRefs(info, data)
		if err != nil {
			return added, fmt.Errorf("rebuild backrefs: %w", err)
		}
		for _, child := range refs {
			if err := r.Backrefs.Add(h, child); err != nil {
				return added, fmt.Errorf("rebuild backrefs: %w", err)
			}
			added++
		}
	}
	log.Debugf("rebuild backrefs: %d references from %d objects", added, len(hashes))
	return added, nil
}

// referencing reports whether an object of this kind can point at others.
func referencing(info object.Info) bool {
	return info.Is(object.TypeCommit) || info.Is(object.TypeTree) || info.Is(object.TypeLargeBlob)
}
