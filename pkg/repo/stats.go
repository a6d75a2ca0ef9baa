package repo

import (
	"fmt"

	"github.com/odvcencio/snapvault/pkg/backref"
	"github.com/odvcencio/snapvault/pkg/object"
)

// Stats counts what the repository holds.
type Stats struct {
	Commits       int
	Trees         int
	Blobs         int
	DanglingBlobs int // blobs nothing references
	BlobRefs      int // live references to blobs
	LargeBlobs    int
	Purged        int
	// DedupRatio is 100*Blobs/BlobRefs: the share of blob references
	// that needed their own stored copy.
	DedupRatio float64
}

// Stats walks every stored object and its referrers.
func (r *Repo) Stats() (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs, err := r.Backrefs.All()
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	hashes, err := r.Store.List()
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	st := &Stats{}
	for _, h := range hashes {
		info, err := r.Store.Stat(h)
		if err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
		if info.Type == object.TypePurged {
			st.Purged++
			continue
		}
		// Bytes stored under several types count once per type.
		for _, t := range info.Types() {
			switch t {
			case object.TypeCommit:
				st.Commits++
			case object.TypeTree:
				st.Trees++
			case object.TypeLargeBlob:
				st.LargeBlobs++
			case object.TypeBlob:
				st.Blobs++
				live := 0
				for _, s := range refs[h] {
					if s == backref.StateRef {
						live++
					}
				}
				if live == 0 {
					st.DanglingBlobs++
				}
				st.BlobRefs += live
			}
		}
	}
	if st.BlobRefs > 0 {
		st.DedupRatio = 100 * float64(st.Blobs) / float64(st.BlobRefs)
	}
	return st, nil
}
