package repo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/odvcencio/snapvault/pkg/largeblob"
	"github.com/odvcencio/snapvault/pkg/object"
	"github.com/odvcencio/snapvault/pkg/tree"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Snapshot stores the directory hierarchy under dir and returns the hash
// of its root tree. Regular files at or above the configured threshold
// are stored as large blobs. The repository's own metadata directory,
// paths matched by dir/.snapvaultignore, symlinks and special files are
// skipped.
func (r *Repo) Snapshot(ctx context.Context, dir string) (object.Hash, error) {
	r.gcMu.RLock()
	defer r.gcMu.RUnlock()
	return r.snapshot(ctx, dir)
}

func (r *Repo) snapshot(ctx context.Context, dir string) (object.Hash, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	rules, err := loadIgnoreRules(abs)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}

	var (
		mu   sync.Mutex
		flat = make(tree.Flat)
	)
	record := func(key string, e tree.Entry) {
		mu.Lock()
		flat[key] = e
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Config.Workers)

	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}
		if path == abs {
			return nil
		}
		if d.IsDir() && path == r.Dir {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rules.Ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		key := "/" + rel

		switch {
		case d.IsDir():
			e, err := tree.EntryFromFile(path, "", "")
			if err != nil {
				return err
			}
			record(key, e)
		case d.Type().IsRegular():
			g.Go(func() error {
				e, err := r.storeFile(path)
				if err != nil {
					return err
				}
				record(key, e)
				return nil
			})
		default:
			log.Warnf("snapshot: skipping %s (%s)", key, d.Type())
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	if walkErr != nil {
		return "", fmt.Errorf("snapshot: %w", walkErr)
	}

	_, h, err := tree.Unflatten(flat, r)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	log.Debugf("snapshot %s: %d entries, root %s", abs, len(flat), h.Short())
	return h, nil
}

// storeFile stores one regular file and returns its tree entry.
func (r *Repo) storeFile(path string) (tree.Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return tree.Entry{}, err
	}

	if info.Size() >= r.Config.LargeFileThreshold {
		f, err := os.Open(path)
		if err != nil {
			return tree.Entry{}, err
		}
		defer f.Close()
		h, lb, err := largeblob.Store(r, f, r.rabin)
		if err != nil {
			return tree.Entry{}, fmt.Errorf("%s: %w", path, err)
		}
		return tree.EntryFromFile(path, h, lb.FileHash)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tree.Entry{}, err
	}
	h, err := r.AddBlob(object.TypeBlob, data)
	if err != nil {
		return tree.Entry{}, fmt.Errorf("%s: %w", path, err)
	}
	return tree.EntryFromFile(path, h, "")
}
