package repo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/snapvault/pkg/object"
	"github.com/odvcencio/snapvault/pkg/tree"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrDestNotEmpty is returned when Checkout would overwrite existing files.
var ErrDestNotEmpty = errors.New("checkout destination is not empty")

// Checkout materializes the tree treeHash under dest.
//
// Algorithm:
//  1. Refuse a dest that exists and has entries.
//  2. Flatten the tree and create every directory.
//  3. Extract files in parallel, restoring perms and mtimes.
//  4. Apply directory perms and mtimes deepest first, after their
//     contents are in place.
func (r *Repo) Checkout(ctx context.Context, treeHash object.Hash, dest string) error {
	if err := ensureEmptyDir(dest); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	root, err := r.GetTree(treeHash)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	flat, err := root.Flatten(r)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := os.MkdirAll(dest, defaultDirPerm); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	var dirs []string
	for _, p := range flat.Paths() {
		if flat[p].Kind != tree.KindTree {
			continue
		}
		dirs = append(dirs, p)
		if err := os.MkdirAll(destPath(dest, p), defaultDirPerm); err != nil {
			return fmt.Errorf("checkout: mkdir %q: %w", p, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Config.Workers)
	for _, p := range flat.Paths() {
		p := p
		e := flat[p]
		if e.Kind == tree.KindTree {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			target := destPath(dest, p)
			if err := e.ExtractToFile(target, r); err != nil {
				return err
			}
			if err := os.Chmod(target, permsFromAttrs(e.Attrs, false)); err != nil {
				return err
			}
			return applyModTime(target, e.Attrs)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	sort.SliceStable(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], "/") > strings.Count(dirs[j], "/")
	})
	for _, p := range dirs {
		target := destPath(dest, p)
		if err := os.Chmod(target, permsFromAttrs(flat[p].Attrs, true)); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		if err := applyModTime(target, flat[p].Attrs); err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
	}

	log.Debugf("checkout %s into %s: %d entries", treeHash.Short(), dest, len(flat))
	return nil
}

func destPath(dest, p string) string {
	return filepath.Join(dest, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

func ensureEmptyDir(dest string) error {
	f, err := os.Open(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrDestNotEmpty, dest)
}

func applyModTime(path string, attrs tree.AttrMap) error {
	mtime, err := attrs.ModTime()
	if err != nil {
		return nil
	}
	return os.Chtimes(path, mtime, mtime)
}
