package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/odvcencio/snapvault/pkg/backref"
	"github.com/odvcencio/snapvault/pkg/largeblob"
	"github.com/odvcencio/snapvault/pkg/object"
	"github.com/odvcencio/snapvault/pkg/tree"
	log "github.com/sirupsen/logrus"
)

// DirName is the name of the repository metadata directory.
const DirName = ".snapvault"

// ErrNotRepository is returned by Open when no repository encloses the path.
var ErrNotRepository = errors.New("not a snapvault repository")

// Init creates a new repository at path. It creates the .snapvault/
// directory structure: HEAD, objects/, config.toml and the backref
// database. Returns an error if a .snapvault/ directory already exists.
func Init(path string) (*Repo, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	dir := filepath.Join(path, DirName)

	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", dir)
	}

	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("init: mkdir: %w", err)
	}
	if err := os.WriteFile(headPath(dir), nil, 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	cfg := DefaultConfig()
	rabin, err := largeblob.NewRabin(0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	cfg.Chunker = ChunkerConfig{
		Polynomial: uint64(rabin.Poly),
		MinSize:    rabin.MinSize,
		MaxSize:    rabin.MaxSize,
	}
	if err := writeConfig(dir, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	log.Debugf("init: repository at %s (chunker polynomial %#x)", dir, cfg.Chunker.Polynomial)
	return openAt(path, dir)
}

// Open searches upward from path for a .snapvault/ directory and opens
// the repository.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		dir := filepath.Join(cur, DirName)
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return openAt(cur, dir)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open %s: %w (or any parent up to /)", abs, ErrNotRepository)
		}
		cur = parent
	}
}

func openAt(root, dir string) (*Repo, error) {
	cfg, err := readConfig(dir)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	rabin, err := largeblob.NewRabin(cfg.Chunker.Polynomial, cfg.Chunker.MinSize, cfg.Chunker.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	cache, err := lru.New[object.Hash, *tree.Tree](cfg.TreeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("open: tree cache: %w", err)
	}
	refs, err := backref.Open(filepath.Join(dir, "backrefs.db"))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	store := object.NewStore(dir)
	store.SetCompression(cfg.Compression)

	return &Repo{
		RootDir:  root,
		Dir:      dir,
		Store:    store,
		Backrefs: refs,
		Config:   cfg,
		trees:    cache,
		rabin:    rabin,
	}, nil
}

// Close releases the backref database.
func (r *Repo) Close() error {
	return r.Backrefs.Close()
}
