package repo

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/snapvault/pkg/largeblob"
	"github.com/odvcencio/snapvault/pkg/object"
	"github.com/odvcencio/snapvault/pkg/tree"
)

const testPol = 0x3DA3358B4DC173

// smallChunks makes files of a few KiB go through the large-blob path.
func smallChunks(t *testing.T, r *Repo) {
	t.Helper()
	rabin, err := largeblob.NewRabin(testPol, 1024, 8192)
	if err != nil {
		t.Fatalf("NewRabin: %v", err)
	}
	r.rabin = rabin
	r.Config.LargeFileThreshold = 16 << 10
}

func randomBytes(n int, seed int64) []byte {
	buf := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(buf)
	return buf
}

func TestSnapshotCheckout_RoundTrip(t *testing.T) {
	r := initRepo(t)
	smallChunks(t, r)
	ctx := context.Background()

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "README"), "top level\n")
	writeFile(t, filepath.Join(src, "docs", "guide.md"), "# guide\n")
	writeFile(t, filepath.Join(src, "docs", "deep", "x.txt"), "x")
	if err := os.Mkdir(filepath.Join(src, "empty"), 0o700); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	big := randomBytes(100<<10, 7)
	if err := os.WriteFile(filepath.Join(src, "big.bin"), big, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chmod(filepath.Join(src, "README"), 0o755); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	treeHash, err := r.Snapshot(ctx, src)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	e, ok, err := r.Lookup(treeHash, "big.bin")
	if err != nil || !ok {
		t.Fatalf("Lookup(big.bin) = %v, %v", ok, err)
	}
	if e.Kind != tree.KindLargeBlob {
		t.Fatalf("big.bin kind = %s, want large blob", e.Kind)
	}
	if e.LargeHash != object.HashBytes(big) {
		t.Fatalf("big.bin LargeHash = %s, want content hash", e.LargeHash.Short())
	}

	dest := filepath.Join(t.TempDir(), "out")
	if err := r.Checkout(ctx, treeHash, dest); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	checkContent(t, filepath.Join(dest, "README"), []byte("top level\n"))
	checkContent(t, filepath.Join(dest, "docs", "guide.md"), []byte("# guide\n"))
	checkContent(t, filepath.Join(dest, "docs", "deep", "x.txt"), []byte("x"))
	checkContent(t, filepath.Join(dest, "big.bin"), big)

	checkPerm(t, filepath.Join(dest, "README"), 0o755)
	checkPerm(t, filepath.Join(dest, "big.bin"), 0o600)
	checkPerm(t, filepath.Join(dest, "empty"), 0o700)

	srcInfo, err := os.Stat(filepath.Join(src, "docs", "guide.md"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	dstInfo, err := os.Stat(filepath.Join(dest, "docs", "guide.md"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if srcInfo.ModTime().Unix() != dstInfo.ModTime().Unix() {
		t.Errorf("mtime = %v, want %v", dstInfo.ModTime(), srcInfo.ModTime())
	}

	again, err := r.Snapshot(ctx, dest)
	if err != nil {
		t.Fatalf("Snapshot(dest): %v", err)
	}
	if !sameEntries(t, r, treeHash, again) {
		t.Fatal("snapshot of checkout differs from the original tree")
	}
}

// sameEntries compares two trees by content and permissions, ignoring
// ctime which a checkout cannot restore.
func sameEntries(t *testing.T, r *Repo, a, b object.Hash) bool {
	t.Helper()
	flatten := func(h object.Hash) tree.Flat {
		root, err := r.GetTree(h)
		if err != nil {
			t.Fatalf("GetTree: %v", err)
		}
		flat, err := root.Flatten(r)
		if err != nil {
			t.Fatalf("Flatten: %v", err)
		}
		return flat
	}
	fa, fb := flatten(a), flatten(b)
	if len(fa) != len(fb) {
		return false
	}
	for p, ea := range fa {
		eb, ok := fb[p]
		if !ok || ea.Kind != eb.Kind {
			return false
		}
		if ea.Kind != tree.KindTree && ea.Hash != eb.Hash {
			return false
		}
		pa, _ := ea.Attrs.Perms()
		pb, _ := eb.Attrs.Perms()
		if pa != pb {
			return false
		}
	}
	return true
}

func checkContent(t *testing.T, path string, want []byte) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("%s: content differs (%d bytes, want %d)", path, len(got), len(want))
	}
}

func checkPerm(t *testing.T, path string, want os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(%s): %v", path, err)
	}
	if got := info.Mode().Perm(); got != want {
		t.Errorf("%s perm = %o, want %o", path, got, want)
	}
}

func TestCheckout_RefusesNonEmptyDest(t *testing.T) {
	r := initRepo(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a"), "a")

	treeHash, err := r.Snapshot(context.Background(), src)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "existing"), "keep me")
	if err := r.Checkout(context.Background(), treeHash, dest); !errors.Is(err, ErrDestNotEmpty) {
		t.Fatalf("Checkout into non-empty dir: got %v, want ErrDestNotEmpty", err)
	}
	checkContent(t, filepath.Join(dest, "existing"), []byte("keep me"))
}

func TestSnapshot_SkipsRepoDirAndSymlinks(t *testing.T) {
	r := initRepo(t)
	writeFile(t, filepath.Join(r.RootDir, "file"), "data")
	if err := os.Symlink("file", filepath.Join(r.RootDir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	treeHash, err := r.Snapshot(context.Background(), r.RootDir)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	root, err := r.GetTree(treeHash)
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	names := root.Names()
	if len(names) != 1 || names[0] != "file" {
		t.Fatalf("root names = %v, want [file]", names)
	}
}

func TestSnapshot_DedupsIdenticalFiles(t *testing.T) {
	r := initRepo(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a", "one.txt"), "identical")
	writeFile(t, filepath.Join(src, "b", "two.txt"), "identical")

	treeHash, err := r.Snapshot(context.Background(), src)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	ea, _, err := r.Lookup(treeHash, "a/one.txt")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	eb, _, err := r.Lookup(treeHash, "b/two.txt")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ea.Hash != eb.Hash {
		t.Fatalf("identical files stored under %s and %s", ea.Hash.Short(), eb.Hash.Short())
	}

	refs, err := r.Backrefs.Referrers(ea.Hash)
	if err != nil {
		t.Fatalf("Referrers: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("blob referrers = %d, want 2 (one per directory)", len(refs))
	}
}

func TestLookup(t *testing.T) {
	r := initRepo(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "dir", "leaf"), "leaf")

	treeHash, err := r.Snapshot(context.Background(), src)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	e, ok, err := r.Lookup(treeHash, "dir")
	if err != nil || !ok || e.Kind != tree.KindTree {
		t.Fatalf("Lookup(dir) = %+v, %v, %v", e, ok, err)
	}
	if _, ok, err := r.Lookup(treeHash, "dir/leaf/deeper"); err != nil || ok {
		t.Fatalf("Lookup through a file = %v, %v; want not found", ok, err)
	}
	if _, ok, err := r.Lookup(treeHash, "nope"); err != nil || ok {
		t.Fatalf("Lookup(nope) = %v, %v; want not found", ok, err)
	}
	if _, _, err := r.Lookup(treeHash, ""); !errors.Is(err, object.ErrMalformed) {
		t.Fatalf("Lookup(\"\"): got %v, want ErrMalformed", err)
	}
}

func TestTreeForRev(t *testing.T) {
	r := initRepo(t)
	writeFile(t, filepath.Join(r.RootDir, "f"), "f")

	h, err := r.Commit(context.Background(), "m", "alice", nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}

	for _, rev := range []string{"HEAD", string(h), string(c.TreeHash)} {
		got, err := r.TreeForRev(rev)
		if err != nil {
			t.Fatalf("TreeForRev(%s): %v", rev, err)
		}
		if got != c.TreeHash {
			t.Errorf("TreeForRev(%s) = %s, want %s", rev, got.Short(), c.TreeHash.Short())
		}
	}

	blob, err := r.AddBlob(object.TypeBlob, []byte("not a tree"))
	if err != nil {
		t.Fatalf("AddBlob: %v", err)
	}
	if _, err := r.TreeForRev(string(blob)); !errors.Is(err, object.ErrTypeMismatch) {
		t.Fatalf("TreeForRev(blob): got %v, want ErrTypeMismatch", err)
	}
}

func TestSnapshotCheckout_EmptyDirAndZeroFile(t *testing.T) {
	zeros := make([]byte, 8)
	emptyTree, err := tree.New().Blob()
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	if !bytes.Equal(emptyTree, zeros) {
		t.Fatalf("empty tree blob = %x, want 8 zero bytes", emptyTree)
	}

	for _, treeFirst := range []bool{false, true} {
		r := initRepo(t)
		ctx := context.Background()
		if treeFirst {
			if _, err := r.AddBlob(object.TypeTree, emptyTree); err != nil {
				t.Fatalf("AddBlob(tree): %v", err)
			}
		}

		src := t.TempDir()
		if err := os.Mkdir(filepath.Join(src, "empty"), 0o755); err != nil {
			t.Fatalf("Mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(src, "zeros"), zeros, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}

		treeHash, err := r.Snapshot(ctx, src)
		if err != nil {
			t.Fatalf("Snapshot (tree first %v): %v", treeFirst, err)
		}
		dirEntry, _, err := r.Lookup(treeHash, "empty")
		if err != nil {
			t.Fatalf("Lookup(empty): %v", err)
		}
		fileEntry, _, err := r.Lookup(treeHash, "zeros")
		if err != nil {
			t.Fatalf("Lookup(zeros): %v", err)
		}
		if dirEntry.Hash != fileEntry.Hash {
			t.Fatalf("empty dir %s and zero file %s should share a hash", dirEntry.Hash.Short(), fileEntry.Hash.Short())
		}

		dest := filepath.Join(t.TempDir(), "out")
		if err := r.Checkout(ctx, treeHash, dest); err != nil {
			t.Fatalf("Checkout (tree first %v): %v", treeFirst, err)
		}
		checkContent(t, filepath.Join(dest, "zeros"), zeros)
		info, err := os.Stat(filepath.Join(dest, "empty"))
		if err != nil || !info.IsDir() {
			t.Fatalf("empty dir not restored: %v", err)
		}

		if _, missing, err := r.ReachableSet([]object.Hash{treeHash}); err != nil || len(missing) != 0 {
			t.Fatalf("ReachableSet = missing %v, err %v", missing, err)
		}
	}
}

func TestCheckout_DefaultFilePerms(t *testing.T) {
	r := initRepo(t)
	h, err := r.AddBlob(object.TypeBlob, []byte("no recorded mode"))
	if err != nil {
		t.Fatalf("AddBlob: %v", err)
	}
	root := tree.New()
	if err := root.Set("plain", tree.NewEntry(tree.KindBlob, h)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	blob, err := root.Blob()
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	treeHash, err := r.AddBlob(object.TypeTree, blob)
	if err != nil {
		t.Fatalf("AddBlob(tree): %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out")
	if err := r.Checkout(context.Background(), treeHash, dest); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	checkContent(t, filepath.Join(dest, "plain"), []byte("no recorded mode"))
	checkPerm(t, filepath.Join(dest, "plain"), defaultFilePerm)
}
