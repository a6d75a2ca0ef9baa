package tree

import (
	"errors"
	"testing"

	"github.com/odvcencio/snapvault/pkg/object"
)

func scenarioFlat() Flat {
	return Flat{
		"/":          dirEntry(),
		"/a.txt":     blobEntry("one", "alice"),
		"/sub":       dirEntry(),
		"/sub/b.txt": blobEntry("two", "bob"),
	}
}

func TestUnflattenScenario(t *testing.T) {
	r := newTestRepo(t)
	root, rootHash, err := Unflatten(scenarioFlat(), r)
	if err != nil {
		t.Fatalf("Unflatten: %v", err)
	}
	if h, _ := root.Hash(); h != rootHash {
		t.Fatalf("returned hash %s, tree hashes to %s", rootHash, h)
	}

	trees := r.objectsOfType(t, object.TypeTree)
	if len(trees) != 2 {
		t.Fatalf("stored %d trees, want 2", len(trees))
	}

	sub, ok := root.Get("sub")
	if !ok || sub.Kind != KindTree {
		t.Fatalf("root missing sub tree: %v", root.Names())
	}
	subTree, err := r.GetTree(sub.Hash)
	if err != nil {
		t.Fatalf("GetTree(sub): %v", err)
	}
	if _, ok := subTree.Get("b.txt"); !ok {
		t.Fatalf("sub tree missing b.txt: %v", subTree.Names())
	}
	if !sub.Attrs.HasBasic() {
		t.Fatal("sub entry lost its attributes")
	}

	if !r.refs[sub.Hash][rootHash] {
		t.Error("no backref root -> sub")
	}
	if !r.refs[object.HashBytes([]byte("one"))][rootHash] {
		t.Error("no backref root -> a.txt")
	}
	if !r.refs[object.HashBytes([]byte("two"))][sub.Hash] {
		t.Error("no backref sub -> b.txt")
	}

	_, again, err := Unflatten(scenarioFlat(), r)
	if err != nil {
		t.Fatalf("Unflatten again: %v", err)
	}
	if again != rootHash {
		t.Fatalf("root hash changed across runs: %s vs %s", rootHash, again)
	}
	for child, parents := range r.refs {
		if len(parents) != 1 {
			t.Errorf("child %s has %d referrers, want 1", child.Short(), len(parents))
		}
	}
}

func TestFlattenUnflattenInverse(t *testing.T) {
	r := newTestRepo(t)

	deep := New()
	mustSet(t, deep, "leaf.bin", blobEntry("leaf", "carol"))
	deepHash := storeTree(t, r, deep)

	mid := New()
	d := dirEntry()
	d.Hash = deepHash
	mustSet(t, mid, "deep", d)
	mustSet(t, mid, "big.iso", Entry{
		Kind:      KindLargeBlob,
		Hash:      object.HashBytes([]byte("index")),
		LargeHash: object.HashBytes([]byte("iso")),
		Attrs:     testAttrs("carol", "disk"),
	})
	midHash := storeTree(t, r, mid)

	empty := New()
	emptyHash := storeTree(t, r, empty)

	root := New()
	m := dirEntry()
	m.Hash = midHash
	mustSet(t, root, "mid", m)
	e := dirEntry()
	e.Hash = emptyHash
	mustSet(t, root, "empty", e)
	mustSet(t, root, "top.txt", blobEntry("top", "alice"))
	rootHash := storeTree(t, r, root)

	flat, err := root.Flatten(r)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	wantPaths := []string{"/empty", "/mid", "/mid/big.iso", "/mid/deep", "/mid/deep/leaf.bin", "/top.txt"}
	gotPaths := flat.Paths()
	if len(gotPaths) != len(wantPaths) {
		t.Fatalf("Flatten paths = %v, want %v", gotPaths, wantPaths)
	}
	for i := range wantPaths {
		if gotPaths[i] != wantPaths[i] {
			t.Fatalf("Flatten paths = %v, want %v", gotPaths, wantPaths)
		}
	}

	got, gotHash, err := Unflatten(flat, r)
	if err != nil {
		t.Fatalf("Unflatten: %v", err)
	}
	if gotHash != rootHash {
		t.Fatalf("Unflatten(Flatten(t)) = %s, want %s", gotHash, rootHash)
	}
	if !got.Equal(root) {
		t.Fatal("reconstructed root differs")
	}
	if !r.refs[emptyHash][rootHash] {
		t.Error("empty directory not registered as a child of root")
	}
}

func storeTree(t *testing.T, r *testRepo, tr *Tree) object.Hash {
	t.Helper()
	data, err := tr.Blob()
	if err != nil {
		t.Fatalf("Blob: %v", err)
	}
	h, err := r.AddBlob(object.TypeTree, data)
	if err != nil {
		t.Fatalf("AddBlob: %v", err)
	}
	return h
}

func TestFlattenMissingSubtree(t *testing.T) {
	r := newTestRepo(t)
	root := New()
	d := dirEntry()
	d.Hash = object.HashBytes([]byte("absent"))
	mustSet(t, root, "gone", d)

	_, err := root.Flatten(r)
	if !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("Flatten: err = %v, want ErrNotFound", err)
	}
	var pe *PathError
	if !errors.As(err, &pe) || pe.Path != "/gone" {
		t.Fatalf("expected PathError for /gone, got %v", err)
	}
}

func TestUnflattenMissingAttrs(t *testing.T) {
	r := newTestRepo(t)
	flat := Flat{
		"/sub":   NewEntry(KindTree, ""),
		"/sub/x": blobEntry("x", "alice"),
	}
	_, _, err := Unflatten(flat, r)
	if !errors.Is(err, ErrMissingAttrs) {
		t.Fatalf("err = %v, want ErrMissingAttrs", err)
	}
	if !errors.Is(err, object.ErrMalformed) {
		t.Fatalf("ErrMissingAttrs should be malformed input: %v", err)
	}
	if trees := r.objectsOfType(t, object.TypeTree); len(trees) != 0 {
		t.Fatalf("failed unflatten stored %d trees", len(trees))
	}
}

func TestUnflattenNullEntry(t *testing.T) {
	r := newTestRepo(t)
	_, _, err := Unflatten(Flat{"/x": {}}, r)
	if !errors.Is(err, ErrNullEntry) {
		t.Fatalf("err = %v, want ErrNullEntry", err)
	}
}

func TestUnflattenMissingDirectoryEntry(t *testing.T) {
	r := newTestRepo(t)
	_, _, err := Unflatten(Flat{"/d/x": blobEntry("x", "u")}, r)
	if !errors.Is(err, ErrNoDirEntry) {
		t.Fatalf("err = %v, want ErrNoDirEntry", err)
	}
}

func TestUnflattenFileUsedAsDirectory(t *testing.T) {
	r := newTestRepo(t)
	flat := Flat{
		"/f":   blobEntry("f", "u"),
		"/f/x": blobEntry("x", "u"),
	}
	if _, _, err := Unflatten(flat, r); !errors.Is(err, ErrNotDir) {
		t.Fatalf("err = %v, want ErrNotDir", err)
	}
}

func TestUnflattenBadPath(t *testing.T) {
	r := newTestRepo(t)
	for _, p := range []string{"relative", "/trailing/", "/a/../b"} {
		flat := Flat{p: blobEntry("x", "u")}
		if _, _, err := Unflatten(flat, r); !errors.Is(err, object.ErrMalformed) {
			t.Errorf("%q: err = %v, want ErrMalformed", p, err)
		}
	}
}

func TestUnflattenEmpty(t *testing.T) {
	r := newTestRepo(t)
	root, h, err := Unflatten(Flat{}, r)
	if err != nil {
		t.Fatalf("Unflatten: %v", err)
	}
	if root.Len() != 0 || h != object.HashBytes(make([]byte, 8)) {
		t.Fatalf("empty unflatten = %d entries, hash %s", root.Len(), h)
	}
}

func TestUnflattenUsesWriteSection(t *testing.T) {
	r := &sectionedTestRepo{testRepo: newTestRepo(t)}
	if _, _, err := Unflatten(scenarioFlat(), r); err != nil {
		t.Fatalf("Unflatten: %v", err)
	}
	if r.sections != 1 {
		t.Fatalf("WriteSection called %d times, want 1", r.sections)
	}
}
