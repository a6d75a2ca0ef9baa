package tree

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/odvcencio/snapvault/pkg/object"
)

func TestAttrTypedRoundTrip(t *testing.T) {
	a := make(AttrMap)
	a.SetUint64(AttrSize, 1<<40)
	a.SetUint32(AttrPerms, 0o750)
	a.SetInt64(AttrMtime, -5)

	if v, err := a.Size(); err != nil || v != 1<<40 {
		t.Fatalf("Size = %d, %v", v, err)
	}
	if v, err := a.Perms(); err != nil || v != 0o750 {
		t.Fatalf("Perms = %v, %v", v, err)
	}
	if v, err := a.Int64(AttrMtime); err != nil || v != -5 {
		t.Fatalf("Int64 = %d, %v", v, err)
	}
	if len(a[AttrSize]) != 8 || len(a[AttrPerms]) != 4 {
		t.Fatalf("fixed-width encoding: size %d bytes, perms %d bytes", len(a[AttrSize]), len(a[AttrPerms]))
	}
}

func TestAttrMissingKey(t *testing.T) {
	a := make(AttrMap)
	if _, err := a.Uint64(AttrSize); !errors.Is(err, ErrMissingAttr) {
		t.Fatalf("Uint64: err = %v, want ErrMissingAttr", err)
	}
	if _, err := a.String(AttrUser); !errors.Is(err, object.ErrMalformed) {
		t.Fatalf("String: err = %v, want ErrMalformed", err)
	}
	a[AttrSize] = "short"
	if _, err := a.Size(); !errors.Is(err, ErrMissingAttr) {
		t.Fatalf("Size of wrong width: err = %v", err)
	}
}

func TestAttrMergeFrom(t *testing.T) {
	a := AttrMap{"x": "1", "y": "2"}
	a.MergeFrom(AttrMap{"y": "3", "z": "4"})
	want := AttrMap{"x": "1", "y": "3", "z": "4"}
	if len(a) != len(want) {
		t.Fatalf("merged = %v", a)
	}
	for k, v := range want {
		if a[k] != v {
			t.Errorf("a[%s] = %q, want %q", k, a[k], v)
		}
	}
}

func TestAttrHasBasic(t *testing.T) {
	a := testAttrs("alice", "staff")
	if !a.HasBasic() {
		t.Fatal("HasBasic = false for complete map")
	}
	delete(a, AttrCtime)
	if a.HasBasic() {
		t.Fatal("HasBasic = true without ctime")
	}
}

func TestAttrSetFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	writeFile(t, path, "hello")
	if err := os.Chmod(path, 0o640); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	a := make(AttrMap)
	err := a.SetFromFile(path)
	skipOnOwnerLookup(t, err)
	if err != nil {
		t.Fatalf("SetFromFile: %v", err)
	}
	if !a.HasBasic() {
		t.Fatalf("SetFromFile left attrs incomplete: %v", a.Keys())
	}
	if size, _ := a.Size(); size != 5 {
		t.Errorf("Size = %d, want 5", size)
	}
	if perms, _ := a.Perms(); perms != 0o640 {
		t.Errorf("Perms = %v, want 0640", perms)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if mt, _ := a.ModTime(); mt.Unix() != info.ModTime().Unix() {
		t.Errorf("ModTime = %v, want %v", mt, info.ModTime())
	}
}

func TestAttrSetFromFileMissing(t *testing.T) {
	a := make(AttrMap)
	err := a.SetFromFile(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, object.ErrMalformed) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("SetFromFile: err = %v, want ErrMalformed wrapping ErrNotExist", err)
	}
	var pe *PathError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PathError, got %T", err)
	}
}

func TestAttrSetCreation(t *testing.T) {
	a := make(AttrMap)
	before := time.Now().Unix()
	err := a.SetCreation(0o600)
	skipOnOwnerLookup(t, err)
	if err != nil {
		t.Fatalf("SetCreation: %v", err)
	}
	if !a.HasBasic() {
		t.Fatal("SetCreation left attrs incomplete")
	}
	if size, _ := a.Size(); size != 0 {
		t.Errorf("Size = %d, want 0", size)
	}
	if perms, _ := a.Perms(); perms != 0o600 {
		t.Errorf("Perms = %v, want 0600", perms)
	}
	ct, _ := a.Int64(AttrCtime)
	mt, _ := a.Int64(AttrMtime)
	if ct != mt || ct < before {
		t.Errorf("ctime %d, mtime %d, started at %d", ct, mt, before)
	}
}
