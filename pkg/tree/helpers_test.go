package tree

import (
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/odvcencio/snapvault/pkg/object"
)

// testRepo is a Repo over a real object store with an in-memory backref
// set.
type testRepo struct {
	store *object.Store

	mu   sync.Mutex
	refs map[object.Hash]map[object.Hash]bool // child -> parents
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	return &testRepo{
		store: object.NewStore(t.TempDir()),
		refs:  make(map[object.Hash]map[object.Hash]bool),
	}
}

func (r *testRepo) GetObject(h object.Hash) (object.Object, error) {
	return r.store.Get(h)
}

func (r *testRepo) GetTree(h object.Hash) (*Tree, error) {
	data, err := r.store.ReadTyped(h, object.TypeTree)
	if err != nil {
		return nil, err
	}
	return FromBlob(data)
}

func (r *testRepo) AddBlob(t object.ObjectType, data []byte) (object.Hash, error) {
	return r.store.Write(t, data)
}

func (r *testRepo) AddBackref(from, to object.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refs[to] == nil {
		r.refs[to] = make(map[object.Hash]bool)
	}
	r.refs[to][from] = true
	return nil
}

func (r *testRepo) objectsOfType(t *testing.T, want object.ObjectType) []object.Hash {
	t.Helper()
	hashes, err := r.store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var out []object.Hash
	for _, h := range hashes {
		info, err := r.store.Stat(h)
		if err != nil {
			t.Fatalf("Stat: %v", err)
		}
		if info.Type == want {
			out = append(out, h)
		}
	}
	return out
}

type sectionedTestRepo struct {
	*testRepo
	sections int
}

func (r *sectionedTestRepo) WriteSection(fn func(Repo) error) error {
	r.sections++
	return fn(r.testRepo)
}

func testAttrs(user, group string) AttrMap {
	a := make(AttrMap)
	a.setBasic(123, 0o644, user, group, 1700000000, 1700000100)
	return a
}

func blobEntry(content, user string) Entry {
	e := NewEntry(KindBlob, object.HashBytes([]byte(content)))
	e.Attrs = testAttrs(user, "staff")
	return e
}

func dirEntry() Entry {
	e := NewEntry(KindTree, "")
	e.Attrs = testAttrs("alice", "staff")
	e.Attrs.SetUint32(AttrPerms, 0o755)
	return e
}

// skipOnOwnerLookup skips tests that need the current uid and gid to
// resolve to names, which minimal containers do not always provide.
func skipOnOwnerLookup(t *testing.T, err error) {
	t.Helper()
	if errors.Is(err, ErrUnresolvedOwner) {
		t.Skipf("owner lookup unavailable: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}
