// Package backref persists the parent-to-child reference graph between
// stored objects, indexed by child so referrers can be counted.
package backref

import (
	"fmt"
	"time"

	"github.com/odvcencio/snapvault/pkg/object"
	"go.etcd.io/bbolt"
)

// State describes one recorded reference.
type State uint8

const (
	// StateRef is a live reference.
	StateRef State = 1
	// StatePurged is a reference whose parent has been purged.
	StatePurged State = 2
)

func (s State) String() string {
	switch s {
	case StateRef:
		return "ref"
	case StatePurged:
		return "purged"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

var (
	// refs/<child>/<parent> = state
	refsBucket = []byte("refs")
	// children/<parent>/<child> = ""
	childrenBucket = []byte("children")
)

// Tracker is a bbolt-backed backref index. It is safe for concurrent use.
type Tracker struct {
	db *bbolt.DB
}

// Open opens or creates the tracker database at path.
func Open(path string) (*Tracker, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("can't open backref db at %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		return createBuckets(tx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init backref db: %w", err)
	}
	return &Tracker{db: db}, nil
}

func createBuckets(tx *bbolt.Tx) error {
	for _, name := range [][]byte{refsBucket, childrenBucket} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// Add records that from references to. Re-adding a live reference is a
// no-op; re-adding a purged one makes it live again.
func (t *Tracker) Add(from, to object.Hash) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("backref add %q -> %q: %w: invalid hash", from, to, object.ErrMalformed)
	}
	return t.db.Update(func(tx *bbolt.Tx) error {
		refs, err := tx.Bucket(refsBucket).CreateBucketIfNotExists([]byte(to))
		if err != nil {
			return fmt.Errorf("backref add: %w", err)
		}
		if v := refs.Get([]byte(from)); len(v) == 1 && State(v[0]) == StateRef {
			return nil
		}
		if err := refs.Put([]byte(from), []byte{byte(StateRef)}); err != nil {
			return fmt.Errorf("backref add: %w", err)
		}
		children, err := tx.Bucket(childrenBucket).CreateBucketIfNotExists([]byte(from))
		if err != nil {
			return fmt.Errorf("backref add: %w", err)
		}
		return children.Put([]byte(to), []byte{})
	})
}

// Referrers returns every object that references to, with its state.
func (t *Tracker) Referrers(to object.Hash) (map[object.Hash]State, error) {
	out := make(map[object.Hash]State)
	err := t.db.View(func(tx *bbolt.Tx) error {
		refs := tx.Bucket(refsBucket).Bucket([]byte(to))
		if refs == nil {
			return nil
		}
		return readStates(refs, out)
	})
	if err != nil {
		return nil, fmt.Errorf("backref referrers %s: %w", to.Short(), err)
	}
	return out, nil
}

// Live returns the number of live references to to.
func (t *Tracker) Live(to object.Hash) (int, error) {
	refs, err := t.Referrers(to)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range refs {
		if s == StateRef {
			n++
		}
	}
	return n, nil
}

// Children returns the objects from references.
func (t *Tracker) Children(from object.Hash) ([]object.Hash, error) {
	var out []object.Hash
	err := t.db.View(func(tx *bbolt.Tx) error {
		children := tx.Bucket(childrenBucket).Bucket([]byte(from))
		if children == nil {
			return nil
		}
		return children.ForEach(func(k, _ []byte) error {
			out = append(out, object.Hash(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("backref children %s: %w", from.Short(), err)
	}
	return out, nil
}

// All returns the whole index: child -> referrer -> state.
func (t *Tracker) All() (map[object.Hash]map[object.Hash]State, error) {
	out := make(map[object.Hash]map[object.Hash]State)
	err := t.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(refsBucket)
		return root.ForEach(func(k, v []byte) error {
			if v != nil {
				return nil
			}
			states := make(map[object.Hash]State)
			if err := readStates(root.Bucket(k), states); err != nil {
				return err
			}
			out[object.Hash(k)] = states
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("backref all: %w", err)
	}
	return out, nil
}

func readStates(b *bbolt.Bucket, out map[object.Hash]State) error {
	return b.ForEach(func(k, v []byte) error {
		if len(v) != 1 {
			return fmt.Errorf("%w: backref state is %d bytes", object.ErrCorrupt, len(v))
		}
		out[object.Hash(k)] = State(v[0])
		return nil
	})
}

// MarkPurged flags every reference held by from as purged.
func (t *Tracker) MarkPurged(from object.Hash) error {
	return t.db.Update(func(tx *bbolt.Tx) error {
		children := tx.Bucket(childrenBucket).Bucket([]byte(from))
		if children == nil {
			return nil
		}
		refsRoot := tx.Bucket(refsBucket)
		return children.ForEach(func(k, _ []byte) error {
			refs := refsRoot.Bucket(k)
			if refs == nil {
				return nil
			}
			return refs.Put([]byte(from), []byte{byte(StatePurged)})
		})
	})
}

// Reset drops every recorded reference.
func (t *Tracker) Reset() error {
	return t.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{refsBucket, childrenBucket} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return fmt.Errorf("reset %s: %w", name, err)
			}
		}
		return createBuckets(tx)
	})
}
