package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/renameio"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
//
// Writes are idempotent per hash and type: concurrent writers of the same
// bytes collapse into one file write, and a payload that is already present
// is never rewritten (except to revive a purged slot).
type Store struct {
	root     string
	compress bool
	flight   singleflight.Group
	locks    [64]sync.Mutex
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write. Compression is on by
// default.
func NewStore(root string) *Store {
	return &Store{root: root, compress: true}
}

// SetCompression toggles zstd compression for subsequent writes. It must
// be called before the store is shared between goroutines.
func (s *Store) SetCompression(on bool) {
	s.compress = on
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store holds a record for h, including a purge
// tombstone.
func (s *Store) Has(h Hash) bool {
	if !h.Valid() {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores data as an object of the given type and returns its
// content hash.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	if objType == TypePurged {
		return "", fmt.Errorf("object write: %w: purged objects cannot be written", ErrMalformed)
	}
	if _, err := ParseType(string(objType)); err != nil {
		return "", fmt.Errorf("object write: %w", err)
	}
	h := HashBytes(data)
	err := s.ensure(h, objType, func() error {
		return s.writeRecord(h, objType, data)
	})
	if err != nil {
		return "", err
	}
	return h, nil
}

// ensure makes h readable as objType. A live record of another type gets
// objType added as a secondary type; a missing or purged slot is filled
// by write.
func (s *Store) ensure(h Hash, objType ObjectType, write func() error) error {
	// Fast path: already exists with this type.
	if info, err := s.Stat(h); err == nil && info.Is(objType) {
		return nil
	}

	_, err, _ := s.flight.Do(string(h)+string(objType), func() (interface{}, error) {
		mu := s.lockFor(h)
		mu.Lock()
		defer mu.Unlock()

		info, err := s.Stat(h)
		switch {
		case err == nil && info.Is(objType):
			return nil, nil
		case err == nil && info.Type != TypePurged:
			return nil, s.addType(h, objType)
		default:
			return nil, write()
		}
	})
	return err
}

// lockFor returns the mutex serializing record changes for h. Writers of
// different types for one hash share it.
func (s *Store) lockFor(h Hash) *sync.Mutex {
	return &s.locks[(int(h[0])<<8|int(h[1]))%len(s.locks)]
}

// addType rewrites the header of the record for h so it is also readable
// as objType. The payload is left untouched.
func (s *Store) addType(h Hash, objType ObjectType) error {
	record, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		return objErr("object add type", h, err)
	}
	if len(record) < HeaderSize {
		return objErr("object add type", h, fmt.Errorf("%w: short record", ErrCorrupt))
	}
	addHeaderFlags(record[:HeaderSize], typeFlag(objType))
	if err := s.replace(h, record); err != nil {
		return err
	}
	log.Debugf("object %s also stored as %s", h.Short(), objType)
	return nil
}

func (s *Store) writeRecord(h Hash, objType ObjectType, data []byte) error {
	stored := data
	var flags uint32
	if s.compress && len(data) > 0 {
		compressed, err := compressZstd(data)
		if err != nil {
			return objErr("object write compress", h, err)
		}
		if len(compressed) < len(data) {
			stored = compressed
			flags |= FlagCompressed
		}
	}

	info := Info{Hash: h, Type: objType, Flags: flags, PayloadSize: uint64(len(data))}
	var buf bytes.Buffer
	buf.Write(encodeHeader(info, uint64(len(stored))))
	buf.Write(stored)

	if err := s.replace(h, buf.Bytes()); err != nil {
		return err
	}
	log.Debugf("object write %s %s (%d bytes, flags %#x)", objType, h.Short(), len(data), flags)
	return nil
}

// replace atomically writes a full record for h.
func (s *Store) replace(h Hash, record []byte) error {
	dest := s.objectPath(h)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return objErr("object write mkdir", h, err)
	}
	pf, err := renameio.TempFile(dir, dest)
	if err != nil {
		return objErr("object write tmpfile", h, err)
	}
	defer pf.Cleanup()

	if _, err := pf.Write(record); err != nil {
		return objErr("object write", h, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return objErr("object write rename", h, err)
	}
	return nil
}

// WriteRaw stores a payload whose Info is already known, streaming it from
// rd. The payload is hashed and counted while it is written; a mismatch
// with info leaves the store untouched and reports ErrCorrupt.
func (s *Store) WriteRaw(info Info, rd io.Reader) error {
	if !info.Hash.Valid() {
		return fmt.Errorf("object write raw: %w: invalid hash %q", ErrMalformed, info.Hash)
	}
	if info.Type == TypePurged {
		return objErr("object write raw", info.Hash, fmt.Errorf("%w: purged objects cannot be written", ErrMalformed))
	}
	if _, err := ParseType(string(info.Type)); err != nil {
		return objErr("object write raw", info.Hash, err)
	}
	return s.ensure(info.Hash, info.Type, func() error {
		return s.writeRawRecord(info, rd)
	})
}

func (s *Store) writeRawRecord(info Info, rd io.Reader) error {
	h := info.Hash
	dest := s.objectPath(h)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return objErr("object write raw mkdir", h, err)
	}
	pf, err := renameio.TempFile(dir, dest)
	if err != nil {
		return objErr("object write raw tmpfile", h, err)
	}
	defer pf.Cleanup()

	// Reserve the header; it is rewritten once the stored size is known.
	if _, err := pf.Write(make([]byte, HeaderSize)); err != nil {
		return objErr("object write raw", h, err)
	}

	hasher := NewHasher()
	tee := io.TeeReader(rd, hasher)
	var n int64
	flags := uint32(0)
	if s.compress {
		flags |= FlagCompressed
		n, err = compressZstdStream(pf, tee)
	} else {
		n, err = io.Copy(pf, tee)
	}
	if err != nil {
		return objErr("object write raw", h, err)
	}
	if got := SumHash(hasher); got != h {
		return objErr("object write raw", h, fmt.Errorf("%w: payload hashes to %s", ErrCorrupt, got))
	}
	if uint64(n) != info.PayloadSize {
		return objErr("object write raw", h, fmt.Errorf("%w: payload is %d bytes, info says %d", ErrCorrupt, n, info.PayloadSize))
	}

	end, err := pf.Seek(0, io.SeekCurrent)
	if err != nil {
		return objErr("object write raw", h, err)
	}
	info.Flags = flags
	if _, err := pf.WriteAt(encodeHeader(info, uint64(end-HeaderSize)), 0); err != nil {
		return objErr("object write raw header", h, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return objErr("object write raw rename", h, err)
	}
	log.Debugf("object write raw %s %s (%d bytes)", info.Type, h.Short(), n)
	return nil
}

// Stat returns the Info recorded for h. Purge tombstones are reported
// with Type == TypePurged rather than as an error.
func (s *Store) Stat(h Hash) (Info, error) {
	info, _, err := s.stat(h)
	return info, err
}

func (s *Store) stat(h Hash) (Info, uint64, error) {
	if !h.Valid() {
		return Info{}, 0, objErr("object stat", h, fmt.Errorf("%w: invalid hash", ErrMalformed))
	}
	f, err := os.Open(s.objectPath(h))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Info{}, 0, objErr("object stat", h, ErrNotFound)
		}
		return Info{}, 0, objErr("object stat", h, err)
	}
	defer f.Close()

	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		return Info{}, 0, objErr("object stat", h, fmt.Errorf("%w: %v", ErrCorrupt, err))
	}
	info, stored, err := decodeHeader(h, hdr)
	if err != nil {
		return Info{}, 0, objErr("object stat", h, fmt.Errorf("%w: %v", ErrCorrupt, err))
	}
	return info, stored, nil
}

// Get returns a lazily-read Object for h. Purged objects fail with
// ErrPurged.
func (s *Store) Get(h Hash) (Object, error) {
	info, stored, err := s.stat(h)
	if err != nil {
		return nil, err
	}
	if info.Type == TypePurged {
		return nil, objErr("object get", h, ErrPurged)
	}
	return &looseObject{path: s.objectPath(h), info: info, stored: stored}, nil
}

// Read retrieves an object by hash, returning its type and verified
// payload.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	obj, err := s.Get(h)
	if err != nil {
		return "", nil, err
	}
	data, err := obj.Payload()
	if err != nil {
		return "", nil, err
	}
	return obj.Info().Type, data, nil
}

// ReadTyped reads h and checks that it is of the wanted type.
func (s *Store) ReadTyped(h Hash, want ObjectType) ([]byte, error) {
	obj, err := s.Get(h)
	if err != nil {
		return nil, err
	}
	if !obj.Info().Is(want) {
		return nil, objErr("object read", h, fmt.Errorf("%w: got %s, want %s", ErrTypeMismatch, obj.Info().Type, want))
	}
	return obj.Payload()
}

// Purge replaces the record for h with a tombstone. The slot stays
// occupied so later reads fail with ErrPurged instead of ErrNotFound.
func (s *Store) Purge(h Hash) error {
	info, err := s.Stat(h)
	if err != nil {
		return err
	}
	if info.Type == TypePurged {
		return nil
	}
	tomb := Info{Hash: h, Type: TypePurged}
	if err := s.replace(h, encodeHeader(tomb, 0)); err != nil {
		return err
	}
	log.Debugf("object purge %s %s", info.Type, h.Short())
	return nil
}

// List returns every hash with a record in the store, sorted.
func (s *Store) List() ([]Hash, error) {
	objectsDir := filepath.Join(s.root, "objects")
	fanoutDirs, err := os.ReadDir(objectsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read objects dir: %w", err)
	}

	hashes := make([]Hash, 0)
	for _, fanoutDir := range fanoutDirs {
		if !fanoutDir.IsDir() {
			continue
		}
		prefix := fanoutDir.Name()
		if len(prefix) != 2 {
			continue
		}

		objectDir := filepath.Join(objectsDir, prefix)
		objectEntries, err := os.ReadDir(objectDir)
		if err != nil {
			return nil, fmt.Errorf("read objects fanout %s: %w", prefix, err)
		}
		for _, objectEntry := range objectEntries {
			if objectEntry.IsDir() {
				continue
			}
			h := Hash(prefix + objectEntry.Name())
			if !h.Valid() {
				continue
			}
			hashes = append(hashes, h)
		}
	}

	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i] < hashes[j]
	})
	return hashes, nil
}

// VerifySummary reports the result of Verify.
type VerifySummary struct {
	Objects int
	Purged  int
}

// Verify re-reads every object and checks its payload against its hash.
func (s *Store) Verify() (*VerifySummary, error) {
	report := &VerifySummary{}

	hashes, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, h := range hashes {
		info, err := s.Stat(h)
		if err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		if info.Type == TypePurged {
			report.Purged++
			continue
		}
		if _, _, err := s.Read(h); err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		report.Objects++
	}
	return report, nil
}

// looseObject is an Object backed by one record file.
type looseObject struct {
	path   string
	info   Info
	stored uint64
}

func (o *looseObject) Info() Info {
	return o.info
}

func (o *looseObject) PayloadStream() (io.ReadCloser, error) {
	f, err := os.Open(o.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, objErr("object open", o.info.Hash, ErrNotFound)
		}
		return nil, objErr("object open", o.info.Hash, err)
	}
	if _, err := f.Seek(HeaderSize, io.SeekStart); err != nil {
		f.Close()
		return nil, objErr("object open", o.info.Hash, err)
	}

	var body io.Reader = io.LimitReader(f, int64(o.stored))
	var dec io.ReadCloser
	if o.info.Compressed() {
		dec, err = newZstdReader(body)
		if err != nil {
			f.Close()
			return nil, objErr("object open", o.info.Hash, err)
		}
		body = dec
	}

	return &verifyingReader{
		r:      body,
		file:   f,
		dec:    dec,
		hasher: NewHasher(),
		info:   o.info,
	}, nil
}

func (o *looseObject) Payload() ([]byte, error) {
	rc, err := o.PayloadStream()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data := make([]byte, 0, o.info.PayloadSize)
	buf := bytes.NewBuffer(data)
	if _, err := io.Copy(buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
