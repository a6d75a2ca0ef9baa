// Package largeblob stores big files as an index of content-defined
// chunks, so files that share long runs of bytes share storage.
package largeblob

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/odvcencio/snapvault/pkg/object"
	log "github.com/sirupsen/logrus"
)

// Sink receives the objects a large blob is made of.
type Sink interface {
	AddBlob(t object.ObjectType, data []byte) (object.Hash, error)
	AddBackref(from, to object.Hash) error
}

// Source resolves stored objects.
type Source interface {
	GetObject(h object.Hash) (object.Object, error)
}

// Chunk is one slice of a large file.
type Chunk struct {
	Hash   object.Hash
	Length uint64
}

// LargeBlob is the index object of a chunked file. FileHash is the hash
// of the whole content, the value trees record as an entry's large hash.
type LargeBlob struct {
	FileHash object.Hash
	Size     uint64
	Chunks   []Chunk
}

// Blob encodes the index:
//
//	file hash    pstr
//	total size   uint64
//	chunk count  uint64
//	per chunk:   hash pstr, length uint64
func (lb *LargeBlob) Blob() ([]byte, error) {
	var w object.Writer
	if err := w.WritePStr(string(lb.FileHash)); err != nil {
		return nil, err
	}
	w.WriteUint64(lb.Size)
	w.WriteUint64(uint64(len(lb.Chunks)))
	for _, c := range lb.Chunks {
		if err := w.WritePStr(string(c.Hash)); err != nil {
			return nil, err
		}
		w.WriteUint64(c.Length)
	}
	return w.Bytes(), nil
}

// FromBlob decodes an index produced by Blob.
func FromBlob(data []byte) (*LargeBlob, error) {
	r := object.NewReader(data)
	fh, err := r.ReadPStr()
	if err != nil {
		return nil, fmt.Errorf("largeblob decode: %w", err)
	}
	lb := &LargeBlob{FileHash: object.Hash(fh)}
	if lb.Size, err = r.ReadUint64(); err != nil {
		return nil, fmt.Errorf("largeblob decode: %w", err)
	}
	n, err := r.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("largeblob decode: %w", err)
	}
	if n > uint64(r.Remaining()) {
		return nil, fmt.Errorf("largeblob decode: %w: %d chunks in %d bytes", object.ErrMalformed, n, r.Remaining())
	}
	lb.Chunks = make([]Chunk, 0, n)
	var total uint64
	for i := uint64(0); i < n; i++ {
		h, err := r.ReadPStr()
		if err != nil {
			return nil, fmt.Errorf("largeblob decode: chunk %d: %w", i, err)
		}
		length, err := r.ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("largeblob decode: chunk %d: %w", i, err)
		}
		lb.Chunks = append(lb.Chunks, Chunk{Hash: object.Hash(h), Length: length})
		total += length
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("largeblob decode: %w: %d trailing bytes", object.ErrMalformed, r.Remaining())
	}
	if total != lb.Size {
		return nil, fmt.Errorf("largeblob decode: %w: chunks sum to %d, size is %d", object.ErrMalformed, total, lb.Size)
	}
	return lb, nil
}

// Store splits rd into chunks, stores each chunk as a blob and the index
// as a large blob, and records a backref from the index to every chunk.
// It returns the hash of the index object.
func Store(sink Sink, rd io.Reader, rabin *Rabin) (object.Hash, *LargeBlob, error) {
	lb := &LargeBlob{}
	hasher := object.NewHasher()
	err := rabin.Split(io.TeeReader(rd, hasher), func(data []byte) error {
		h, err := sink.AddBlob(object.TypeBlob, data)
		if err != nil {
			return err
		}
		lb.Chunks = append(lb.Chunks, Chunk{Hash: h, Length: uint64(len(data))})
		lb.Size += uint64(len(data))
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("largeblob store: %w", err)
	}
	lb.FileHash = object.SumHash(hasher)

	index, err := lb.Blob()
	if err != nil {
		return "", nil, fmt.Errorf("largeblob store: %w", err)
	}
	h, err := sink.AddBlob(object.TypeLargeBlob, index)
	if err != nil {
		return "", nil, fmt.Errorf("largeblob store: %w", err)
	}
	for _, c := range lb.Chunks {
		if err := sink.AddBackref(h, c.Hash); err != nil {
			return "", nil, fmt.Errorf("largeblob store: backref: %w", err)
		}
	}
	log.Debugf("largeblob %s: %d bytes in %d chunks", h.Short(), lb.Size, len(lb.Chunks))
	return h, lb, nil
}

// Load fetches and decodes the index stored under h.
func Load(src Source, h object.Hash) (*LargeBlob, error) {
	obj, err := src.GetObject(h)
	if err != nil {
		return nil, err
	}
	if info := obj.Info(); !info.Is(object.TypeLargeBlob) {
		return nil, fmt.Errorf("largeblob load %s: %w: got %s", h.Short(), object.ErrTypeMismatch, info.Type)
	}
	data, err := obj.Payload()
	if err != nil {
		return nil, err
	}
	return FromBlob(data)
}

// WriteContent streams the reassembled file to w and checks it against
// FileHash.
func (lb *LargeBlob) WriteContent(w io.Writer, src Source) (int64, error) {
	hasher := object.NewHasher()
	mw := io.MultiWriter(w, hasher)
	var total int64
	for i, c := range lb.Chunks {
		n, err := copyChunk(mw, src, c)
		total += n
		if err != nil {
			return total, fmt.Errorf("largeblob chunk %d: %w", i, err)
		}
	}
	if uint64(total) != lb.Size {
		return total, fmt.Errorf("largeblob: %w: reassembled %d bytes, want %d", object.ErrCorrupt, total, lb.Size)
	}
	if got := object.SumHash(hasher); got != lb.FileHash {
		return total, fmt.Errorf("largeblob: %w: content hashes to %s, want %s", object.ErrCorrupt, got.Short(), lb.FileHash.Short())
	}
	return total, nil
}

func copyChunk(w io.Writer, src Source, c Chunk) (int64, error) {
	obj, err := src.GetObject(c.Hash)
	if err != nil {
		return 0, err
	}
	rc, err := obj.PayloadStream()
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	n, err := io.Copy(w, rc)
	if err != nil {
		return n, err
	}
	if uint64(n) != c.Length {
		return n, fmt.Errorf("%w: chunk %s is %d bytes, index says %d", object.ErrCorrupt, c.Hash.Short(), n, c.Length)
	}
	return n, nil
}

// ExtractFile reassembles the file at path. The file only appears once
// its content has been verified.
func (lb *LargeBlob) ExtractFile(src Source, path string) error {
	pf, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return err
	}
	defer pf.Cleanup()

	if _, err := lb.WriteContent(pf, src); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}
