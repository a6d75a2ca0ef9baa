package object

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Writer builds the little-endian, length-prefixed binary encodings used
// by tree and large-blob objects.
type Writer struct {
	buf bytes.Buffer
}

// WriteUint64 appends v as 8 little-endian bytes.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteTag appends a 4-byte tag. Tags of any other width are a caller bug.
func (w *Writer) WriteTag(tag string) error {
	if len(tag) != TagSize {
		return fmt.Errorf("%w: tag %q is not %d bytes", ErrMalformed, tag, TagSize)
	}
	w.buf.WriteString(tag)
	return nil
}

// WritePStr appends s prefixed with its uint16 little-endian length.
func (w *Writer) WritePStr(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: string of %d bytes exceeds length prefix", ErrMalformed, len(s))
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(len(s)))
	w.buf.Write(b[:])
	w.buf.WriteString(s)
	return nil
}

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Reader decodes what Writer produces. Every short read is reported as
// ErrMalformed.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 || len(r.data)-r.off < n {
		return nil, fmt.Errorf("%w: truncated at offset %d (want %d bytes, have %d)",
			ErrMalformed, r.off, n, len(r.data)-r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadUint64 reads 8 little-endian bytes.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadTag reads a 4-byte tag.
func (r *Reader) ReadTag() (string, error) {
	b, err := r.next(TagSize)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadPStr reads a uint16 length-prefixed string.
func (r *Reader) ReadPStr() (string, error) {
	b, err := r.next(2)
	if err != nil {
		return "", err
	}
	s, err := r.next(int(binary.LittleEndian.Uint16(b)))
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
