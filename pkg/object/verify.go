package object

import (
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
)

// verifyingReader hashes the payload as it is read and refuses to report
// a clean EOF unless the bytes match the object's identity.
type verifyingReader struct {
	r      io.Reader
	file   *os.File
	dec    io.ReadCloser
	hasher hash.Hash
	info   Info
	n      uint64
	done   bool
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	if v.done {
		return 0, io.EOF
	}
	n, err := v.r.Read(p)
	if n > 0 {
		v.hasher.Write(p[:n])
		v.n += uint64(n)
	}
	switch {
	case errors.Is(err, io.EOF):
		if verr := v.check(); verr != nil {
			return n, verr
		}
		v.done = true
		return n, io.EOF
	case err != nil && v.dec != nil:
		return n, objErr("object read", v.info.Hash, fmt.Errorf("%w: %v", ErrCorrupt, err))
	}
	return n, err
}

func (v *verifyingReader) check() error {
	if v.n != v.info.PayloadSize {
		return objErr("object read", v.info.Hash,
			fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, v.n, v.info.PayloadSize))
	}
	if got := SumHash(v.hasher); got != v.info.Hash {
		return objErr("object read", v.info.Hash, fmt.Errorf("%w: payload hashes to %s", ErrCorrupt, got))
	}
	return nil
}

func (v *verifyingReader) Close() error {
	if v.dec != nil {
		v.dec.Close()
	}
	return v.file.Close()
}
