package largeblob

import (
	"fmt"
	"io"

	"github.com/restic/chunker"
)

const (
	kiB = 1024
	miB = 1024 * kiB

	// DefaultMinSize is the default minimal size of a chunk.
	DefaultMinSize = 512 * kiB
	// DefaultMaxSize is the default maximal size of a chunk.
	DefaultMaxSize = 8 * miB
)

// Rabin holds the parameters of the content-defined chunker. Two files
// only share chunks when they were split with the same polynomial, so a
// repository fixes one at init time and keeps it.
type Rabin struct {
	Poly    chunker.Pol
	MinSize uint
	MaxSize uint
}

// NewRabin fills in defaults for zero fields, drawing a random
// polynomial if none is set.
func NewRabin(poly uint64, minSize, maxSize uint) (*Rabin, error) {
	r := &Rabin{Poly: chunker.Pol(poly), MinSize: minSize, MaxSize: maxSize}
	if r.MinSize == 0 {
		r.MinSize = DefaultMinSize
	}
	if r.MaxSize == 0 {
		r.MaxSize = DefaultMaxSize
	}
	if r.MinSize > r.MaxSize {
		return nil, fmt.Errorf("chunker: min size %d exceeds max size %d", r.MinSize, r.MaxSize)
	}
	if r.Poly == 0 {
		p, err := chunker.RandomPolynomial()
		if err != nil {
			return nil, fmt.Errorf("chunker: %w", err)
		}
		r.Poly = p
	} else if !r.Poly.Irreducible() {
		return nil, fmt.Errorf("chunker: polynomial %#x is not irreducible", uint64(r.Poly))
	}
	return r, nil
}

// Split calls fn once per chunk of rd, in order. The slice passed to fn is
// only valid for the duration of the call.
func (r *Rabin) Split(rd io.Reader, fn func([]byte) error) error {
	c := chunker.NewWithBoundaries(rd, r.Poly, r.MinSize, r.MaxSize)
	buf := make([]byte, r.MaxSize)
	for {
		chunk, err := c.Next(buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("chunker: %w", err)
		}
		if err := fn(chunk.Data); err != nil {
			return err
		}
		buf = chunk.Data[:cap(chunk.Data)]
	}
}
