package object

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size of the fixed record header preceding every
// stored payload:
//
//	type tag (4) | flags uint32 (4) | payload size uint64 (8) | stored size uint64 (8)
//
// All integers are little-endian. The stored size is the number of bytes
// following the header, which differs from the payload size when the
// payload is compressed.
const HeaderSize = 24

func encodeHeader(info Info, storedSize uint64) []byte {
	hdr := make([]byte, HeaderSize)
	copy(hdr[0:4], info.Type)
	binary.LittleEndian.PutUint32(hdr[4:8], info.Flags)
	binary.LittleEndian.PutUint64(hdr[8:16], info.PayloadSize)
	binary.LittleEndian.PutUint64(hdr[16:24], storedSize)
	return hdr
}

func decodeHeader(h Hash, hdr []byte) (Info, uint64, error) {
	if len(hdr) != HeaderSize {
		return Info{}, 0, fmt.Errorf("%w: short header (%d bytes)", ErrMalformed, len(hdr))
	}
	objType, err := ParseType(string(hdr[0:4]))
	if err != nil {
		return Info{}, 0, err
	}
	info := Info{
		Hash:        h,
		Type:        objType,
		Flags:       binary.LittleEndian.Uint32(hdr[4:8]),
		PayloadSize: binary.LittleEndian.Uint64(hdr[8:16]),
	}
	return info, binary.LittleEndian.Uint64(hdr[16:24]), nil
}

// addHeaderFlags sets flags in an encoded header in place.
func addHeaderFlags(hdr []byte, flags uint32) {
	binary.LittleEndian.PutUint32(hdr[4:8], binary.LittleEndian.Uint32(hdr[4:8])|flags)
}
