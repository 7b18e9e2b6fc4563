package fhe

import (
	"encoding/binary"
	"fmt"
)

// WordSize is the width of one encoded clear value (an ABI uint256)
const WordSize = 32

// EncodeClearValues concatenates values as 32-byte big-endian words
func EncodeClearValues(values []uint64) []byte {
	out := make([]byte, WordSize*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(out[(i+1)*WordSize-8:(i+1)*WordSize], v)
	}
	return out
}

// DecodeClearValues reverses EncodeClearValues. Words wider than 64 bits are rejected.
func DecodeClearValues(b []byte) ([]uint64, error) {
	if len(b)%WordSize != 0 {
		return nil, fmt.Errorf("clear values: length %d is not a multiple of %d", len(b), WordSize)
	}

	values := make([]uint64, 0, len(b)/WordSize)
	for off := 0; off < len(b); off += WordSize {
		word := b[off : off+WordSize]
		for _, c := range word[:WordSize-8] {
			if c != 0 {
				return nil, fmt.Errorf("clear values: word %d overflows uint64", off/WordSize)
			}
		}
		values = append(values, binary.BigEndian.Uint64(word[WordSize-8:]))
	}
	return values, nil
}

// Zip pairs handles with decoded values
func Zip(handles []Handle, values []uint64) (map[Handle]uint64, error) {
	if len(handles) != len(values) {
		return nil, fmt.Errorf("clear values: %d values for %d handles", len(values), len(handles))
	}
	out := make(map[Handle]uint64, len(handles))
	for i, h := range handles {
		out[h.Normalize()] = values[i]
	}
	return out, nil
}
