package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

var ErrInvalidHex = errors.New("invalid hex")

// DecodeHex decodes s and maps any failure onto ErrInvalidHex.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}

// AppendUvarint appends v as an unsigned base-128 varint: seven bits per byte,
// least significant group first, high bit set on every byte but the last.
func AppendUvarint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// ReadUvarint decodes a varint from the front of b and returns the value and
// the number of bytes consumed.
func ReadUvarint(b []byte) (uint64, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, errors.New("malformed varint")
	}
	return v, n, nil
}
