package crypto

import (
	"crypto/sha256"
	"encoding/binary"
)

// ConcatKDF expands secret by hashing counter(4, big-endian) || secret with
// SHA-256 for counter = 1, 2, ... and concatenating the digests until at least
// outLen bytes are produced. The full concatenation is returned, so callers
// slice what they need.
func ConcatKDF(secret []byte, outLen int) []byte {
	out := make([]byte, 0, ((outLen+sha256.Size-1)/sha256.Size)*sha256.Size)
	var ctr [4]byte
	for counter := uint32(1); len(out) < outLen; counter++ {
		binary.BigEndian.PutUint32(ctr[:], counter)
		h := sha256.New()
		h.Write(ctr[:])
		h.Write(secret)
		out = h.Sum(out)
	}
	return out
}
