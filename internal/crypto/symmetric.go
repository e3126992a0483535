package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// AESKeySize is the key size written by the vault and derived by ECIES.
	AESKeySize = 16
	// IVSize is the AES block size used as the initial CTR counter block.
	IVSize = aes.BlockSize
)

var ErrInvalidKeyLength = errors.New("invalid key length")

// AESCTR applies the AES-CTR keystream derived from (key, iv) to data. The
// operation is its own inverse. A 16-byte key selects AES-128; 24 and 32 byte
// keys are accepted so that older vault entries still decrypt.
func AESCTR(key, iv, data []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv is %d bytes", ErrInvalidKeyLength, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %d byte aes key", ErrInvalidKeyLength, len(key))
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out, nil
}

func HMACSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// DoubleSHA256 returns SHA256(SHA256(data)), the transaction hash of the chain.
func DoubleSHA256(data []byte) []byte {
	return chainhash.DoubleHashB(data)
}
