package crypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// EphemeralKeySize is the uncompressed secp256k1 point that opens every
	// ECIES payload.
	EphemeralKeySize = 65
	MACSize          = sha256.Size
	// ECIESOverhead is the wire size of an ECIES payload with an empty body.
	ECIESOverhead = EphemeralKeySize + IVSize + MACSize
)

var (
	ErrInvalidCiphertext     = errors.New("invalid ciphertext")
	ErrInvalidPublicKey      = errors.New("invalid public key")
	ErrMacVerificationFailed = errors.New("mac verification failed")
)

// ECIESOptions pins the otherwise random parts of an encryption. Zero values
// draw fresh randomness.
type ECIESOptions struct {
	EphemeralPrivateKey *secp256k1.PrivateKey
	IV                  []byte
}

// ECIESEncrypt encrypts msg for publicKeyTo and serializes the result as
// ephemeralPublicKey(65) || iv(16) || ciphertext || hmac(32).
func ECIESEncrypt(publicKeyTo *secp256k1.PublicKey, msg []byte, opts ECIESOptions) ([]byte, error) {
	if publicKeyTo == nil {
		return nil, ErrInvalidPublicKey
	}
	ephemeral := opts.EphemeralPrivateKey
	if ephemeral == nil {
		key, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral key: %w", err)
		}
		ephemeral = key
	}
	iv := opts.IV
	if iv == nil {
		iv = make([]byte, IVSize)
		if _, err := rand.Read(iv); err != nil {
			return nil, fmt.Errorf("generate iv: %w", err)
		}
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv is %d bytes", ErrInvalidKeyLength, len(iv))
	}

	encKey, macKey := eciesKeys(ephemeral, publicKeyTo)
	ciphertext, err := AESCTR(encKey, iv, msg)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, ECIESOverhead+len(ciphertext))
	out = append(out, ephemeral.PubKey().SerializeUncompressed()...)
	out = append(out, iv...)
	out = append(out, ciphertext...)
	out = append(out, HMACSHA256(macKey, out[EphemeralKeySize:])...)
	return out, nil
}

// ECIESDecrypt authenticates and decrypts a payload produced by ECIESEncrypt.
// The MAC is checked before any decryption happens.
func ECIESDecrypt(privateKey *secp256k1.PrivateKey, encrypted []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, errors.New("nil private key")
	}
	if len(encrypted) <= ECIESOverhead {
		return nil, fmt.Errorf("%w: %d bytes leaves no ciphertext", ErrInvalidCiphertext, len(encrypted))
	}
	if encrypted[0] < 2 || encrypted[0] > 4 {
		return nil, fmt.Errorf("%w: bad ephemeral key prefix 0x%02x", ErrInvalidCiphertext, encrypted[0])
	}
	ephemeral, err := secp256k1.ParsePubKey(encrypted[:EphemeralKeySize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	macStart := len(encrypted) - MACSize
	ivAndCiphertext := encrypted[EphemeralKeySize:macStart]
	iv := ivAndCiphertext[:IVSize]
	ciphertext := ivAndCiphertext[IVSize:]

	encKey, macKey := eciesKeys(privateKey, ephemeral)
	if !hmac.Equal(HMACSHA256(macKey, ivAndCiphertext), encrypted[macStart:]) {
		return nil, ErrMacVerificationFailed
	}
	return AESCTR(encKey, iv, ciphertext)
}

func eciesKeys(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) (encKey, macKey []byte) {
	hash := ConcatKDF(sharedSecret(priv, pub), 32)
	return hash[:AESKeySize], SHA256(hash[AESKeySize:32])
}

// sharedSecret is the ECDH x-coordinate as a minimal big-endian integer.
// Peers strip leading zero bytes before the KDF, so this does too.
func sharedSecret(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) []byte {
	return bytes.TrimLeft(secp256k1.GenerateSharedSecret(priv, pub), "\x00")
}
