package identity

import (
	"bytes"
	"errors"
	"fmt"

	"cloutfeed/go-identity/internal/crypto"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58/base58"
)

var ErrInvalidAddress = errors.New("invalid public key address")

// addressPrefix is the network prefix of mainnet account addresses.
var addressPrefix = []byte{0xcd, 0x14, 0x00}

const checksumSize = 4

// PublicKeyFromPrivateKey returns the canonical address of priv.
func PublicKeyFromPrivateKey(priv *secp256k1.PrivateKey) string {
	return EncodeAddress(priv.PubKey())
}

// EncodeAddress is Base58Check(prefix || compressed point).
func EncodeAddress(pub *secp256k1.PublicKey) string {
	payload := make([]byte, 0, len(addressPrefix)+secp256k1.PubKeyBytesLenCompressed+checksumSize)
	payload = append(payload, addressPrefix...)
	payload = append(payload, pub.SerializeCompressed()...)
	payload = append(payload, crypto.DoubleSHA256(payload)[:checksumSize]...)
	return base58.Encode(payload)
}

// DecodeAddress verifies the checksum and prefix of address and parses the
// embedded public point.
func DecodeAddress(address string) (*secp256k1.PublicKey, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != len(addressPrefix)+secp256k1.PubKeyBytesLenCompressed+checksumSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(raw))
	}
	body, checksum := raw[:len(raw)-checksumSize], raw[len(raw)-checksumSize:]
	if !bytes.Equal(crypto.DoubleSHA256(body)[:checksumSize], checksum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}
	if !bytes.Equal(body[:len(addressPrefix)], addressPrefix) {
		return nil, fmt.Errorf("%w: unexpected prefix", ErrInvalidAddress)
	}
	pub, err := secp256k1.ParsePubKey(body[len(addressPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return pub, nil
}
