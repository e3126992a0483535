package signing

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"cloutfeed/go-identity/internal/crypto"
	"cloutfeed/go-identity/internal/identity"
)

var (
	ErrEmptyTransaction = errors.New("transaction is empty")
	ErrInvalidSignature = errors.New("transaction signature is invalid")
)

// SignTransactionHex signs an unsigned transaction whose final byte is the
// empty signature placeholder. The placeholder is replaced with
// varint(len(sig)) || sig, where sig is the DER encoded RFC6979 signature over
// DoubleSHA256 of the whole unsigned buffer.
func SignTransactionHex(seedHex, transactionHex string) (string, error) {
	priv, err := identity.PrivateKeyFromSeedHex(seedHex)
	if err != nil {
		return "", err
	}
	defer priv.Zero()

	tx, err := crypto.DecodeHex(transactionHex)
	if err != nil {
		return "", err
	}
	if len(tx) == 0 {
		return "", fmt.Errorf("%w: %w", crypto.ErrInvalidHex, ErrEmptyTransaction)
	}

	sig := ecdsa.Sign(priv, crypto.DoubleSHA256(tx)).Serialize()

	out := make([]byte, 0, len(tx)-1+crypto.UvarintLen(uint64(len(sig)))+len(sig))
	out = append(out, tx[:len(tx)-1]...)
	out = crypto.AppendUvarint(out, uint64(len(sig)))
	out = append(out, sig...)
	return hex.EncodeToString(out), nil
}

// VerifyTransaction checks that signedHex is unsignedHex signed by pub.
func VerifyTransaction(unsignedHex, signedHex string, pub *secp256k1.PublicKey) error {
	unsigned, err := crypto.DecodeHex(unsignedHex)
	if err != nil {
		return err
	}
	signed, err := crypto.DecodeHex(signedHex)
	if err != nil {
		return err
	}
	if len(unsigned) == 0 {
		return ErrEmptyTransaction
	}
	body := unsigned[:len(unsigned)-1]
	if !bytes.HasPrefix(signed, body) {
		return fmt.Errorf("%w: body differs from unsigned transaction", ErrInvalidSignature)
	}

	tail := signed[len(body):]
	sigLen, n, err := crypto.ReadUvarint(tail)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	der := tail[n:]
	if uint64(len(der)) != sigLen {
		return fmt.Errorf("%w: length prefix %d, have %d bytes", ErrInvalidSignature, sigLen, len(der))
	}
	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !sig.Verify(crypto.DoubleSHA256(unsigned), pub) {
		return ErrInvalidSignature
	}
	return nil
}
