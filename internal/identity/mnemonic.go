package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"cloutfeed/go-identity/pkg/models"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidSeedHex  = errors.New("invalid seed hex")
	ErrUnknownVariant  = errors.New("unknown derivation variant")
)

// derivationPath is m/44'/0'/0'/0/0.
var derivationPath = []uint32{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 0,
	hdkeychain.HardenedKeyStart + 0,
	0,
	0,
}

// Keychain is the HD node at the end of derivationPath.
type Keychain struct {
	variant models.DerivationVariant
	key     *secp256k1.PrivateKey
}

func (k *Keychain) Variant() models.DerivationVariant {
	return k.variant
}

func (k *Keychain) PrivateKey() *secp256k1.PrivateKey {
	return k.key
}

func (k *Keychain) PublicKey() *secp256k1.PublicKey {
	return k.key.PubKey()
}

// PublicKeyHex is the compressed public point, used to tell variants apart.
func (k *Keychain) PublicKeyHex() string {
	return hex.EncodeToString(k.key.PubKey().SerializeCompressed())
}

// IsValidMnemonic reports whether mnemonic decodes to BIP39 entropy with a
// valid checksum.
func IsValidMnemonic(mnemonic string) bool {
	_, err := bip39.EntropyFromMnemonic(normalizeMnemonic(mnemonic))
	return err == nil
}

// DeriveKeychain runs BIP39 seed generation and walks derivationPath with the
// requested variant. The non-standard variant reproduces the unpadded private
// key serialization some wallets used for hardened children, so it only
// diverges from the standard one when an intermediate key has leading zeros.
func DeriveKeychain(mnemonic, passphrase string, variant models.DerivationVariant) (*Keychain, error) {
	mnemonic = normalizeMnemonic(mnemonic)
	if _, err := bip39.EntropyFromMnemonic(mnemonic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	seed := bip39.NewSeed(mnemonic, norm.NFKD.String(passphrase))
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	return deriveFromMaster(master, variant)
}

func deriveFromMaster(master *hdkeychain.ExtendedKey, variant models.DerivationVariant) (*Keychain, error) {
	node := master
	for _, index := range derivationPath {
		var err error
		switch variant {
		case models.VariantStandard:
			node, err = node.Derive(index)
		case models.VariantNonStandard:
			node, err = node.DeriveNonStandard(index)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
		}
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", index, err)
		}
	}
	priv, err := node.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return &Keychain{variant: variant, key: priv}, nil
}

// SeedHexFromKeychain hex-encodes the 32-byte private scalar.
func SeedHexFromKeychain(k *Keychain) string {
	return hex.EncodeToString(k.key.Serialize())
}

func PrivateKeyFromSeedHex(seedHex string) (*secp256k1.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(seedHex))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeedHex, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSeedHex, len(raw))
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}

func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(norm.NFKD.String(mnemonic)), " ")
}
