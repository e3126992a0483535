package signing

import (
	"encoding/hex"
	"strings"

	"cloutfeed/go-identity/internal/crypto"
	"cloutfeed/go-identity/internal/identity"
)

// DecryptHex opens an ECIES payload addressed to the key of seedHex. Invalid
// UTF-8 in the plaintext is replaced rather than rejected.
func DecryptHex(seedHex, encryptedHex string) (string, error) {
	priv, err := identity.PrivateKeyFromSeedHex(seedHex)
	if err != nil {
		return "", err
	}
	defer priv.Zero()

	encrypted, err := crypto.DecodeHex(encryptedHex)
	if err != nil {
		return "", err
	}
	plain, err := crypto.ECIESDecrypt(priv, encrypted)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(plain), "\uFFFD"), nil
}

// EncryptMessage encrypts text for the account at recipientAddress and returns
// the ECIES payload as hex.
func EncryptMessage(recipientAddress, text string) (string, error) {
	pub, err := identity.DecodeAddress(recipientAddress)
	if err != nil {
		return "", err
	}
	encrypted, err := crypto.ECIESEncrypt(pub, []byte(text), crypto.ECIESOptions{})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(encrypted), nil
}
