package models

// AuthenticatedUser is the M1 record: the account address and its seed hex
// encrypted under a detached EncryptionKey.
type AuthenticatedUser struct {
	PublicKey        string `json:"publicKey"`
	EncryptedSeedHex string `json:"encryptedSeedHex"`
}

// EncryptionKey is the M2 record stored under the same public key as its
// AuthenticatedUser. Both fields are hex encoded.
type EncryptionKey struct {
	Key string `json:"key"`
	IV  string `json:"iv"`
}

type DerivationVariant string

const (
	VariantStandard    DerivationVariant = "standard"
	VariantNonStandard DerivationVariant = "non-standard"
)

// PendingAccount is a derived but not yet committed account. It carries no
// plaintext secret material.
type PendingAccount struct {
	Variant DerivationVariant `json:"variant"`
	User    AuthenticatedUser `json:"user"`
	Key     EncryptionKey     `json:"key"`
}

type Session struct {
	ActivePublicKey string `json:"active_public_key"`
	ReadOnly        bool   `json:"read_only"`
}

// LoggedIn reports whether the session points at any account.
func (s Session) LoggedIn() bool {
	return s.ActivePublicKey != ""
}

// Profile is the subset of a remote profile needed for read-only login.
type Profile struct {
	Username  string `json:"username"`
	PublicKey string `json:"public_key"`
}
