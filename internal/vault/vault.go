// Package vault keeps per-account seed hex encrypted at rest. Each account is
// split across two documents in the device store: the encrypted seed under
// UsersKey and its detached AES key and IV under KeysKey. An account exists
// only when both halves are present.
package vault

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"cloutfeed/go-identity/internal/crypto"
	"cloutfeed/go-identity/internal/metrics"
	"cloutfeed/go-identity/internal/securestore"
	"cloutfeed/go-identity/pkg/models"
)

const (
	UsersKey = "authenticatedUsers"
	KeysKey  = "authenticatedUsersEncryptionKeys"

	randomKeySize = 32
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrInvalidAccount     = errors.New("invalid account record")
)

type Vault struct {
	mu      sync.Mutex
	store   securestore.Store
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func New(store securestore.Store, logger *slog.Logger, m *metrics.Recorder) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{
		store:   store,
		logger:  logger.With("component", "vault"),
		metrics: m,
	}
}

// NewCredentials encrypts seedHex under a fresh random key and IV and returns
// the two records to persist for publicKey. Only the first 16 bytes of the
// 32 random bytes are used as the AES-128 key.
func NewCredentials(seedHex, publicKey string) (models.AuthenticatedUser, models.EncryptionKey, error) {
	random := make([]byte, randomKeySize)
	if _, err := rand.Read(random); err != nil {
		return models.AuthenticatedUser{}, models.EncryptionKey{}, err
	}
	iv := make([]byte, crypto.IVSize)
	if _, err := rand.Read(iv); err != nil {
		return models.AuthenticatedUser{}, models.EncryptionKey{}, err
	}
	key := random[:crypto.AESKeySize]

	encrypted, err := crypto.AESCTR(key, iv, []byte(seedHex))
	if err != nil {
		return models.AuthenticatedUser{}, models.EncryptionKey{}, err
	}
	user := models.AuthenticatedUser{
		PublicKey:        publicKey,
		EncryptedSeedHex: hex.EncodeToString(encrypted),
	}
	return user, models.EncryptionKey{
		Key: hex.EncodeToString(key),
		IV:  hex.EncodeToString(iv),
	}, nil
}

// AddAccount merges user and key into both documents, replacing any previous
// entry for the same public key.
func (v *Vault) AddAccount(ctx context.Context, user models.AuthenticatedUser, key models.EncryptionKey) (err error) {
	defer func() { v.metrics.Observe("vault_add_account", err) }()
	publicKey := strings.TrimSpace(user.PublicKey)
	if publicKey == "" || user.EncryptedSeedHex == "" || key.Key == "" || key.IV == "" {
		return ErrInvalidAccount
	}
	user.PublicKey = publicKey

	v.mu.Lock()
	defer v.mu.Unlock()

	users, keys, err := v.loadLocked(ctx)
	if err != nil {
		return err
	}
	users[publicKey] = user
	keys[publicKey] = key
	if err := v.writeLocked(ctx, users, keys); err != nil {
		return err
	}
	v.metrics.SetStoredAccounts(len(users))
	v.logger.Info("account stored", "public_key", publicKey, "accounts", len(users))
	return nil
}

// RemoveAccount deletes publicKey from both documents. Removing an unknown
// account is not an error.
func (v *Vault) RemoveAccount(ctx context.Context, publicKey string) (err error) {
	defer func() { v.metrics.Observe("vault_remove_account", err) }()
	publicKey = strings.TrimSpace(publicKey)

	v.mu.Lock()
	defer v.mu.Unlock()

	users, keys, err := v.loadLocked(ctx)
	if err != nil {
		return err
	}
	delete(users, publicKey)
	delete(keys, publicKey)
	if err := v.writeLocked(ctx, users, keys); err != nil {
		return err
	}
	v.metrics.SetStoredAccounts(len(users))
	v.logger.Info("account removed", "public_key", publicKey, "accounts", len(users))
	return nil
}

// ListAccountPublicKeys returns the keys of the users document in sorted
// order and refreshes the stored-accounts gauge. Nothing is decrypted.
func (v *Vault) ListAccountPublicKeys(ctx context.Context) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	users, err := loadDocument[models.AuthenticatedUser](ctx, v.store, UsersKey)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(users))
	for publicKey := range users {
		out = append(out, publicKey)
	}
	sort.Strings(out)
	v.metrics.SetStoredAccounts(len(out))
	return out, nil
}

// SeedHex decrypts the seed hex of publicKey. The plaintext is never cached.
// An entry present in only one document, or one whose fields do not decode,
// is reported as ErrCredentialNotFound.
func (v *Vault) SeedHex(ctx context.Context, publicKey string) (seedHex string, err error) {
	defer func() { v.metrics.Observe("vault_resolve_seed", err) }()
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return "", fmt.Errorf("%w: no public key", ErrCredentialNotFound)
	}

	v.mu.Lock()
	users, keys, err := v.loadLocked(ctx)
	v.mu.Unlock()
	if err != nil {
		return "", err
	}

	user, hasUser := users[publicKey]
	key, hasKey := keys[publicKey]
	switch {
	case !hasUser && !hasKey:
		return "", ErrCredentialNotFound
	case hasUser != hasKey:
		v.logger.Warn("partial vault entry", "public_key", publicKey, "has_user", hasUser, "has_encryption_key", hasKey)
		return "", fmt.Errorf("%w: entry present in one document only", ErrCredentialNotFound)
	}
	return decryptSeed(user, key)
}

func decryptSeed(user models.AuthenticatedUser, key models.EncryptionKey) (string, error) {
	encrypted, errSeed := crypto.DecodeHex(user.EncryptedSeedHex)
	aesKey, errKey := crypto.DecodeHex(key.Key)
	iv, errIV := crypto.DecodeHex(key.IV)
	if err := errors.Join(errSeed, errKey, errIV); err != nil {
		return "", fmt.Errorf("%w: %w", ErrCredentialNotFound, err)
	}
	plain, err := crypto.AESCTR(aesKey, iv, encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCredentialNotFound, err)
	}
	return string(plain), nil
}

func (v *Vault) loadLocked(ctx context.Context) (map[string]models.AuthenticatedUser, map[string]models.EncryptionKey, error) {
	users, err := loadDocument[models.AuthenticatedUser](ctx, v.store, UsersKey)
	if err != nil {
		return nil, nil, err
	}
	keys, err := loadDocument[models.EncryptionKey](ctx, v.store, KeysKey)
	if err != nil {
		return nil, nil, err
	}
	return users, keys, nil
}

func (v *Vault) writeLocked(ctx context.Context, users map[string]models.AuthenticatedUser, keys map[string]models.EncryptionKey) error {
	usersJSON, err := json.Marshal(users)
	if err != nil {
		return err
	}
	keysJSON, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	usersDoc, keysDoc := string(usersJSON), string(keysJSON)
	return securestore.WriteItems(ctx, v.store, map[string]*string{
		UsersKey: &usersDoc,
		KeysKey:  &keysDoc,
	})
}

func loadDocument[T any](ctx context.Context, store securestore.Store, key string) (map[string]T, error) {
	out := make(map[string]T)
	raw, ok, err := store.GetItem(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("vault: decode %s: %w", key, err)
	}
	return out, nil
}
