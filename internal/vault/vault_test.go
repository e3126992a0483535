package vault

import (
	"context"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"

	"cloutfeed/go-identity/internal/crypto"
	"cloutfeed/go-identity/internal/securestore"
	"cloutfeed/go-identity/pkg/models"
)

const testSeedHex = "e284129cc0922579a535bbf4d1a3b25773090d28c909bc0fed73b5e0222cc372"

func addTestAccount(t *testing.T, v *Vault, publicKey, seedHex string) {
	t.Helper()
	user, key, err := NewCredentials(seedHex, publicKey)
	if err != nil {
		t.Fatalf("new credentials: %v", err)
	}
	if err := v.AddAccount(context.Background(), user, key); err != nil {
		t.Fatalf("add account: %v", err)
	}
}

func TestNewCredentialsShape(t *testing.T) {
	user, key, err := NewCredentials(testSeedHex, "BC1YLalice")
	if err != nil {
		t.Fatalf("new credentials: %v", err)
	}
	if user.PublicKey != "BC1YLalice" {
		t.Fatalf("unexpected public key: %q", user.PublicKey)
	}
	if len(key.Key) != 32 || len(key.IV) != 32 {
		t.Fatalf("expected 16-byte key and iv in hex, got %d/%d chars", len(key.Key), len(key.IV))
	}
	encrypted, err := hex.DecodeString(user.EncryptedSeedHex)
	if err != nil {
		t.Fatalf("encrypted seed is not hex: %v", err)
	}
	if len(encrypted) != len(testSeedHex) {
		t.Fatalf("ctr ciphertext must match plaintext length, got %d", len(encrypted))
	}
	if user.EncryptedSeedHex == hex.EncodeToString([]byte(testSeedHex)) {
		t.Fatal("seed stored in plaintext")
	}

	_, other, err := NewCredentials(testSeedHex, "BC1YLalice")
	if err != nil {
		t.Fatalf("new credentials: %v", err)
	}
	if other.Key == key.Key || other.IV == key.IV {
		t.Fatal("credentials must use fresh randomness")
	}
}

func TestVaultRoundTripAndRemove(t *testing.T) {
	ctx := context.Background()
	v := New(securestore.NewMemoryStore(), nil, nil)
	addTestAccount(t, v, "BC1YLalice", testSeedHex)

	got, err := v.SeedHex(ctx, "BC1YLalice")
	if err != nil {
		t.Fatalf("seed hex: %v", err)
	}
	if got != testSeedHex {
		t.Fatalf("round trip mismatch: %q", got)
	}

	if err := v.RemoveAccount(ctx, "BC1YLalice"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := v.SeedHex(ctx, "BC1YLalice"); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound after removal, got %v", err)
	}
}

func TestVaultListsSortedPublicKeys(t *testing.T) {
	ctx := context.Background()
	v := New(securestore.NewMemoryStore(), nil, nil)
	if keys, err := v.ListAccountPublicKeys(ctx); err != nil || len(keys) != 0 {
		t.Fatalf("expected empty vault, got %v err=%v", keys, err)
	}
	addTestAccount(t, v, "BC1YLzed", testSeedHex)
	addTestAccount(t, v, "BC1YLamy", testSeedHex)

	keys, err := v.ListAccountPublicKeys(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 || keys[0] != "BC1YLamy" || keys[1] != "BC1YLzed" {
		t.Fatalf("unexpected listing: %v", keys)
	}
}

func TestVaultAddReplacesExistingEntry(t *testing.T) {
	ctx := context.Background()
	v := New(securestore.NewMemoryStore(), nil, nil)
	addTestAccount(t, v, "BC1YLalice", testSeedHex)
	replacement := "11" + testSeedHex[2:]
	addTestAccount(t, v, "BC1YLalice", replacement)

	got, err := v.SeedHex(ctx, "BC1YLalice")
	if err != nil {
		t.Fatalf("seed hex: %v", err)
	}
	if got != replacement {
		t.Fatalf("expected last write to win, got %q", got)
	}
}

func TestVaultPartialEntriesFailClosed(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		damage string
	}{
		{name: "missing encryption key", damage: KeysKey},
		{name: "missing user record", damage: UsersKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := securestore.NewMemoryStore()
			v := New(store, nil, nil)
			addTestAccount(t, v, "BC1YLalice", testSeedHex)
			if err := store.SetItem(ctx, tt.damage, "{}"); err != nil {
				t.Fatalf("damage store: %v", err)
			}
			if _, err := v.SeedHex(ctx, "BC1YLalice"); !errors.Is(err, ErrCredentialNotFound) {
				t.Fatalf("expected ErrCredentialNotFound, got %v", err)
			}
		})
	}
}

func TestVaultMalformedEntryIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := securestore.NewMemoryStore()
	v := New(store, nil, nil)
	if err := store.SetItem(ctx, UsersKey, `{"BC1YLalice":{"publicKey":"BC1YLalice","encryptedSeedHex":"zz"}}`); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if err := store.SetItem(ctx, KeysKey, `{"BC1YLalice":{"key":"00112233445566778899aabbccddeeff","iv":"0011"}}`); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if _, err := v.SeedHex(ctx, "BC1YLalice"); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestVaultReadsLegacyWideKeys(t *testing.T) {
	ctx := context.Background()
	store := securestore.NewMemoryStore()
	v := New(store, nil, nil)
	// 32-byte key, as written by older clients that kept the whole random value.
	wide := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	iv := "0f0e0d0c0b0a09080706050403020100"
	user := models.AuthenticatedUser{PublicKey: "BC1YLold"}
	key := models.EncryptionKey{Key: wide, IV: iv}
	encrypted := legacyEncrypt(t, wide, iv, testSeedHex)
	user.EncryptedSeedHex = encrypted
	if err := v.AddAccount(ctx, user, key); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := v.SeedHex(ctx, "BC1YLold")
	if err != nil {
		t.Fatalf("seed hex: %v", err)
	}
	if got != testSeedHex {
		t.Fatalf("legacy decrypt mismatch: %q", got)
	}
}

func TestVaultRejectsIncompleteRecords(t *testing.T) {
	v := New(securestore.NewMemoryStore(), nil, nil)
	err := v.AddAccount(context.Background(), models.AuthenticatedUser{PublicKey: " "}, models.EncryptionKey{Key: "00", IV: "00"})
	if !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}

func TestVaultOverSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := securestore.OpenSQLiteStore(filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	v := New(store, nil, nil)
	addTestAccount(t, v, "BC1YLalice", testSeedHex)
	got, err := v.SeedHex(ctx, "BC1YLalice")
	if err != nil || got != testSeedHex {
		t.Fatalf("sqlite round trip failed: %q err=%v", got, err)
	}
}

func legacyEncrypt(t *testing.T, keyHex, ivHex, seedHex string) string {
	t.Helper()
	key, _ := hex.DecodeString(keyHex)
	iv, _ := hex.DecodeString(ivHex)
	out, err := crypto.AESCTR(key, iv, []byte(seedHex))
	if err != nil {
		t.Fatalf("legacy encrypt: %v", err)
	}
	return hex.EncodeToString(out)
}
