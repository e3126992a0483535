package keyring

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"cloutfeed/go-identity/pkg/models"
)

const (
	abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	unsignedTxHex   = "01a1b2c3d4e5f60718293a4b5c6d7e8f9001022a0b0c0d0e0f00"
)

func openTestKeyring(t *testing.T, cfg Config, opts ...Option) *Keyring {
	t.Helper()
	k, err := Open(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = k.Close() })
	return k
}

func TestKeyringEndToEnd(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	reg := prometheus.NewRegistry()
	k := openTestKeyring(t, DefaultConfig(), WithLogOutput(&logs), WithRegisterer(reg))

	if !IsValidMnemonic(abandonMnemonic) {
		t.Fatal("fixture mnemonic must be valid")
	}
	pending, err := k.Authenticate(abandonMnemonic, "")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := k.CommitAccount(ctx, pending[0]); err != nil {
		t.Fatalf("commit: %v", err)
	}
	address := k.Session().ActivePublicKey

	if _, err := k.SignTransaction(ctx, unsignedTxHex); err != nil {
		t.Fatalf("sign transaction: %v", err)
	}
	if _, err := k.SignJWT(ctx); err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	encrypted, err := EncryptMessage(address, "hello")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := k.DecryptMessage(ctx, encrypted)
	if err != nil || plain != "hello" {
		t.Fatalf("decrypt: %q err=%v", plain, err)
	}

	if strings.Contains(logs.String(), address) {
		t.Fatalf("account address logged in plaintext: %s", logs.String())
	}
	n, err := testutil.GatherAndCount(reg, "identity_operations_total")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if n == 0 {
		t.Fatal("expected operation metrics to be recorded")
	}

	if err := k.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := k.SignJWT(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession after logout, got %v", err)
	}
}

func TestKeyringRestoresSessionFromSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "identity.db")

	first, err := Open(ctx, cfg, WithLogOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	pending, err := first.Authenticate(abandonMnemonic, "")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := first.CommitAccount(ctx, pending[0]); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reg := prometheus.NewRegistry()
	second := openTestKeyring(t, cfg, WithLogOutput(&bytes.Buffer{}), WithRegisterer(reg))
	const storedAccounts = `
# HELP identity_stored_accounts Accounts currently held in the credential vault.
# TYPE identity_stored_accounts gauge
identity_stored_accounts 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(storedAccounts), "identity_stored_accounts"); err != nil {
		t.Fatalf("stored accounts gauge after reopen: %v", err)
	}
	session := second.Session()
	if session.ActivePublicKey != pending[0].User.PublicKey || session.ReadOnly {
		t.Fatalf("session not restored: %+v", session)
	}
	if _, err := second.SignTransaction(ctx, unsignedTxHex); err != nil {
		t.Fatalf("restored session cannot sign: %v", err)
	}
}

type profiles []models.Profile

func (p profiles) SearchProfiles(context.Context, string, int) ([]models.Profile, error) {
	return p, nil
}

func TestKeyringReadOnlySession(t *testing.T) {
	ctx := context.Background()
	k := openTestKeyring(t, DefaultConfig(),
		WithLogOutput(&bytes.Buffer{}),
		WithProfileResolver(profiles{{Username: "Carol", PublicKey: "BC1YLcarol"}}),
	)
	if err := k.LoginReadOnly(ctx, "carol"); err != nil {
		t.Fatalf("login read-only: %v", err)
	}
	if !k.Session().ReadOnly {
		t.Fatal("expected read-only session")
	}
	if _, err := k.SignTransaction(ctx, unsignedTxHex); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
	if err := k.SwitchAccount(ctx, "BC1YLcarol"); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Backend = "etcd"
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Fatal("expected invalid config error")
	}
}
