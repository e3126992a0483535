// Package account owns the session: which stored account is active and
// whether it is read-only. It is the only writer of the vault.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"cloutfeed/go-identity/internal/identity"
	"cloutfeed/go-identity/internal/metrics"
	"cloutfeed/go-identity/internal/platform/ratelimiter"
	"cloutfeed/go-identity/internal/securestore"
	"cloutfeed/go-identity/internal/signing"
	"cloutfeed/go-identity/internal/vault"
	"cloutfeed/go-identity/pkg/models"
)

const (
	componentName = "account"

	// Session keys live next to the vault documents but hold nothing secret.
	sessionPublicKeyItem = "publicKey"
	sessionReadOnlyItem  = "readonly"

	profileSearchLimit = 10

	lookupRPS   = 1
	lookupBurst = 5
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrUnknownAccount  = errors.New("account is not stored on this device")
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmptyUsername   = errors.New("username is required")
	ErrRateLimited     = errors.New("too many profile lookups")
)

// PushRegistrar revokes the device's push registration for an account.
type PushRegistrar interface {
	Unregister(ctx context.Context, publicKey, jwt string) error
}

// ProfileResolver searches public profiles by username prefix.
type ProfileResolver interface {
	SearchProfiles(ctx context.Context, username string, limit int) ([]models.Profile, error)
}

var loggedOut = models.Session{ReadOnly: true}

type Manager struct {
	mu       sync.RWMutex
	vault    *vault.Vault
	store    securestore.Store
	push     PushRegistrar
	profiles ProfileResolver
	lookups  *ratelimiter.Keyed
	session  models.Session
	logger   *slog.Logger
	metrics  *metrics.Recorder
}

func NewManager(
	v *vault.Vault,
	store securestore.Store,
	push PushRegistrar,
	profiles ProfileResolver,
	logger *slog.Logger,
	m *metrics.Recorder,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		vault:    v,
		store:    store,
		push:     push,
		profiles: profiles,
		lookups:  ratelimiter.NewKeyed(lookupRPS, lookupBurst),
		session:  loggedOut,
		logger:   logger,
		metrics:  m,
	}
}

// Authenticate derives both keychain variants from the mnemonic and returns
// one pending account per distinct public key, standard first. Nothing is
// stored.
func (m *Manager) Authenticate(mnemonic, passphrase string) (pending []models.PendingAccount, err error) {
	defer func() { m.metrics.Observe("authenticate", err) }()

	standard, err := identity.DeriveKeychain(mnemonic, passphrase, models.VariantStandard)
	if err != nil {
		return nil, err
	}
	nonStandard, err := identity.DeriveKeychain(mnemonic, passphrase, models.VariantNonStandard)
	if err != nil {
		return nil, err
	}

	first, err := pendingFromKeychain(standard)
	if err != nil {
		return nil, err
	}
	pending = append(pending, first)
	if nonStandard.PublicKeyHex() != standard.PublicKeyHex() {
		second, err := pendingFromKeychain(nonStandard)
		if err != nil {
			return nil, err
		}
		pending = append(pending, second)
	}
	m.logInfo("authenticate", "mnemonic derived", "variants", len(pending))
	return pending, nil
}

func pendingFromKeychain(k *identity.Keychain) (models.PendingAccount, error) {
	address := identity.PublicKeyFromPrivateKey(k.PrivateKey())
	user, key, err := vault.NewCredentials(identity.SeedHexFromKeychain(k), address)
	if err != nil {
		return models.PendingAccount{}, err
	}
	return models.PendingAccount{Variant: k.Variant(), User: user, Key: key}, nil
}

// CommitAccount stores a pending account and makes it the active,
// signing-capable session.
func (m *Manager) CommitAccount(ctx context.Context, pending models.PendingAccount) (err error) {
	defer func() { m.metrics.Observe("commit_account", err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.vault.AddAccount(ctx, pending.User, pending.Key); err != nil {
		return err
	}
	if err := m.setSessionLocked(ctx, models.Session{ActivePublicKey: pending.User.PublicKey}); err != nil {
		return err
	}
	m.logInfo("commit_account", "account committed", "public_key", pending.User.PublicKey, "variant", string(pending.Variant))
	return nil
}

// SwitchAccount makes a stored account active. The vault is not modified.
func (m *Manager) SwitchAccount(ctx context.Context, publicKey string) (err error) {
	defer func() { m.metrics.Observe("switch_account", err) }()
	publicKey = strings.TrimSpace(publicKey)

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.vault.ListAccountPublicKeys(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(stored, publicKey) {
		return ErrUnknownAccount
	}
	if err := m.setSessionLocked(ctx, models.Session{ActivePublicKey: publicKey}); err != nil {
		return err
	}
	m.logInfo("switch_account", "account switched", "public_key", publicKey)
	return nil
}

// Logout ends the active session. For a signing session the account is
// removed from the vault after a best-effort push unregistration, and the
// first remaining stored account, if any, becomes active.
func (m *Manager) Logout(ctx context.Context) (err error) {
	defer func() { m.metrics.Observe("logout", err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.session
	if !current.LoggedIn() {
		return ErrNoActiveSession
	}
	if err := m.clearPersistedSessionLocked(ctx); err != nil {
		return err
	}
	// Storage no longer names an active account, so neither may memory.
	defer func() {
		if err != nil {
			m.session = loggedOut
		}
	}()

	if !current.ReadOnly {
		m.unregisterPush(ctx, current.ActivePublicKey)
		if err := m.vault.RemoveAccount(ctx, current.ActivePublicKey); err != nil {
			return err
		}
		remaining, err := m.vault.ListAccountPublicKeys(ctx)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			if err := m.setSessionLocked(ctx, models.Session{ActivePublicKey: remaining[0]}); err != nil {
				return err
			}
			m.logInfo("logout", "logged out, switched to remaining account",
				"public_key", current.ActivePublicKey, "active_account", remaining[0])
			return nil
		}
	}

	m.session = loggedOut
	m.logInfo("logout", "logged out", "public_key", current.ActivePublicKey)
	return nil
}

func (m *Manager) unregisterPush(ctx context.Context, publicKey string) {
	if m.push == nil {
		return
	}
	seedHex, err := m.vault.SeedHex(ctx, publicKey)
	if err != nil {
		m.logWarn("logout", "push unregister skipped", "public_key", publicKey, "error", err.Error())
		return
	}
	token, err := signing.IssueJWT(seedHex)
	if err != nil {
		m.logWarn("logout", "push unregister skipped", "public_key", publicKey, "error", err.Error())
		return
	}
	if err := m.push.Unregister(ctx, publicKey, token); err != nil {
		m.logWarn("logout", "push unregister failed", "public_key", publicKey, "error", err.Error())
	}
}

// LoginReadOnly starts a view-only session for the profile whose username
// matches case-insensitively. The vault is not touched.
func (m *Manager) LoginReadOnly(ctx context.Context, username string) (err error) {
	defer func() { m.metrics.Observe("login_read_only", err) }()
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}
	if m.profiles == nil {
		return fmt.Errorf("%w: no profile resolver configured", ErrProfileNotFound)
	}

	if !m.lookups.Allow(username) {
		return ErrRateLimited
	}

	profiles, err := m.profiles.SearchProfiles(ctx, username, profileSearchLimit)
	if err != nil {
		return err
	}
	publicKey := matchProfile(profiles, username)
	if publicKey == "" {
		return ErrProfileNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.setSessionLocked(ctx, models.Session{ActivePublicKey: publicKey, ReadOnly: true}); err != nil {
		return err
	}
	m.logInfo("login_read_only", "read-only session started", "public_key", publicKey)
	return nil
}

func matchProfile(profiles []models.Profile, username string) string {
	for _, p := range profiles {
		if strings.EqualFold(strings.TrimSpace(p.Username), username) {
			if publicKey := strings.TrimSpace(p.PublicKey); publicKey != "" {
				return publicKey
			}
		}
	}
	return ""
}

func (m *Manager) Session() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Restore loads the persisted session, if any. A missing or unparsable
// read-only flag is treated as read-only.
func (m *Manager) Restore(ctx context.Context) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Also refreshes the stored-accounts gauge.
	accounts, err := m.vault.ListAccountPublicKeys(ctx)
	if err != nil {
		return loggedOut, err
	}

	publicKey, ok, err := m.store.GetItem(ctx, sessionPublicKeyItem)
	if err != nil {
		return loggedOut, err
	}
	publicKey = strings.TrimSpace(publicKey)
	if !ok || publicKey == "" {
		m.session = loggedOut
		return m.session, nil
	}
	readOnlyValue, _, err := m.store.GetItem(ctx, sessionReadOnlyItem)
	if err != nil {
		return loggedOut, err
	}
	m.session = models.Session{ActivePublicKey: publicKey, ReadOnly: readOnlyValue != "false"}
	m.logInfo("restore", "session restored",
		"public_key", publicKey, "read_only", m.session.ReadOnly, "accounts", len(accounts))
	return m.session, nil
}

// ActiveSeedHex decrypts the active account's seed. Read-only sessions have
// no vault entry and fail with vault.ErrCredentialNotFound.
func (m *Manager) ActiveSeedHex(ctx context.Context) (string, error) {
	session := m.Session()
	if !session.LoggedIn() {
		return "", ErrNoActiveSession
	}
	return m.vault.SeedHex(ctx, session.ActivePublicKey)
}

func (m *Manager) ListAccounts(ctx context.Context) ([]string, error) {
	return m.vault.ListAccountPublicKeys(ctx)
}

func (m *Manager) setSessionLocked(ctx context.Context, s models.Session) error {
	readOnly := strconv.FormatBool(s.ReadOnly)
	err := securestore.WriteItems(ctx, m.store, map[string]*string{
		sessionPublicKeyItem: &s.ActivePublicKey,
		sessionReadOnlyItem:  &readOnly,
	})
	if err != nil {
		return err
	}
	m.session = s
	return nil
}

func (m *Manager) clearPersistedSessionLocked(ctx context.Context) error {
	return securestore.WriteItems(ctx, m.store, map[string]*string{
		sessionPublicKeyItem: nil,
		sessionReadOnlyItem:  nil,
	})
}

func (m *Manager) logInfo(operation, message string, attrs ...any) {
	base := []any{"component", componentName, "operation", operation}
	m.logger.Info(message, append(base, attrs...)...)
}

func (m *Manager) logWarn(operation, message string, attrs ...any) {
	base := []any{"component", componentName, "operation", operation}
	m.logger.Warn(message, append(base, attrs...)...)
}
