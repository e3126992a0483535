// Package keyring is the embedding surface of the identity layer. Secrets go
// in as mnemonics and come out only as signed or decrypted artifacts.
package keyring

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"cloutfeed/go-identity/internal/account"
	"cloutfeed/go-identity/internal/config"
	"cloutfeed/go-identity/internal/crypto"
	"cloutfeed/go-identity/internal/identity"
	"cloutfeed/go-identity/internal/metrics"
	"cloutfeed/go-identity/internal/platform/privacylog"
	"cloutfeed/go-identity/internal/signing"
	"cloutfeed/go-identity/internal/vault"
	"cloutfeed/go-identity/pkg/models"
)

type (
	Config          = config.Config
	PushRegistrar   = account.PushRegistrar
	ProfileResolver = account.ProfileResolver
)

// Re-exported so callers can match errors without importing internal packages.
var (
	ErrInvalidMnemonic       = identity.ErrInvalidMnemonic
	ErrCredentialNotFound    = vault.ErrCredentialNotFound
	ErrNoActiveSession       = account.ErrNoActiveSession
	ErrUnknownAccount        = account.ErrUnknownAccount
	ErrProfileNotFound       = account.ErrProfileNotFound
	ErrRateLimited           = account.ErrRateLimited
	ErrMacVerificationFailed = crypto.ErrMacVerificationFailed
)

type options struct {
	push       PushRegistrar
	profiles   ProfileResolver
	logOutput  io.Writer
	logger     *slog.Logger
	registerer prometheus.Registerer
}

type Option func(*options)

func WithPushRegistrar(p PushRegistrar) Option {
	return func(o *options) { o.push = p }
}

func WithProfileResolver(r ProfileResolver) Option {
	return func(o *options) { o.profiles = r }
}

// WithLogOutput sends logs built from the config to w.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithLogger replaces the config-built logger. It is wrapped with the same
// redacting handler.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

type Keyring struct {
	accounts *account.Manager
	signer   *signing.Service
	close    func() error
}

// LoadConfig reads YAML from path (or the default locations) and applies
// environment overrides.
func LoadConfig(path string) Config {
	return config.LoadFromPath(path)
}

func DefaultConfig() Config {
	return config.Default()
}

// Open builds the identity layer from cfg and restores any persisted session.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Keyring, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(cfg.Logging, o.logOutput)
	if err != nil {
		return nil, err
	}
	if o.logger != nil {
		logger = slog.New(privacylog.WrapHandler(o.logger.Handler()))
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder, err = metrics.New(o.registerer)
		if err != nil {
			return nil, err
		}
	}

	store, closeStore, err := config.NewStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	v := vault.New(store, logger, recorder)
	manager := account.NewManager(v, store, o.push, o.profiles, logger, recorder)
	if _, err := manager.Restore(ctx); err != nil {
		_ = closeStore()
		return nil, err
	}
	return &Keyring{
		accounts: manager,
		signer:   signing.NewService(manager, logger, recorder),
		close:    closeStore,
	}, nil
}

func (k *Keyring) Close() error {
	return k.close()
}

func IsValidMnemonic(mnemonic string) bool {
	return identity.IsValidMnemonic(mnemonic)
}

func (k *Keyring) Authenticate(mnemonic, passphrase string) ([]models.PendingAccount, error) {
	return k.accounts.Authenticate(mnemonic, passphrase)
}

func (k *Keyring) CommitAccount(ctx context.Context, pending models.PendingAccount) error {
	return k.accounts.CommitAccount(ctx, pending)
}

func (k *Keyring) SwitchAccount(ctx context.Context, publicKey string) error {
	return k.accounts.SwitchAccount(ctx, publicKey)
}

func (k *Keyring) Logout(ctx context.Context) error {
	return k.accounts.Logout(ctx)
}

func (k *Keyring) LoginReadOnly(ctx context.Context, username string) error {
	return k.accounts.LoginReadOnly(ctx, username)
}

func (k *Keyring) Session() models.Session {
	return k.accounts.Session()
}

func (k *Keyring) ListAccounts(ctx context.Context) ([]string, error) {
	return k.accounts.ListAccounts(ctx)
}

func (k *Keyring) SignTransaction(ctx context.Context, transactionHex string) (string, error) {
	return k.signer.SignTransaction(ctx, transactionHex)
}

func (k *Keyring) DecryptMessage(ctx context.Context, encryptedHex string) (string, error) {
	return k.signer.DecryptMessage(ctx, encryptedHex)
}

func (k *Keyring) SignJWT(ctx context.Context) (string, error) {
	return k.signer.SignJWT(ctx)
}

// EncryptMessage encrypts text for the account at recipientAddress.
func EncryptMessage(recipientAddress, text string) (string, error) {
	return signing.EncryptMessage(recipientAddress, text)
}
