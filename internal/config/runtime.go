package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cloutfeed/go-identity/internal/platform/privacylog"
	"cloutfeed/go-identity/internal/securestore"
)

// NewLogger builds the sanitizing logger every component logs through.
func NewLogger(cfg LoggingConfig, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(privacylog.WrapHandler(handler)), nil
}

// NewStore opens the configured device store. The returned close function is
// never nil.
func NewStore(cfg StorageConfig) (securestore.Store, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendMemory:
		return securestore.NewMemoryStore(), noop, nil
	case BackendFile:
		store, err := securestore.NewFileStore(cfg.Path, cfg.Secret)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case BackendSQLite:
		store, err := securestore.OpenSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(trimmed)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, raw)
	}
	return level, nil
}
