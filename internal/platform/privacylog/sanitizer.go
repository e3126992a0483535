// Package privacylog wraps a slog.Handler so key material never reaches a log
// sink and account identifiers appear only as per-process fingerprints.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
)

const (
	redactedValue = "[REDACTED]"
	addressPrefix = "BC1YL"
	seedHexLen    = 64
)

type treatment int

const (
	keep treatment = iota
	redact
	fingerprint
)

var (
	// Rotates with the process, so fingerprints correlate within one run only.
	fingerprintSalt = rand.Text()

	identifierKeys = map[string]struct{}{
		"public_key":     {},
		"account":        {},
		"active_account": {},
		"address":        {},
		"recipient":      {},
		"username":       {},
	}
	secretKeyParts = []string{
		"seed", "mnemonic", "passphrase", "secret", "private",
		"token", "jwt", "password", "auth", "plaintext",
	}
	// Matched whole; as substrings they would hit "active" and "public_key".
	secretExactKeys = map[string]struct{}{
		"iv":  {},
		"key": {},
	}
)

type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SanitizingHandler{next: h.next.WithAttrs(sanitizeAttrs(attrs))}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// SanitizeAttr applies the key rules first, then the value rules, recursing
// into groups.
func SanitizeAttr(attr slog.Attr) slog.Attr {
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(sanitizeAttrs(attr.Value.Group())...)}
	}

	switch classify(attr) {
	case redact:
		return slog.String(attr.Key, redactedValue)
	case fingerprint:
		key := attr.Key
		if !strings.HasSuffix(key, "_fp") {
			key += "_fp"
		}
		return slog.String(key, FingerprintID(attr.Value.String()))
	default:
		return attr
	}
}

func FingerprintID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value + "|" + fingerprintSalt))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func classify(attr slog.Attr) treatment {
	key := strings.ToLower(strings.TrimSpace(attr.Key))
	if _, ok := identifierKeys[key]; ok {
		return fingerprint
	}
	if _, ok := secretExactKeys[key]; ok {
		return redact
	}
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return redact
		}
	}

	if attr.Value.Kind() != slog.KindString {
		return keep
	}
	value := strings.TrimSpace(attr.Value.String())
	switch {
	case looksLikeSeedHex(value):
		return redact
	case strings.HasPrefix(value, addressPrefix):
		return fingerprint
	}
	return keep
}

// A bare 32-byte hex string is treated as a private scalar whatever it is
// logged under.
func looksLikeSeedHex(value string) bool {
	if len(value) != seedHexLen {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

func sanitizeAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return out
}
