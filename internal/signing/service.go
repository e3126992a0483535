// Package signing produces the artifacts that need the active account's
// private key: signed transactions, decrypted messages and JWTs. The seed is
// resolved per call and dropped when the call returns.
package signing

import (
	"context"
	"log/slog"

	"cloutfeed/go-identity/internal/metrics"
)

// SeedSource resolves the seed hex of the active account.
type SeedSource interface {
	ActiveSeedHex(ctx context.Context) (string, error)
}

type Service struct {
	seeds   SeedSource
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func NewService(seeds SeedSource, logger *slog.Logger, m *metrics.Recorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		seeds:   seeds,
		logger:  logger.With("component", "signing"),
		metrics: m,
	}
}

func (s *Service) SignTransaction(ctx context.Context, transactionHex string) (string, error) {
	return s.withSeed(ctx, "sign_transaction", func(seedHex string) (string, error) {
		return SignTransactionHex(seedHex, transactionHex)
	})
}

func (s *Service) DecryptMessage(ctx context.Context, encryptedHex string) (string, error) {
	return s.withSeed(ctx, "decrypt_message", func(seedHex string) (string, error) {
		return DecryptHex(seedHex, encryptedHex)
	})
}

func (s *Service) SignJWT(ctx context.Context) (string, error) {
	return s.withSeed(ctx, "sign_jwt", IssueJWT)
}

func (s *Service) withSeed(ctx context.Context, operation string, fn func(seedHex string) (string, error)) (out string, err error) {
	defer func() {
		s.metrics.Observe(operation, err)
		if err != nil {
			s.logger.Warn("signing operation failed", "operation", operation, "error", err.Error())
		}
	}()
	seedHex, err := s.seeds.ActiveSeedHex(ctx)
	if err != nil {
		return "", err
	}
	return fn(seedHex)
}
