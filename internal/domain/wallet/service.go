package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return s.repo.GetWallet(ctx, userID)
}

func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, userID, limit, offset)
}

// HasRefund reports whether a refund was already applied for a reference.
func (s *Service) HasRefund(ctx context.Context, userID uuid.UUID, referenceID string) (bool, error) {
	return s.repo.HasTransaction(ctx, userID, KindRefund, referenceID)
}

// HasDeposit reports whether a deposit was already applied for a reference.
func (s *Service) HasDeposit(ctx context.Context, userID uuid.UUID, referenceID string) (bool, error) {
	return s.repo.HasTransaction(ctx, userID, KindDeposit, referenceID)
}

// Reserve debits the sale price against an order reference. The only way
// funds leave a wallet.
func (s *Service) Reserve(ctx context.Context, userID uuid.UUID, amount int64, referenceID string) error {
	if err := s.repo.Spend(ctx, userID, amount, referenceID); err != nil {
		return err
	}
	log.Info().Str("user_id", userID.String()).Int64("amount", amount).Str("reference_id", referenceID).Msg("wallet reserve applied")
	return nil
}

// Credit adds funds. kind must be deposit or refund. A duplicate reference
// returns ErrDuplicateReference without moving funds; settlement callers
// treat that as a successful no-op.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, kind TransactionKind, amount int64, referenceID string) error {
	if err := s.repo.Credit(ctx, userID, kind, amount, referenceID); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			log.Debug().Str("user_id", userID.String()).Str("kind", string(kind)).Str("reference_id", referenceID).Msg("duplicate wallet credit ignored")
		}
		return err
	}
	log.Info().Str("user_id", userID.String()).Str("kind", string(kind)).Int64("amount", amount).Str("reference_id", referenceID).Msg("wallet credit applied")
	return nil
}
