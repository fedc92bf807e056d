package deposit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smsrent/smsrent-api/internal/domain/wallet"
)

// Notifier pushes admin-facing events about new claims.
type Notifier interface {
	DepositRequested(ctx context.Context, c *Claim)
}

type Service struct {
	repo     *Repository
	wallet   *wallet.Service
	notifier Notifier
}

func NewService(repo *Repository, walletSvc *wallet.Service, notifier Notifier) *Service {
	return &Service{repo: repo, wallet: walletSvc, notifier: notifier}
}

// Request creates a pending claim. Funds move only on admin approval.
func (s *Service) Request(ctx context.Context, userID uuid.UUID, amountCents int64) (*Claim, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	c := &Claim{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: amountCents,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	log.Info().
		Str("claim_id", c.ID.String()).
		Str("user_id", userID.String()).
		Int64("amount", amountCents).
		Msg("deposit claim created")

	if s.notifier != nil {
		s.notifier.DepositRequested(ctx, c)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Claim, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) ListPending(ctx context.Context) ([]Claim, error) {
	return s.repo.ListPending(ctx)
}

// Approve credits the wallet and marks the claim approved, both under the
// claim row lock. The credit is keyed by the claim id: if the process dies
// between the two writes, a replayed approval sees a duplicate reference,
// treats it as a no-op, and still completes the status move. Two concurrent
// approvals move funds exactly once.
func (s *Service) Approve(ctx context.Context, adminID, claimID uuid.UUID) (*Claim, error) {
	c, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	moved, err := s.repo.Resolve(ctx, claimID, StatusApproved, adminID, func(ctx context.Context) error {
		err := s.wallet.Credit(ctx, c.UserID, wallet.KindDeposit, c.AmountCents, c.ID.String())
		if errors.Is(err, wallet.ErrDuplicateReference) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		// The concurrent resolution won the row lock; funds moved once.
		return nil, ErrAlreadyProcessed
	}

	log.Info().
		Str("claim_id", claimID.String()).
		Str("admin_id", adminID.String()).
		Int64("amount", c.AmountCents).
		Msg("deposit claim approved")

	return s.repo.GetByID(ctx, claimID)
}

func (s *Service) Reject(ctx context.Context, adminID, claimID uuid.UUID) (*Claim, error) {
	c, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	// The funded check runs under the claim row lock, so a concurrent
	// approval cannot credit between the check and the status move. A
	// crashed approval may still have credited funds before its status
	// moved; that claim is funded and must finish as approved.
	moved, err := s.repo.Resolve(ctx, claimID, StatusRejected, adminID, func(ctx context.Context) error {
		funded, err := s.wallet.HasDeposit(ctx, c.UserID, c.ID.String())
		if err != nil {
			return err
		}
		if funded {
			return ErrAlreadyProcessed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrAlreadyProcessed
	}

	log.Info().
		Str("claim_id", claimID.String()).
		Str("admin_id", adminID.String()).
		Msg("deposit claim rejected")

	return s.repo.GetByID(ctx, claimID)
}
