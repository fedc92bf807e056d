package order

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smsrent/smsrent-api/internal/domain/pricing"
	"github.com/smsrent/smsrent-api/internal/domain/wallet"
)

// Notifier delivers terminal-state events to the front end.
type Notifier interface {
	OrderCompleted(ctx context.Context, o *Order)
	OrderRefunded(ctx context.Context, o *Order, reason string)
}

// Watcher owns the polling task for an active order.
type Watcher interface {
	Watch(o *Order)
	CancelTask(orderID uuid.UUID)
}

type Service struct {
	repo     *Repository
	wallet   *wallet.Service
	pricing  *pricing.Engine
	provider ProviderClient
	notifier Notifier

	watcher Watcher

	pollTimeout time.Duration
}

func NewService(repo *Repository, walletSvc *wallet.Service, pricingEngine *pricing.Engine, provider ProviderClient, notifier Notifier, pollTimeout time.Duration) *Service {
	if pollTimeout <= 0 {
		pollTimeout = 600 * time.Second
	}
	return &Service{
		repo:        repo,
		wallet:      walletSvc,
		pricing:     pricingEngine,
		provider:    provider,
		notifier:    notifier,
		pollTimeout: pollTimeout,
	}
}

// AttachWatcher wires the polling scheduler after construction; the scheduler
// itself is built around this service.
func (s *Service) AttachWatcher(w Watcher) {
	s.watcher = w
}

// RequestPurchase prices the service, reserves funds, rents a number and
// starts polling. A provider refusal after the reserve refunds through the
// same idempotent path settlement uses.
func (s *Service) RequestPurchase(ctx context.Context, userID uuid.UUID, serviceKey, country string) (*Order, error) {
	costCents, err := s.provider.Quote(ctx, serviceKey, country)
	if err != nil {
		return nil, err
	}

	price, err := s.pricing.Price(serviceKey, costCents)
	if err != nil {
		if errors.Is(err, pricing.ErrUnpricableService) {
			return nil, ErrServiceUnavailable
		}
		return nil, err
	}

	orderID := uuid.New()

	if err := s.wallet.Reserve(ctx, userID, price, orderID.String()); err != nil {
		return nil, err
	}

	purchase, err := s.provider.Purchase(ctx, serviceKey, country)
	if err != nil {
		// Funds are already reserved; give them back through the
		// idempotent refund path before surfacing the refusal.
		if refundErr := s.wallet.Credit(ctx, userID, wallet.KindRefund, price, orderID.String()); refundErr != nil && !errors.Is(refundErr, wallet.ErrDuplicateReference) {
			log.Error().Err(refundErr).Str("order_id", orderID.String()).Msg("Failed to refund declined purchase")
			return nil, refundErr
		}
		return nil, err
	}

	now := time.Now()
	o := &Order{
		ID:          orderID,
		UserID:      userID,
		ServiceKey:  serviceKey,
		Country:     country,
		Number:      purchase.Number,
		ProviderRef: purchase.Ref,
		Status:      StatusPending,
		CostCents:   price,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.pollTimeout),
	}

	if err := s.repo.Create(ctx, o); err != nil {
		// No order row exists, so the manual-refund path can never reach
		// this reserve. Return it now, same idempotent path as above.
		if refundErr := s.wallet.Credit(ctx, userID, wallet.KindRefund, price, orderID.String()); refundErr != nil && !errors.Is(refundErr, wallet.ErrDuplicateReference) {
			log.Error().Err(refundErr).Str("order_id", orderID.String()).Msg("Failed to refund after order create failure")
		}
		if cancelErr := s.provider.Cancel(ctx, purchase.Ref); cancelErr != nil {
			log.Warn().Err(cancelErr).Str("provider_ref", purchase.Ref).Msg("Provider cancel failed for orphaned purchase")
		}
		return nil, err
	}

	log.Info().
		Str("order_id", o.ID.String()).
		Str("user_id", userID.String()).
		Str("service", serviceKey).
		Int64("price", price).
		Str("number", o.Number).
		Msg("order created")

	if s.watcher != nil {
		s.watcher.Watch(o)
	}

	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotOwner
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Cancel stops polling cooperatively and settles the order as cancelled.
// The polling task observes the cancellation between attempts; the CAS
// transition makes the race with a concurrent terminal signal harmless.
func (s *Service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotOwner
	}
	if o.Status != StatusPending {
		return nil, ErrNotCancellable
	}

	if s.watcher != nil {
		s.watcher.CancelTask(orderID)
	}

	// Best effort; the provider may already consider the order finished.
	if err := s.provider.Cancel(ctx, o.ProviderRef); err != nil {
		log.Warn().Err(err).Str("order_id", orderID.String()).Msg("Provider cancel failed")
	}

	if err := s.Settle(ctx, o, StatusCancelled, "order cancelled"); err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, orderID)
}

// Settle drives a terminal failure to its refunded end state. Every step is
// idempotent, so a crash-and-resume or a duplicate terminal signal replays
// safely: the CAS transition no-ops, the refund credit is reference-keyed,
// and MarkRefunded only fires from a refundable status. A lost CAS re-reads
// the order first: if a completion won the race there is nothing to refund.
func (s *Service) Settle(ctx context.Context, o *Order, to Status, reason string) error {
	if !to.Refundable() {
		return ErrInvalidTransition
	}

	moved, err := s.repo.Transition(ctx, o.ID, StatusPending, to)
	if err != nil {
		return err
	}
	if !moved {
		// The pending CAS lost; whoever won decides the ledger. A completed
		// order keeps its reserve, so only continue when the current status
		// is one the refund may follow.
		current, err := s.repo.GetByID(ctx, o.ID)
		if err != nil {
			return err
		}
		if !current.Status.Refundable() && current.Status != StatusRefunded {
			return nil
		}
	}

	err = s.wallet.Credit(ctx, o.UserID, wallet.KindRefund, o.CostCents, o.ID.String())
	refunded := err == nil
	if err != nil && !errors.Is(err, wallet.ErrDuplicateReference) {
		return err
	}

	if _, err := s.repo.MarkRefunded(ctx, o.ID); err != nil {
		return err
	}

	if moved || refunded {
		log.Info().
			Str("order_id", o.ID.String()).
			Str("status", string(to)).
			Str("reason", reason).
			Int64("refund", o.CostCents).
			Msg("order settled")
		if s.notifier != nil {
			s.notifier.OrderRefunded(ctx, o, reason)
		}
	}

	return nil
}

// Complete records a delivered OTP. No ledger action: the reserve is final.
func (s *Service) Complete(ctx context.Context, o *Order, sms string) error {
	otp := ExtractOTP(sms)
	receivedAt := time.Now()

	moved, err := s.repo.Complete(ctx, o.ID, otp, receivedAt)
	if err != nil {
		return err
	}
	if !moved {
		// Already terminal: a cancel or timeout won the race.
		return nil
	}

	o.Status = StatusCompleted
	o.OTP = &otp
	o.OTPReceivedAt = &receivedAt

	log.Info().
		Str("order_id", o.ID.String()).
		Str("user_id", o.UserID.String()).
		Msg("order completed, OTP received")

	if s.notifier != nil {
		s.notifier.OrderCompleted(ctx, o)
	}
	return nil
}

var otpPattern = regexp.MustCompile(`\b\d{4,8}\b`)

// ExtractOTP pulls the passcode out of raw SMS text: the first 4-8 digit
// run, falling back to the trimmed text when none is found.
func ExtractOTP(sms string) string {
	if match := otpPattern.FindString(sms); match != "" {
		return match
	}
	return strings.TrimSpace(sms)
}
