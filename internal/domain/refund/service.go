package refund

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smsrent/smsrent-api/internal/domain/order"
	"github.com/smsrent/smsrent-api/internal/domain/wallet"
)

// Notifier pushes the admin-facing new-request event and the user-facing
// refund outcome.
type Notifier interface {
	RefundRequested(ctx context.Context, req *Request)
	OrderRefunded(ctx context.Context, o *order.Order, reason string)
}

type Service struct {
	repo     *Repository
	orders   *order.Repository
	wallet   *wallet.Service
	notifier Notifier
}

func NewService(repo *Repository, orders *order.Repository, walletSvc *wallet.Service, notifier Notifier) *Service {
	return &Service{repo: repo, orders: orders, wallet: walletSvc, notifier: notifier}
}

// Request opens a manual refund request. Only orders stranded in a terminal
// failure state with no refund on the ledger qualify; everything else either
// already settled or is still in flight.
func (s *Service) Request(ctx context.Context, userID, orderID uuid.UUID) (*Request, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrNotOwner
	}
	if o.Status == order.StatusRefunded {
		return nil, ErrAlreadyRefunded
	}
	if !o.Status.Refundable() {
		return nil, ErrOrderNotRefundable
	}

	refunded, err := s.wallet.HasRefund(ctx, o.UserID, o.ID.String())
	if err != nil {
		return nil, err
	}
	if refunded {
		return nil, ErrAlreadyRefunded
	}

	req := &Request{
		ID:        uuid.New(),
		OrderID:   orderID,
		UserID:    userID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	log.Info().
		Str("request_id", req.ID.String()).
		Str("order_id", orderID.String()).
		Str("user_id", userID.String()).
		Msg("refund request created")

	if s.notifier != nil {
		s.notifier.RefundRequested(ctx, req)
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Request, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) ListPending(ctx context.Context) ([]Request, error) {
	return s.repo.ListPending(ctx)
}

// Approve moves the refund through the same reference-keyed credit used by
// automatic settlement. If auto-refund landed in the meantime the credit is
// a duplicate no-op and the request still closes cleanly.
func (s *Service) Approve(ctx context.Context, adminID, requestID uuid.UUID) (*Request, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	// The credit and the order mark run under the request row lock, so a
	// concurrent rejection cannot close the request while funds move.
	refunded := false
	moved, err := s.repo.Resolve(ctx, requestID, StatusApproved, adminID, func(ctx context.Context) error {
		err := s.wallet.Credit(ctx, o.UserID, wallet.KindRefund, o.CostCents, o.ID.String())
		if err != nil && !errors.Is(err, wallet.ErrDuplicateReference) {
			return err
		}
		refunded = err == nil

		_, err = s.orders.MarkRefunded(ctx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrAlreadyProcessed
	}

	log.Info().
		Str("request_id", requestID.String()).
		Str("order_id", o.ID.String()).
		Str("admin_id", adminID.String()).
		Int64("refund", o.CostCents).
		Msg("refund request approved")

	if refunded && s.notifier != nil {
		s.notifier.OrderRefunded(ctx, o, "manual refund approved")
	}

	return s.repo.GetByID(ctx, requestID)
}

func (s *Service) Reject(ctx context.Context, adminID, requestID uuid.UUID) (*Request, error) {
	moved, err := s.repo.Resolve(ctx, requestID, StatusRejected, adminID, nil)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrAlreadyProcessed
	}

	log.Info().
		Str("request_id", requestID.String()).
		Str("admin_id", adminID.String()).
		Msg("refund request rejected")

	return s.repo.GetByID(ctx, requestID)
}
