package notification

import (
	"context"
	"time"

	"github.com/smsrent/smsrent-api/internal/domain/deposit"
	"github.com/smsrent/smsrent-api/internal/domain/order"
	"github.com/smsrent/smsrent-api/internal/domain/refund"
)

// Publisher turns domain events into hub pushes. It satisfies the notifier
// interfaces of the order, deposit, and refund services.
type Publisher struct {
	hub *Hub
}

func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

func (p *Publisher) OrderCompleted(ctx context.Context, o *order.Order) {
	event := &Event{
		Type:      EventOrderCompleted,
		UserID:    o.UserID,
		OrderID:   o.ID,
		CreatedAt: time.Now(),
	}
	if o.OTP != nil {
		event.OTP = *o.OTP
	}
	p.hub.SendToUser(o.UserID, event)
}

func (p *Publisher) OrderRefunded(ctx context.Context, o *order.Order, reason string) {
	p.hub.SendToUser(o.UserID, &Event{
		Type:        EventOrderRefunded,
		UserID:      o.UserID,
		OrderID:     o.ID,
		Reason:      reason,
		AmountCents: o.CostCents,
		CreatedAt:   time.Now(),
	})
}

func (p *Publisher) DepositRequested(ctx context.Context, c *deposit.Claim) {
	p.hub.BroadcastToAdmins(&Event{
		Type:        EventDepositClaimed,
		UserID:      c.UserID,
		ReferenceID: c.ID,
		AmountCents: c.AmountCents,
		CreatedAt:   time.Now(),
	})
}

func (p *Publisher) RefundRequested(ctx context.Context, req *refund.Request) {
	p.hub.BroadcastToAdmins(&Event{
		Type:        EventRefundRequested,
		UserID:      req.UserID,
		OrderID:     req.OrderID,
		ReferenceID: req.ID,
		CreatedAt:   time.Now(),
	})
}
