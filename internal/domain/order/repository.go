package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const orderColumns = `
	id, user_id, service_key, country, number, provider_ref, status, cost_cents,
	otp, otp_received_at, last_provider_status, last_polled_at,
	created_at, expires_at, updated_at`

func (r *Repository) Create(ctx context.Context, o *Order) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, service_key, country, number, provider_ref, status, cost_cents, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, o.ID, o.UserID, o.ServiceKey, o.Country, o.Number, o.ProviderRef, string(o.Status), o.CostCents, o.CreatedAt, o.ExpiresAt)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}

	orders := make([]Order, 0)
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Transition performs a compare-and-set status move in one atomic write.
// Returns false when the order was not in `from`, which callers treat as a
// duplicate signal, not a failure. Per-order serialization comes from the
// row-level CAS: of two racing transitions only one matches the predicate.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to Status) (bool, error) {
	if !CanTransition(from, to) {
		return false, ErrInvalidTransition
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to))
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Complete records success: terminal status, OTP and delivery timestamp in a
// single atomic write, guarded on the order still being pending.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, otp string, receivedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, otp = $3, otp_received_at = $4, updated_at = now()
		WHERE id = $1 AND status = $5
	`, id, string(StatusCompleted), otp, receivedAt, string(StatusPending))
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// MarkRefunded settles a terminal failure into refunded. Only timeout,
// cancelled and error orders qualify; the predicate keeps refunded
// unreachable from pending or completed.
func (r *Repository) MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status IN ('timeout', 'cancelled', 'error')
	`, id, string(StatusRefunded))
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// TouchPoll updates the last-seen provider status marker. Observability
// only; never changes the order status.
func (r *Repository) TouchPoll(ctx context.Context, id uuid.UUID, providerStatus ProviderStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders SET last_provider_status = $2, last_polled_at = now()
		WHERE id = $1
	`, id, string(providerStatus))
	return err
}

// ListPending returns all orders still awaiting a terminal state, for the
// restart sweep and for resuming polling tasks.
func (r *Repository) ListPending(ctx context.Context) ([]Order, error) {
	orders := make([]Order, 0)
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ListUnsettled returns orders stuck in a refundable terminal status. An
// order only sits there when a settlement was interrupted between the status
// move and the refund; the restart sweep replays those settlements.
func (r *Repository) ListUnsettled(ctx context.Context) ([]Order, error) {
	orders := make([]Order, 0)
	err := r.db.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status IN ('timeout', 'cancelled', 'error')
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	return orders, nil
}
