package refund

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const requestColumns = `id, order_id, user_id, status, admin_id, created_at, processed_at`

// Create inserts a pending request. A partial unique index on
// (order_id) WHERE status = 'pending' backs the one-open-request rule;
// the constraint violation is mapped, not pre-checked, so concurrent
// submissions cannot slip through.
func (r *Repository) Create(ctx context.Context, req *Request) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refund_requests (id, order_id, user_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, req.ID, req.OrderID, req.UserID, req.Status, req.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrOpenRequestExists
	}
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	var req Request
	err := r.db.GetContext(ctx, &req, `
		SELECT `+requestColumns+` FROM refund_requests WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Request, error) {
	reqs := []Request{}
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT `+requestColumns+` FROM refund_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return reqs, err
}

func (r *Repository) ListPending(ctx context.Context) ([]Request, error) {
	reqs := []Request{}
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT `+requestColumns+` FROM refund_requests
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`)
	return reqs, err
}

// Resolve moves a pending request to a terminal status with admin
// attribution. The request row stays locked for the whole resolution and
// step runs under the lock, so an approval's ledger work cannot interleave
// with a concurrent rejection. Returns false when another resolution won.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID, to Status, adminID uuid.UUID, step func(context.Context) error) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var status Status
	err = tx.GetContext(ctx, &status, `
		SELECT status FROM refund_requests WHERE id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrRequestNotFound
	}
	if err != nil {
		return false, err
	}
	if status != StatusPending {
		return false, nil
	}

	if step != nil {
		if err := step(ctx); err != nil {
			return false, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE refund_requests
		SET status = $2, admin_id = $3, processed_at = $4
		WHERE id = $1
	`, id, to, adminID, time.Now()); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
