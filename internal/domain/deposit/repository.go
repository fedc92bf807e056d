package deposit

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

const claimColumns = `id, user_id, amount_cents, status, admin_id, created_at, processed_at`

func (r *Repository) Create(ctx context.Context, c *Claim) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deposit_claims (id, user_id, amount_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.UserID, c.AmountCents, c.Status, c.CreatedAt)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	var c Claim
	err := r.db.GetContext(ctx, &c, `
		SELECT `+claimColumns+` FROM deposit_claims WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Claim, error) {
	claims := []Claim{}
	err := r.db.SelectContext(ctx, &claims, `
		SELECT `+claimColumns+` FROM deposit_claims
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return claims, err
}

func (r *Repository) ListPending(ctx context.Context) ([]Claim, error) {
	claims := []Claim{}
	err := r.db.SelectContext(ctx, &claims, `
		SELECT `+claimColumns+` FROM deposit_claims
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`)
	return claims, err
}

// Resolve moves a pending claim to a terminal status with admin attribution.
// The claim row is locked for the whole resolution, and step runs while the
// lock is held: an approval's wallet credit and a rejection's funded check
// cannot interleave, so concurrent admins serialize on the row. Returns
// false when another resolution already won.
func (r *Repository) Resolve(ctx context.Context, id uuid.UUID, to Status, adminID uuid.UUID, step func(context.Context) error) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var status Status
	err = tx.GetContext(ctx, &status, `
		SELECT status FROM deposit_claims WHERE id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrClaimNotFound
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
		UPDATE deposit_claims
		SET status = $2, admin_id = $3, processed_at = $4
		WHERE id = $1
	`, id, to, adminID, time.Now()); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
