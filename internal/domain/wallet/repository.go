package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureWallet lazily creates the wallet row on first interaction.
func (r *Repository) EnsureWallet(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, total_deposited, total_spent, total_refunded)
		VALUES ($1, 0, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

func (r *Repository) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	if err := r.EnsureWallet(ctx, userID); err != nil {
		return nil, err
	}

	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT user_id, balance, total_deposited, total_spent, total_refunded, frozen, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	w, err := r.GetWallet(ctx, userID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, user_id, kind, amount, reference_id, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// HasTransaction reports whether a ledger entry exists for (user, kind, reference).
// Settlement paths use it to decide whether a refund already moved funds.
func (r *Repository) HasTransaction(ctx context.Context, userID uuid.UUID, kind TransactionKind, referenceID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM wallet_transactions
			WHERE user_id = $1 AND kind = $2 AND reference_id = $3
		)
	`, userID, string(kind), referenceID)
	return exists, err
}

// Spend atomically removes funds. This is the only path by which funds
// leave a wallet.
func (r *Repository) Spend(ctx context.Context, userID uuid.UUID, amount int64, referenceID string) error {
	return r.apply(ctx, userID, KindSpend, amount, referenceID)
}

// Credit atomically adds funds as a deposit or refund.
func (r *Repository) Credit(ctx context.Context, userID uuid.UUID, kind TransactionKind, amount int64, referenceID string) error {
	if kind != KindDeposit && kind != KindRefund {
		return ErrInvalidKind
	}
	return r.apply(ctx, userID, kind, amount, referenceID)
}

// apply performs one ledger mutation: lock the wallet row, check the
// reference for idempotency, move the balance and the matching cumulative
// counter, append the transaction, then verify the balance invariant against
// the transaction log before committing. Serialization per user comes from
// the row lock; cross-user operations proceed in parallel.
func (r *Repository) apply(ctx context.Context, userID uuid.UUID, kind TransactionKind, amount int64, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if referenceID == "" {
		return ErrInvalidAmount
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	w, err := r.lockWallet(ctx, tx, userID)
	if err != nil {
		return err
	}
	if w.Frozen {
		return ErrWalletFrozen
	}

	existingAmount, exists, err := r.transactionAmountByRef(ctx, tx, userID, kind, referenceID)
	if err != nil {
		return err
	}
	if exists {
		if existingAmount != amount {
			return ErrReferenceConflict
		}
		return ErrDuplicateReference
	}

	next := *w
	switch kind {
	case KindSpend:
		if w.Balance < amount {
			return ErrInsufficientFunds
		}
		next.Balance -= amount
		next.TotalSpent += amount
	case KindDeposit:
		next.Balance += amount
		next.TotalDeposited += amount
	case KindRefund:
		next.Balance += amount
		next.TotalRefunded += amount
	default:
		return ErrInvalidKind
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $2, total_deposited = $3, total_spent = $4, total_refunded = $5, updated_at = now()
		WHERE user_id = $1
	`, userID, next.Balance, next.TotalDeposited, next.TotalSpent, next.TotalRefunded); err != nil {
		return err
	}

	if err := r.insertTransaction(ctx, tx, userID, kind, amount, referenceID); err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			// Lost a race on the unique constraint despite the row lock;
			// re-read to distinguish a clean duplicate from a conflict.
			existingAmount, exists, checkErr := r.transactionAmountByRef(ctx, tx, userID, kind, referenceID)
			if checkErr != nil {
				return checkErr
			}
			if !exists || existingAmount != amount {
				return ErrReferenceConflict
			}
			return ErrDuplicateReference
		}
		return err
	}

	if err := r.verifyInvariant(ctx, tx, userID, next.Balance); err != nil {
		tx.Rollback()
		r.freeze(ctx, userID)
		return err
	}

	return tx.Commit()
}

func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, total_deposited, total_spent, total_refunded)
		VALUES ($1, 0, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return nil, err
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT user_id, balance, total_deposited, total_spent, total_refunded, frozen, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) transactionAmountByRef(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, kind TransactionKind, referenceID string) (int64, bool, error) {
	var amount int64
	err := tx.GetContext(ctx, &amount, `
		SELECT amount
		FROM wallet_transactions
		WHERE user_id = $1 AND kind = $2 AND reference_id = $3
		LIMIT 1
	`, userID, string(kind), referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return amount, true, nil
}

func (r *Repository) insertTransaction(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, kind TransactionKind, amount int64, referenceID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, user_id, kind, amount, reference_id)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
	`, userID, string(kind), amount, referenceID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// verifyInvariant recomputes the balance from the transaction log inside the
// mutating transaction. A mismatch means the ledger has drifted.
func (r *Repository) verifyInvariant(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, expectedBalance int64) error {
	var ledgerBalance int64
	err := tx.GetContext(ctx, &ledgerBalance, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'spend' THEN -amount ELSE amount END), 0)
		FROM wallet_transactions
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return err
	}

	if ledgerBalance != expectedBalance || expectedBalance < 0 {
		return fmt.Errorf("%w: user=%s ledger=%d balance=%d", ErrInvariantViolation, userID, ledgerBalance, expectedBalance)
	}
	return nil
}

// freeze halts further mutation of a wallet after an invariant violation.
// Runs outside the rolled-back transaction.
func (r *Repository) freeze(ctx context.Context, userID uuid.UUID) {
	if _, err := r.db.ExecContext(ctx, `UPDATE wallets SET frozen = true, updated_at = now() WHERE user_id = $1`, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to freeze wallet after invariant violation")
	}
}
