package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smsrent/smsrent-api/internal/config"
	"github.com/smsrent/smsrent-api/internal/domain/deposit"
	"github.com/smsrent/smsrent-api/internal/domain/order"
	"github.com/smsrent/smsrent-api/internal/domain/refund"
	"github.com/smsrent/smsrent-api/internal/domain/wallet"
	"github.com/smsrent/smsrent-api/internal/pkg/database"
	"github.com/smsrent/smsrent-api/internal/pkg/storage"
)

// keepSnapshots caps bucket growth; older snapshots are pruned after each
// successful upload.
const keepSnapshots = 28

// snapshot is one consistent dump of every collection. All five reads run
// inside a single repeatable-read transaction, so a restore can never
// observe a half-applied mutation.
type snapshot struct {
	TakenAt        time.Time            `json:"taken_at"`
	Orders         []order.Order        `json:"orders"`
	Wallets        []wallet.Wallet      `json:"wallets"`
	Transactions   []wallet.Transaction `json:"transactions"`
	DepositClaims  []deposit.Claim      `json:"deposit_claims"`
	RefundRequests []refund.Request     `json:"refund_requests"`
}

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Dur("interval", cfg.BackupInterval).
		Str("bucket", cfg.S3Bucket).
		Msg("Starting backup-worker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	store, err := storage.NewS3Storage(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 storage client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(cfg.BackupInterval)
	defer ticker.Stop()

	// First snapshot immediately, then on the interval
	runOnce(ctx, db, store, cfg.BackupPrefix)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("backup-worker stopped")
			return
		case <-ticker.C:
			runOnce(ctx, db, store, cfg.BackupPrefix)
		}
	}
}

func runOnce(ctx context.Context, db *sqlx.DB, store *storage.S3Storage, prefix string) {
	start := time.Now()

	snap, err := takeSnapshot(ctx, db)
	if err != nil {
		log.Error().Err(err).Msg("Snapshot failed")
		return
	}

	key, err := upload(ctx, store, prefix, snap)
	if err != nil {
		log.Error().Err(err).Msg("Snapshot upload failed")
		return
	}

	log.Info().
		Str("key", key).
		Int("orders", len(snap.Orders)).
		Int("wallets", len(snap.Wallets)).
		Int("transactions", len(snap.Transactions)).
		Dur("took", time.Since(start)).
		Msg("Snapshot uploaded")

	if err := prune(ctx, store, prefix); err != nil {
		log.Error().Err(err).Msg("Snapshot pruning failed")
	}
}

func takeSnapshot(ctx context.Context, db *sqlx.DB) (*snapshot, error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	snap := &snapshot{TakenAt: time.Now().UTC()}

	if err := tx.SelectContext(ctx, &snap.Orders, `
		SELECT id, user_id, service_key, country, number, provider_ref, status,
		       cost_cents, otp, otp_received_at, last_provider_status,
		       last_polled_at, created_at, expires_at, updated_at
		FROM orders ORDER BY created_at
	`); err != nil {
		return nil, fmt.Errorf("dump orders: %w", err)
	}
	if err := tx.SelectContext(ctx, &snap.Wallets, `
		SELECT user_id, balance, total_deposited, total_spent, total_refunded,
		       frozen, created_at, updated_at
		FROM wallets ORDER BY created_at
	`); err != nil {
		return nil, fmt.Errorf("dump wallets: %w", err)
	}
	if err := tx.SelectContext(ctx, &snap.Transactions, `
		SELECT id, user_id, kind, amount, reference_id, created_at
		FROM wallet_transactions ORDER BY created_at
	`); err != nil {
		return nil, fmt.Errorf("dump transactions: %w", err)
	}
	if err := tx.SelectContext(ctx, &snap.DepositClaims, `
		SELECT id, user_id, amount_cents, status, admin_id, created_at, processed_at
		FROM deposit_claims ORDER BY created_at
	`); err != nil {
		return nil, fmt.Errorf("dump deposit claims: %w", err)
	}
	if err := tx.SelectContext(ctx, &snap.RefundRequests, `
		SELECT id, order_id, user_id, status, admin_id, created_at, processed_at
		FROM refund_requests ORDER BY created_at
	`); err != nil {
		return nil, fmt.Errorf("dump refund requests: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return snap, nil
}

func upload(ctx context.Context, store *storage.S3Storage, prefix string, snap *snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	key := fmt.Sprintf("%s/%s.json", prefix, snap.TakenAt.Format("20060102T150405Z"))
	if err := store.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

func prune(ctx context.Context, store *storage.S3Storage, prefix string) error {
	objects, err := store.List(ctx, prefix+"/")
	if err != nil {
		return err
	}
	if len(objects) <= keepSnapshots {
		return nil
	}

	for _, obj := range objects[:len(objects)-keepSnapshots] {
		if err := store.Delete(ctx, obj.Key); err != nil {
			return err
		}
		log.Debug().Str("key", obj.Key).Msg("Pruned old snapshot")
	}
	return nil
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}
