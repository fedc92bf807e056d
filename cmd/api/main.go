package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smsrent/smsrent-api/internal/config"
	"github.com/smsrent/smsrent-api/internal/domain/deposit"
	"github.com/smsrent/smsrent-api/internal/domain/notification"
	"github.com/smsrent/smsrent-api/internal/domain/order"
	"github.com/smsrent/smsrent-api/internal/domain/pricing"
	"github.com/smsrent/smsrent-api/internal/domain/refund"
	"github.com/smsrent/smsrent-api/internal/domain/wallet"
	"github.com/smsrent/smsrent-api/internal/middleware"
	"github.com/smsrent/smsrent-api/internal/pkg/database"
	"github.com/smsrent/smsrent-api/internal/pkg/jwt"
	pkgresponse "github.com/smsrent/smsrent-api/internal/pkg/response"
	"github.com/smsrent/smsrent-api/internal/pkg/smspool"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting SMS Rent API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	pricingEngine, err := pricing.NewEngine(pricing.Config{
		MinPriceCents:        cfg.MinPriceCents,
		MaxPriceCents:        cfg.MaxPriceCents,
		DefaultMarginPercent: cfg.DefaultMarginPercent,
		ServiceMargins:       cfg.ServiceMargins,
		ServiceFixedPrices:   cfg.ServiceFixedPrices,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid pricing configuration")
	}

	smspoolClient := smspool.NewClient(smspool.Config{
		BaseURL: cfg.SMSPoolBaseURL,
		APIKey:  cfg.SMSPoolAPIKey,
		Timeout: cfg.SMSPoolTimeout,
	})
	provider := &smspoolProviderAdapter{client: smspoolClient}

	// ---------- WebSocket hub ----------
	hub := notification.NewHub(redis)
	go hub.Run()
	publisher := notification.NewPublisher(hub)

	// ---------- Repositories ----------
	walletRepo := wallet.NewRepository(db)
	orderRepo := order.NewRepository(db)
	depositRepo := deposit.NewRepository(db)
	refundRepo := refund.NewRepository(db)

	// ---------- Services ----------
	walletService := wallet.NewService(walletRepo)
	orderService := order.NewService(orderRepo, walletService, pricingEngine, provider, publisher, cfg.PollTimeout)
	depositService := deposit.NewService(depositRepo, walletService, publisher)
	refundService := refund.NewService(refundRepo, orderRepo, walletService, publisher)

	scheduler := order.NewScheduler(orderService, provider, order.DefaultSchedule, cfg.PollMaxTransientFailures)
	orderService.AttachWatcher(scheduler)

	// Resume or settle orders left pending by the previous process
	sweepCtx, sweepCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := scheduler.SweepPending(sweepCtx); err != nil {
		log.Error().Err(err).Msg("Pending-order sweep failed")
	}
	sweepCancel()

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(walletService)
	orderHandler := order.NewHandler(orderService)
	depositHandler := deposit.NewHandler(depositService)
	refundHandler := refund.NewHandler(refundService)
	notificationHandler := notification.NewHandler(hub, cfg.AllowedOrigins)

	authMiddleware := middleware.Auth(jwtService)
	adminMiddleware := middleware.RequireAdmin(cfg.AdminAllowlist)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint, outside the compressed API group
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(notificationHandler.Stream)).ServeHTTP(w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Compress(5))
		r.Mount("/wallet", walletHandler.Routes(authMiddleware))
		r.Mount("/orders", orderHandler.Routes(authMiddleware))
		r.Mount("/deposits", depositHandler.Routes(authMiddleware))
		r.Mount("/refunds", refundHandler.Routes(authMiddleware))
		r.Mount("/notifications", notificationHandler.Routes(authMiddleware))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Mount("/deposits", depositHandler.AdminRoutes(authMiddleware, adminMiddleware))
		r.Mount("/refunds", refundHandler.AdminRoutes(authMiddleware, adminMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop polling tasks after the HTTP surface so in-flight requests
	// cannot start new ones mid-drain.
	scheduler.Shutdown()
	hub.Shutdown()

	log.Info().Msg("Server exited properly")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}

// smspoolProviderAdapter bridges the SMSPool client to the order service's
// provider contract. Business refusals map to the service-unavailable
// sentinel; transport failures pass through for the retry path.
type smspoolProviderAdapter struct {
	client *smspool.Client
}

func (a *smspoolProviderAdapter) Quote(ctx context.Context, serviceKey, country string) (int64, error) {
	cents, err := a.client.Quote(ctx, serviceKey, country)
	if err != nil {
		if errors.Is(err, smspool.ErrUnavailable) {
			return 0, fmt.Errorf("%w: %s", order.ErrServiceUnavailable, serviceKey)
		}
		return 0, err
	}
	return cents, nil
}

func (a *smspoolProviderAdapter) Purchase(ctx context.Context, serviceKey, country string) (*order.ProviderOrder, error) {
	result, err := a.client.Purchase(ctx, serviceKey, country)
	if err != nil {
		if errors.Is(err, smspool.ErrDeclined) || errors.Is(err, smspool.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %s", order.ErrServiceUnavailable, serviceKey)
		}
		return nil, err
	}
	return &order.ProviderOrder{
		Ref:       result.OrderRef,
		Number:    result.Number,
		CostCents: result.CostCents,
	}, nil
}

func (a *smspoolProviderAdapter) Poll(ctx context.Context, providerRef string) (*order.ProviderPoll, error) {
	result, err := a.client.Poll(ctx, providerRef)
	if err != nil {
		return nil, err
	}
	return &order.ProviderPoll{
		Code: result.StatusCode,
		SMS:  result.SMS,
	}, nil
}

func (a *smspoolProviderAdapter) Cancel(ctx context.Context, providerRef string) error {
	return a.client.Cancel(ctx, providerRef)
}
