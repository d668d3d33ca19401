package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"workshop-booking/internal/admin"
	"workshop-booking/internal/audit"
	"workshop-booking/internal/auth"
	"workshop-booking/internal/booking"
	"workshop-booking/internal/config"
	"workshop-booking/internal/httpapi"
	"workshop-booking/internal/paymentlog"
	"workshop-booking/internal/payments"
	"workshop-booking/internal/registration"
	"workshop-booking/internal/seats"
	"workshop-booking/pkg/logger"
	"workshop-booking/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A .env file is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("dotenv load failed", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Domain wiring. The seat engine is the only writer of available_seats.
	store := registration.NewStore(registration.NewPostgresRepo(db))
	engine := seats.NewEngine(
		seats.NewPostgresRepo(db),
		store,
		seats.WithLocker(seats.NewRedisLocker(rdb, 10*time.Second)),
	)
	paymentLogs := paymentlog.NewService(paymentlog.NewPostgresRepo(db))
	gateway := payments.NewClient(cfg.Gateway)
	paymentSvc := payments.NewService(gateway, store, engine, paymentLogs)

	h := httpapi.Handlers{
		Booking: booking.NewService(store, paymentSvc, engine, cfg.PaymentCallbackURL(), cfg.Gateway.Currency,
			booking.WithSubmitGuard(booking.NewRedisGuard(rdb, 30*time.Second)),
		),
		Admin:     admin.NewService(store, engine, audit.NewService(audit.NewPostgresRepo(db)), cfg.Booking.StalledAfter),
		Workshops: engine,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(httpapi.ClientIP())

	registerRoutes(r, routeDeps{
		handlers: h,
		authMW:   auth.RequireAccessToken(authManager),
		seats:    engine,
		health: func(ctx context.Context) error {
			if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
				return err
			}
			return rdb.Ping(ctx).Err()
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
