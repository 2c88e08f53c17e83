package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/bankcards-api/internal/auth"
	"github.com/josh-kwaku/bankcards-api/internal/cardnumber"
	"github.com/josh-kwaku/bankcards-api/internal/config"
	"github.com/josh-kwaku/bankcards-api/internal/handler"
	"github.com/josh-kwaku/bankcards-api/internal/logging"
	"github.com/josh-kwaku/bankcards-api/internal/metrics"
	"github.com/josh-kwaku/bankcards-api/internal/notify"
	"github.com/josh-kwaku/bankcards-api/internal/repository"
	"github.com/josh-kwaku/bankcards-api/internal/scheduler"
	"github.com/josh-kwaku/bankcards-api/internal/service"
	"github.com/josh-kwaku/bankcards-api/internal/service/transfer"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init("bankcards-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	sealer, err := cardnumber.NewSealer(cfg.CardEncryptionKey)
	if err != nil {
		return fmt.Errorf("card sealer: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	cardRepo := repository.NewCardRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	blockRepo := repository.NewBlockRequestRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	collector := metrics.NewCollector()
	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	mailer := notify.NewMailer(notify.SMTPConfig{
		Addr:     cfg.SMTPAddr,
		Host:     cfg.SMTPHost,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})

	userSvc := service.NewUserService(userRepo)
	authSvc := service.NewAuthService(userRepo, tokens)
	cardSvc := service.NewCardService(db, cardRepo, userRepo, sealer)
	historySvc := service.NewHistoryService(transferRepo, userRepo)
	blockSvc := service.NewBlockRequestService(db, blockRepo, cardRepo, userRepo, mailer, collector)
	engine := transfer.NewEngine(db, cardRepo, transferRepo, collector, cfg.TransferLockTimeout)

	rt := routes{
		tokens:      tokens,
		idempotency: idempotencyRepo,
		health:      handler.NewHealthHandler(db, version),
		auth:        handler.NewAuthHandler(authSvc),
		users:       handler.NewUserHandler(userSvc),
		cardsAdmin:  handler.NewCardAdminHandler(cardSvc, historySvc, blockSvc),
		cardsUser:   handler.NewCardUserHandler(cardSvc, historySvc, blockSvc, engine),
	}
	if cfg.MetricsEnabled {
		rt.metrics = collector.Handler()
	}

	sched, err := scheduler.New(cardRepo, idempotencyRepo, collector, slog.Default(), scheduler.Schedules{
		CardExpiry:       cfg.ExpirySweepSchedule,
		IdempotencyClean: cfg.IdempotencyCleanSchedule,
	})
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           rt.handler(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server started", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sched.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
