// Package main запускает HTTP-сервер SMM-панели.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ndemidov/smmpanel-system/internal/auth"
	"github.com/ndemidov/smmpanel-system/internal/config"
	"github.com/ndemidov/smmpanel-system/internal/handler"
	"github.com/ndemidov/smmpanel-system/internal/middleware"
	"github.com/ndemidov/smmpanel-system/internal/payment"
	"github.com/ndemidov/smmpanel-system/internal/repository"
	"github.com/ndemidov/smmpanel-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	tokens, err := auth.NewTokenManager(cfg.JWTSecret)
	if err != nil {
		sugar.Fatalw("token manager error", "error", err.Error())
	}

	// Без секрета webhook-маршрут отвечает 503 и события не принимаются
	var verifier *payment.Verifier
	if cfg.WebhookSecret != "" {
		verifier, err = payment.NewVerifier(cfg.WebhookSecret)
		if err != nil {
			sugar.Fatalw("webhook verifier error", "error", err.Error())
		}
	} else {
		sugar.Warn("webhook secret is not set, payment webhooks are disabled")
	}

	svc := service.NewService(repo, tokens, logger, service.Options{
		MinDepositCents:    cfg.MinDepositCents,
		CheckoutBaseURL:    cfg.CheckoutBaseURL,
		ProviderTimeout:    cfg.ProviderTimeout,
		StatusPollInterval: cfg.StatusPollInterval,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(tokens)
	h := handler.NewHandler(svc, logger, authMiddleware, verifier)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового опроса статусов заказов у провайдеров
	g.Go(func() error {
		svc.StartStatusUpdates(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting smmpanel server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
