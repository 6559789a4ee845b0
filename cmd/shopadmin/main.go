// Package main запускает консоль администратора магазина.
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

	"github.com/mmeshcher/shop-admin/internal/access"
	"github.com/mmeshcher/shop-admin/internal/config"
	"github.com/mmeshcher/shop-admin/internal/handler"
	"github.com/mmeshcher/shop-admin/internal/middleware"
	"github.com/mmeshcher/shop-admin/internal/payments"
	"github.com/mmeshcher/shop-admin/internal/repository"
	"github.com/mmeshcher/shop-admin/internal/session"
	"github.com/mmeshcher/shop-admin/internal/shopapi"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	client := shopapi.NewClient(cfg.APIBaseURL, shopapi.WithLocation(cfg.Location()))

	var (
		journal  session.Journal
		activity handler.Activity
	)
	if cfg.DatabaseURI != "" {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		defer repo.Close()
		journal = repo
		activity = repo
	}

	store := session.NewStore(client, journal, logger)

	notice := access.NewNotice(store, cfg.GatingInterval, time.Now, logger)
	defer notice.Close()

	auth := middleware.NewConsoleAuth(cfg.CookieSecret)
	if cfg.CookieSecret == "" {
		sugar.Warn("cookie secret is not set, console sign-ins will not survive a restart")
	}

	h := handler.NewHandler(handler.Dependencies{
		Sessions: store,
		Billing:  client,
		Notice:   notice,
		Cookies:  auth,
		Access:   access.NewController(store, auth, time.Now, logger),
		Authorizer: payments.OAuth{
			ClientID:    cfg.MPClientID,
			RedirectURI: cfg.MPRedirectURI,
		},
		Activity: activity,
		Now:      time.Now,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Первоначальная загрузка сессии; до её завершения защищённые разделы отвечают 503
	g.Go(func() error {
		store.Load(ctx)
		if s := store.Current(); s != nil {
			sugar.Infow("session restored", "merchantID", s.ID, "shop", s.ShopName)
		}
		return nil
	})

	// Запись журнала сессий не задерживает запросы
	g.Go(func() error {
		store.RunJournal(ctx)
		return nil
	})

	// Периодическая проверка напоминания об оплате
	g.Go(func() error {
		notice.Run(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting shop admin console", "addr", cfg.RunAddress, "api", cfg.APIBaseURL)
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
