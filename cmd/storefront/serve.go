package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/postal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the cart and checkout API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	postalCache, closeCache, err := openPostalCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	postalClient := postal.NewClient(
		postal.WithBaseURL(cfg.PostalAPIURL),
		postal.WithCache(postalCache),
		postal.WithClientLogger(logger),
	)
	api := backend.NewClient(cfg.Store.APIURL, cfg.Store.ProjectUUID, backend.WithLogger(logger))

	products := catalog.New(api, logger)
	if err := products.Load(ctx); err != nil {
		logger.Warn("catalog unavailable at startup", zap.Error(err))
	}

	store := cart.NewStore(ctx, repo,
		cart.WithStorageKey(cfg.Store.CartStorageKey),
		cart.WithFallbackCurrency(cfg.Store.DefaultCurrency),
		cart.WithCurrencyGuard(cfg.Store.EnforceSingleCurrency),
		cart.WithNotifier(cart.NotifierFunc(func(n cart.Notification) {
			logger.Info("cart notification", zap.String("kind", string(n.Kind)), zap.String("message", n.Message))
		})),
		cart.WithLogger(logger),
	)

	pub := openPublisher(cfg, logger)
	defer pub.Close()

	registry := checkout.NewRegistry(checkoutSettings(cfg.Store), checkout.RegistryDeps{
		Cart:      store,
		Merchants: api,
		Searcher:  postalClient,
		Intents:   api,
		Publisher: pub,
		Logger:    logger,
	})
	defer registry.Close()

	requestTimeout := 30 * time.Second
	handler := h.NewRouter(h.RouterConfig{
		Products:       h.NewProductHandler(products),
		Cart:           h.NewCartHandler(store, products, requestTimeout),
		Checkout:       h.NewCheckoutHandler(registry, requestTimeout),
		RequestTimeout: requestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.Store.Name))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
