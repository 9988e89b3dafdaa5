package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/xxomega77xx/googlepay/internal/catalog"
	"github.com/xxomega77xx/googlepay/internal/config"
	"github.com/xxomega77xx/googlepay/internal/events"
	"github.com/xxomega77xx/googlepay/internal/health"
	h "github.com/xxomega77xx/googlepay/internal/http"
	"github.com/xxomega77xx/googlepay/internal/logger"
	"github.com/xxomega77xx/googlepay/internal/paypal"
	"github.com/xxomega77xx/googlepay/internal/tokenstore"
)

func main() {
	if err := run(); err != nil {
		slog.Error("checkout service failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}

	log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	creds := cfg.PayPal.Credentials()
	log.Info("configuration loaded",
		slog.String("env", cfg.Env),
		slog.String("base_url", cfg.PayPal.BaseURL),
		slog.Any("credentials", creds))

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	ctx := context.Background()

	products, closeCatalog, err := openCatalog(cfg, log)
	if err != nil {
		return err
	}
	defer closeCatalog()

	store, closeStore, err := openTokenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier, closeNotifier := openNotifier(cfg, log)
	defer closeNotifier()

	healthServer := health.NewServer(log)

	client := paypal.NewClient(paypal.ClientConfig{
		BaseURL:         cfg.PayPal.BaseURL,
		HTTPClient:      paypal.NewHTTPClient(cfg.PayPal.HTTPTimeout),
		Logger:          log,
		BreakerFailures: cfg.PayPal.BreakerFailures,
		BreakerTimeout:  cfg.PayPal.BreakerTimeout,
		OnBreakerChange: healthServer.BreakerChanged,
	})
	tokens := paypal.NewTokenCache(client, creds, store, cfg.PayPal.TokenMargin)

	shipping, err := cfg.ShippingOptions()
	if err != nil {
		return err
	}
	gateway := paypal.NewOrderGateway(client, tokens, products, notifier, paypal.GatewayConfig{
		MerchantID:      creds.MerchantID,
		Currency:        cfg.PayPal.Currency,
		DefaultSKU:      cfg.PayPal.DefaultSKU,
		SCAMethod:       cfg.PayPal.SCAMethod,
		ShippingOptions: shipping,
	})

	router := h.NewRouter(h.RouterConfig{
		Checkout:       h.NewCheckoutHandler(gateway, tokens, creds, cfg.RequestTimeout),
		Products:       h.NewProductHandler(products, cfg.RequestTimeout),
		Env:            cfg.Env,
		BaseURL:        cfg.PayPal.BaseURL,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen on grpc port %s: %w", cfg.GRPCPort, err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("grpc health listening", slog.String("port", cfg.GRPCPort))
		if err := healthServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		log.Info("checkout service starting", slog.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	healthServer.SetServing(true)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case runErr = <-errCh:
	}

	log.Info("shutting down server...")
	healthServer.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.Any("error", err))
	}
	healthServer.Stop()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("tracer provider shutdown", slog.Any("error", err))
	}

	log.Info("server exited")
	return runErr
}

type catalogSource interface {
	paypal.PriceSource
	h.ProductLister
}

// openCatalog prefers the sqlite catalog and falls back to a one-product
// in-memory catalog when the database cannot be opened.
func openCatalog(cfg *config.Config, log *slog.Logger) (catalogSource, func(), error) {
	fallback := func() (catalogSource, func(), error) {
		return catalog.NewMemoryCatalog(catalog.Product{
			SKU:      cfg.PayPal.DefaultSKU,
			Name:     "Checkout demo",
			Price:    decimal.RequireFromString("0.10"),
			Currency: cfg.PayPal.Currency,
		}), func() {}, nil
	}

	if cfg.Catalog.DBPath == "" {
		log.Warn("no catalog database configured, using the in-memory catalog")
		return fallback()
	}

	repo, err := catalog.NewRepository(cfg.Catalog.DBPath)
	if err != nil {
		log.Warn("catalog database unavailable, using the in-memory catalog", slog.Any("error", err))
		return fallback()
	}
	if err := repo.RunMigrations(); err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("catalog migrations: %w", err)
	}
	log.Info("catalog ready", slog.String("path", cfg.Catalog.DBPath))

	return repo, func() {
		if err := repo.Close(); err != nil {
			log.Error("close catalog", slog.Any("error", err))
		}
	}, nil
}

func openTokenStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (paypal.TokenStore, func(), error) {
	if !cfg.PayPal.TokenCache {
		log.Info("access token caching disabled")
		return paypal.NoTokenStore{}, func() {}, nil
	}
	if cfg.Redis.Addr == "" {
		return paypal.NewMemoryTokenStore(), func() {}, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("redis ping succeeded", slog.String("addr", cfg.Redis.Addr))

	store := tokenstore.NewRedisStore(redisClient, cfg.PayPal.ClientID, cfg.PayPal.TokenMargin)
	return store, func() { redisClient.Close() }, nil
}

func openNotifier(cfg *config.Config, log *slog.Logger) (paypal.CaptureNotifier, func()) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewLogPublisher(log), func() {}
	}

	publisher := events.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	log.Info("publishing capture events", slog.String("topic", cfg.Kafka.Topic))
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			log.Error("close kafka publisher", slog.Any("error", err))
		}
	}
}
