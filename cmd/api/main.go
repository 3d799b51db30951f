package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/safar/go-storefront/internal/api"
	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/logging"
	"github.com/safar/go-storefront/internal/notify"
	"github.com/safar/go-storefront/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to database")

	catalog := store.NewCatalog(db)
	var storeOpts []store.OrderStoreOption
	if len(cfg.Kafka.Brokers) > 0 {
		storeOpts = append(storeOpts, store.WithOutbox())
	}
	orderStore := store.NewOrderStore(db, storeOpts...)

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := notify.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer publisher.Close()
		poller := notify.NewOutboxPoller(orderStore, publisher, cfg.Kafka.PollInterval, cfg.Kafka.BatchSize, logger.Named("notify"))
		go poller.Run(ctx)
		logger.Info("order notifications enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}

	newCart := func(context.Context, string) *cart.Store {
		return cart.NewStore(cart.WithLogger(logger.Named("cart")))
	}
	if cfg.Cart.Durable() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// carts still work; every load falls back to empty until redis is back
			logger.Warn("redis unavailable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}

		slot := cart.NewRedisSlot(rdb, cfg.Cart.SlotTTL)
		newCart = func(ctx context.Context, sessionID string) *cart.Store {
			c := cart.NewStore(
				cart.WithSlot(slot, "cart:"+sessionID),
				cart.WithLogger(logger.Named("cart")),
			)
			c.Load(ctx)
			return c
		}
	}
	logger.Info("cart persistence", zap.String("mode", cfg.Cart.Persistence))

	flowCfg := checkout.Config{
		BaseURL:     cfg.Handoff.BaseURL,
		Destination: cfg.Handoff.Phone,
		Delay:       cfg.Handoff.Delay,
		Method: checkout.MethodInfo{
			Bank:          cfg.Handoff.Bank,
			AccountType:   cfg.Handoff.AccountType,
			AccountNumber: cfg.Handoff.AccountNumber,
			AccountRUT:    cfg.Handoff.AccountRUT,
			AccountEmail:  cfg.Handoff.AccountEmail,
			PickupAddress: cfg.Handoff.PickupAddress,
		},
	}
	// The browser opens session.handoff_url itself; the server only records it.
	launcher := checkout.LauncherFunc(func(url string) {
		logger.Info("hand-off ready", zap.String("url", url))
	})
	flowLogger := logger.Named("checkout")
	newFlow := func(c *cart.Store) *checkout.Flow {
		return checkout.NewFlow(c, orderStore, launcher, flowCfg, flowLogger)
	}

	sessions := api.NewSessions(newCart, newFlow, cfg.Cart.SessionIdle, logger.Named("sessions"))
	go sessions.Run(ctx)
	defer sessions.CloseAll()

	srv := api.NewServer(catalog, orderStore, sessions, db, cfg.Server.WriteTimeout, logger.Named("http"))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited")
}
