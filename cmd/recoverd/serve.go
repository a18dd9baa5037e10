package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/recoverable/adapters/events"
	"github.com/layer-3/recoverable/adapters/store"
	"github.com/layer-3/recoverable/adapters/tokenizer"
	"github.com/layer-3/recoverable/config"
	"github.com/layer-3/recoverable/ports"
	"github.com/layer-3/recoverable/service"
	api "github.com/layer-3/recoverable/transport/http"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type backend interface {
	ports.Store
	ports.WalletStore
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := config.NewViper()
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func init() {
	f := serveCmd.Flags()
	f.String(config.KeyHTTPAddr, ":9000", "HTTP listen address")
	f.String(config.KeyStore, config.StoreRedis, "Wallet and token store (redis|memory)")
	f.String(config.KeyRedisURL, "redis://localhost:6379/0", "Redis URL")
	f.Duration(config.KeyDefaultRecoveryDelay, service.DefaultRecoveryDelay, "Recovery delay for wallets created without one")
	f.Bool(config.KeyDebug, false, "Enable debug logging")
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := watermill.NewStdLogger(cfg.Debug, false)

	var (
		st        backend
		publisher message.Publisher
	)
	switch cfg.Store {
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		redisStore := store.NewRedisStore(redisClient)
		defer redisStore.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach Redis: %w", err)
		}

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		st = redisStore
	default:
		publisher = gochannel.NewGoChannel(gochannel.Config{}, logger)
		st = store.NewMemoryStore()
	}
	defer publisher.Close()

	eventPub := events.NewWatermillPublisher(publisher)
	authService := service.NewAuthService(tokenizer.NewJWTTokenizer(cfg.SigningKey, cfg.Domain()), st, eventPub, logger)
	walletService := service.NewWalletService(st, eventPub, logger,
		service.WithDefaultRecoveryDelay(cfg.DefaultRecoveryDelay),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.SetupRouter(authService, walletService, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", watermill.LogFields{"addr": cfg.HTTPAddr, "store": cfg.Store})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
