package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/neutromelabs/account-status/apiclient"
	"github.com/neutromelabs/account-status/configstore"
	"github.com/neutromelabs/account-status/logging"
	"github.com/neutromelabs/account-status/presenter"
	"github.com/neutromelabs/account-status/server"
)

// runServer wires the admin HTTP surface and blocks until a signal arrives.
func runServer() {
	app := fx.New(
		fx.Provide(
			newLogger,
			newBackend,
			newServeConfig,
			newServeAPIClient,
			newAdapterFactory,
			server.NewHandler,
			server.NewRouter,
			server.NewHTTPServer,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Invoke(startHTTPServer),
	)

	app.Run()
}

func newLogger(lc fx.Lifecycle) (*zap.Logger, error) {
	logger, err := logging.New(appEnv)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func newBackend(lc fx.Lifecycle) (configstore.Backend, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend, closeBackend, err := openBackend(ctx)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeBackend()
			return nil
		},
	})
	return backend, nil
}

func newServeConfig(backend configstore.Backend, logger *zap.Logger) (*configstore.Config, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return newConfig(ctx, backend, logger)
}

func newServeAPIClient(cfg *configstore.Config, logger *zap.Logger) (*apiclient.Client, error) {
	return apiclient.New(cfg, apiclient.WithLogger(logger), apiclient.WithTimeout(requestTimeout))
}

func newAdapterFactory(cfg *configstore.Config, client *apiclient.Client) server.AdapterFactory {
	return func(params url.Values, logger *zap.Logger) *presenter.Adapter {
		return newAdapter(cfg, client, params, logger)
	}
}

func connectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, logger *zap.Logger) {
	addr := ":" + httpPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				logger.Info("http server listening", zap.String("addr", addr))
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
