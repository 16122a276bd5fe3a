// Command stratumd serves the row store over HTTP.
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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/stratum/api"
	"github.com/jacentio/stratum/backend"
	"github.com/jacentio/stratum/backend/dynamo"
	"github.com/jacentio/stratum/bulk"
	"github.com/jacentio/stratum/query"
	"github.com/jacentio/stratum/store"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newBackend(ctx context.Context, kind string) (backend.Backend, error) {
	switch kind {
	case "memory":
		return backend.NewMemory(), nil
	case "dynamo":
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return dynamo.New(dynamodb.NewFromConfig(cfg), dynamo.Config{
			DataTable:  env("DATA_TABLE", ""),
			IndexTable: env("INDEX_TABLE", ""),
		}), nil
	}
	return nil, fmt.Errorf("unknown backend %q", kind)
}

func run(ctx context.Context, logger *slog.Logger) error {
	host := env("HOST", "0.0.0.0")
	port := env("PORT", "8080")
	kind := env("STORE_BACKEND", "memory")

	b, err := newBackend(ctx, kind)
	if err != nil {
		return err
	}

	catalog := store.NewCatalog(b, store.DefaultConfig())
	rows := store.NewRows(b, catalog, store.DefaultConfig())
	engine := query.New(b, catalog, rows)
	processor := bulk.New(rows, bulk.Config{})

	srv := &http.Server{
		Addr:              host + ":" + port,
		Handler:           api.New(catalog, rows, engine, processor, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("stratumd listening", "addr", srv.Addr, "backend", kind)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
