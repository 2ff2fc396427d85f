// Command auction-demo runs the bidding engine behind a small HTTP/websocket
// surface so the simulation can be watched live. It is a demo collaborator:
// it talks to the engine exclusively through its public API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // database/sql driver for the sqlx-backed store

	"github.com/auctionlab/bidding-engine-go/bidengine"
	"github.com/auctionlab/bidding-engine-go/bidengine/kvstore"
	"github.com/auctionlab/bidding-engine-go/bidengine/kvstore/postgresstore"
	"github.com/auctionlab/bidding-engine-go/oteladapters"
	"github.com/auctionlab/bidding-engine-go/remotebackend"
)

const (
	defaultListenAddr = ":8080"
	defaultStoreDir   = "./data"

	shutdownTimeout = 5 * time.Second
)

func main() {
	logger := oteladapters.NewSlogLoggerWithHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := buildStore(logger)
	if err != nil {
		logger.Error("building snapshot store failed", "error", err.Error())
		os.Exit(1)
	}

	options := []bidengine.Option{
		bidengine.WithLogger(logger),
		bidengine.WithStore(store),
		bidengine.WithBackfilledHistory(3),
		bidengine.WithSimulationEnabled(parseBoolEnv("SIM_ENABLED", true)),
	}

	if remoteURL := os.Getenv("REMOTE_BACKEND_URL"); remoteURL != "" {
		remote, clientErr := remotebackend.NewClient(remoteURL)
		if clientErr != nil {
			logger.Error("building remote backend client failed", "error", clientErr.Error())
			os.Exit(1)
		}

		options = append(options, bidengine.WithRemoteBackend(remote))
	}

	engine, err := bidengine.NewEngine(options...)
	if err != nil {
		logger.Error("building engine failed", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seedCatalog(ctx, engine)

	srv := newServer(engine, logger)
	httpServer := &http.Server{
		Addr:              getEnv("LISTEN_ADDR", defaultListenAddr),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", httpServer.Addr)

	if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Error("http server failed", "error", serveErr.Error())
	}

	if closeErr := engine.Close(context.Background()); closeErr != nil {
		logger.Error("closing engine failed", "error", closeErr.Error())
	}
}

// buildStore picks Postgres when POSTGRES_DSN is set, a file-backed store
// otherwise.
func buildStore(logger bidengine.Logger) (kvstore.Store, error) {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			return nil, err
		}

		return postgresstore.NewStoreFromSQLX(db, postgresstore.WithLogger(logger))
	}

	return kvstore.NewFileStore(getEnv("STORE_DIR", defaultStoreDir))
}

// seedCatalog registers a handful of demo lots. Registration is idempotent,
// so restarts against a persisted snapshot keep accrued prices and histories.
func seedCatalog(ctx context.Context, engine *bidengine.Engine) {
	engine.RegisterItem(ctx, bidengine.Item{ID: "lot-1001", Name: "Art Deco Wall Clock", Price: 1000})
	engine.RegisterItem(ctx, bidengine.Item{ID: "lot-1002", Name: "Vintage Film Camera", Price: 750, ReservePrice: 1500})
	engine.RegisterItem(ctx, bidengine.Item{ID: "lot-1003", Name: "Mid-Century Armchair", Price: 2200})
	engine.RegisterItem(ctx, bidengine.Item{ID: "lot-1004", Name: "First Edition Atlas", Price: 3100, ReservePrice: 4000})
}

func getEnv(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}
