package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/netutil"

	httpadapter "dealscore/internal/adapters/http"
	"dealscore/internal/adapters/kafka"
	pg "dealscore/internal/adapters/postgres"
	"dealscore/internal/adapters/sqlite"
	"dealscore/internal/config"
	"dealscore/internal/ports"
	"dealscore/internal/services/engagement"
	"dealscore/internal/services/recalc"
	"dealscore/internal/services/recommendations"
	"dealscore/internal/workers/recalcrunner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if !errors.Is(err, config.ErrMissingDatabaseURL) {
			log.Fatalf("config: %v", err)
		}
		log.Printf("warning: %v", err)
	}
	if cfg.StoreDriver == config.DriverPostgres && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for Postgres adapters")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	orchestrator := recalc.New(store, recalc.WithStoreTimeout(cfg.StoreTimeout))
	runner := recalcrunner.New(orchestrator, cfg.RecalcQueueSize)
	runner.Start(ctx, cfg.RecalcWorkers)
	log.Printf("recalc workers started: %d", cfg.RecalcWorkers)

	recs := recommendations.New(store, runner)
	engage := engagement.New(store, runner)

	var consumer *kafka.Consumer
	if cfg.KafkaEnabled() {
		consumer, err = kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaEngagementTopic, engage)
		if err != nil {
			log.Fatalf("kafka consumer: %v", err)
		}
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, kafka.ErrClosed) {
				log.Printf("kafka consumer: %v", err)
			}
		}()
	}

	srv := httpadapter.New(recs, engage, runner, orchestrator)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	httpServer := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(netutil.LimitListener(ln, cfg.MaxConnections)) }()
	log.Printf("listening on %s (env=%s, store=%s)", cfg.ListenAddr, cfg.Env, cfg.StoreDriver)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("shutting down on %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", fmt.Errorf("serve: %w", err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Printf("kafka close: %v", err)
		}
	}
	// Drain queued recalculations before the store goes away.
	runner.Stop()
	cancel()
}

func openStore(ctx context.Context, cfg config.Config) (ports.SignalStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		var _ ports.SignalStore = db
		return db, func() { _ = db.Close() }, nil
	default:
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect error: %w", err)
		}
		var _ ports.SignalStore = db
		return db, db.Close, nil
	}
}
