// Command directory serves the club directory.
//
// It rebuilds the search index from the durable entry log at boot, serves the
// public query routes and the authenticated editor endpoint, and flushes the
// draft overlay on shutdown. Redis query caching and the Kafka change feed
// are optional.
//
// Usage:
//
//	go run ./cmd/directory [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/editor"
	gwhandler "github.com/Adithya-Monish-Kumar-K/club-directory/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/club-directory/internal/gateway/middleware"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer/segmenter"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/searcher/cache"
	queryhandler "github.com/Adithya-Monish-Kumar-K/club-directory/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/store"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/store/entrylog"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("directory service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("directory service stopped")
}

func run(cfg *config.Config) error {
	slog.Info("starting directory service",
		"port", cfg.Server.Port,
		"backend", cfg.Store.Backend,
		"data_dir", cfg.Store.DataDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth, err := editor.NewAuthenticator(cfg.Capability.Secret)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store, entrylog.FromConfig(cfg), segmenter.New())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("closing store", "error", err)
		}
	}()

	m := metrics.New(prometheus.NewRegistry())
	m.EntriesTotal.Set(float64(st.Len()))
	m.DraftsPending.Set(float64(st.Drafts()))

	checker := health.NewChecker()
	checker.Register("store", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d entries", st.Len())}
	})

	var queryCache *cache.QueryCache
	if cfg.Search.CacheEnabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.RegisterOptional("redis", health.Ping(redisClient.Ping))
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var feed editor.Notifier
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EntryChanges)
		defer producer.Close()
		feed = editor.NewKafkaFeed(producer)
		slog.Info("change feed enabled", "topic", cfg.Kafka.Topics.EntryChanges)
	}

	var invalidator editor.Invalidator
	if queryCache != nil {
		invalidator = queryCache
	}
	svc := editor.NewService(st, auth, feed, invalidator, m)

	handler := router.New(router.Deps{
		Query:        queryhandler.New(st, queryCache, m, cfg.Search.MaxKeywords),
		Editor:       gwhandler.New(svc),
		Auth:         auth,
		Limiter:      ratelimit.New(ctx, cfg.Server.EditorRateLimit, time.Minute),
		Health:       checker,
		Metrics:      m,
		CORS:         gwmw.NewCORSConfig(cfg.Server.CORSOrigins),
		ServeMetrics: cfg.Metrics.Enabled && cfg.Metrics.Port == 0,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled && cfg.Metrics.Port != 0 {
		g.Go(func() error { return m.Serve(gctx, cfg.Metrics.Port) })
	}
	g.Go(func() error {
		slog.Info("directory service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
