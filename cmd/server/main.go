package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"marketgraph/internal/application/service/refgraph"
	"marketgraph/internal/config"
	"marketgraph/internal/infrastructure/broker"
	"marketgraph/internal/infrastructure/persistence"
	"marketgraph/internal/infrastructure/provider/invest"
	infrahttp "marketgraph/internal/interfaces/http"
	"marketgraph/internal/logger"
	"marketgraph/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bootLogger := logrus.New()
	bootLogger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatalf("failed to load config: %v", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		bootLogger.Fatalf("failed to init logger: %v", err)
	}
	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped with error")
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	mtr := metrics.New()

	repo, err := persistence.NewRepository(ctx, persistence.Config{
		DSN:            cfg.Postgres.DSN,
		MaxConns:       cfg.Postgres.MaxConns,
		CommandTimeout: cfg.Postgres.CommandTimeout,
	}, log)
	if err != nil {
		return err
	}

	locale, err := language.Parse(cfg.Data.Locale)
	if err != nil {
		log.WithError(err).WithField("locale", cfg.Data.Locale).Warn("unknown locale, using English")
		locale = language.English
	}

	graph := refgraph.NewManager(repo, nil, log,
		refgraph.WithProvider(cfg.Data.Provider),
		refgraph.WithLocale(locale),
		refgraph.WithMetrics(mtr),
	)
	defer graph.Close()

	if err := graph.Open(ctx); err != nil {
		return err
	}
	if err := graph.Refresh(ctx); err != nil {
		return err
	}

	if cfg.Invest.Token != "" {
		source := invest.NewProvider(cfg.Invest, cfg.Data.Provider, log)
		if err := source.Connect(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			if err := source.Disconnect(stopCtx); err != nil {
				log.WithError(err).Error("disconnect data provider")
			}
		}()
		graph.AttachDataProvider(source)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		defer redisClient.Close()
	}

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	server := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: infrahttp.NewHandler(graph, mtr, redisClient, cacheTTL, log),
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RabbitMQ.URL != "" {
		consumer, err := broker.NewConsumer(cfg.RabbitMQ, graph, log)
		if err != nil {
			return err
		}
		if err := consumer.Start(gctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			closeCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			return consumer.Close(closeCtx)
		})
	}

	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
