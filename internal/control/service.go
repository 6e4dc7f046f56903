// Package control assembles the application: storage, stream, pipeline,
// aggregation, retry lanes and the HTTP server, with a managed lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pressly/goose/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/orderflow/internal/aggregation"
	"github.com/vietddude/orderflow/internal/api"
	"github.com/vietddude/orderflow/internal/core/config"
	"github.com/vietddude/orderflow/internal/health"
	redisclient "github.com/vietddude/orderflow/internal/infra/redis"
	"github.com/vietddude/orderflow/internal/infra/storage"
	"github.com/vietddude/orderflow/internal/infra/storage/memory"
	"github.com/vietddude/orderflow/internal/infra/storage/postgres"
	"github.com/vietddude/orderflow/internal/pipeline/consumer"
	"github.com/vietddude/orderflow/internal/pipeline/processor"
	"github.com/vietddude/orderflow/internal/pipeline/reprocess"
	"github.com/vietddude/orderflow/internal/pipeline/retry"
	"github.com/vietddude/orderflow/internal/stream"
	streammemory "github.com/vietddude/orderflow/internal/stream/memory"
)

const (
	consumerGroup    = "order-consumer-group"
	aggregationGroup = "order-aggregation-group"
)

// Service is the assembled application.
type Service struct {
	cfg config.AppConfig

	broker      *streammemory.Broker
	pipeline    *consumer.Pipeline
	engine      *aggregation.Engine
	lanes       *retry.Lanes
	server      *api.Server
	orders      storage.OrderRepository
	failed      storage.FailedOrderRepository
	db          *postgres.DB
	redisClient *redisclient.Client

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewService wires all components from configuration. Postgres and redis are
// used when configured; otherwise in-memory equivalents back the same
// interfaces.
func NewService(cfg config.AppConfig, mode string) (*Service, error) {
	var (
		orderRepo  storage.OrderRepository
		failedRepo storage.FailedOrderRepository
		db         *postgres.DB
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		orderRepo = postgres.NewOrderRepo(db)
		failedRepo = postgres.NewFailedOrderRepo(db)
		slog.Info("using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		orderRepo = memory.NewOrderRepo(store)
		failedRepo = memory.NewFailedOrderRepo(store)
		slog.Info("using memory storage")
	}

	var (
		delayQueue  stream.DelayQueue
		redisClient *redisclient.Client
	)
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		delayQueue = redisclient.NewDelayQueue(redisClient, "orders")
		slog.Info("using redis delay queue")
	} else {
		delayQueue = streammemory.NewDelayQueue()
		slog.Info("using memory delay queue")
	}

	broker := streammemory.NewBroker(cfg.Stream.Partitions)

	policy := retry.Policy{
		InitialDelay: cfg.Retry.InitialDelay,
		Multiplier:   cfg.Retry.Multiplier,
		MaxDelay:     cfg.Retry.MaxDelay,
		MaxAttempts:  cfg.Retry.MaxAttempts,
	}
	lanes := retry.NewLanes(policy, delayQueue, broker)

	proc := processor.New(processor.Config{
		MaxPrice:     cfg.Processor.MaxPrice,
		CheckTimeout: cfg.Processor.CheckTimeout,
	}, orderRepo, rand.New(rand.NewSource(time.Now().UnixNano())))

	pipeline := consumer.NewPipeline(consumer.Config{
		Orders:      orderRepo,
		DeadLetters: failedRepo,
		Processor:   proc,
		Lanes:       lanes,
		Policy:      policy,
	})

	engine := aggregation.NewEngine(cfg.Aggregation.WindowSize, cfg.Aggregation.Retention)

	reprocessor := reprocess.NewService(failedRepo, broker, cfg.Stream.Topic)

	var dbPinger, redisPinger health.Pinger
	if db != nil {
		dbPinger = db
	}
	if redisClient != nil {
		redisPinger = redisClient
	}
	monitor := health.NewMonitor(pipeline, engine, failedRepo, dbPinger, redisPinger)

	server := api.New(cfg.Server.Port, api.Deps{
		Engine:      engine,
		Publisher:   broker,
		Topic:       cfg.Stream.Topic,
		Orders:      orderRepo,
		FailedRepo:  failedRepo,
		Reprocessor: reprocessor,
		Monitor:     monitor,
	}, mode)

	return &Service{
		cfg:         cfg,
		broker:      broker,
		pipeline:    pipeline,
		engine:      engine,
		lanes:       lanes,
		server:      server,
		orders:      orderRepo,
		failed:      failedRepo,
		db:          db,
		redisClient: redisClient,
	}, nil
}

// Start subscribes the consumers and launches the background loops. It
// returns once everything is running.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	topic := s.cfg.Stream.Topic

	if err := s.broker.Subscribe(runCtx, topic, consumerGroup, s.pipeline.Handle); err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe consumer: %w", err)
	}
	// Only the consumer group reads the retry lanes. The aggregation group
	// stays on the base topic so redeliveries are never counted twice.
	for _, lane := range s.lanes.Topics(topic) {
		if err := s.broker.Subscribe(runCtx, lane, consumerGroup, s.pipeline.Handle); err != nil {
			cancel()
			return fmt.Errorf("failed to subscribe consumer to %s: %w", lane, err)
		}
	}
	if err := s.broker.Subscribe(runCtx, topic, aggregationGroup, s.engine.Handle); err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe aggregation: %w", err)
	}

	g, gctx := errgroup.WithContext(runCtx)
	s.group = g

	g.Go(func() error {
		return s.lanes.Run(gctx)
	})
	g.Go(func() error {
		s.engine.RunEvictor(gctx, s.cfg.Aggregation.WindowSize)
		return nil
	})
	g.Go(func() error {
		return s.server.Run(gctx)
	})

	slog.Info("service started",
		"topic", topic,
		"partitions", s.cfg.Stream.Partitions,
		"port", s.cfg.Server.Port)
	return nil
}

// Stop shuts the service down, waiting up to ctx's deadline for the
// background loops to drain.
func (s *Service) Stop(ctx context.Context) error {
	slog.Info("stopping service")

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan error, 1)
	go func() {
		if s.group != nil {
			done <- s.group.Wait()
			return
		}
		done <- nil
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if s.redisClient != nil {
		if cerr := s.redisClient.Close(); cerr != nil {
			slog.Warn("failed to close redis", "error", cerr)
		}
	}
	if s.db != nil {
		if cerr := s.db.Close(); cerr != nil {
			slog.Warn("failed to close db", "error", cerr)
		}
	}
	return err
}
