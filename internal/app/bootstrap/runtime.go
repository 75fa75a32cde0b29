package bootstrap

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

	"google.golang.org/grpc"

	cacheadapter "github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/adapters/cache"
	engineadapter "github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/adapters/engine"
	eventadapter "github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M21-payment-link-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping m21 payment link service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	cleanup := func(context.Context) {}

	var (
		links       ports.LinkRepository
		idempotency ports.IdempotencyRepository
		eventDedup  ports.EventDedupRepository
		outboxRepo  ports.OutboxRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, int32(cfg.MaxDBConns))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("gorm sql db: %w", err)
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		repos := postgres.NewRepositories(db)
		links = repos.Links
		idempotency = repos.Idempotency
		eventDedup = repos.EventDedup
		outboxRepo = repos.Outbox
		cleanup = func(context.Context) { _ = sqlDB.Close() }
	} else {
		logger.Warn("no database configured; using in-memory repositories")
		repos := memory.NewRepositories()
		links = repos.Links
		idempotency = repos.Idempotency
		eventDedup = repos.EventDedup
		outboxRepo = repos.Outbox
	}

	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		eventDedup = cacheadapter.NewRedisEventDedupStore(redisClient)
		dbCleanup := cleanup
		cleanup = func(ctx context.Context) {
			_ = redisClient.Close()
			dbCleanup(ctx)
		}
	}

	var engine ports.ValueTransferEngine
	if cfg.EngineURL != "" {
		engine = engineadapter.NewClient(engineadapter.Config{
			BaseURL:      cfg.EngineURL,
			Timeout:      cfg.EngineTimeout,
			RetryMax:     cfg.EngineRetryMax,
			RetryBackoff: cfg.EngineRetryBackoff,
		}, logger)
	} else {
		logger.Warn("no engine configured; using stub value transfer engine")
		engine = engineadapter.NewStub()
	}

	publisher := eventadapter.NewLoggingPublisher(logger)
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:          cfg.ServiceID,
			IdempotencyTTL:       cfg.IdempotencyTTL,
			EventDedupTTL:        cfg.EventDedupTTL,
			DefaultAsset:         cfg.DefaultAsset,
			FeeBps:               cfg.FeeBps,
			OutboxFlushBatchSize: cfg.OutboxBatchSize,
		},
		Logger:       logger,
		Links:        links,
		Idempotency:  idempotency,
		EventDedup:   eventDedup,
		Outbox:       outboxRepo,
		Engine:       engine,
		DomainEvents: publisher,
		Analytics:    publisher,
		DLQ:          publisher,
	})

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// The health surface is registered by the adapter; registering it here
	// too would be a duplicate service registration, which grpc-go fatals on.
	grpcServer := grpc.NewServer()
	grpcadapter.Register(grpcServer, grpcadapter.NewLinkInternalServer(svc))

	outbox := eventadapter.NewOutboxWorker(svc, cfg.OutboxPollInterval, logger)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     outbox,
		cleanupFn:  cleanup,
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bind here, not in NewRuntime, so a worker built from the same config
	// never holds the api's gRPC port.
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started", "interval", r.cfg.OutboxPollInterval.String())
	r.outbox.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
