package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"trending-service/internal/api"
	"trending-service/internal/core/config"
	"trending-service/internal/fetching"
	"trending-service/internal/fetching/retry"
	redisclient "trending-service/internal/infra/redis"
	"trending-service/internal/infra/source"
	"trending-service/internal/infra/storage"
	"trending-service/internal/infra/storage/memory"
	"trending-service/internal/infra/storage/postgres"
	"trending-service/internal/notify"
	"trending-service/internal/refetch"
	"trending-service/internal/report"

	"github.com/nats-io/nats.go"
	"github.com/pressly/goose/v3"
)

// Config holds the application configuration.
type Config struct {
	App            config.AppConfig
	RefetchEnabled bool // CLI flag
}

// Service is the main application struct that manages the collection lifecycle.
type Service struct {
	cfg         Config
	fetchSvc    *fetching.Service
	apiServer   *api.Server
	worker      *refetch.Worker
	store       *memory.MemoryStorage
	db          *postgres.DB
	redisClient *redisclient.Client
	natsConn    *nats.Conn
	log         *slog.Logger
}

// NewService creates a new Service instance with all dependencies initialized.
func NewService(cfg Config) (*Service, error) {

	// 1. Initialize Storage
	var itemRepo storage.ItemRepository
	var failureRepo storage.FailureRepository
	var notifRepo storage.NotificationRepository
	var store *memory.MemoryStorage
	var db *postgres.DB

	if cfg.App.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.App.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		itemRepo = postgres.NewItemRepo(db)
		failureRepo = postgres.NewFailureRepo(db)
		notifRepo = postgres.NewNotificationRepo(db)

		slog.Info("Using PostgreSQL storage")
	} else {
		store = memory.NewMemoryStorage()
		itemRepo = memory.NewItemRepo(store)
		failureRepo = memory.NewFailureRepo(store)
		notifRepo = memory.NewNotificationRepo(store)

		slog.Info("Using Memory storage")
	}

	// 2. Initialize Collectors
	collectors := source.BuildRegistry(cfg.App.Sources, cfg.App.HTTP)
	if len(collectors) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}

	// 3. Initialize Retry Coordinator
	backoff := retry.NewBackoff(
		cfg.App.Retry.BaseDelay,
		cfg.App.Retry.MaxDelay,
		cfg.App.Retry.BackoffBase,
		cfg.App.Retry.MaxRetries,
	)
	coordinator := retry.NewCoordinator(backoff, failureRepo, itemRepo)
	for name, collector := range collectors {
		coordinator.Register(name, collector)
		slog.Info("Source registered", "source", name)
	}

	// 4. Initialize Notifier
	// A missing or unreachable broker degrades to record-only notifications.
	var pub notify.Publisher
	var natsConn *nats.Conn
	if cfg.App.NATS.URL != "" {
		var err error
		natsConn, err = nats.Connect(cfg.App.NATS.URL)
		if err != nil {
			slog.Warn("Failed to connect to NATS, notifications record-only", "error", err)
			natsConn = nil
		} else {
			pub = natsConn
		}
	}
	notifier := notify.NewNotifier(pub, notifRepo, cfg.App.NATS.Subject)

	// 5. Initialize Fetch Service
	reports := report.NewGenerator(cfg.App.Report, itemRepo)
	fetchSvc := fetching.NewService(fetching.Config{
		FetchHour:     cfg.App.Schedule.FetchHour,
		FetchMinute:   cfg.App.Schedule.FetchMinute,
		CleanupHour:   cfg.App.Schedule.CleanupHour,
		CleanupMinute: cfg.App.Schedule.CleanupMinute,
		RetentionDays: cfg.App.Schedule.RetentionDays,
		PollInterval:  cfg.App.Schedule.PollInterval,
	}, coordinator, failureRepo, itemRepo, reports, notifier)

	// 6. Initialize Redis and Refetch Worker
	var redisClient *redisclient.Client
	var worker *refetch.Worker

	if cfg.App.Redis.URL != "" && cfg.RefetchEnabled {
		var err error
		redisClient, err = redisclient.NewClient(cfg.App.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, refetch worker disabled", "error", err)
			redisClient = nil
		} else {
			worker = refetch.NewWorker(refetch.DefaultConfig(), redisClient, fetchSvc)
			slog.Info("Refetch worker initialized")
		}
	}

	// 7. Initialize API Server
	checks := make(map[string]api.HealthChecker)
	if db != nil {
		checks["database"] = db
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	if natsConn != nil {
		checks["nats"] = &natsChecker{conn: natsConn}
	}
	apiServer := api.NewServer(api.Config{Port: cfg.App.Server.Port}, fetchSvc, itemRepo, checks)

	return &Service{
		cfg:         cfg,
		fetchSvc:    fetchSvc,
		apiServer:   apiServer,
		worker:      worker,
		store:       store,
		db:          db,
		redisClient: redisClient,
		natsConn:    natsConn,
		log:         slog.Default(),
	}, nil
}

// Start starts the service and all its components.
func (s *Service) Start(ctx context.Context) error {
	// Start API Server
	go func() {
		if err := s.apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("API server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	// Start Fetch Service (scheduler loop blocks, so run it in a goroutine)
	go func() {
		if err := s.fetchSvc.Start(ctx); err != nil {
			s.log.Error("Fetch service failed", "error", err)
		}
	}()

	// Start Refetch Worker
	if s.worker != nil {
		s.log.Info("Starting refetch worker")
		go func() {
			if err := s.worker.Run(ctx); err != nil {
				s.log.Error("Refetch worker failed", "error", err)
			}
		}()
	}

	return nil
}

// Stop stops the service.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	// Stop the scheduler loop first so no new fetches start
	if err := s.fetchSvc.Stop(ctx); err != nil {
		s.log.Warn("Failed to stop fetch service", "error", err)
	}

	// Close Redis
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}

	// Close NATS
	if s.natsConn != nil {
		s.natsConn.Close()
	}

	// Close DB
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}

	// Stop API Server
	return s.apiServer.Stop(ctx)
}

// Status exposes the fetch service for CLI inspection.
func (s *Service) Status() *fetching.Service {
	return s.fetchSvc
}

// natsChecker adapts the NATS connection to the API health interface.
type natsChecker struct {
	conn *nats.Conn
}

func (c *natsChecker) Health(ctx context.Context) error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("nats connection is %s", c.conn.Status())
	}
	return nil
}
