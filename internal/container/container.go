package container

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"storefront/catalog/internal/client"
	"storefront/catalog/internal/config"
	"storefront/catalog/internal/membership"
	"storefront/catalog/internal/metrics"
	"storefront/catalog/internal/queue"
	"storefront/catalog/internal/repository"
	"storefront/catalog/internal/scanner"
	"storefront/catalog/internal/server"
	"storefront/catalog/internal/service"
	"storefront/catalog/internal/state"
	"storefront/catalog/internal/upstream"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Client   client.StorefrontClient

	Service *service.Service
	Auditor *service.Auditor // nil unless built with NewAudit

	db    *pgxpool.Pool
	redis *redis.Client
}

// NewLocal builds a container that only talks to the storefront API.
// Generations are tracked in memory.
func NewLocal(ctx context.Context, cfg *config.Config) (*Container, error) {
	c, err := newBase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c.Service = c.newService(state.NewMemoryGenerationTracker(), nil)
	return c, nil
}

// NewServer builds the HTTP serving container: generations are shared through
// Redis and scan reports are read from Postgres.
func NewServer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c, err := newBase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := c.connectRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.connectDatabase(ctx); err != nil {
		c.Close()
		return nil, err
	}

	reports := repository.NewScanReportRepository(c.db)
	if err := reports.EnsureSchema(ctx); err != nil {
		c.Close()
		return nil, err
	}

	generations := state.NewRedisGenerationTracker(c.redis, time.Duration(cfg.Redis.GenerationTTL)*time.Second)
	c.Service = c.newService(generations, reports)
	return c, nil
}

// NewAudit builds the batch audit container with the Redis stream queue and
// the Postgres report store.
func NewAudit(ctx context.Context, cfg *config.Config) (*Container, error) {
	c, err := newBase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := c.connectRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.connectDatabase(ctx); err != nil {
		c.Close()
		return nil, err
	}

	reports := repository.NewScanReportRepository(c.db)
	if err := reports.EnsureSchema(ctx); err != nil {
		c.Close()
		return nil, err
	}

	redisQueue, err := queue.NewRedisQueue(ctx, c.redis, cfg.Redis)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Service = c.newService(state.NewMemoryGenerationTracker(), reports)
	c.Auditor = service.NewAuditor(
		c.Service,
		reports,
		redisQueue,
		state.NewRedisStateManager(c.redis),
		cfg.Audit.CategoryPageSize,
		cfg.Audit.MaxRetries,
		cfg.Redis.ConsumerGroup,
		cfg.Redis.MinIdleTime,
	)
	return c, nil
}

func newBase(ctx context.Context, cfg *config.Config) (*Container, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	hosts, err := upstream.NewHostSupplier(ctx, cfg.Storefront.Hosts(), cfg.Storefront.HealthPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize host supplier: %w", err)
	}

	return &Container{
		Config:   cfg,
		Registry: registry,
		Metrics:  m,
		Client:   client.NewStorefrontClient(cfg.Storefront, cfg.Breaker, hosts, m),
	}, nil
}

func (c *Container) newService(generations state.GenerationTracker, reports repository.ScanReportRepository) *service.Service {
	return service.NewService(
		c.Client,
		membership.NewResolver(c.Client, c.Config.Storefront.RequestTimeoutDuration(), c.Metrics),
		scanner.New(c.Config.Storefront.PageSize),
		generations,
		reports,
		c.Metrics,
	)
}

func (c *Container) connectRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.Database,
	})

	// Test connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("✅ Connected to Redis successfully")
	c.redis = rdb
	return nil
}

func (c *Container) connectDatabase(ctx context.Context) error {
	db, err := pgxpool.New(ctx, c.Config.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	log.Info("✅ Connected to Postgres successfully")
	c.db = db
	return nil
}

// Serve runs the HTTP server until ctx is done.
func (c *Container) Serve(ctx context.Context) error {
	router := server.NewRouter(c.Service, c.Registry, c.Config.Server.RequestTimeoutDuration())
	return server.Run(ctx, c.Config.Server.Addr(), router)
}

// RunAudit enqueues every category and runs the workers that reconcile them.
// Workers keep running after the listing is enqueued until ctx is done.
func (c *Container) RunAudit(ctx context.Context, enqueue bool) error {
	if c.Auditor == nil {
		return fmt.Errorf("container was not built for auditing")
	}

	g, ctx := errgroup.WithContext(ctx)

	if enqueue {
		g.Go(func() error {
			_, err := c.Auditor.EnqueueCategories(ctx)
			return err
		})
	}

	g.Go(func() error {
		return c.Auditor.RunWorkers(ctx, c.Config.Audit.MaxWorkers)
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		c.redis.Close()
	}

	log.Info("Container shut down successfully")
	return nil
}
