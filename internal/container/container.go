package container

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"go-plate-recognizer/internal/config"
	"go-plate-recognizer/internal/engine"
	"go-plate-recognizer/internal/exchange"
	"go-plate-recognizer/internal/factory"
	"go-plate-recognizer/internal/license"
	"go-plate-recognizer/internal/logger"
	"go-plate-recognizer/internal/observer"
	"go-plate-recognizer/internal/quality"
	"go-plate-recognizer/internal/recognizer"
	"go-plate-recognizer/internal/repository"
	"go-plate-recognizer/internal/repository/postgres"
	"go-plate-recognizer/internal/service"
	"go-plate-recognizer/internal/transport"
	"go-plate-recognizer/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	engine    engine.Engine
	db        *sql.DB
	publisher *observer.EventPublisher
	metrics   *observer.MetricsObserver
	hub       *transport.Hub
	service   service.PlateRecognitionService
	handler   http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	eng, err := components.EngineFactory.CreateEngine(ctx, factory.EngineType(cfg.Engine))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	c := &Container{config: cfg, engine: eng}

	if err := license.NewLoader(cfg.LicenseFile).Install(eng); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to install license: %w", err)
	}

	readings, err := c.readingRepository(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	fetcher, err := components.StorageFactory.CreateStorage(factory.HTTPStorage)
	if err != nil {
		c.Close()
		return nil, err
	}
	urls := validation.NewURLValidatorWithOptions([]string{"http", "https"}, cfg.AllowedHosts)
	images := repository.NewHTTPImageRepository(fetcher, urls)

	plates, err := validation.NewPlateValidatorWithPattern(cfg.PlatePattern)
	if err != nil {
		c.Close()
		return nil, err
	}

	recognizerOpts := []recognizer.Option{
		recognizer.WithAllocator(exchange.NewPoolAllocator(cfg.Options.MaxTextSize)),
	}
	sink, err := factory.CreateDiagnosticSink(cfg, components.StorageFactory)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create diagnostic sink: %w", err)
	}
	if sink != nil {
		recognizerOpts = append(recognizerOpts, recognizer.WithDiagnostics(sink))
	}

	c.publisher = observer.NewEventPublisher()
	c.metrics = observer.NewMetricsObserver()
	c.hub = transport.NewHub(64)
	c.publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.publisher.Subscribe(c.metrics)
	c.publisher.Subscribe(c.hub)

	var checker *quality.Checker
	if cfg.QualityChecks {
		checker = quality.NewChecker()
	}

	c.service, err = service.NewPlateRecognitionService(service.Dependencies{
		Engine:    eng,
		Images:    images,
		Readings:  readings,
		Plates:    plates,
		Publisher: c.publisher,
		Pool:      service.NewWorkerPool(cfg.MaxWorkers),
		Clock:     clock.New(),
		Quality:   checker,
	}, service.Settings{
		Options:     cfg.Options,
		Session:     cfg.Session,
		MaxSessions: cfg.MaxSessions,
		IdleTimeout: cfg.SessionIdleTimeout,
		Recognizer:  recognizerOpts,
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	c.handler = transport.NewHandler(c.service, c.metrics, c.hub, cfg)
	return c, nil
}

// readingRepository picks Postgres when a database is configured.
func (c *Container) readingRepository(ctx context.Context) (repository.ReadingRepository, error) {
	if c.config.DatabaseURL == "" {
		logger.Info("no database configured, readings are kept in memory")
		return repository.NewMemoryReadingRepository(clock.New()), nil
	}

	db, err := postgres.NewDB(ctx, c.config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.db = db
	if err := postgres.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return postgres.NewReadingRepository(db), nil
}

// Run starts the background workers of the container until ctx ends.
func (c *Container) Run(ctx context.Context) {
	c.hub.Run(ctx)
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the recognition service
func (c *Container) Service() service.PlateRecognitionService {
	return c.service
}

// Close releases the service, the database and the engine.
func (c *Container) Close() error {
	var err error
	if c.service != nil {
		err = multierr.Append(err, c.service.Close())
	}
	if c.db != nil {
		err = multierr.Append(err, c.db.Close())
	}
	if closer, ok := c.engine.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}
