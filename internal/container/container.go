package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/application/service"
	appwf "github.com/garyjia/case-workflow/internal/application/workflow"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/case-workflow/internal/infrastructure/worker"
	"github.com/garyjia/case-workflow/pkg/database"
)

// Container owns every runtime component. Start initializes them in
// dependency order and Close tears them down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	database     *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	storage      *StorageBundle
	notifier     port.CaseNotifier
	webhook      port.CaseWebhook
	analysis     *AnalysisBundle

	// Application
	engine   appwf.WorkflowEngine
	services *ServiceBundle

	workers *worker.Manager

	mu     sync.Mutex
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Cases     port.CaseRepository
	Clients   port.ClientRepository
	Products  port.ProductRepository
	Workflows port.WorkflowRepository
	History   port.PhaseHistoryRepository
	Instances port.ActionInstanceRepository
	Events    port.EventRepository
	Templates port.FolderTemplateRepository
	Analyses  port.AnalysisRepository
}

// ServiceBundle groups all application services.
// Analyses is nil when document analysis is disabled.
type ServiceBundle struct {
	Cases     service.CaseService
	Workflows service.WorkflowConfigService
	Actions   service.ActionService
	Exports   service.ExportService
	Analyses  service.AnalysisService
	Reference service.ReferenceService
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing:
// database and repositories, external adapters, engine and services, workers.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initAdapters(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize adapters: %w", err)
	}
	c.logger.Info("External adapters initialized",
		zap.String("storage", c.config.Storage.Provider),
		zap.Bool("notification", c.notifier != nil),
		zap.Bool("analysis", c.analysis != nil))

	if err := c.initServices(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Engine and services initialized")

	var runCtx context.Context
	runCtx, c.cancel = context.WithCancel(ctx)
	c.workers = ProvideWorkers(c.repositories, c.services, &c.config.Worker, c.logger)
	if err := c.workers.StartAll(runCtx); err != nil {
		c.cancel()
		c.closeDatabase()
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if err := errors.Join(errs...); err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// HealthCheck reports "ok" or a failure message per component.
func (c *Container) HealthCheck(ctx context.Context) map[string]string {
	status := make(map[string]string)

	switch {
	case c.database == nil:
		status["database"] = "not initialized"
	default:
		if err := c.database.PingContext(ctx); err != nil {
			status["database"] = fmt.Sprintf("ping failed: %v", err)
		} else {
			status["database"] = "ok"
		}
	}

	if c.workers == nil || !c.workers.IsRunning() {
		status["workers"] = "not running"
	} else {
		status["workers"] = "ok"
		for _, w := range c.workers.Statuses() {
			if w.Running {
				status["worker."+w.Name] = "ok"
			} else {
				status["worker."+w.Name] = "stopped"
			}
		}
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = bundle.DB
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initAdapters() error {
	bundle, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return err
	}
	c.storage = bundle

	c.notifier = ProvideNotifier(&c.config.Notification, c.logger)
	c.webhook = ProvideWebhook(&c.config.Notification, c.logger)

	analysis, err := ProvideAnalysis(&c.config.Analyzer, c.logger)
	if err != nil {
		return err
	}
	c.analysis = analysis
	return nil
}

func (c *Container) initServices() error {
	c.engine = ProvideEngine(c.repositories, c.db, &c.config.Engine, c.logger)

	services, err := ProvideServices(&ServiceDeps{
		Repos:        c.repositories,
		TxManager:    c.db,
		Engine:       c.engine,
		Storage:      c.storage,
		Notifier:     c.notifier,
		Webhook:      c.webhook,
		Analysis:     c.analysis,
		CaseLinkBase: c.config.Notification.CaseLinkBase,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) closeDatabase() error {
	if c.database == nil {
		return nil
	}
	err := c.database.Close()
	c.database = nil
	return err
}

// Engine returns the workflow engine.
func (c *Container) Engine() appwf.WorkflowEngine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// ServiceLogger returns the key/value logger the services and HTTP layer use.
func (c *Container) ServiceLogger() service.Logger {
	return &zapLoggerAdapter{logger: c.logger}
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
// Errors are logged under their key with zap.NamedError.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
