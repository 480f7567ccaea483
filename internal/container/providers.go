package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/application/service"
	appwf "github.com/garyjia/case-workflow/internal/application/workflow"
	"github.com/garyjia/case-workflow/internal/infrastructure/document"
	"github.com/garyjia/case-workflow/internal/infrastructure/export"
	infraLark "github.com/garyjia/case-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/case-workflow/internal/infrastructure/external/openai"
	"github.com/garyjia/case-workflow/internal/infrastructure/external/sharepoint"
	"github.com/garyjia/case-workflow/internal/infrastructure/external/webhook"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/case-workflow/internal/infrastructure/storage"
	"github.com/garyjia/case-workflow/internal/infrastructure/worker"
	"github.com/garyjia/case-workflow/internal/migrations"
	"github.com/garyjia/case-workflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds the folder and document adapters of one provider.
type StorageBundle struct {
	Folders   port.FolderProvisioner
	Documents port.DocumentStore
}

// AnalysisBundle holds the document analysis adapters.
type AnalysisBundle struct {
	Extractor port.TextExtractor
	Analyzer  port.DocumentAnalyzer
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates every repository on the transaction manager's connection.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Cases:     repository.NewCaseRepository(db.DB, logger),
		Clients:   repository.NewClientRepository(db.DB, logger),
		Products:  repository.NewProductRepository(db.DB, logger),
		Workflows: repository.NewWorkflowRepository(db.DB, logger),
		History:   repository.NewPhaseHistoryRepository(db.DB, logger),
		Instances: repository.NewActionInstanceRepository(db.DB, logger),
		Events:    repository.NewEventRepository(db.DB, logger),
		Templates: repository.NewFolderTemplateRepository(db.DB, logger),
		Analyses:  repository.NewAnalysisRepository(db.DB, logger),
	}, nil
}

// ProvideStorage creates the folder and document adapters for the configured provider.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (*StorageBundle, error) {
	switch cfg.Provider {
	case StorageLocal:
		return &StorageBundle{
			Folders:   storage.NewLocalFolderManager(cfg.LocalDir, logger),
			Documents: storage.NewLocalFileStorage(cfg.LocalDir, logger),
		}, nil
	case StorageSharePoint:
		client, err := sharepoint.NewClient(sharepoint.Config{
			TenantID:     cfg.SharePoint.TenantID,
			ClientID:     cfg.SharePoint.ClientID,
			ClientSecret: cfg.SharePoint.ClientSecret,
			DriveID:      cfg.SharePoint.DriveID,
			Timeout:      cfg.SharePoint.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &StorageBundle{Folders: client, Documents: client}, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// ProvideNotifier returns the Lark new-case notifier, or nil when disabled.
func ProvideNotifier(cfg *NotificationConfig, logger *zap.Logger) port.CaseNotifier {
	if !cfg.Enabled {
		return nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
	}, logger)
	return infraLark.NewNotifier(client, cfg.Recipient, logger)
}

// ProvideWebhook returns the new-case webhook client, or nil without a URL.
func ProvideWebhook(cfg *NotificationConfig, logger *zap.Logger) port.CaseWebhook {
	if cfg.WebhookURL == "" {
		return nil
	}
	return webhook.NewClient(cfg.WebhookURL, cfg.WebhookTimeout, logger)
}

// ProvideAnalysis creates the text extractor and the LLM analyzer.
// It returns nil when analysis is disabled.
func ProvideAnalysis(cfg *AnalyzerConfig, logger *zap.Logger) (*AnalysisBundle, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	prompts, err := openai.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	analyzer := openai.NewAnalyzer(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}, prompts, logger)

	return &AnalysisBundle{
		Extractor: document.NewExtractor(cfg.MaxPDFPages, logger),
		Analyzer:  analyzer,
	}, nil
}

// ProvideEngine creates the workflow engine.
func ProvideEngine(repos *RepositoryBundle, txManager port.TransactionManager, cfg *EngineConfig, logger *zap.Logger) appwf.WorkflowEngine {
	opts := []appwf.EngineOption{appwf.WithLogger(logger)}
	if cfg.GraphCacheTTL > 0 {
		opts = append(opts, appwf.WithCacheExpiry(cfg.GraphCacheTTL))
	}

	return appwf.NewEngine(
		repos.Cases,
		repos.Workflows,
		repos.History,
		repos.Instances,
		repos.Events,
		txManager,
		opts...,
	)
}

// ServiceDeps holds dependencies for creating application services.
type ServiceDeps struct {
	Repos        *RepositoryBundle
	TxManager    port.TransactionManager
	Engine       appwf.WorkflowEngine
	Storage      *StorageBundle
	Notifier     port.CaseNotifier
	Webhook      port.CaseWebhook
	Analysis     *AnalysisBundle
	CaseLinkBase string
	Logger       *zap.Logger
}

// ProvideServices creates all application services.
// ServiceBundle.Analyses stays nil when Analysis is nil.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps.Repos == nil || deps.TxManager == nil || deps.Engine == nil {
		return nil, fmt.Errorf("repositories, transaction manager and engine are required")
	}

	repos := deps.Repos
	logger := &zapLoggerAdapter{logger: deps.Logger}

	caseDeps := service.CaseServiceDeps{
		Cases:        repos.Cases,
		Clients:      repos.Clients,
		Products:     repos.Products,
		Events:       repos.Events,
		History:      repos.History,
		Templates:    repos.Templates,
		TxManager:    deps.TxManager,
		Engine:       deps.Engine,
		Notifier:     deps.Notifier,
		Webhook:      deps.Webhook,
		Logger:       logger,
		CaseLinkBase: deps.CaseLinkBase,
	}
	if deps.Storage != nil {
		caseDeps.Folders = deps.Storage.Folders
	}

	bundle := &ServiceBundle{
		Cases:     service.NewCaseService(caseDeps),
		Workflows: service.NewWorkflowConfigService(repos.Workflows, repos.Cases, repos.Templates, deps.TxManager, deps.Engine, logger),
		Actions:   service.NewActionService(repos.Instances, repos.Workflows, repos.Cases),
		Exports:   service.NewExportService(repos.Cases, export.NewCaseWorkbook(), logger),
		Reference: service.NewReferenceService(repos.Clients, repos.Products, logger),
	}

	if deps.Analysis != nil {
		if deps.Storage == nil {
			return nil, fmt.Errorf("document analysis requires a storage provider")
		}
		bundle.Analyses = service.NewAnalysisService(
			repos.Analyses,
			repos.Cases,
			deps.Storage.Documents,
			deps.Analysis.Extractor,
			deps.Analysis.Analyzer,
			logger,
		)
	}

	return bundle, nil
}

// ProvideWorkers creates the worker manager. The analysis worker is only
// registered when document analysis is enabled.
func ProvideWorkers(repos *RepositoryBundle, services *ServiceBundle, cfg *WorkerConfig, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)

	if services.Analyses != nil {
		manager.Register(worker.NewAnalysisWorker(worker.AnalysisWorkerConfig{
			PollInterval: cfg.PollInterval,
			BatchSize:    cfg.BatchSize,
			Timeout:      cfg.Timeout,
		}, repos.Analyses, services.Analyses, logger))
	}

	return manager
}
