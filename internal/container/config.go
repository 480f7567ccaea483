// Package container wires the case workflow service together and manages
// the lifecycle of its components.
package container

import (
	"errors"
	"fmt"
	"time"
)

// Storage providers
const (
	StorageLocal      = "local"
	StorageSharePoint = "sharepoint"
)

// Config holds all configuration for the Container.
type Config struct {
	Database     DatabaseConfig
	Notification NotificationConfig
	Storage      StorageConfig
	Analyzer     AnalyzerConfig
	Worker       WorkerConfig
	Engine       EngineConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NotificationConfig holds the Lark new-case notification settings.
type NotificationConfig struct {
	Enabled   bool
	AppID     string
	AppSecret string

	// Recipient is the email that receives new-case messages
	Recipient string

	// CaseLinkBase prefixes case ids in message links
	CaseLinkBase string

	// WebhookURL receives a JSON signal for every new case.
	// It works independently of Enabled; empty disables it.
	WebhookURL     string
	WebhookTimeout time.Duration
}

// StorageConfig selects where case folders and documents live.
type StorageConfig struct {
	// Provider is "local" or "sharepoint"
	Provider string

	// LocalDir is the base directory of the local provider
	LocalDir string

	SharePoint SharePointConfig
}

// SharePointConfig holds Microsoft Graph credentials.
type SharePointConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string
	Timeout      time.Duration
}

// AnalyzerConfig holds document analysis settings.
type AnalyzerConfig struct {
	Enabled bool

	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration

	// PromptsFile overrides the built-in prompt templates
	PromptsFile string

	// MaxPDFPages caps PDF extraction; zero means every page
	MaxPDFPages int
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Timeout      time.Duration
}

// EngineConfig holds workflow engine settings.
type EngineConfig struct {
	// GraphCacheTTL is how long a loaded workflow graph is reused
	GraphCacheTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/cases.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Provider: StorageLocal,
			LocalDir: "data/files",
			SharePoint: SharePointConfig{
				Timeout: 30 * time.Second,
			},
		},
		Analyzer: AnalyzerConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:       "gemini-2.5-flash",
			Temperature: 0.1,
			MaxTokens:   8192,
			Timeout:     120 * time.Second,
			MaxPDFPages: 50,
		},
		Worker: WorkerConfig{
			PollInterval: 5 * time.Second,
			BatchSize:    5,
			Timeout:      5 * time.Minute,
		},
		Engine: EngineConfig{
			GraphCacheTTL: 5 * time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	if c.Notification.Enabled {
		if c.Notification.AppID == "" || c.Notification.AppSecret == "" {
			errs = append(errs, errors.New("notification.app_id and notification.app_secret are required"))
		}
		if c.Notification.Recipient == "" {
			errs = append(errs, errors.New("notification.recipient is required"))
		}
	}

	switch c.Storage.Provider {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir is required"))
		}
	case StorageSharePoint:
		sp := c.Storage.SharePoint
		if sp.TenantID == "" || sp.ClientID == "" || sp.ClientSecret == "" || sp.DriveID == "" {
			errs = append(errs, errors.New("storage.sharepoint tenant_id, client_id, client_secret and drive_id are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.provider %q", c.Storage.Provider))
	}

	if c.Analyzer.Enabled {
		if c.Analyzer.APIKey == "" {
			errs = append(errs, errors.New("analyzer.api_key is required"))
		}
		if c.Analyzer.Model == "" {
			errs = append(errs, errors.New("analyzer.model is required"))
		}
	}

	return errors.Join(errs...)
}
