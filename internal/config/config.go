// Package config loads the service configuration from a YAML file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/case-workflow/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Notification NotificationConfig `mapstructure:"notification"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Analyzer     AnalyzerConfig     `mapstructure:"analyzer"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Engine       EngineConfig       `mapstructure:"engine"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
	Service    string `mapstructure:"service"`
}

// NotificationConfig holds the Lark new-case message settings
type NotificationConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	AppID        string `mapstructure:"app_id"`
	AppSecret    string `mapstructure:"app_secret"`
	Recipient    string `mapstructure:"recipient"`
	CaseLinkBase string `mapstructure:"case_link_base"`

	// WebhookURL receives a JSON POST for every new case, e.g. an n8n flow
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
}

// StorageConfig holds case folder and document storage settings
type StorageConfig struct {
	Provider   string           `mapstructure:"provider"`
	LocalDir   string           `mapstructure:"local_dir"`
	SharePoint SharePointConfig `mapstructure:"sharepoint"`
}

// SharePointConfig holds Microsoft Graph credentials
type SharePointConfig struct {
	TenantID     string        `mapstructure:"tenant_id"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	DriveID      string        `mapstructure:"drive_id"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// AnalyzerConfig holds the LLM document analysis settings
type AnalyzerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsFile string        `mapstructure:"prompts_file"`
	MaxPDFPages int           `mapstructure:"max_pdf_pages"`
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// EngineConfig holds workflow engine settings
type EngineConfig struct {
	GraphCacheTTL time.Duration `mapstructure:"graph_cache_ttl"`
}

// Options controls where Load looks for configuration
type Options struct {
	// ConfigPath is a YAML file; empty means defaults and environment only
	ConfigPath string

	// EnvFile is loaded into the process environment when it exists
	EnvFile string
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over the file.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := gotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/cases.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.service", "case-workflow")

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.app_id", "")
	v.SetDefault("notification.app_secret", "")
	v.SetDefault("notification.recipient", "")
	v.SetDefault("notification.case_link_base", "")
	v.SetDefault("notification.webhook_url", "")
	v.SetDefault("notification.webhook_timeout", 10*time.Second)

	// Storage defaults
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_dir", "data/files")
	v.SetDefault("storage.sharepoint.tenant_id", "")
	v.SetDefault("storage.sharepoint.client_id", "")
	v.SetDefault("storage.sharepoint.client_secret", "")
	v.SetDefault("storage.sharepoint.drive_id", "")
	v.SetDefault("storage.sharepoint.timeout", 30*time.Second)

	// Analyzer defaults target Gemini's OpenAI-compatible endpoint
	v.SetDefault("analyzer.enabled", false)
	v.SetDefault("analyzer.api_key", "")
	v.SetDefault("analyzer.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("analyzer.model", "gemini-2.5-flash")
	v.SetDefault("analyzer.temperature", 0.1)
	v.SetDefault("analyzer.max_tokens", 8192)
	v.SetDefault("analyzer.timeout", 120*time.Second)
	v.SetDefault("analyzer.prompts_file", "")
	v.SetDefault("analyzer.max_pdf_pages", 50)

	v.SetDefault("worker.poll_interval", 5*time.Second)
	v.SetDefault("worker.batch_size", 5)
	v.SetDefault("worker.timeout", 5*time.Minute)

	v.SetDefault("engine.graph_cache_ttl", 5*time.Minute)
}

// bindEnvVars binds the conventional names of credentials
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"database.path":                    {"DATABASE_PATH"},
		"notification.app_id":              {"LARK_APP_ID"},
		"notification.app_secret":          {"LARK_APP_SECRET"},
		"notification.recipient":           {"LARK_CASE_RECIPIENT"},
		"notification.webhook_url":         {"N8N_WEBHOOK_URL"},
		"storage.sharepoint.tenant_id":     {"SHAREPOINT_TENANT_ID"},
		"storage.sharepoint.client_id":     {"SHAREPOINT_CLIENT_ID"},
		"storage.sharepoint.client_secret": {"SHAREPOINT_CLIENT_SECRET"},
		"storage.sharepoint.drive_id":      {"SHAREPOINT_DRIVE_ID"},
		"analyzer.api_key":                 {"ANALYZER_API_KEY", "GEMINI_API_KEY"},
	}

	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate validates the configuration and reports every problem found
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	if c.Notification.Enabled {
		if c.Notification.AppID == "" {
			errs = append(errs, errors.New("notification.app_id is required"))
		}
		if c.Notification.AppSecret == "" {
			errs = append(errs, errors.New("notification.app_secret is required"))
		}
		if err := utils.ValidateEmail(c.Notification.Recipient); err != nil {
			errs = append(errs, fmt.Errorf("notification.recipient: %w", err))
		}
	}
	if c.Notification.CaseLinkBase != "" {
		if err := utils.ValidateURL(c.Notification.CaseLinkBase); err != nil {
			errs = append(errs, fmt.Errorf("notification.case_link_base: %w", err))
		}
	}
	if c.Notification.WebhookURL != "" {
		if err := utils.ValidateURL(c.Notification.WebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("notification.webhook_url: %w", err))
		}
	}

	switch c.Storage.Provider {
	case "local":
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir is required"))
		}
	case "sharepoint":
		sp := c.Storage.SharePoint
		if sp.TenantID == "" || sp.ClientID == "" || sp.ClientSecret == "" || sp.DriveID == "" {
			errs = append(errs, errors.New("storage.sharepoint requires tenant_id, client_id, client_secret and drive_id"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.provider must be local or sharepoint, got %q", c.Storage.Provider))
	}

	if c.Analyzer.Enabled {
		if c.Analyzer.APIKey == "" {
			errs = append(errs, errors.New("analyzer.api_key is required"))
		}
		if c.Analyzer.Model == "" {
			errs = append(errs, errors.New("analyzer.model is required"))
		}
		if c.Analyzer.BaseURL != "" {
			if err := utils.ValidateURL(c.Analyzer.BaseURL); err != nil {
				errs = append(errs, fmt.Errorf("analyzer.base_url: %w", err))
			}
		}
		if c.Analyzer.MaxPDFPages < 0 {
			errs = append(errs, errors.New("analyzer.max_pdf_pages cannot be negative"))
		}
	}

	if c.Worker.BatchSize <= 0 {
		errs = append(errs, errors.New("worker.batch_size must be positive"))
	}

	return errors.Join(errs...)
}
