package config

import (
	"github.com/garyjia/case-workflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Notification: container.NotificationConfig{
			Enabled:        c.Notification.Enabled,
			AppID:          c.Notification.AppID,
			AppSecret:      c.Notification.AppSecret,
			Recipient:      c.Notification.Recipient,
			CaseLinkBase:   c.Notification.CaseLinkBase,
			WebhookURL:     c.Notification.WebhookURL,
			WebhookTimeout: c.Notification.WebhookTimeout,
		},
		Storage: container.StorageConfig{
			Provider: c.Storage.Provider,
			LocalDir: c.Storage.LocalDir,
			SharePoint: container.SharePointConfig{
				TenantID:     c.Storage.SharePoint.TenantID,
				ClientID:     c.Storage.SharePoint.ClientID,
				ClientSecret: c.Storage.SharePoint.ClientSecret,
				DriveID:      c.Storage.SharePoint.DriveID,
				Timeout:      c.Storage.SharePoint.Timeout,
			},
		},
		Analyzer: container.AnalyzerConfig{
			Enabled:     c.Analyzer.Enabled,
			APIKey:      c.Analyzer.APIKey,
			BaseURL:     c.Analyzer.BaseURL,
			Model:       c.Analyzer.Model,
			Temperature: c.Analyzer.Temperature,
			MaxTokens:   c.Analyzer.MaxTokens,
			Timeout:     c.Analyzer.Timeout,
			PromptsFile: c.Analyzer.PromptsFile,
			MaxPDFPages: c.Analyzer.MaxPDFPages,
		},
		Worker: container.WorkerConfig{
			PollInterval: c.Worker.PollInterval,
			BatchSize:    c.Worker.BatchSize,
			Timeout:      c.Worker.Timeout,
		},
		Engine: container.EngineConfig{
			GraphCacheTTL: c.Engine.GraphCacheTTL,
		},
	}
}
