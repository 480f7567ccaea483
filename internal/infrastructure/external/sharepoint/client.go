package sharepoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultGraphURL = "https://graph.microsoft.com/v1.0"
	graphScope      = "https://graph.microsoft.com/.default"
)

// Config holds SharePoint document library settings
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	DriveID      string

	// GraphURL and TokenURL default to the Microsoft endpoints
	GraphURL string
	TokenURL string
	Timeout  time.Duration
}

// Client implements port.FolderProvisioner and port.DocumentStore
// on a SharePoint drive through Microsoft Graph.
type Client struct {
	http     *http.Client
	graphURL string
	driveID  string
	logger   *zap.Logger
}

// NewClient creates a Graph client authenticated with client credentials
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.DriveID == "" {
		return nil, fmt.Errorf("sharepoint client id, secret and drive id are required")
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		if cfg.TenantID == "" {
			return nil, fmt.Errorf("sharepoint tenant id is required")
		}
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID))
	}

	graphURL := cfg.GraphURL
	if graphURL == "" {
		graphURL = defaultGraphURL
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}

	httpClient := cc.Client(context.Background())
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		http:     httpClient,
		graphURL: graphURL,
		driveID:  cfg.DriveID,
		logger:   logger,
	}, nil
}

type driveItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file,omitempty"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCaseFolder creates a folder at the drive root.
// Name clashes get a renamed folder.
func (c *Client) CreateCaseFolder(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/drives/%s/root/children", c.graphURL, url.PathEscape(c.driveID))
	return c.createFolder(ctx, endpoint, name, "rename")
}

// CreateSubfolder creates a folder under parentID and fails if it already exists
func (c *Client) CreateSubfolder(ctx context.Context, parentID, name string) (string, error) {
	if parentID == "" {
		return "", fmt.Errorf("cannot create subfolder %q: empty parent", name)
	}
	endpoint := fmt.Sprintf("%s/drives/%s/items/%s/children", c.graphURL, url.PathEscape(c.driveID), url.PathEscape(parentID))
	return c.createFolder(ctx, endpoint, name, "fail")
}

func (c *Client) createFolder(ctx context.Context, endpoint, name, conflict string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"name":                              name,
		"folder":                            map[string]interface{}{},
		"@microsoft.graph.conflictBehavior": conflict,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal folder request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var item driveItem
	if err := c.do(req, &item); err != nil {
		c.logger.Error("Failed to create folder",
			zap.String("name", name),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}

	c.logger.Info("Folder created",
		zap.String("name", item.Name),
		zap.String("item_id", item.ID))

	return item.ID, nil
}

// Download fetches the metadata and content of a drive item
func (c *Client) Download(ctx context.Context, fileID string) (*port.StoredDocument, error) {
	itemURL := fmt.Sprintf("%s/drives/%s/items/%s", c.graphURL, url.PathEscape(c.driveID), url.PathEscape(fileID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, itemURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	var item driveItem
	if err := c.do(req, &item); err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", fileID, err)
	}
	if item.File == nil {
		return nil, fmt.Errorf("item %s is not a file", fileID)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, itemURL+"/content", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download item %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download item %s: %w", fileID, readError(resp))
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read item %s: %w", fileID, err)
	}

	c.logger.Debug("Item downloaded",
		zap.String("item_id", fileID),
		zap.Int("size", len(content)))

	return &port.StoredDocument{
		Name:     item.Name,
		MimeType: item.File.MimeType,
		Content:  content,
	}, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var ge graphError
	if err := json.Unmarshal(data, &ge); err == nil && ge.Error.Code != "" {
		return fmt.Errorf("graph error %d %s: %s", resp.StatusCode, ge.Error.Code, ge.Error.Message)
	}
	return fmt.Errorf("graph error %d: %s", resp.StatusCode, bytes.TrimSpace(data))
}

var (
	_ port.FolderProvisioner = (*Client)(nil)
	_ port.DocumentStore     = (*Client)(nil)
)
