package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Payload is the JSON body posted for a new case
type Payload struct {
	Event             string    `json:"event"`
	CaseID            int64     `json:"case_id"`
	Title             string    `json:"title"`
	Status            string    `json:"status"`
	ClientID          int64     `json:"client_id"`
	ClientName        string    `json:"client_name"`
	ProductID         int64     `json:"product_id"`
	ProductName       string    `json:"product_name"`
	ResponsibleUserID string    `json:"responsible_user_id,omitempty"`
	EntryDate         time.Time `json:"entry_date"`
	Link              string    `json:"link,omitempty"`
}

// Client implements port.CaseWebhook with a JSON POST
type Client struct {
	url    string
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a webhook client posting to url
func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// SendNewCase posts the case to the webhook; any non-2xx answer is an error
func (c *Client) SendNewCase(ctx context.Context, notice port.NewCaseNotice) error {
	if notice.Case == nil {
		return fmt.Errorf("webhook: notice has no case")
	}

	body, err := json.Marshal(Payload{
		Event:             "case.created",
		CaseID:            notice.Case.ID,
		Title:             notice.Case.Title,
		Status:            notice.Case.Status,
		ClientID:          notice.Case.ClientID,
		ClientName:        notice.ClientName,
		ProductID:         notice.Case.ProductID,
		ProductName:       notice.ProductName,
		ResponsibleUserID: notice.Case.ResponsibleUserID,
		EntryDate:         notice.Case.EntryDate,
		Link:              notice.Link,
	})
	if err != nil {
		return fmt.Errorf("webhook: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Info("Case webhook signalled",
		zap.Int64("case_id", notice.Case.ID),
		zap.Int("status", resp.StatusCode))
	return nil
}
