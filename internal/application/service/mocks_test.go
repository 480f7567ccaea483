package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/garyjia/case-workflow/internal/application/port"
	appwf "github.com/garyjia/case-workflow/internal/application/workflow"
	"github.com/garyjia/case-workflow/internal/domain/entity"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockProvisioner records created folders as "<parent>/<name>"
type mockProvisioner struct {
	mu      sync.Mutex
	created []string
	failOn  string
}

func (m *mockProvisioner) CreateCaseFolder(ctx context.Context, name string) (string, error) {
	return m.create("", name)
}

func (m *mockProvisioner) CreateSubfolder(ctx context.Context, parentID, name string) (string, error) {
	return m.create(parentID, name)
}

func (m *mockProvisioner) create(parent, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == m.failOn {
		return "", errors.New("drive unavailable")
	}
	id := "folder-" + name
	if parent != "" {
		id = parent + "/" + name
	}
	m.created = append(m.created, id)
	return id, nil
}

type mockNotifier struct {
	notices    []port.NewCaseNotice
	notifyFunc func(ctx context.Context, notice port.NewCaseNotice) error
}

func (m *mockNotifier) NotifyNewCase(ctx context.Context, notice port.NewCaseNotice) error {
	m.notices = append(m.notices, notice)
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, notice)
	}
	return nil
}

type mockWebhook struct {
	notices  []port.NewCaseNotice
	sendFunc func(ctx context.Context, notice port.NewCaseNotice) error
}

func (m *mockWebhook) SendNewCase(ctx context.Context, notice port.NewCaseNotice) error {
	m.notices = append(m.notices, notice)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, notice)
	}
	return nil
}

// mockEngine only tracks cache invalidations
type mockEngine struct {
	appwf.WorkflowEngine
	invalidated []int64
}

func (m *mockEngine) Invalidate(workflowID int64) {
	m.invalidated = append(m.invalidated, workflowID)
}

type mockDocumentStore struct {
	files map[string]*port.StoredDocument
}

func (m *mockDocumentStore) Download(ctx context.Context, fileID string) (*port.StoredDocument, error) {
	doc, ok := m.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	copied := *doc
	return &copied, nil
}

type mockExtractor struct {
	extractFunc func(ctx context.Context, doc *port.StoredDocument) (string, error)
}

func (m *mockExtractor) Extract(ctx context.Context, doc *port.StoredDocument) (string, error) {
	if m.extractFunc != nil {
		return m.extractFunc(ctx, doc)
	}
	return string(doc.Content), nil
}

type mockAnalyzer struct {
	prompts       []port.AnalysisPrompt
	extractFunc   func(ctx context.Context, prompt port.AnalysisPrompt) (map[string]interface{}, error)
	summarizeFunc func(ctx context.Context, c *entity.CaseView, data map[string]interface{}) (string, error)
}

func (m *mockAnalyzer) ExtractFields(ctx context.Context, prompt port.AnalysisPrompt) (map[string]interface{}, error) {
	m.prompts = append(m.prompts, prompt)
	if m.extractFunc != nil {
		return m.extractFunc(ctx, prompt)
	}
	return map[string]interface{}{}, nil
}

func (m *mockAnalyzer) Summarize(ctx context.Context, c *entity.CaseView, data map[string]interface{}) (string, error) {
	if m.summarizeFunc != nil {
		return m.summarizeFunc(ctx, c, data)
	}
	return "", nil
}

type mockWorkbookWriter struct {
	rows []*entity.CaseView
	err  error
}

func (m *mockWorkbookWriter) WriteCases(rows []*entity.CaseView, w io.Writer) error {
	m.rows = rows
	if m.err != nil {
		return m.err
	}
	_, err := io.WriteString(w, "xlsx")
	return err
}
