package port

import (
	"context"
	"io"

	"github.com/garyjia/case-workflow/internal/domain/entity"
)

// NewCaseNotice carries what the new-case notification needs to say
type NewCaseNotice struct {
	Case        *entity.Case
	ClientName  string
	ProductName string
	Subject     string
	Link        string
}

// CaseNotifier announces newly created cases
type CaseNotifier interface {
	NotifyNewCase(ctx context.Context, notice NewCaseNotice) error
}

// CaseWebhook signals an external automation endpoint about a new case
type CaseWebhook interface {
	SendNewCase(ctx context.Context, notice NewCaseNotice) error
}

// TextExtractor turns a document into plain text
type TextExtractor interface {
	Extract(ctx context.Context, doc *StoredDocument) (string, error)
}

// AnalysisPrompt is the input of one extraction call
type AnalysisPrompt struct {
	Case      *entity.CaseView
	Model     *entity.AnalysisModel
	Documents []ExtractedDocument
}

// ExtractedDocument is the text of one document sent to the analyzer
type ExtractedDocument struct {
	Name   string
	Folder string
	Text   string
}

// DocumentAnalyzer extracts structured fields from case documents
type DocumentAnalyzer interface {
	ExtractFields(ctx context.Context, prompt AnalysisPrompt) (map[string]interface{}, error)
	Summarize(ctx context.Context, c *entity.CaseView, data map[string]interface{}) (string, error)
}

// CaseWorkbookWriter renders case listings as spreadsheets
type CaseWorkbookWriter interface {
	WriteCases(rows []*entity.CaseView, w io.Writer) error
}
