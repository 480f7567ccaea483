package document

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/gen2brain/go-fitz"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Document kinds the extractor understands
const (
	KindPDF         = "pdf"
	KindSpreadsheet = "xlsx"
	KindText        = "text"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Extractor implements port.TextExtractor for PDF, XLSX and plain text files
type Extractor struct {
	maxPages int
	logger   *zap.Logger
}

// NewExtractor creates a text extractor; maxPages <= 0 reads every PDF page
func NewExtractor(maxPages int, logger *zap.Logger) *Extractor {
	return &Extractor{
		maxPages: maxPages,
		logger:   logger,
	}
}

// Extract returns the plain text of doc
func (e *Extractor) Extract(ctx context.Context, doc *port.StoredDocument) (string, error) {
	if doc == nil || len(doc.Content) == 0 {
		return "", fmt.Errorf("document is empty")
	}

	switch kind := Kind(doc); kind {
	case KindPDF:
		return e.extractPDF(doc)
	case KindSpreadsheet:
		return e.extractSpreadsheet(doc)
	case KindText:
		if !utf8.Valid(doc.Content) {
			return "", fmt.Errorf("%s is not valid UTF-8 text", doc.Name)
		}
		return string(doc.Content), nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", doc.Name)
	}
}

// Kind classifies a document by MIME type, falling back to its extension
func Kind(doc *port.StoredDocument) string {
	mimeType := strings.ToLower(strings.TrimSpace(strings.SplitN(doc.MimeType, ";", 2)[0]))
	switch {
	case mimeType == mimePDF:
		return KindPDF
	case mimeType == mimeXLSX:
		return KindSpreadsheet
	case strings.HasPrefix(mimeType, "text/"), mimeType == "application/json":
		return KindText
	}

	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".pdf":
		return KindPDF
	case ".xlsx":
		return KindSpreadsheet
	case ".txt", ".csv", ".md", ".json", ".xml", ".html":
		return KindText
	}
	return ""
}

func (e *Extractor) extractPDF(doc *port.StoredDocument) (string, error) {
	pdf, err := fitz.NewFromMemory(doc.Content)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer pdf.Close()

	pageCount := pdf.NumPage()
	if e.maxPages > 0 && pageCount > e.maxPages {
		pageCount = e.maxPages
	}

	e.logger.Debug("Processing PDF",
		zap.String("name", doc.Name),
		zap.Int("total_pages", pdf.NumPage()))

	var b strings.Builder
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		text, err := pdf.Text(pageNum)
		if err != nil {
			e.logger.Warn("Failed to extract page text",
				zap.String("name", doc.Name),
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		fmt.Fprintf(&b, "[Página %d]\n%s\n", pageNum+1, strings.TrimSpace(text))
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("no text found in %s", doc.Name)
	}
	return b.String(), nil
}

func (e *Extractor) extractSpreadsheet(doc *port.StoredDocument) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(doc.Content))
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		fmt.Fprintf(&b, "[Planilha %s]\n", sheet)
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

var _ port.TextExtractor = (*Extractor)(nil)
