package service

import (
	"context"
	"io"

	"github.com/garyjia/case-workflow/internal/application/port"
)

// ExportService renders case listings as spreadsheets
type ExportService interface {
	ExportCases(ctx context.Context, filter port.CaseFilter, w io.Writer) error
}

type exportServiceImpl struct {
	cases  port.CaseRepository
	writer port.CaseWorkbookWriter
	logger Logger
}

// NewExportService creates a new ExportService
func NewExportService(cases port.CaseRepository, writer port.CaseWorkbookWriter, logger Logger) ExportService {
	return &exportServiceImpl{
		cases:  cases,
		writer: writer,
		logger: logger,
	}
}

// ExportCases writes every case matching the filter to w
func (s *exportServiceImpl) ExportCases(ctx context.Context, filter port.CaseFilter, w io.Writer) error {
	// exports are never paged
	filter.Limit, filter.Offset = 0, 0

	rows, err := s.cases.List(ctx, filter)
	if err != nil {
		return err
	}

	if err := s.writer.WriteCases(rows, w); err != nil {
		s.logger.Error("Failed to write case export", "error", err, "rows", len(rows))
		return err
	}

	s.logger.Info("Cases exported", "rows", len(rows))
	return nil
}
