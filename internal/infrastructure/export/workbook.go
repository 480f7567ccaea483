package export

import (
	"fmt"
	"io"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the exported case sheet
const SheetName = "Casos"

const dateLayout = "02/01/2006"

var caseHeaders = []string{
	"ID", "Título", "Cliente", "Produto", "Status",
	"Fase Atual", "Responsável", "Data de Entrada", "Data de Encerramento",
}

var columnWidths = []float64{8, 40, 28, 22, 12, 24, 20, 16, 20}

// CaseWorkbook implements port.CaseWorkbookWriter using excelize
type CaseWorkbook struct{}

// NewCaseWorkbook creates a new case workbook writer
func NewCaseWorkbook() *CaseWorkbook {
	return &CaseWorkbook{}
}

// WriteCases writes one row per case below a bold, frozen header row
func (w *CaseWorkbook) WriteCases(rows []*entity.CaseView, out io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(caseHeaders))
	for i, h := range caseHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(caseHeaders))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, c := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			c.ID,
			c.Title,
			c.ClientName,
			c.ProductName,
			c.Status,
			c.PhaseName,
			c.ResponsibleUserID,
			formatDate(&c.EntryDate),
			formatDate(c.ClosedAt),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write case %d: %w", c.ID, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

var _ port.CaseWorkbookWriter = (*CaseWorkbook)(nil)
