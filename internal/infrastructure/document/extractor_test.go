package document

import (
	"bytes"
	"context"
	"testing"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		want     string
	}{
		{name: "pdf mime", fileName: "laudo", mimeType: "application/pdf", want: KindPDF},
		{name: "pdf extension", fileName: "Laudo.PDF", want: KindPDF},
		{name: "xlsx mime", fileName: "x", mimeType: mimeXLSX, want: KindSpreadsheet},
		{name: "xlsx extension", fileName: "planilha.xlsx", mimeType: "application/octet-stream", want: KindSpreadsheet},
		{name: "text with charset", fileName: "nota", mimeType: "text/plain; charset=utf-8", want: KindText},
		{name: "csv extension", fileName: "dados.csv", want: KindText},
		{name: "image", fileName: "foto.jpg", mimeType: "image/jpeg", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(&port.StoredDocument{Name: tt.fileName, MimeType: tt.mimeType}))
		})
	}
}

func TestExtractor_PlainText(t *testing.T) {
	e := NewExtractor(0, zap.NewNop())

	text, err := e.Extract(context.Background(), &port.StoredDocument{Name: "nota.txt", Content: []byte("Citação em 15/03/2025")})
	require.NoError(t, err)
	assert.Equal(t, "Citação em 15/03/2025", text)

	_, err = e.Extract(context.Background(), &port.StoredDocument{Name: "nota.txt", Content: []byte{0xff, 0xfe, 0x00}})
	assert.Error(t, err)
}

func TestExtractor_Spreadsheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Parcela", "Valor"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"1", "1500.00"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	e := NewExtractor(0, zap.NewNop())
	text, err := e.Extract(context.Background(), &port.StoredDocument{Name: "calculo.xlsx", Content: buf.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, "[Planilha Sheet1]\nParcela\tValor\n1\t1500.00\n", text)
}

func TestExtractor_Rejects(t *testing.T) {
	e := NewExtractor(0, zap.NewNop())

	tests := []struct {
		name string
		doc  *port.StoredDocument
	}{
		{name: "nil", doc: nil},
		{name: "empty", doc: &port.StoredDocument{Name: "a.txt"}},
		{name: "unsupported", doc: &port.StoredDocument{Name: "foto.jpg", MimeType: "image/jpeg", Content: []byte{1, 2, 3}}},
		{name: "broken spreadsheet", doc: &port.StoredDocument{Name: "x.xlsx", Content: []byte("not a zip")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(context.Background(), tt.doc)
			assert.Error(t, err)
		})
	}
}
