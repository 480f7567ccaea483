package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chatRequest struct {
	Model          string  `json:"model"`
	Temperature    float32 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// newChatServer replies to every chat completion with content
func newChatServer(t *testing.T, content string, requests *[]chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*requests = append(*requests, req)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAnalyzer(t *testing.T, srv *httptest.Server) *Analyzer {
	t.Helper()
	prompts, err := LoadPrompts("")
	require.NoError(t, err)
	return NewAnalyzer(Config{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "gemini-test"}, prompts, zap.NewNop())
}

func samplePrompt() port.AnalysisPrompt {
	view := &entity.CaseView{ClientName: "Tokio", ProductName: "Sinistro"}
	view.ID = 7
	return port.AnalysisPrompt{
		Case: view,
		Model: &entity.AnalysisModel{
			ID:           3,
			Instructions: "Leia a petição inicial.",
			Fields: []entity.AnalysisField{
				{Name: "numero_processo", Label: "Número do processo", Kind: entity.FieldKindText},
				{Name: "data_citacao", Label: "Data da citação", Kind: entity.FieldKindDate},
			},
		},
		Documents: []port.ExtractedDocument{{Name: "inicial.pdf", Folder: "Petições", Text: "Processo 0001234-55.2025"}},
	}
}

func TestAnalyzer_ExtractFields(t *testing.T) {
	var requests []chatRequest
	srv := newChatServer(t, `{"numero_processo": "0001234-55.2025", "data_citacao": "Não encontrado"}`, &requests)
	a := newTestAnalyzer(t, srv)

	data, err := a.ExtractFields(context.Background(), samplePrompt())
	require.NoError(t, err)
	assert.Equal(t, "0001234-55.2025", data["numero_processo"])

	require.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, "gemini-test", req.Model)
	assert.InDelta(t, 0.1, req.Temperature, 0.0001)
	assert.Equal(t, 8192, req.MaxTokens)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_object", req.ResponseFormat.Type)

	require.Len(t, req.Messages, 2)
	user := req.Messages[1].Content
	assert.Contains(t, user, "Leia a petição inicial.")
	assert.Contains(t, user, "Caso ID: #7")
	assert.Contains(t, user, "Chave: data_citacao")
	assert.Contains(t, user, "DD/MM/AAAA")
	assert.Contains(t, user, "inicial.pdf (Pasta: Petições)")
	assert.Contains(t, user, "Processo 0001234-55.2025")
}

func TestAnalyzer_ExtractFieldsFromFencedResponse(t *testing.T) {
	var requests []chatRequest
	srv := newChatServer(t, "Segue:\n```json\n{\"numero_processo\": \"42 {a}\"}\n```", &requests)
	a := newTestAnalyzer(t, srv)

	data, err := a.ExtractFields(context.Background(), samplePrompt())
	require.NoError(t, err)
	assert.Equal(t, "42 {a}", data["numero_processo"])
}

func TestAnalyzer_ExtractFieldsRejectsGarbage(t *testing.T) {
	var requests []chatRequest
	srv := newChatServer(t, "não consegui ler os documentos", &requests)
	a := newTestAnalyzer(t, srv)

	_, err := a.ExtractFields(context.Background(), samplePrompt())
	assert.Error(t, err)
}

func TestAnalyzer_Summarize(t *testing.T) {
	var requests []chatRequest
	srv := newChatServer(t, "  Ação de cobrança contra a seguradora.  ", &requests)
	a := newTestAnalyzer(t, srv)

	p := samplePrompt()
	summary, err := a.Summarize(context.Background(), p.Case, map[string]interface{}{"numero_processo": "42"})
	require.NoError(t, err)
	assert.Equal(t, "Ação de cobrança contra a seguradora.", summary)

	require.Len(t, requests, 1)
	assert.InDelta(t, 0.3, requests[0].Temperature, 0.0001)
	assert.Equal(t, 1000, requests[0].MaxTokens)
	assert.Nil(t, requests[0].ResponseFormat)
	assert.Contains(t, requests[0].Messages[1].Content, `"numero_processo": "42"`)
}

func TestNewAnalyzer_ConfigOverridesExtraction(t *testing.T) {
	prompts, err := LoadPrompts("")
	require.NoError(t, err)

	a := NewAnalyzer(Config{Model: "m", Temperature: 0.5, MaxTokens: 2048}, prompts, zap.NewNop())
	assert.InDelta(t, 0.5, a.prompts.Extraction.Temperature, 0.0001)
	assert.Equal(t, 2048, a.prompts.Extraction.MaxTokens)
	assert.InDelta(t, 0.1, prompts.Extraction.Temperature, 0.0001)
}

func TestLoadPrompts(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(valid, []byte(`
extraction:
  temperature: 0.2
  user_template: "Campos: {{range .Fields}}{{.Name}} {{end}}"
summary:
  user_template: "{{.Data}}"
`), 0644))

	prompts, err := LoadPrompts(valid)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, prompts.Extraction.Temperature, 0.0001)

	rendered, err := BuildExtractionPrompt(prompts, samplePrompt())
	require.NoError(t, err)
	assert.Equal(t, "Campos: numero_processo data_citacao ", rendered)

	incomplete := filepath.Join(dir, "incomplete.yaml")
	require.NoError(t, os.WriteFile(incomplete, []byte("extraction:\n  user_template: x\n"), 0644))
	_, err = LoadPrompts(incomplete)
	assert.Error(t, err)

	_, err = LoadPrompts(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "fenced", content: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "nested", content: `ok {"a": {"b": "}"}} trailing`, want: `{"a": {"b": "}"}}`},
		{name: "no object", content: "nothing here", want: ""},
		{name: "unterminated", content: `{"a": 1`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.content))
		})
	}
}
