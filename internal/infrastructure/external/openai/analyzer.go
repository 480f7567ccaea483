package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// maxDocumentChars caps the text sent per document
const maxDocumentChars = 60000

// Config holds analyzer connection settings.
// Temperature and MaxTokens override the extraction prompt values when set.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Analyzer implements port.DocumentAnalyzer over an OpenAI-compatible
// chat completions endpoint.
type Analyzer struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	timeout time.Duration
	logger  *zap.Logger
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(cfg Config, prompts *PromptConfig, logger *zap.Logger) *Analyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	p := *prompts
	if cfg.Temperature > 0 {
		p.Extraction.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		p.Extraction.MaxTokens = cfg.MaxTokens
	}

	return &Analyzer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		prompts: &p,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

type promptField struct {
	Index       int
	Name        string
	Label       string
	Kind        string
	Description string
	Hint        string
}

type extractionData struct {
	CaseID       int64
	ClientName   string
	ProductName  string
	Instructions string
	Fields       []promptField
	Example      string
	Documents    []port.ExtractedDocument
}

type summaryData struct {
	CaseID      int64
	ClientName  string
	ProductName string
	Data        string
}

// ExtractFields asks the model for a JSON object with one key per field
func (a *Analyzer) ExtractFields(ctx context.Context, prompt port.AnalysisPrompt) (map[string]interface{}, error) {
	if prompt.Case == nil || prompt.Model == nil {
		return nil, fmt.Errorf("analysis prompt needs a case and a model")
	}

	userPrompt, err := BuildExtractionPrompt(a.prompts, prompt)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Extracting fields",
		zap.Int64("case_id", prompt.Case.ID),
		zap.Int64("model_id", prompt.Model.ID),
		zap.Int("documents", len(prompt.Documents)))

	content, err := a.complete(ctx, a.prompts.Extraction, userPrompt, true)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// Fallback: try to extract JSON from markdown code blocks
		if jsonStr := extractJSON(content); jsonStr != "" {
			if err := json.Unmarshal([]byte(jsonStr), &result); err == nil {
				a.logger.Info("Extracted JSON from response")
				return result, nil
			}
		}

		a.logger.Error("Failed to parse model response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	a.logger.Info("Field extraction completed",
		zap.Int64("case_id", prompt.Case.ID),
		zap.Int("fields", len(result)))

	return result, nil
}

// Summarize writes a short executive summary from the extracted data
func (a *Analyzer) Summarize(ctx context.Context, c *entity.CaseView, data map[string]interface{}) (string, error) {
	if c == nil {
		return "", fmt.Errorf("summary needs a case")
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal extracted data: %w", err)
	}

	userPrompt, err := renderTemplate(a.prompts.Summary.UserTemplate, summaryData{
		CaseID:      c.ID,
		ClientName:  c.ClientName,
		ProductName: c.ProductName,
		Data:        string(encoded),
	})
	if err != nil {
		return "", err
	}

	content, err := a.complete(ctx, a.prompts.Summary, userPrompt, false)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(content), nil
}

func (a *Analyzer) complete(ctx context.Context, spec PromptSpec, userPrompt string, jsonOutput bool) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: spec.Temperature,
		MaxTokens:   spec.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: spec.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
	}
	if jsonOutput {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		a.logger.Error("Chat completion failed", zap.Error(err))
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	return resp.Choices[0].Message.Content, nil
}

// BuildExtractionPrompt renders the user prompt of an extraction call
func BuildExtractionPrompt(prompts *PromptConfig, prompt port.AnalysisPrompt) (string, error) {
	fields := make([]promptField, 0, len(prompt.Model.Fields))
	example := make(map[string]string, len(prompt.Model.Fields))
	for i, f := range prompt.Model.Fields {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		fields = append(fields, promptField{
			Index:       i + 1,
			Name:        f.Name,
			Label:       label,
			Kind:        f.Kind,
			Description: f.Description,
			Hint:        kindHint(f.Kind),
		})
		example[f.Name] = "valor_extraído"
	}

	exampleJSON, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal example: %w", err)
	}

	docs := make([]port.ExtractedDocument, len(prompt.Documents))
	for i, d := range prompt.Documents {
		docs[i] = d
		if len(d.Text) > maxDocumentChars {
			docs[i].Text = d.Text[:maxDocumentChars]
		}
	}

	return renderTemplate(prompts.Extraction.UserTemplate, extractionData{
		CaseID:       prompt.Case.ID,
		ClientName:   prompt.Case.ClientName,
		ProductName:  prompt.Case.ProductName,
		Instructions: prompt.Model.Instructions,
		Fields:       fields,
		Example:      string(exampleJSON),
		Documents:    docs,
	})
}

func kindHint(kind string) string {
	switch kind {
	case entity.FieldKindDate:
		return "DD/MM/AAAA (ex: 15/03/2025)"
	case entity.FieldKindMoney, entity.FieldKindDecimal:
		return "apenas números com ponto decimal, sem R$ (ex: 10000.50)"
	case entity.FieldKindInteger:
		return "apenas números inteiros (ex: 42)"
	case entity.FieldKindBoolean:
		return "true ou false"
	case entity.FieldKindText:
		return "texto curto e objetivo"
	case entity.FieldKindChoice:
		return "um valor da lista de opções"
	case entity.FieldKindMultiChoice:
		return "valores separados por vírgula"
	}
	return ""
}

// extractJSON extracts the first JSON object embedded in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	end := findJSONEnd(content, start)
	if end <= start {
		return ""
	}
	return content[start:end]
}

// findJSONEnd finds the end of JSON content starting at a given position
func findJSONEnd(content string, start int) int {
	if start < 0 || start >= len(content) || content[start] != '{' {
		return -1
	}

	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		char := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}

		if char == '\\' {
			escapeNext = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if char == '{' {
			braceCount++
		} else if char == '}' {
			braceCount--
			if braceCount == 0 {
				return i + 1
			}
		}
	}

	return -1
}

var _ port.DocumentAnalyzer = (*Analyzer)(nil)
