package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/case-workflow/internal/domain/workflow"
)

// outcomeWriteTimeout bounds storing a run's outcome after the run's own
// deadline has passed
const outcomeWriteTimeout = 10 * time.Second

// AnalysisRequest asks for an analysis of case documents with a model
type AnalysisRequest struct {
	CaseID      int64                 `json:"case_id"`
	ModelID     int64                 `json:"model_id"`
	Files       []entity.AnalysisFile `json:"files"`
	RequestedBy string                `json:"requested_by"`
}

// AnalysisService runs document analyses for cases
type AnalysisService interface {
	Request(ctx context.Context, req AnalysisRequest) (*entity.AnalysisResult, error)
	Process(ctx context.Context, resultID int64) error
	Get(ctx context.Context, id int64) (*entity.AnalysisResult, error)
	ListModels(ctx context.Context, clientID, productID int64) ([]*entity.AnalysisModel, error)
	SaveModel(ctx context.Context, model *entity.AnalysisModel) error
}

type analysisServiceImpl struct {
	analyses  port.AnalysisRepository
	cases     port.CaseRepository
	store     port.DocumentStore
	extractor port.TextExtractor
	analyzer  port.DocumentAnalyzer
	logger    Logger
	now       func() time.Time
}

// NewAnalysisService creates a new AnalysisService
func NewAnalysisService(
	analyses port.AnalysisRepository,
	cases port.CaseRepository,
	store port.DocumentStore,
	extractor port.TextExtractor,
	analyzer port.DocumentAnalyzer,
	logger Logger,
) AnalysisService {
	return &analysisServiceImpl{
		analyses:  analyses,
		cases:     cases,
		store:     store,
		extractor: extractor,
		analyzer:  analyzer,
		logger:    logger,
		now:       time.Now,
	}
}

// Request validates and queues an analysis; the worker picks it up later
func (s *analysisServiceImpl) Request(ctx context.Context, req AnalysisRequest) (*entity.AnalysisResult, error) {
	if len(req.Files) == 0 {
		return nil, validationErr("at least one file is required")
	}
	for i, f := range req.Files {
		if f.ID == "" {
			return nil, validationErr(fmt.Sprintf("file %d: id is required", i+1))
		}
	}

	c, err := s.cases.GetByID(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: case %d", domainwf.ErrNotFound, req.CaseID)
	}

	model, err := s.analyses.GetModel(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	if model == nil || !model.Active {
		return nil, fmt.Errorf("%w: analysis model %d", domainwf.ErrNotFound, req.ModelID)
	}
	if model.ClientID != c.ClientID || model.ProductID != c.ProductID {
		return nil, validationErr(fmt.Sprintf("model %d does not apply to case %d", model.ID, c.ID))
	}

	result := &entity.AnalysisResult{
		CaseID:      c.ID,
		ModelID:     model.ID,
		Files:       req.Files,
		Status:      entity.AnalysisStatusProcessing,
		RequestedBy: req.RequestedBy,
	}
	if err := s.analyses.CreateResult(ctx, result); err != nil {
		s.logger.Error("Failed to create analysis", "case_id", c.ID, "error", err)
		return nil, err
	}

	s.log(ctx, result.ID, entity.LogLevelInfo, fmt.Sprintf("Análise iniciada com %d arquivo(s)", len(req.Files)))
	s.log(ctx, result.ID, entity.LogLevelInfo, fmt.Sprintf("Modelo: %s", model.Name))

	s.logger.Info("Analysis requested", "result_id", result.ID, "case_id", c.ID, "model_id", model.ID)
	return result, nil
}

// Process runs a queued analysis to completion and stores its outcome.
// Runs no longer PROCESSANDO are left alone.
func (s *analysisServiceImpl) Process(ctx context.Context, resultID int64) error {
	result, err := s.analyses.GetResult(ctx, resultID)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("%w: analysis %d", domainwf.ErrNotFound, resultID)
	}
	if result.Status != entity.AnalysisStatusProcessing {
		return nil
	}

	start := s.now()

	data, summary, err := s.run(ctx, result)
	result.Duration = s.now().Sub(start)

	// a timed-out run must still leave PROCESSANDO, or the worker picks it up again
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()

	if err != nil {
		result.Status = entity.AnalysisStatusError
		result.ErrorMessage = err.Error()
		s.log(storeCtx, result.ID, entity.LogLevelError, fmt.Sprintf("Erro durante análise: %s", err))
		if uerr := s.analyses.UpdateResult(storeCtx, result); uerr != nil {
			return errors.Join(err, uerr)
		}
		s.logger.Error("Analysis failed", "result_id", result.ID, "error", err)
		return err
	}

	result.Status = entity.AnalysisStatusDone
	result.ExtractedData = data
	result.Summary = summary
	if err := s.analyses.UpdateResult(storeCtx, result); err != nil {
		return err
	}

	s.log(storeCtx, result.ID, entity.LogLevelSuccess, fmt.Sprintf("Análise concluída! %d campos extraídos", len(data)))
	s.logger.Info("Analysis completed", "result_id", result.ID, "fields", len(data), "duration", result.Duration.String())
	return nil
}

func (s *analysisServiceImpl) run(ctx context.Context, result *entity.AnalysisResult) (map[string]interface{}, string, error) {
	model, err := s.analyses.GetModel(ctx, result.ModelID)
	if err != nil {
		return nil, "", err
	}
	if model == nil {
		return nil, "", fmt.Errorf("analysis model %d no longer exists", result.ModelID)
	}
	view, err := s.cases.GetView(ctx, result.CaseID)
	if err != nil {
		return nil, "", err
	}
	if view == nil {
		return nil, "", fmt.Errorf("case %d no longer exists", result.CaseID)
	}

	s.log(ctx, result.ID, entity.LogLevelInfo, "Preparando arquivos para análise...")
	docs := s.prepareFiles(ctx, result)
	if len(docs) == 0 {
		return nil, "", errors.New("nenhum arquivo pôde ser preparado para análise")
	}

	s.log(ctx, result.ID, entity.LogLevelInfo, "Enviando documentos para o analisador...")
	data, err := s.analyzer.ExtractFields(ctx, port.AnalysisPrompt{Case: view, Model: model, Documents: docs})
	if err != nil {
		return nil, "", err
	}
	s.log(ctx, result.ID, entity.LogLevelSuccess, fmt.Sprintf("%d campos extraídos com sucesso", len(data)))

	var summary string
	if model.GenerateSummary {
		s.log(ctx, result.ID, entity.LogLevelInfo, "Gerando resumo executivo do caso...")
		summary, err = s.analyzer.Summarize(ctx, view, data)
		if err != nil {
			s.log(ctx, result.ID, entity.LogLevelWarning, fmt.Sprintf("Não foi possível gerar o resumo: %s", err))
			summary = ""
		} else {
			s.log(ctx, result.ID, entity.LogLevelSuccess, fmt.Sprintf("Resumo gerado (%d caracteres)", len(summary)))
		}
	}

	return data, summary, nil
}

// prepareFiles downloads and converts every file, skipping the ones that fail
func (s *analysisServiceImpl) prepareFiles(ctx context.Context, result *entity.AnalysisResult) []port.ExtractedDocument {
	var docs []port.ExtractedDocument
	for _, f := range result.Files {
		stored, err := s.store.Download(ctx, f.ID)
		if err != nil {
			s.log(ctx, result.ID, entity.LogLevelWarning, fmt.Sprintf("Erro ao preparar %s: %s", f.Name, err))
			continue
		}
		if stored.Name == "" {
			stored.Name = f.Name
		}
		if f.MimeType != "" {
			stored.MimeType = f.MimeType
		}

		text, err := s.extractor.Extract(ctx, stored)
		if err != nil {
			s.log(ctx, result.ID, entity.LogLevelWarning, fmt.Sprintf("Erro ao preparar %s: %s", f.Name, err))
			continue
		}

		docs = append(docs, port.ExtractedDocument{Name: f.Name, Folder: f.Folder, Text: text})
		s.log(ctx, result.ID, entity.LogLevelSuccess, fmt.Sprintf("Arquivo preparado: %s (%d bytes)", f.Name, len(stored.Content)))
	}
	return docs
}

// log appends a progress line; losing one is not worth failing the run
func (s *analysisServiceImpl) log(ctx context.Context, resultID int64, level, message string) {
	if err := s.analyses.AppendLog(ctx, &entity.AnalysisLog{
		ResultID:  resultID,
		Level:     level,
		Message:   message,
		CreatedAt: s.now(),
	}); err != nil {
		s.logger.Error("Failed to append analysis log", "result_id", resultID, "error", err)
	}
}

// Get returns an analysis with its progress lines
func (s *analysisServiceImpl) Get(ctx context.Context, id int64) (*entity.AnalysisResult, error) {
	result, err := s.analyses.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: analysis %d", domainwf.ErrNotFound, id)
	}

	logs, err := s.analyses.ListLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Logs = make([]entity.AnalysisLog, 0, len(logs))
	for _, l := range logs {
		result.Logs = append(result.Logs, *l)
	}
	return result, nil
}

// ListModels returns the active models of a client/product pair
func (s *analysisServiceImpl) ListModels(ctx context.Context, clientID, productID int64) ([]*entity.AnalysisModel, error) {
	models, err := s.analyses.ListModels(ctx, clientID, productID)
	if err != nil {
		return nil, err
	}
	if models == nil {
		models = []*entity.AnalysisModel{}
	}
	return models, nil
}

// SaveModel validates and stores an analysis model
func (s *analysisServiceImpl) SaveModel(ctx context.Context, model *entity.AnalysisModel) error {
	var problems []string
	if model.Name == "" {
		problems = append(problems, "name is required")
	}
	if model.ClientID == 0 || model.ProductID == 0 {
		problems = append(problems, "client and product are required")
	}
	if len(model.Fields) == 0 {
		problems = append(problems, "at least one field is required")
	}
	seen := make(map[string]bool, len(model.Fields))
	for i, f := range model.Fields {
		if f.Name == "" {
			problems = append(problems, fmt.Sprintf("field %d: name is required", i+1))
			continue
		}
		if seen[f.Name] {
			problems = append(problems, fmt.Sprintf("field %q repeated", f.Name))
		}
		seen[f.Name] = true
	}
	if len(problems) > 0 {
		return validationErr(problems...)
	}

	if err := s.analyses.SaveModel(ctx, model); err != nil {
		s.logger.Error("Failed to save analysis model", "name", model.Name, "error", err)
		return err
	}
	return nil
}
