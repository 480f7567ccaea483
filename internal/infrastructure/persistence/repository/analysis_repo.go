package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AnalysisRepository implements port.AnalysisRepository
type AnalysisRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *sql.DB, logger *zap.Logger) port.AnalysisRepository {
	return &AnalysisRepository{
		db:     db,
		logger: logger,
	}
}

// SaveModel inserts a model without ID or updates an existing one
func (r *AnalysisRepository) SaveModel(ctx context.Context, model *entity.AnalysisModel) error {
	fields, err := json.Marshal(model.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	exec := sqlite.Executor(ctx, r.db)
	if model.ID != 0 {
		_, err := exec.ExecContext(ctx, `
			UPDATE analysis_models SET name = ?, client_id = ?, product_id = ?, fields = ?,
				instructions = ?, generate_summary = ?, active = ?
			WHERE id = ?
		`, model.Name, model.ClientID, model.ProductID, string(fields),
			model.Instructions, model.GenerateSummary, model.Active, model.ID)
		if err != nil {
			return fmt.Errorf("failed to update analysis model: %w", err)
		}
		return nil
	}

	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}
	result, err := exec.ExecContext(ctx, `
		INSERT INTO analysis_models (name, client_id, product_id, fields, instructions, generate_summary, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, model.Name, model.ClientID, model.ProductID, string(fields),
		model.Instructions, model.GenerateSummary, model.Active, model.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create analysis model", zap.Error(err))
		return fmt.Errorf("failed to create analysis model: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	model.ID = id
	return nil
}

const modelColumns = `id, name, client_id, product_id, fields, instructions, generate_summary, active, created_at`

// GetModel retrieves an analysis model by ID
func (r *AnalysisRepository) GetModel(ctx context.Context, id int64) (*entity.AnalysisModel, error) {
	m, err := scanModel(sqlite.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+modelColumns+` FROM analysis_models WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis model: %w", err)
	}
	return m, nil
}

// ListModels returns the active models of a client/product pair
func (r *AnalysisRepository) ListModels(ctx context.Context, clientID, productID int64) ([]*entity.AnalysisModel, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, `
		SELECT `+modelColumns+` FROM analysis_models
		WHERE client_id = ? AND product_id = ? AND active = 1
		ORDER BY name
	`, clientID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis models: %w", err)
	}
	defer rows.Close()

	var models []*entity.AnalysisModel
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// CreateResult inserts a new analysis run
func (r *AnalysisRepository) CreateResult(ctx context.Context, result *entity.AnalysisResult) error {
	files, data, err := marshalResult(result)
	if err != nil {
		return err
	}

	now := time.Now()
	result.CreatedAt, result.UpdatedAt = now, now

	res, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO analysis_results (
			case_id, model_id, files, extracted_data, summary, status, error_message,
			duration_ms, requested_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.CaseID, result.ModelID, files, data, result.Summary, result.Status, result.ErrorMessage,
		result.Duration.Milliseconds(), result.RequestedBy, result.CreatedAt, result.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create analysis result", zap.Int64("case_id", result.CaseID), zap.Error(err))
		return fmt.Errorf("failed to create analysis result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	result.ID = id
	return nil
}

const resultColumns = `id, case_id, model_id, files, extracted_data, summary, status, error_message, duration_ms, requested_by, created_at, updated_at`

// GetResult retrieves an analysis run by ID
func (r *AnalysisRepository) GetResult(ctx context.Context, id int64) (*entity.AnalysisResult, error) {
	res, err := scanResult(sqlite.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM analysis_results WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis result: %w", err)
	}
	return res, nil
}

// UpdateResult stores the outcome of an analysis run
func (r *AnalysisRepository) UpdateResult(ctx context.Context, result *entity.AnalysisResult) error {
	files, data, err := marshalResult(result)
	if err != nil {
		return err
	}
	result.UpdatedAt = time.Now()

	_, err = sqlite.Executor(ctx, r.db).ExecContext(ctx, `
		UPDATE analysis_results
		SET files = ?, extracted_data = ?, summary = ?, status = ?, error_message = ?,
			duration_ms = ?, updated_at = ?
		WHERE id = ?
	`, files, data, result.Summary, result.Status, result.ErrorMessage,
		result.Duration.Milliseconds(), result.UpdatedAt, result.ID)
	if err != nil {
		r.logger.Error("Failed to update analysis result", zap.Int64("id", result.ID), zap.Error(err))
		return fmt.Errorf("failed to update analysis result: %w", err)
	}
	return nil
}

// ListProcessing returns runs still waiting to be processed, oldest first
func (r *AnalysisRepository) ListProcessing(ctx context.Context, limit int) ([]*entity.AnalysisResult, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, `
		SELECT `+resultColumns+` FROM analysis_results
		WHERE status = ?
		ORDER BY created_at, id
		LIMIT ?
	`, entity.AnalysisStatusProcessing, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing analyses: %w", err)
	}
	defer rows.Close()

	var results []*entity.AnalysisResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// AppendLog stores a progress line of a run
func (r *AnalysisRepository) AppendLog(ctx context.Context, log *entity.AnalysisLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	res, err := sqlite.Executor(ctx, r.db).ExecContext(ctx,
		`INSERT INTO analysis_logs (result_id, level, message, created_at) VALUES (?, ?, ?, ?)`,
		log.ResultID, log.Level, log.Message, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append analysis log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	log.ID = id
	return nil
}

// ListLogs returns the progress lines of a run in order
func (r *AnalysisRepository) ListLogs(ctx context.Context, resultID int64) ([]*entity.AnalysisLog, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, result_id, level, message, created_at
		FROM analysis_logs WHERE result_id = ? ORDER BY id
	`, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.AnalysisLog
	for rows.Next() {
		var l entity.AnalysisLog
		if err := rows.Scan(&l.ID, &l.ResultID, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func marshalResult(result *entity.AnalysisResult) (string, string, error) {
	files, err := json.Marshal(result.Files)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal analysis files: %w", err)
	}
	data := []byte("{}")
	if result.ExtractedData != nil {
		if data, err = json.Marshal(result.ExtractedData); err != nil {
			return "", "", fmt.Errorf("failed to marshal extracted data: %w", err)
		}
	}
	return string(files), string(data), nil
}

func scanModel(s rowScanner) (*entity.AnalysisModel, error) {
	var m entity.AnalysisModel
	var fields string
	if err := s.Scan(&m.ID, &m.Name, &m.ClientID, &m.ProductID, &fields,
		&m.Instructions, &m.GenerateSummary, &m.Active, &m.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &m.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	return &m, nil
}

func scanResult(s rowScanner) (*entity.AnalysisResult, error) {
	var res entity.AnalysisResult
	var files, data string
	var durationMs int64

	if err := s.Scan(&res.ID, &res.CaseID, &res.ModelID, &files, &data, &res.Summary, &res.Status,
		&res.ErrorMessage, &durationMs, &res.RequestedBy, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(files), &res.Files); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis files: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &res.ExtractedData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extracted data: %w", err)
	}
	if len(res.ExtractedData) == 0 {
		res.ExtractedData = nil
	}
	res.Duration = time.Duration(durationMs) * time.Millisecond
	return &res, nil
}
