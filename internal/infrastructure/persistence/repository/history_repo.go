package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PhaseHistoryRepository implements port.PhaseHistoryRepository
type PhaseHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPhaseHistoryRepository creates a new phase history repository
func NewPhaseHistoryRepository(db *sql.DB, logger *zap.Logger) port.PhaseHistoryRepository {
	return &PhaseHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create opens a history record
func (r *PhaseHistoryRepository) Create(ctx context.Context, h *entity.PhaseHistory) error {
	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO phase_history (case_id, phase_id, entered_at, exited_at)
		VALUES (?, ?, ?, ?)
	`, h.CaseID, h.PhaseID, h.EnteredAt, nullTime(h.ExitedAt))
	if err != nil {
		r.logger.Error("Failed to create phase history", zap.Int64("case_id", h.CaseID), zap.Error(err))
		return fmt.Errorf("failed to create phase history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// CloseOpen stamps the exit time of the case's open record and reports how many rows it closed
func (r *PhaseHistoryRepository) CloseOpen(ctx context.Context, caseID int64, exitedAt time.Time) (int64, error) {
	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx,
		`UPDATE phase_history SET exited_at = ? WHERE case_id = ? AND exited_at IS NULL`,
		exitedAt, caseID)
	if err != nil {
		r.logger.Error("Failed to close phase history", zap.Int64("case_id", caseID), zap.Error(err))
		return 0, fmt.Errorf("failed to close phase history: %w", err)
	}
	return result.RowsAffected()
}

// ListByCase returns the history of a case, oldest first
func (r *PhaseHistoryRepository) ListByCase(ctx context.Context, caseID int64) ([]*entity.PhaseHistory, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, `
		SELECT h.id, h.case_id, h.phase_id, p.name, h.entered_at, h.exited_at
		FROM phase_history h
		JOIN phases p ON p.id = h.phase_id
		WHERE h.case_id = ?
		ORDER BY h.entered_at, h.id
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phase history: %w", err)
	}
	defer rows.Close()

	var history []*entity.PhaseHistory
	for rows.Next() {
		var h entity.PhaseHistory
		var exited sql.NullTime
		if err := rows.Scan(&h.ID, &h.CaseID, &h.PhaseID, &h.PhaseName, &h.EnteredAt, &exited); err != nil {
			return nil, fmt.Errorf("failed to scan phase history: %w", err)
		}
		h.ExitedAt = timePtr(exited)
		history = append(history, &h)
	}
	return history, rows.Err()
}

// CountOpen counts history records of the case without exit time
func (r *PhaseHistoryRepository) CountOpen(ctx context.Context, caseID int64) (int, error) {
	var n int
	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM phase_history WHERE case_id = ? AND exited_at IS NULL`, caseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open phase history: %w", err)
	}
	return n, nil
}
