package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/garyjia/case-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// CaseRepository implements port.CaseRepository
type CaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sql.DB, logger *zap.Logger) port.CaseRepository {
	return &CaseRepository{
		db:     db,
		logger: logger,
	}
}

const caseViewColumns = `
	c.id, c.client_id, c.product_id, c.title, c.status, c.responsible_user_id,
	c.current_phase_id, c.folder_id, c.entry_date, c.closed_at, c.created_at, c.updated_at,
	cl.name, p.name, COALESCE(ph.name, '')
`

const caseViewFrom = `
	FROM cases c
	JOIN clients cl ON cl.id = c.client_id
	JOIN products p ON p.id = c.product_id
	LEFT JOIN phases ph ON ph.id = c.current_phase_id
`

// Create inserts a new case
func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	if c.EntryDate.IsZero() {
		c.EntryDate = c.CreatedAt
	}

	query := `
		INSERT INTO cases (
			client_id, product_id, title, status, responsible_user_id,
			current_phase_id, folder_id, entry_date, closed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query,
		c.ClientID,
		c.ProductID,
		c.Title,
		c.Status,
		c.ResponsibleUserID,
		nullInt64(c.CurrentPhaseID),
		c.FolderID,
		c.EntryDate,
		nullTime(c.ClosedAt),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create case", zap.Error(err))
		return fmt.Errorf("failed to create case: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	c.ID = id
	return nil
}

// GetByID retrieves a case by ID
func (r *CaseRepository) GetByID(ctx context.Context, id int64) (*entity.Case, error) {
	query := `
		SELECT id, client_id, product_id, title, status, responsible_user_id,
			current_phase_id, folder_id, entry_date, closed_at, created_at, updated_at
		FROM cases
		WHERE id = ?
	`

	var c entity.Case
	var phaseID sql.NullInt64
	var closedAt sql.NullTime

	err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.ClientID,
		&c.ProductID,
		&c.Title,
		&c.Status,
		&c.ResponsibleUserID,
		&phaseID,
		&c.FolderID,
		&c.EntryDate,
		&closedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	c.CurrentPhaseID = int64Ptr(phaseID)
	c.ClosedAt = timePtr(closedAt)
	return &c, nil
}

// GetView retrieves a case joined with client, product and phase names
func (r *CaseRepository) GetView(ctx context.Context, id int64) (*entity.CaseView, error) {
	query := "SELECT " + caseViewColumns + caseViewFrom + " WHERE c.id = ?"

	v, err := scanCaseView(sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case view", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return v, nil
}

// UpdatePhase sets the current phase of a case; nil clears it
func (r *CaseRepository) UpdatePhase(ctx context.Context, id int64, phaseID *int64) error {
	return r.update(ctx, id, "current phase",
		`UPDATE cases SET current_phase_id = ?, updated_at = ? WHERE id = ?`,
		nullInt64(phaseID), time.Now(), id)
}

// UpdateStatus sets the status and closing date of a case
func (r *CaseRepository) UpdateStatus(ctx context.Context, id int64, status string, closedAt *time.Time) error {
	return r.update(ctx, id, "status",
		`UPDATE cases SET status = ?, closed_at = ?, updated_at = ? WHERE id = ?`,
		status, nullTime(closedAt), time.Now(), id)
}

// SetFolderID stores the document folder of a case
func (r *CaseRepository) SetFolderID(ctx context.Context, id int64, folderID string) error {
	return r.update(ctx, id, "folder",
		`UPDATE cases SET folder_id = ?, updated_at = ? WHERE id = ?`,
		folderID, time.Now(), id)
}

func (r *CaseRepository) update(ctx context.Context, id int64, what, query string, args ...interface{}) error {
	result, err := sqlite.Executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update case", zap.Int64("id", id), zap.String("field", what), zap.Error(err))
		return fmt.Errorf("failed to update case %s: %w", what, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("case not found: %d", id)
	}
	return nil
}

// List returns cases matching the filter, newest first
func (r *CaseRepository) List(ctx context.Context, filter port.CaseFilter) ([]*entity.CaseView, error) {
	var where []string
	var args []interface{}

	if filter.Status != "" {
		where = append(where, "c.status = ?")
		args = append(args, filter.Status)
	}
	if filter.ClientID != 0 {
		where = append(where, "c.client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.ProductID != 0 {
		where = append(where, "c.product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.ResponsibleUserID != "" {
		where = append(where, "c.responsible_user_id = ?")
		args = append(args, filter.ResponsibleUserID)
	}
	if filter.Search != "" {
		where = append(where, "(c.title LIKE ? OR cl.name LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	query := "SELECT " + caseViewColumns + caseViewFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY c.created_at DESC, c.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	return r.queryViews(ctx, query, args...)
}

// ListActiveByWorkflow returns ATIVO cases sitting on any phase of the workflow
func (r *CaseRepository) ListActiveByWorkflow(ctx context.Context, workflowID int64) ([]*entity.CaseView, error) {
	query := "SELECT " + caseViewColumns + caseViewFrom + `
		WHERE ph.workflow_id = ? AND c.status = ?
		ORDER BY ph.sort_order, c.entry_date, c.id
	`
	return r.queryViews(ctx, query, workflowID, entity.CaseStatusActive)
}

// CountByWorkflow counts cases currently on a phase of the workflow
func (r *CaseRepository) CountByWorkflow(ctx context.Context, workflowID int64) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM cases c
		JOIN phases ph ON ph.id = c.current_phase_id
		WHERE ph.workflow_id = ?
	`, workflowID)
}

// CountByPhase counts cases currently on the phase
func (r *CaseRepository) CountByPhase(ctx context.Context, phaseID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM cases WHERE current_phase_id = ?`, phaseID)
}

func (r *CaseRepository) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := sqlite.Executor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		r.logger.Error("Failed to count cases", zap.Error(err))
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return n, nil
}

func (r *CaseRepository) queryViews(ctx context.Context, query string, args ...interface{}) ([]*entity.CaseView, error) {
	rows, err := sqlite.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list cases", zap.Error(err))
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var views []*entity.CaseView
	for rows.Next() {
		v, err := scanCaseView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		views = append(views, v)
	}

	return views, rows.Err()
}

func scanCaseView(s rowScanner) (*entity.CaseView, error) {
	var v entity.CaseView
	var phaseID sql.NullInt64
	var closedAt sql.NullTime

	if err := s.Scan(
		&v.ID,
		&v.ClientID,
		&v.ProductID,
		&v.Title,
		&v.Status,
		&v.ResponsibleUserID,
		&phaseID,
		&v.FolderID,
		&v.EntryDate,
		&closedAt,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.ClientName,
		&v.ProductName,
		&v.PhaseName,
	); err != nil {
		return nil, err
	}

	v.CurrentPhaseID = int64Ptr(phaseID)
	v.ClosedAt = timePtr(closedAt)
	return &v, nil
}
